package repository

import (
	"github.com/ledgerline/taxengine/internal/cache"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
	postgresRepo "github.com/ledgerline/taxengine/internal/repository/postgres"
)

func NewTaxZoneRepository(db postgres.IClient, logger *logger.Logger, cache cache.Cache) taxzone.Repository {
	return postgresRepo.NewTaxZoneRepository(db, logger, cache)
}

func NewTaxRateRepository(db postgres.IClient, logger *logger.Logger, cache cache.Cache) taxrate.Repository {
	return postgresRepo.NewTaxRateRepository(db, logger, cache)
}

func NewTaxRuleRepository(db postgres.IClient, logger *logger.Logger, cache cache.Cache) taxrule.Repository {
	return postgresRepo.NewTaxRuleRepository(db, logger, cache)
}

func NewCalculationRepository(db postgres.IClient, logger *logger.Logger) calculation.Repository {
	return postgresRepo.NewCalculationRepository(db, logger)
}
