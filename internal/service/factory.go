package service

import (
	"github.com/ledgerline/taxengine/internal/config"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/catalog"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	"github.com/ledgerline/taxengine/internal/httpclient"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	TaxZoneRepo     taxzone.Repository
	TaxRateRepo     taxrate.Repository
	TaxRuleRepo     taxrule.Repository
	CalculationRepo calculation.Repository

	// Catalog resolves product tax categories for lines that do not
	// carry one explicitly
	Catalog catalog.ProductCatalog

	// http client
	Client httpclient.Client
}
