package service

import (
	"context"
	"time"

	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	ierr "github.com/ledgerline/taxengine/internal/errors"
)

// RateResolverService loads the candidate tax rates for a tax category
// inside a zone.
type RateResolverService interface {
	// ResolveRates returns the rates active at asOf for the category and
	// zone, ordered by priority ascending with creation time as the tie
	// break. Misconfigured rates are dropped with a warning rather than
	// failing the calculation.
	ResolveRates(ctx context.Context, taxCategoryID, taxZoneID string, asOf time.Time) ([]*taxrate.TaxRate, error)
}

type rateResolverService struct {
	ServiceParams
}

func NewRateResolverService(params ServiceParams) RateResolverService {
	return &rateResolverService{
		ServiceParams: params,
	}
}

func (s *rateResolverService) ResolveRates(ctx context.Context, taxCategoryID, taxZoneID string, asOf time.Time) ([]*taxrate.TaxRate, error) {
	if taxCategoryID == "" {
		return nil, ierr.NewError("tax_category_id is required").
			WithHint("Rates are resolved per tax category").
			Mark(ierr.ErrValidation)
	}
	if taxZoneID == "" {
		return nil, ierr.NewError("tax_zone_id is required").
			WithHint("Rates are resolved per tax zone").
			Mark(ierr.ErrValidation)
	}

	rates, err := s.TaxRateRepo.ListActive(ctx, taxCategoryID, taxZoneID, asOf)
	if err != nil {
		s.Logger.Errorw("failed to resolve tax rates",
			"error", err,
			"tax_category_id", taxCategoryID,
			"tax_zone_id", taxZoneID,
		)
		return nil, err
	}

	usable := make([]*taxrate.TaxRate, 0, len(rates))
	for _, rate := range rates {
		if err := rate.ValidateConfig(); err != nil {
			s.Logger.Warnw("skipping misconfigured tax rate",
				"error", err,
				"tax_rate_id", rate.ID,
				"tax_zone_id", taxZoneID,
			)
			continue
		}
		usable = append(usable, rate)
	}

	return usable, nil
}
