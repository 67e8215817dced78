package service

import (
	"context"

	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
)

// RuleFilterService decides whether a resolved tax rate applies to a
// specific line item.
type RuleFilterService interface {
	// Applies reports whether the rate applies to the target. A rate with
	// no active rules applies unconditionally; with rules, at least one must
	// match (OR semantics).
	Applies(ctx context.Context, rate *taxrate.TaxRate, target taxrule.Target) (bool, error)
}

type ruleFilterService struct {
	ServiceParams
}

func NewRuleFilterService(params ServiceParams) RuleFilterService {
	return &ruleFilterService{
		ServiceParams: params,
	}
}

func (s *ruleFilterService) Applies(ctx context.Context, rate *taxrate.TaxRate, target taxrule.Target) (bool, error) {
	rules, err := s.TaxRuleRepo.ListActive(ctx, rate.ID)
	if err != nil {
		s.Logger.Errorw("failed to load tax rules",
			"error", err,
			"tax_rate_id", rate.ID,
		)
		return false, err
	}

	if len(rules) == 0 {
		return true, nil
	}

	for _, rule := range rules {
		if rule.Matches(target) {
			return true, nil
		}
	}

	return false, nil
}
