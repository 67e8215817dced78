package testutil

import (
	"context"
	"sort"

	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxRuleStore implements taxrule.Repository
type InMemoryTaxRuleStore struct {
	*InMemoryStore[*taxrule.TaxRule]
}

func NewInMemoryTaxRuleStore() *InMemoryTaxRuleStore {
	return &InMemoryTaxRuleStore{
		InMemoryStore: NewInMemoryStore[*taxrule.TaxRule](),
	}
}

// taxRuleFilterFn implements filtering logic for tax rules
func taxRuleFilterFn(ctx context.Context, r *taxrule.TaxRule, filter interface{}) bool {
	if r == nil {
		return false
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok {
		if r.TenantID != tenantID {
			return false
		}
	}

	f, ok := filter.(*types.TaxRuleFilter)
	if !ok {
		return true
	}

	if f.GetStatus() != "" && string(r.Status) != f.GetStatus() {
		return false
	}

	if len(f.TaxRateIDs) > 0 && !lo.Contains(f.TaxRateIDs, r.TaxRateID) {
		return false
	}

	return true
}

func taxRuleSortFn(i, j *taxrule.TaxRule) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryTaxRuleStore) Create(ctx context.Context, rule *taxrule.TaxRule) error {
	if rule == nil {
		return ierr.NewError("tax rule cannot be nil").
			WithHint("Tax rule data is required").
			Mark(ierr.ErrValidation)
	}

	if rule.TenantID == "" {
		rule.TenantID = types.GetTenantID(ctx)
	}
	return s.InMemoryStore.Create(ctx, rule.ID, rule)
}

func (s *InMemoryTaxRuleStore) Get(ctx context.Context, id string) (*taxrule.TaxRule, error) {
	rule, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("tax rule not found").
			WithHintf("Tax rule %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return rule, nil
}

func (s *InMemoryTaxRuleStore) List(ctx context.Context, filter *types.TaxRuleFilter) ([]*taxrule.TaxRule, error) {
	return s.InMemoryStore.List(ctx, filter, taxRuleFilterFn, taxRuleSortFn)
}

func (s *InMemoryTaxRuleStore) Update(ctx context.Context, rule *taxrule.TaxRule) error {
	if rule == nil {
		return ierr.NewError("tax rule cannot be nil").
			WithHint("Tax rule data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, rule.ID, rule)
}

func (s *InMemoryTaxRuleStore) Delete(ctx context.Context, rule *taxrule.TaxRule) error {
	if rule == nil {
		return ierr.NewError("tax rule cannot be nil").
			WithHint("Tax rule data is required").
			Mark(ierr.ErrValidation)
	}
	rule.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, rule.ID, rule)
}

func (s *InMemoryTaxRuleStore) ListActive(ctx context.Context, taxRateID string) ([]*taxrule.TaxRule, error) {
	filter := types.NewNoLimitTaxRuleFilter()
	filter.TaxRateIDs = []string{taxRateID}

	rules, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].SortOrder < rules[j].SortOrder
	})

	return rules, nil
}
