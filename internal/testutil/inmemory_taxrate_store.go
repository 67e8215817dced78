package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxRateStore implements taxrate.Repository
type InMemoryTaxRateStore struct {
	*InMemoryStore[*taxrate.TaxRate]
}

func NewInMemoryTaxRateStore() *InMemoryTaxRateStore {
	return &InMemoryTaxRateStore{
		InMemoryStore: NewInMemoryStore[*taxrate.TaxRate](),
	}
}

// taxRateFilterFn implements filtering logic for tax rates
func taxRateFilterFn(ctx context.Context, tr *taxrate.TaxRate, filter interface{}) bool {
	if tr == nil {
		return false
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok {
		if tr.TenantID != tenantID {
			return false
		}
	}

	f, ok := filter.(*types.TaxRateFilter)
	if !ok {
		return true
	}

	if f.GetStatus() != "" && string(tr.Status) != f.GetStatus() {
		return false
	}

	if len(f.TaxRateIDs) > 0 && !lo.Contains(f.TaxRateIDs, tr.ID) {
		return false
	}

	if f.TaxCategoryID != "" && tr.TaxCategoryID != f.TaxCategoryID {
		return false
	}

	if f.TaxZoneID != "" && tr.TaxZoneID != f.TaxZoneID {
		return false
	}

	return true
}

func taxRateSortFn(i, j *taxrate.TaxRate) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryTaxRateStore) Create(ctx context.Context, tr *taxrate.TaxRate) error {
	if tr == nil {
		return ierr.NewError("tax rate cannot be nil").
			WithHint("Tax rate data is required").
			Mark(ierr.ErrValidation)
	}

	if tr.TenantID == "" {
		tr.TenantID = types.GetTenantID(ctx)
	}
	return s.InMemoryStore.Create(ctx, tr.ID, tr)
}

func (s *InMemoryTaxRateStore) Get(ctx context.Context, id string) (*taxrate.TaxRate, error) {
	tr, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("tax rate not found").
			WithHintf("Tax rate %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return tr, nil
}

func (s *InMemoryTaxRateStore) List(ctx context.Context, filter *types.TaxRateFilter) ([]*taxrate.TaxRate, error) {
	return s.InMemoryStore.List(ctx, filter, taxRateFilterFn, taxRateSortFn)
}

func (s *InMemoryTaxRateStore) Count(ctx context.Context, filter *types.TaxRateFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, taxRateFilterFn)
}

func (s *InMemoryTaxRateStore) Update(ctx context.Context, tr *taxrate.TaxRate) error {
	if tr == nil {
		return ierr.NewError("tax rate cannot be nil").
			WithHint("Tax rate data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, tr.ID, tr)
}

func (s *InMemoryTaxRateStore) Delete(ctx context.Context, tr *taxrate.TaxRate) error {
	if tr == nil {
		return ierr.NewError("tax rate cannot be nil").
			WithHint("Tax rate data is required").
			Mark(ierr.ErrValidation)
	}
	tr.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, tr.ID, tr)
}

func (s *InMemoryTaxRateStore) ListActive(ctx context.Context, taxCategoryID, taxZoneID string, asOf time.Time) ([]*taxrate.TaxRate, error) {
	filter := types.NewNoLimitTaxRateFilter()
	filter.TaxCategoryID = taxCategoryID
	filter.TaxZoneID = taxZoneID

	rates, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	rates = lo.Filter(rates, func(tr *taxrate.TaxRate, _ int) bool {
		return tr.IsApplicableAt(asOf)
	})

	sort.SliceStable(rates, func(i, j int) bool {
		if rates[i].Priority != rates[j].Priority {
			return rates[i].Priority < rates[j].Priority
		}
		return rates[i].CreatedAt.Before(rates[j].CreatedAt)
	})

	return rates, nil
}
