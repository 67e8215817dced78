package testutil

import (
	"context"
	"sort"
	"strings"

	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxZoneStore implements taxzone.Repository
type InMemoryTaxZoneStore struct {
	*InMemoryStore[*taxzone.TaxZone]
}

func NewInMemoryTaxZoneStore() *InMemoryTaxZoneStore {
	return &InMemoryTaxZoneStore{
		InMemoryStore: NewInMemoryStore[*taxzone.TaxZone](),
	}
}

// taxZoneFilterFn implements filtering logic for tax zones
func taxZoneFilterFn(ctx context.Context, z *taxzone.TaxZone, filter interface{}) bool {
	if z == nil {
		return false
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok {
		if z.TenantID != tenantID {
			return false
		}
	}

	f, ok := filter.(*types.TaxZoneFilter)
	if !ok {
		return true
	}

	if f.GetStatus() != "" && string(z.Status) != f.GetStatus() {
		return false
	}

	if len(f.TaxZoneIDs) > 0 && !lo.Contains(f.TaxZoneIDs, z.ID) {
		return false
	}

	if f.CountryCode != "" {
		found := lo.ContainsBy(z.CountryCodes, func(c string) bool {
			return strings.EqualFold(c, f.CountryCode)
		})
		if !found {
			return false
		}
	}

	if f.OnlyDefault && !z.IsDefault {
		return false
	}

	return true
}

func taxZoneSortFn(i, j *taxzone.TaxZone) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryTaxZoneStore) Create(ctx context.Context, zone *taxzone.TaxZone) error {
	if zone == nil {
		return ierr.NewError("tax zone cannot be nil").
			WithHint("Tax zone data is required").
			Mark(ierr.ErrValidation)
	}

	if zone.TenantID == "" {
		zone.TenantID = types.GetTenantID(ctx)
	}
	return s.InMemoryStore.Create(ctx, zone.ID, zone)
}

func (s *InMemoryTaxZoneStore) Get(ctx context.Context, id string) (*taxzone.TaxZone, error) {
	zone, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("tax zone not found").
			WithHintf("Tax zone %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return zone, nil
}

func (s *InMemoryTaxZoneStore) List(ctx context.Context, filter *types.TaxZoneFilter) ([]*taxzone.TaxZone, error) {
	return s.InMemoryStore.List(ctx, filter, taxZoneFilterFn, taxZoneSortFn)
}

func (s *InMemoryTaxZoneStore) Count(ctx context.Context, filter *types.TaxZoneFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, taxZoneFilterFn)
}

func (s *InMemoryTaxZoneStore) Update(ctx context.Context, zone *taxzone.TaxZone) error {
	if zone == nil {
		return ierr.NewError("tax zone cannot be nil").
			WithHint("Tax zone data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, zone.ID, zone)
}

func (s *InMemoryTaxZoneStore) Delete(ctx context.Context, zone *taxzone.TaxZone) error {
	if zone == nil {
		return ierr.NewError("tax zone cannot be nil").
			WithHint("Tax zone data is required").
			Mark(ierr.ErrValidation)
	}
	zone.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, zone.ID, zone)
}

func (s *InMemoryTaxZoneStore) ListActive(ctx context.Context) ([]*taxzone.TaxZone, error) {
	zones, err := s.List(ctx, types.NewNoLimitTaxZoneFilter())
	if err != nil {
		return nil, err
	}
	// Stable order for deterministic matching
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones, nil
}

func (s *InMemoryTaxZoneStore) GetDefault(ctx context.Context) (*taxzone.TaxZone, error) {
	filter := types.NewNoLimitTaxZoneFilter()
	filter.OnlyDefault = true
	zones, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, ierr.NewError("no default tax zone configured").
			WithHint("Mark exactly one active tax zone as default").
			Mark(ierr.ErrNotFound)
	}
	return zones[0], nil
}
