package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ledgerline/taxengine/internal/cache"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
	"github.com/ledgerline/taxengine/internal/types"
)

type taxZoneRepository struct {
	db     postgres.IClient
	logger *logger.Logger
	cache  cache.Cache
}

func NewTaxZoneRepository(db postgres.IClient, logger *logger.Logger, cache cache.Cache) taxzone.Repository {
	return &taxZoneRepository{db: db, logger: logger, cache: cache}
}

// taxZoneRow maps the tax_zones table; the list columns are postgres text
// arrays and the domain model keeps plain slices.
type taxZoneRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Description  string         `db:"description"`
	CountryCodes pq.StringArray `db:"country_codes"`
	States       pq.StringArray `db:"states"`
	Postcodes    pq.StringArray `db:"postcodes"`
	Cities       pq.StringArray `db:"cities"`
	Level        string         `db:"level"`
	IsDefault    bool           `db:"is_default"`

	types.BaseModel
}

func toTaxZoneRow(z *taxzone.TaxZone) *taxZoneRow {
	return &taxZoneRow{
		ID:           z.ID,
		Name:         z.Name,
		Description:  z.Description,
		CountryCodes: pq.StringArray(z.CountryCodes),
		States:       pq.StringArray(z.States),
		Postcodes:    pq.StringArray(z.Postcodes),
		Cities:       pq.StringArray(z.Cities),
		Level:        string(z.Level),
		IsDefault:    z.IsDefault,
		BaseModel:    z.BaseModel,
	}
}

func (r *taxZoneRow) toDomain() *taxzone.TaxZone {
	return &taxzone.TaxZone{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		CountryCodes: []string(r.CountryCodes),
		States:       []string(r.States),
		Postcodes:    []string(r.Postcodes),
		Cities:       []string(r.Cities),
		Level:        types.JurisdictionLevel(r.Level),
		IsDefault:    r.IsDefault,
		BaseModel:    r.BaseModel,
	}
}

func (r *taxZoneRepository) Create(ctx context.Context, zone *taxzone.TaxZone) error {
	query := `
		INSERT INTO tax_zones (
			id, tenant_id, name, description, country_codes, states, postcodes, cities,
			level, is_default, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :name, :description, :country_codes, :states, :postcodes, :cities,
			:level, :is_default, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating tax zone",
		"tax_zone_id", zone.ID,
		"tenant_id", zone.TenantID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, toTaxZoneRow(zone)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create tax zone").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxZone)
	return nil
}

func (r *taxZoneRepository) Get(ctx context.Context, id string) (*taxzone.TaxZone, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM tax_zones WHERE id = :id AND tenant_id = :tenant_id AND status != :deleted`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
			"deleted":   types.StatusDeleted,
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get tax zone").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("tax zone not found").
			WithHintf("Tax zone %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var row taxZoneRow
	if err := rows.StructScan(&row); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan tax zone").
			Mark(ierr.ErrDatabase)
	}

	return row.toDomain(), nil
}

func (r *taxZoneRepository) List(ctx context.Context, filter *types.TaxZoneFilter) ([]*taxzone.TaxZone, error) {
	if filter == nil {
		filter = types.NewTaxZoneFilter()
	}

	conditions := []string{"tenant_id = :tenant_id", "status = :status"}
	params := map[string]interface{}{
		"tenant_id": types.GetTenantID(ctx),
		"status":    filter.GetStatus(),
		"limit":     filter.GetLimit(),
		"offset":    filter.GetOffset(),
	}

	if len(filter.TaxZoneIDs) > 0 {
		conditions = append(conditions, "id = ANY(:taxzone_ids)")
		params["taxzone_ids"] = pq.StringArray(filter.TaxZoneIDs)
	}
	if filter.CountryCode != "" {
		conditions = append(conditions, ":country_code = ANY(country_codes)")
		params["country_code"] = strings.ToUpper(filter.CountryCode)
	}
	if filter.OnlyDefault {
		conditions = append(conditions, "is_default = TRUE")
	}

	query := fmt.Sprintf(
		`SELECT * FROM tax_zones WHERE %s ORDER BY %s %s`,
		strings.Join(conditions, " AND "),
		filter.GetSort(), filter.GetOrder(),
	)
	if !filter.IsUnlimited() {
		query += " LIMIT :limit OFFSET :offset"
	}

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tax zones").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var zones []*taxzone.TaxZone
	for rows.Next() {
		var row taxZoneRow
		if err := rows.StructScan(&row); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan tax zone").
				Mark(ierr.ErrDatabase)
		}
		zones = append(zones, row.toDomain())
	}

	return zones, nil
}

func (r *taxZoneRepository) Count(ctx context.Context, filter *types.TaxZoneFilter) (int, error) {
	if filter == nil {
		filter = types.NewTaxZoneFilter()
	}

	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT COUNT(*) FROM tax_zones WHERE tenant_id = :tenant_id AND status = :status`,
		map[string]interface{}{
			"tenant_id": types.GetTenantID(ctx),
			"status":    filter.GetStatus(),
		})
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count tax zones").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, ierr.WithError(err).
				WithHint("Failed to scan tax zone count").
				Mark(ierr.ErrDatabase)
		}
	}

	return count, nil
}

func (r *taxZoneRepository) Update(ctx context.Context, zone *taxzone.TaxZone) error {
	query := `
		UPDATE tax_zones SET
			name = :name,
			description = :description,
			country_codes = :country_codes,
			states = :states,
			postcodes = :postcodes,
			cities = :cities,
			level = :level,
			is_default = :is_default,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	r.logger.Debugw("updating tax zone",
		"tax_zone_id", zone.ID,
		"tenant_id", zone.TenantID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, toTaxZoneRow(zone)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update tax zone").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxZone)
	return nil
}

func (r *taxZoneRepository) Delete(ctx context.Context, zone *taxzone.TaxZone) error {
	query := `
		UPDATE tax_zones SET
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	zone.Status = types.StatusDeleted
	if _, err := r.db.NamedExecContext(ctx, query, toTaxZoneRow(zone)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete tax zone").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxZone)
	return nil
}

func (r *taxZoneRepository) ListActive(ctx context.Context) ([]*taxzone.TaxZone, error) {
	cacheKey := cache.PrefixTaxZone + "active:" + types.GetTenantID(ctx)
	if cached, ok := r.cache.Get(ctx, cacheKey); ok {
		if zones, ok := cached.([]*taxzone.TaxZone); ok {
			return zones, nil
		}
	}

	zones, err := r.List(ctx, &types.TaxZoneFilter{QueryFilter: types.NewNoLimitQueryFilter()})
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, cacheKey, zones, cache.DefaultExpiration)
	return zones, nil
}

func (r *taxZoneRepository) GetDefault(ctx context.Context) (*taxzone.TaxZone, error) {
	cacheKey := cache.PrefixTaxZone + "default:" + types.GetTenantID(ctx)
	if cached, ok := r.cache.Get(ctx, cacheKey); ok {
		if zone, ok := cached.(*taxzone.TaxZone); ok {
			return zone, nil
		}
	}

	filter := &types.TaxZoneFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		OnlyDefault: true,
	}
	zones, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, ierr.NewError("no default tax zone configured").
			WithHint("Mark exactly one active tax zone as default").
			Mark(ierr.ErrNotFound)
	}

	r.cache.Set(ctx, cacheKey, zones[0], cache.DefaultExpiration)
	return zones[0], nil
}
