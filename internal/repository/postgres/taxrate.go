package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/taxengine/internal/cache"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
	"github.com/ledgerline/taxengine/internal/types"
)

type taxRateRepository struct {
	db     postgres.IClient
	logger *logger.Logger
	cache  cache.Cache
}

func NewTaxRateRepository(db postgres.IClient, logger *logger.Logger, cache cache.Cache) taxrate.Repository {
	return &taxRateRepository{db: db, logger: logger, cache: cache}
}

type taxRateRow struct {
	ID                string           `db:"id"`
	Name              string           `db:"name"`
	Code              string           `db:"code"`
	Description       string           `db:"description"`
	TaxCategoryID     string           `db:"tax_category_id"`
	TaxZoneID         string           `db:"tax_zone_id"`
	RateType          string           `db:"rate_type"`
	Rate              decimal.Decimal  `db:"rate"`
	FixedAmount       *decimal.Decimal `db:"fixed_amount"`
	Priority          int              `db:"priority"`
	IsCompound        bool             `db:"is_compound"`
	IncludeInPrice    bool             `db:"include_in_price"`
	IsShippingTaxable bool             `db:"is_shipping_taxable"`
	Threshold         *decimal.Decimal `db:"threshold"`
	MinimumAmount     *decimal.Decimal `db:"minimum_amount"`
	MaximumAmount     *decimal.Decimal `db:"maximum_amount"`
	ValidFrom         *time.Time       `db:"valid_from"`
	ValidTo           *time.Time       `db:"valid_to"`

	types.BaseModel
}

func toTaxRateRow(r *taxrate.TaxRate) *taxRateRow {
	return &taxRateRow{
		ID:                r.ID,
		Name:              r.Name,
		Code:              r.Code,
		Description:       r.Description,
		TaxCategoryID:     r.TaxCategoryID,
		TaxZoneID:         r.TaxZoneID,
		RateType:          string(r.RateType),
		Rate:              r.Rate,
		FixedAmount:       r.FixedAmount,
		Priority:          r.Priority,
		IsCompound:        r.IsCompound,
		IncludeInPrice:    r.IncludeInPrice,
		IsShippingTaxable: r.IsShippingTaxable,
		Threshold:         r.Threshold,
		MinimumAmount:     r.MinimumAmount,
		MaximumAmount:     r.MaximumAmount,
		ValidFrom:         r.ValidFrom,
		ValidTo:           r.ValidTo,
		BaseModel:         r.BaseModel,
	}
}

func (r *taxRateRow) toDomain() *taxrate.TaxRate {
	return &taxrate.TaxRate{
		ID:                r.ID,
		Name:              r.Name,
		Code:              r.Code,
		Description:       r.Description,
		TaxCategoryID:     r.TaxCategoryID,
		TaxZoneID:         r.TaxZoneID,
		RateType:          types.TaxRateType(r.RateType),
		Rate:              r.Rate,
		FixedAmount:       r.FixedAmount,
		Priority:          r.Priority,
		IsCompound:        r.IsCompound,
		IncludeInPrice:    r.IncludeInPrice,
		IsShippingTaxable: r.IsShippingTaxable,
		Threshold:         r.Threshold,
		MinimumAmount:     r.MinimumAmount,
		MaximumAmount:     r.MaximumAmount,
		ValidFrom:         r.ValidFrom,
		ValidTo:           r.ValidTo,
		BaseModel:         r.BaseModel,
	}
}

func (r *taxRateRepository) Create(ctx context.Context, rate *taxrate.TaxRate) error {
	query := `
		INSERT INTO tax_rates (
			id, tenant_id, name, code, description, tax_category_id, tax_zone_id,
			rate_type, rate, fixed_amount, priority, is_compound, include_in_price,
			is_shipping_taxable, threshold, minimum_amount, maximum_amount,
			valid_from, valid_to, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :name, :code, :description, :tax_category_id, :tax_zone_id,
			:rate_type, :rate, :fixed_amount, :priority, :is_compound, :include_in_price,
			:is_shipping_taxable, :threshold, :minimum_amount, :maximum_amount,
			:valid_from, :valid_to, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating tax rate",
		"tax_rate_id", rate.ID,
		"tax_category_id", rate.TaxCategoryID,
		"tax_zone_id", rate.TaxZoneID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, toTaxRateRow(rate)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create tax rate").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxRate)
	return nil
}

func (r *taxRateRepository) Get(ctx context.Context, id string) (*taxrate.TaxRate, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM tax_rates WHERE id = :id AND tenant_id = :tenant_id AND status != :deleted`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
			"deleted":   types.StatusDeleted,
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get tax rate").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("tax rate not found").
			WithHintf("Tax rate %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var row taxRateRow
	if err := rows.StructScan(&row); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan tax rate").
			Mark(ierr.ErrDatabase)
	}

	return row.toDomain(), nil
}

func (r *taxRateRepository) List(ctx context.Context, filter *types.TaxRateFilter) ([]*taxrate.TaxRate, error) {
	if filter == nil {
		filter = types.NewTaxRateFilter()
	}

	conditions := []string{"tenant_id = :tenant_id", "status = :status"}
	params := map[string]interface{}{
		"tenant_id": types.GetTenantID(ctx),
		"status":    filter.GetStatus(),
		"limit":     filter.GetLimit(),
		"offset":    filter.GetOffset(),
	}

	if len(filter.TaxRateIDs) > 0 {
		conditions = append(conditions, "id = ANY(:taxrate_ids)")
		params["taxrate_ids"] = pq.StringArray(filter.TaxRateIDs)
	}
	if filter.TaxCategoryID != "" {
		conditions = append(conditions, "tax_category_id = :tax_category_id")
		params["tax_category_id"] = filter.TaxCategoryID
	}
	if filter.TaxZoneID != "" {
		conditions = append(conditions, "tax_zone_id = :tax_zone_id")
		params["tax_zone_id"] = filter.TaxZoneID
	}

	query := fmt.Sprintf(
		`SELECT * FROM tax_rates WHERE %s ORDER BY %s %s`,
		strings.Join(conditions, " AND "),
		filter.GetSort(), filter.GetOrder(),
	)
	if !filter.IsUnlimited() {
		query += " LIMIT :limit OFFSET :offset"
	}

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tax rates").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var rates []*taxrate.TaxRate
	for rows.Next() {
		var row taxRateRow
		if err := rows.StructScan(&row); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan tax rate").
				Mark(ierr.ErrDatabase)
		}
		rates = append(rates, row.toDomain())
	}

	return rates, nil
}

func (r *taxRateRepository) Count(ctx context.Context, filter *types.TaxRateFilter) (int, error) {
	if filter == nil {
		filter = types.NewTaxRateFilter()
	}

	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT COUNT(*) FROM tax_rates WHERE tenant_id = :tenant_id AND status = :status`,
		map[string]interface{}{
			"tenant_id": types.GetTenantID(ctx),
			"status":    filter.GetStatus(),
		})
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count tax rates").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, ierr.WithError(err).
				WithHint("Failed to scan tax rate count").
				Mark(ierr.ErrDatabase)
		}
	}

	return count, nil
}

func (r *taxRateRepository) Update(ctx context.Context, rate *taxrate.TaxRate) error {
	query := `
		UPDATE tax_rates SET
			name = :name,
			code = :code,
			description = :description,
			rate_type = :rate_type,
			rate = :rate,
			fixed_amount = :fixed_amount,
			priority = :priority,
			is_compound = :is_compound,
			include_in_price = :include_in_price,
			is_shipping_taxable = :is_shipping_taxable,
			threshold = :threshold,
			minimum_amount = :minimum_amount,
			maximum_amount = :maximum_amount,
			valid_from = :valid_from,
			valid_to = :valid_to,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, toTaxRateRow(rate)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update tax rate").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxRate)
	return nil
}

func (r *taxRateRepository) Delete(ctx context.Context, rate *taxrate.TaxRate) error {
	query := `
		UPDATE tax_rates SET
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	rate.Status = types.StatusDeleted
	if _, err := r.db.NamedExecContext(ctx, query, toTaxRateRow(rate)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete tax rate").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxRate)
	return nil
}

// ListActive caches the full published rate set for a (category, zone) pair
// and applies the validity window in memory, so calculations at different
// evaluation times share one cache entry.
func (r *taxRateRepository) ListActive(ctx context.Context, taxCategoryID, taxZoneID string, asOf time.Time) ([]*taxrate.TaxRate, error) {
	cacheKey := fmt.Sprintf("%sactive:%s:%s:%s", cache.PrefixTaxRate, types.GetTenantID(ctx), taxCategoryID, taxZoneID)

	var rates []*taxrate.TaxRate
	if cached, ok := r.cache.Get(ctx, cacheKey); ok {
		rates, _ = cached.([]*taxrate.TaxRate)
	}

	if rates == nil {
		filter := &types.TaxRateFilter{
			QueryFilter:   types.NewNoLimitQueryFilter(),
			TaxCategoryID: taxCategoryID,
			TaxZoneID:     taxZoneID,
		}
		filter.Sort = lo.ToPtr("priority")
		filter.Order = lo.ToPtr(types.OrderAsc)

		var err error
		rates, err = r.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, cacheKey, rates, cache.DefaultExpiration)
	}

	applicable := lo.Filter(rates, func(rate *taxrate.TaxRate, _ int) bool {
		return rate.IsApplicableAt(asOf)
	})
	return applicable, nil
}
