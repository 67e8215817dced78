package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/ledgerline/taxengine/internal/cache"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
	"github.com/ledgerline/taxengine/internal/types"
)

type taxRuleRepository struct {
	db     postgres.IClient
	logger *logger.Logger
	cache  cache.Cache
}

func NewTaxRuleRepository(db postgres.IClient, logger *logger.Logger, cache cache.Cache) taxrule.Repository {
	return &taxRuleRepository{db: db, logger: logger, cache: cache}
}

type taxRuleRow struct {
	ID              string         `db:"id"`
	TaxRateID       string         `db:"tax_rate_id"`
	ConditionType   string         `db:"condition_type"`
	ConditionValues pq.StringArray `db:"condition_values"`
	SortOrder       int            `db:"sort_order"`

	types.BaseModel
}

func toTaxRuleRow(rule *taxrule.TaxRule) *taxRuleRow {
	return &taxRuleRow{
		ID:              rule.ID,
		TaxRateID:       rule.TaxRateID,
		ConditionType:   string(rule.ConditionType),
		ConditionValues: pq.StringArray(rule.ConditionValues),
		SortOrder:       rule.SortOrder,
		BaseModel:       rule.BaseModel,
	}
}

func (r *taxRuleRow) toDomain() *taxrule.TaxRule {
	return &taxrule.TaxRule{
		ID:              r.ID,
		TaxRateID:       r.TaxRateID,
		ConditionType:   types.TaxRuleConditionType(r.ConditionType),
		ConditionValues: []string(r.ConditionValues),
		SortOrder:       r.SortOrder,
		BaseModel:       r.BaseModel,
	}
}

func (r *taxRuleRepository) Create(ctx context.Context, rule *taxrule.TaxRule) error {
	query := `
		INSERT INTO tax_rules (
			id, tenant_id, tax_rate_id, condition_type, condition_values, sort_order,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :tax_rate_id, :condition_type, :condition_values, :sort_order,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating tax rule",
		"tax_rule_id", rule.ID,
		"tax_rate_id", rule.TaxRateID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, toTaxRuleRow(rule)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create tax rule").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxRule)
	return nil
}

func (r *taxRuleRepository) Get(ctx context.Context, id string) (*taxrule.TaxRule, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM tax_rules WHERE id = :id AND tenant_id = :tenant_id AND status != :deleted`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
			"deleted":   types.StatusDeleted,
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get tax rule").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("tax rule not found").
			WithHintf("Tax rule %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var row taxRuleRow
	if err := rows.StructScan(&row); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan tax rule").
			Mark(ierr.ErrDatabase)
	}

	return row.toDomain(), nil
}

func (r *taxRuleRepository) List(ctx context.Context, filter *types.TaxRuleFilter) ([]*taxrule.TaxRule, error) {
	if filter == nil {
		filter = types.NewTaxRuleFilter()
	}

	conditions := []string{"tenant_id = :tenant_id", "status = :status"}
	params := map[string]interface{}{
		"tenant_id": types.GetTenantID(ctx),
		"status":    filter.GetStatus(),
		"limit":     filter.GetLimit(),
		"offset":    filter.GetOffset(),
	}

	if len(filter.TaxRateIDs) > 0 {
		conditions = append(conditions, "tax_rate_id = ANY(:taxrate_ids)")
		params["taxrate_ids"] = pq.StringArray(filter.TaxRateIDs)
	}

	query := fmt.Sprintf(
		`SELECT * FROM tax_rules WHERE %s ORDER BY %s %s`,
		strings.Join(conditions, " AND "),
		filter.GetSort(), filter.GetOrder(),
	)
	if !filter.IsUnlimited() {
		query += " LIMIT :limit OFFSET :offset"
	}

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tax rules").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var rules []*taxrule.TaxRule
	for rows.Next() {
		var row taxRuleRow
		if err := rows.StructScan(&row); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan tax rule").
				Mark(ierr.ErrDatabase)
		}
		rules = append(rules, row.toDomain())
	}

	return rules, nil
}

func (r *taxRuleRepository) Update(ctx context.Context, rule *taxrule.TaxRule) error {
	query := `
		UPDATE tax_rules SET
			condition_type = :condition_type,
			condition_values = :condition_values,
			sort_order = :sort_order,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	if _, err := r.db.NamedExecContext(ctx, query, toTaxRuleRow(rule)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update tax rule").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxRule)
	return nil
}

func (r *taxRuleRepository) Delete(ctx context.Context, rule *taxrule.TaxRule) error {
	query := `
		UPDATE tax_rules SET
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	rule.Status = types.StatusDeleted
	if _, err := r.db.NamedExecContext(ctx, query, toTaxRuleRow(rule)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete tax rule").
			Mark(ierr.ErrDatabase)
	}

	r.cache.DeleteByPrefix(ctx, cache.PrefixTaxRule)
	return nil
}

// ListActive returns the published rules for a rate ordered by sort_order,
// cached per rate since rule evaluation runs once per line and rate.
func (r *taxRuleRepository) ListActive(ctx context.Context, taxRateID string) ([]*taxrule.TaxRule, error) {
	cacheKey := fmt.Sprintf("%sactive:%s:%s", cache.PrefixTaxRule, types.GetTenantID(ctx), taxRateID)
	if cached, ok := r.cache.Get(ctx, cacheKey); ok {
		if rules, ok := cached.([]*taxrule.TaxRule); ok {
			return rules, nil
		}
	}

	filter := &types.TaxRuleFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		TaxRateIDs:  []string{taxRateID},
	}
	filter.Sort = lo.ToPtr("sort_order")
	filter.Order = lo.ToPtr(types.OrderAsc)

	rules, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	r.cache.Set(ctx, cacheKey, rules, cache.DefaultExpiration)
	return rules, nil
}
