package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
	"github.com/ledgerline/taxengine/internal/types"
)

type calculationRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewCalculationRepository(db postgres.IClient, logger *logger.Logger) calculation.Repository {
	return &calculationRepository{db: db, logger: logger}
}

// calculationRow flattens the tax address into address_* columns
type calculationRow struct {
	ID                string `db:"id"`
	CalculationNumber string `db:"calculation_number"`
	SourceType        string `db:"source_type"`
	SourceID          string `db:"source_id"`
	CalculationMethod string `db:"calculation_method"`
	CalculationStatus string `db:"calculation_status"`

	AddressCountry  string `db:"address_country"`
	AddressState    string `db:"address_state"`
	AddressPostcode string `db:"address_postcode"`
	AddressCity     string `db:"address_city"`

	Currency string `db:"currency"`

	TaxableAmount   decimal.Decimal `db:"taxable_amount"`
	TaxExemptAmount decimal.Decimal `db:"tax_exempt_amount"`
	TaxAmount       decimal.Decimal `db:"tax_amount"`
	TotalAmount     decimal.Decimal `db:"total_amount"`

	ErrorCode    string `db:"error_code"`
	ErrorMessage string `db:"error_message"`

	ProviderRef      string `db:"provider_ref"`
	ProviderResponse string `db:"provider_response"`

	types.BaseModel
}

func toCalculationRow(c *calculation.TaxCalculation) *calculationRow {
	return &calculationRow{
		ID:                c.ID,
		CalculationNumber: c.CalculationNumber,
		SourceType:        string(c.SourceType),
		SourceID:          c.SourceID,
		CalculationMethod: string(c.CalculationMethod),
		CalculationStatus: string(c.CalculationStatus),
		AddressCountry:    c.TaxAddress.Country,
		AddressState:      c.TaxAddress.State,
		AddressPostcode:   c.TaxAddress.Postcode,
		AddressCity:       c.TaxAddress.City,
		Currency:          c.Currency,
		TaxableAmount:     c.TaxableAmount,
		TaxExemptAmount:   c.TaxExemptAmount,
		TaxAmount:         c.TaxAmount,
		TotalAmount:       c.TotalAmount,
		ErrorCode:         c.ErrorCode,
		ErrorMessage:      c.ErrorMessage,
		ProviderRef:       c.ProviderRef,
		ProviderResponse:  c.ProviderResponse,
		BaseModel:         c.BaseModel,
	}
}

func (r *calculationRow) toDomain() *calculation.TaxCalculation {
	return &calculation.TaxCalculation{
		ID:                r.ID,
		CalculationNumber: r.CalculationNumber,
		SourceType:        types.CalculationSourceType(r.SourceType),
		SourceID:          r.SourceID,
		CalculationMethod: types.CalculationMethod(r.CalculationMethod),
		CalculationStatus: types.CalculationStatus(r.CalculationStatus),
		TaxAddress: taxzone.Address{
			Country:  r.AddressCountry,
			State:    r.AddressState,
			Postcode: r.AddressPostcode,
			City:     r.AddressCity,
		},
		Currency:         r.Currency,
		TaxableAmount:    r.TaxableAmount,
		TaxExemptAmount:  r.TaxExemptAmount,
		TaxAmount:        r.TaxAmount,
		TotalAmount:      r.TotalAmount,
		ErrorCode:        r.ErrorCode,
		ErrorMessage:     r.ErrorMessage,
		ProviderRef:      r.ProviderRef,
		ProviderResponse: r.ProviderResponse,
		BaseModel:        r.BaseModel,
	}
}

type calculationLineRow struct {
	ID            string `db:"id"`
	CalculationID string `db:"calculation_id"`
	SourceLineID  string `db:"source_line_id"`
	ProductID     string `db:"product_id"`
	SKU           string `db:"sku"`
	Name          string `db:"name"`

	Quantity       decimal.Decimal `db:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price"`
	LineTotal      decimal.Decimal `db:"line_total"`
	DiscountAmount decimal.Decimal `db:"discount_amount"`

	TaxableAmount   decimal.Decimal `db:"taxable_amount"`
	TaxExemptAmount decimal.Decimal `db:"tax_exempt_amount"`
	TaxAmount       decimal.Decimal `db:"tax_amount"`

	TaxCategoryID string `db:"tax_category_id"`

	types.BaseModel
}

func toCalculationLineRow(l *calculation.TaxCalculationLine) *calculationLineRow {
	return &calculationLineRow{
		ID:              l.ID,
		CalculationID:   l.CalculationID,
		SourceLineID:    l.SourceLineID,
		ProductID:       l.ProductID,
		SKU:             l.SKU,
		Name:            l.Name,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		LineTotal:       l.LineTotal,
		DiscountAmount:  l.DiscountAmount,
		TaxableAmount:   l.TaxableAmount,
		TaxExemptAmount: l.TaxExemptAmount,
		TaxAmount:       l.TaxAmount,
		TaxCategoryID:   l.TaxCategoryID,
		BaseModel:       l.BaseModel,
	}
}

func (r *calculationLineRow) toDomain() *calculation.TaxCalculationLine {
	return &calculation.TaxCalculationLine{
		ID:              r.ID,
		CalculationID:   r.CalculationID,
		SourceLineID:    r.SourceLineID,
		ProductID:       r.ProductID,
		SKU:             r.SKU,
		Name:            r.Name,
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
		LineTotal:       r.LineTotal,
		DiscountAmount:  r.DiscountAmount,
		TaxableAmount:   r.TaxableAmount,
		TaxExemptAmount: r.TaxExemptAmount,
		TaxAmount:       r.TaxAmount,
		TaxCategoryID:   r.TaxCategoryID,
		BaseModel:       r.BaseModel,
	}
}

type calculationAppliedRow struct {
	ID                string  `db:"id"`
	CalculationID     string  `db:"calculation_id"`
	CalculationLineID *string `db:"calculation_line_id"`

	TaxRateID         string `db:"tax_rate_id"`
	JurisdictionLevel string `db:"jurisdiction_level"`
	JurisdictionName  string `db:"jurisdiction_name"`

	Rate           decimal.Decimal `db:"rate"`
	IsCompound     bool            `db:"is_compound"`
	IncludeInPrice bool            `db:"include_in_price"`

	TaxableAmount decimal.Decimal `db:"taxable_amount"`
	TaxAmount     decimal.Decimal `db:"tax_amount"`
	Currency      string          `db:"currency"`

	AppliedAt time.Time `db:"applied_at"`

	types.BaseModel
}

func toCalculationAppliedRow(a *calculation.TaxCalculationApplied) *calculationAppliedRow {
	return &calculationAppliedRow{
		ID:                a.ID,
		CalculationID:     a.CalculationID,
		CalculationLineID: a.CalculationLineID,
		TaxRateID:         a.TaxRateID,
		JurisdictionLevel: string(a.JurisdictionLevel),
		JurisdictionName:  a.JurisdictionName,
		Rate:              a.Rate,
		IsCompound:        a.IsCompound,
		IncludeInPrice:    a.IncludeInPrice,
		TaxableAmount:     a.TaxableAmount,
		TaxAmount:         a.TaxAmount,
		Currency:          a.Currency,
		AppliedAt:         a.AppliedAt,
		BaseModel:         a.BaseModel,
	}
}

func (r *calculationAppliedRow) toDomain() *calculation.TaxCalculationApplied {
	return &calculation.TaxCalculationApplied{
		ID:                r.ID,
		CalculationID:     r.CalculationID,
		CalculationLineID: r.CalculationLineID,
		TaxRateID:         r.TaxRateID,
		JurisdictionLevel: types.JurisdictionLevel(r.JurisdictionLevel),
		JurisdictionName:  r.JurisdictionName,
		Rate:              r.Rate,
		IsCompound:        r.IsCompound,
		IncludeInPrice:    r.IncludeInPrice,
		TaxableAmount:     r.TaxableAmount,
		TaxAmount:         r.TaxAmount,
		Currency:          r.Currency,
		AppliedAt:         r.AppliedAt,
		BaseModel:         r.BaseModel,
	}
}

func (r *calculationRepository) Create(ctx context.Context, calc *calculation.TaxCalculation) error {
	query := `
		INSERT INTO tax_calculations (
			id, tenant_id, calculation_number, source_type, source_id,
			calculation_method, calculation_status,
			address_country, address_state, address_postcode, address_city,
			currency, taxable_amount, tax_exempt_amount, tax_amount, total_amount,
			error_code, error_message, provider_ref, provider_response,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :calculation_number, :source_type, :source_id,
			:calculation_method, :calculation_status,
			:address_country, :address_state, :address_postcode, :address_city,
			:currency, :taxable_amount, :tax_exempt_amount, :tax_amount, :total_amount,
			:error_code, :error_message, :provider_ref, :provider_response,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating tax calculation",
		"calculation_id", calc.ID,
		"source_type", calc.SourceType,
		"source_id", calc.SourceID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, toCalculationRow(calc)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create tax calculation").
			Mark(ierr.ErrDatabase)
	}

	return nil
}

func (r *calculationRepository) Get(ctx context.Context, id string) (*calculation.TaxCalculation, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM tax_calculations WHERE id = :id AND tenant_id = :tenant_id AND status != :deleted`,
		map[string]interface{}{
			"id":        id,
			"tenant_id": types.GetTenantID(ctx),
			"deleted":   types.StatusDeleted,
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get tax calculation").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.NewError("tax calculation not found").
			WithHintf("Tax calculation %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	var row calculationRow
	if err := rows.StructScan(&row); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to scan tax calculation").
			Mark(ierr.ErrDatabase)
	}

	return row.toDomain(), nil
}

func (r *calculationRepository) buildListConditions(ctx context.Context, filter *types.TaxCalculationFilter) ([]string, map[string]interface{}) {
	conditions := []string{"tenant_id = :tenant_id", "status = :status"}
	params := map[string]interface{}{
		"tenant_id": types.GetTenantID(ctx),
		"status":    filter.GetStatus(),
	}

	if len(filter.CalculationIDs) > 0 {
		conditions = append(conditions, "id = ANY(:calculation_ids)")
		params["calculation_ids"] = pq.StringArray(filter.CalculationIDs)
	}
	if filter.SourceType != "" {
		conditions = append(conditions, "source_type = :source_type")
		params["source_type"] = string(filter.SourceType)
	}
	if filter.SourceID != "" {
		conditions = append(conditions, "source_id = :source_id")
		params["source_id"] = filter.SourceID
	}
	if filter.CalculationStatus != "" {
		conditions = append(conditions, "calculation_status = :calculation_status")
		params["calculation_status"] = string(filter.CalculationStatus)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			conditions = append(conditions, "created_at >= :start_time")
			params["start_time"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			conditions = append(conditions, "created_at <= :end_time")
			params["end_time"] = *filter.EndTime
		}
	}

	return conditions, params
}

func (r *calculationRepository) List(ctx context.Context, filter *types.TaxCalculationFilter) ([]*calculation.TaxCalculation, error) {
	if filter == nil {
		filter = types.NewTaxCalculationFilter()
	}

	conditions, params := r.buildListConditions(ctx, filter)
	params["limit"] = filter.GetLimit()
	params["offset"] = filter.GetOffset()

	query := fmt.Sprintf(
		`SELECT * FROM tax_calculations WHERE %s ORDER BY %s %s`,
		strings.Join(conditions, " AND "),
		filter.GetSort(), filter.GetOrder(),
	)
	if !filter.IsUnlimited() {
		query += " LIMIT :limit OFFSET :offset"
	}

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tax calculations").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var calcs []*calculation.TaxCalculation
	for rows.Next() {
		var row calculationRow
		if err := rows.StructScan(&row); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan tax calculation").
				Mark(ierr.ErrDatabase)
		}
		calcs = append(calcs, row.toDomain())
	}

	return calcs, nil
}

func (r *calculationRepository) Count(ctx context.Context, filter *types.TaxCalculationFilter) (int, error) {
	if filter == nil {
		filter = types.NewTaxCalculationFilter()
	}

	conditions, params := r.buildListConditions(ctx, filter)
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM tax_calculations WHERE %s`,
		strings.Join(conditions, " AND "),
	)

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count tax calculations").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, ierr.WithError(err).
				WithHint("Failed to scan tax calculation count").
				Mark(ierr.ErrDatabase)
		}
	}

	return count, nil
}

func (r *calculationRepository) CreateLines(ctx context.Context, lines []*calculation.TaxCalculationLine) error {
	if len(lines) == 0 {
		return nil
	}

	query := `
		INSERT INTO tax_calculation_lines (
			id, tenant_id, calculation_id, source_line_id, product_id, sku, name,
			quantity, unit_price, line_total, discount_amount,
			taxable_amount, tax_exempt_amount, tax_amount, tax_category_id,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :calculation_id, :source_line_id, :product_id, :sku, :name,
			:quantity, :unit_price, :line_total, :discount_amount,
			:taxable_amount, :tax_exempt_amount, :tax_amount, :tax_category_id,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	for _, line := range lines {
		if _, err := r.db.NamedExecContext(ctx, query, toCalculationLineRow(line)); err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to create calculation line %s", line.ID).
				Mark(ierr.ErrDatabase)
		}
	}

	return nil
}

func (r *calculationRepository) CreateApplied(ctx context.Context, applied []*calculation.TaxCalculationApplied) error {
	if len(applied) == 0 {
		return nil
	}

	query := `
		INSERT INTO tax_calculation_applied (
			id, tenant_id, calculation_id, calculation_line_id, tax_rate_id,
			jurisdiction_level, jurisdiction_name, rate, is_compound, include_in_price,
			taxable_amount, tax_amount, currency, applied_at,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :tenant_id, :calculation_id, :calculation_line_id, :tax_rate_id,
			:jurisdiction_level, :jurisdiction_name, :rate, :is_compound, :include_in_price,
			:taxable_amount, :tax_amount, :currency, :applied_at,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	for _, row := range applied {
		if _, err := r.db.NamedExecContext(ctx, query, toCalculationAppliedRow(row)); err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to create applied tax row %s", row.ID).
				Mark(ierr.ErrDatabase)
		}
	}

	return nil
}

func (r *calculationRepository) GetLines(ctx context.Context, calculationID string) ([]*calculation.TaxCalculationLine, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM tax_calculation_lines
		 WHERE calculation_id = :calculation_id AND tenant_id = :tenant_id
		 ORDER BY created_at ASC, id ASC`,
		map[string]interface{}{
			"calculation_id": calculationID,
			"tenant_id":      types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get calculation lines").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var lines []*calculation.TaxCalculationLine
	for rows.Next() {
		var row calculationLineRow
		if err := rows.StructScan(&row); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan calculation line").
				Mark(ierr.ErrDatabase)
		}
		lines = append(lines, row.toDomain())
	}

	return lines, nil
}

func (r *calculationRepository) GetApplied(ctx context.Context, calculationID string) ([]*calculation.TaxCalculationApplied, error) {
	rows, err := r.db.NamedQueryContext(ctx,
		`SELECT * FROM tax_calculation_applied
		 WHERE calculation_id = :calculation_id AND tenant_id = :tenant_id
		 ORDER BY applied_at ASC, id ASC`,
		map[string]interface{}{
			"calculation_id": calculationID,
			"tenant_id":      types.GetTenantID(ctx),
		})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get applied tax rows").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var applied []*calculation.TaxCalculationApplied
	for rows.Next() {
		var row calculationAppliedRow
		if err := rows.StructScan(&row); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan applied tax row").
				Mark(ierr.ErrDatabase)
		}
		applied = append(applied, row.toDomain())
	}

	return applied, nil
}

// MarkCompleted guards on the pending status so a terminal calculation can
// never be transitioned twice.
func (r *calculationRepository) MarkCompleted(ctx context.Context, id string, totals calculation.Totals) error {
	query := `
		UPDATE tax_calculations SET
			calculation_status = :completed,
			taxable_amount = :taxable_amount,
			tax_exempt_amount = :tax_exempt_amount,
			tax_amount = :tax_amount,
			total_amount = :total_amount,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id AND calculation_status = :pending`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                id,
		"tenant_id":         types.GetTenantID(ctx),
		"completed":         types.CalculationStatusCompleted,
		"pending":           types.CalculationStatusPending,
		"taxable_amount":    totals.TaxableAmount,
		"tax_exempt_amount": totals.TaxExemptAmount,
		"tax_amount":        totals.TaxAmount,
		"total_amount":      totals.TotalAmount,
		"updated_at":        time.Now().UTC(),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to complete tax calculation").
			Mark(ierr.ErrDatabase)
	}

	return r.ensureTransitioned(result, id)
}

func (r *calculationRepository) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string) error {
	query := `
		UPDATE tax_calculations SET
			calculation_status = :failed,
			error_code = :error_code,
			error_message = :error_message,
			updated_at = :updated_at
		WHERE id = :id AND tenant_id = :tenant_id AND calculation_status = :pending`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            id,
		"tenant_id":     types.GetTenantID(ctx),
		"failed":        types.CalculationStatusFailed,
		"pending":       types.CalculationStatusPending,
		"error_code":    errorCode,
		"error_message": errorMessage,
		"updated_at":    time.Now().UTC(),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to mark tax calculation as failed").
			Mark(ierr.ErrDatabase)
	}

	return r.ensureTransitioned(result, id)
}

func (r *calculationRepository) ensureTransitioned(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("tax calculation is not pending").
			WithHintf("Tax calculation %s already reached a terminal status", id).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}
