package dto

import (
	"context"

	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/ledgerline/taxengine/internal/validator"
	"github.com/shopspring/decimal"
)

// LineItem is one priced line of the source document as supplied by the
// order/basket/invoice source.
type LineItem struct {
	// ID references the source document's own line
	ID               string `json:"id" validate:"required"`
	ProductID        string `json:"product_id" validate:"required"`
	ProductVariantID string `json:"product_variant_id,omitempty"`
	SKU              string `json:"sku,omitempty"`
	Name             string `json:"name,omitempty"`

	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxExemptAmount decimal.Decimal `json:"tax_exempt_amount"`
	IsTaxExempt     bool            `json:"is_tax_exempt"`

	// TaxCategoryID overrides the catalog resolution when set
	TaxCategoryID string   `json:"tax_category_id,omitempty"`
	CategoryIDs   []string `json:"category_ids,omitempty"`
	BrandID       string   `json:"brand_id,omitempty"`
}

// CalculateTaxRequest asks the engine to compute tax for a source document
// shipped to a destination address.
type CalculateTaxRequest struct {
	SourceType        types.CalculationSourceType `json:"source_type" validate:"required"`
	SourceID          string                      `json:"source_id" validate:"required"`
	Currency          string                      `json:"currency" validate:"required,len=3"`
	CalculationMethod types.CalculationMethod     `json:"calculation_method,omitempty"`
	Address           taxzone.Address             `json:"address" validate:"required"`
	Lines             []LineItem                  `json:"lines" validate:"required,min=1,dive"`
	// ShippingAmount, when set, is taxed by contributing rates flagged as
	// shipping taxable
	ShippingAmount *decimal.Decimal `json:"shipping_amount,omitempty"`
}

func (r *CalculateTaxRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if err := r.SourceType.Validate(); err != nil {
		return err
	}

	if r.CalculationMethod != "" {
		if err := r.CalculationMethod.Validate(); err != nil {
			return err
		}
	}

	for _, line := range r.Lines {
		if line.Quantity.IsNegative() || line.LineTotal.IsNegative() {
			return ierr.NewError("line amounts cannot be negative").
				WithHintf("Line %s has a negative quantity or total", line.ID).
				Mark(ierr.ErrValidation)
		}
		if line.DiscountAmount.IsNegative() || line.TaxExemptAmount.IsNegative() {
			return ierr.NewError("line deductions cannot be negative").
				WithHintf("Line %s has a negative discount or exempt amount", line.ID).
				Mark(ierr.ErrValidation)
		}
	}

	if r.ShippingAmount != nil && r.ShippingAmount.IsNegative() {
		return ierr.NewError("shipping amount cannot be negative").
			WithHint("Shipping amount must be zero or positive").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ToTaxCalculation builds the pending calculation header for this request
func (r *CalculateTaxRequest) ToTaxCalculation(ctx context.Context, method types.CalculationMethod) *calculation.TaxCalculation {
	return &calculation.TaxCalculation{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CALCULATION),
		CalculationNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_CALCULATION),
		SourceType:        r.SourceType,
		SourceID:          r.SourceID,
		CalculationMethod: method,
		CalculationStatus: types.CalculationStatusPending,
		TaxAddress:        r.Address,
		Currency:          types.ToLowerCurrency(r.Currency),
		TaxableAmount:     decimal.Zero,
		TaxExemptAmount:   decimal.Zero,
		TaxAmount:         decimal.Zero,
		TotalAmount:       decimal.Zero,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
}

// TaxCalculationResponse is the full breakdown returned to callers
type TaxCalculationResponse struct {
	*calculation.TaxCalculation
	Lines   []*calculation.TaxCalculationLine    `json:"lines,omitempty"`
	Applied []*calculation.TaxCalculationApplied `json:"applied,omitempty"`
}

// ListTaxCalculationsResponse represents a paginated list of calculations
type ListTaxCalculationsResponse struct {
	Items      []*TaxCalculationResponse `json:"items"`
	Pagination *types.PaginationResponse `json:"pagination"`
}
