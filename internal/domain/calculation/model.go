package calculation

import (
	"time"

	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/shopspring/decimal"
)

// TaxCalculation is the persisted header of one computed document. It is the
// audit anchor: lines and applied rows hang off it and are written in the
// same transaction. Terminal records are immutable; a recalculation creates a
// new record instead of mutating history.
type TaxCalculation struct {
	ID                string `json:"id"`
	CalculationNumber string `json:"calculation_number"`

	SourceType types.CalculationSourceType `json:"source_type"`
	SourceID   string                      `json:"source_id"`

	CalculationMethod types.CalculationMethod `json:"calculation_method"`
	CalculationStatus types.CalculationStatus `json:"calculation_status"`

	TaxAddress taxzone.Address `json:"tax_address"`
	Currency   string          `json:"currency"`

	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	TaxExemptAmount decimal.Decimal `json:"tax_exempt_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`

	// ErrorCode/ErrorMessage carry the structured failure reason so checkout
	// flows can decide whether to block or proceed with zero tax
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Provider fields are populated only when the external provider path
	// produced the result
	ProviderRef      string `json:"provider_ref,omitempty"`
	ProviderResponse string `json:"provider_response,omitempty"`

	types.BaseModel
}

// TaxCalculationLine is one taxed line item of a calculation, owned
// exclusively by its header and deleted in cascade with it.
type TaxCalculationLine struct {
	ID            string `json:"id"`
	CalculationID string `json:"calculation_id"`

	SourceLineID string `json:"source_line_id"`
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku,omitempty"`
	Name         string `json:"name,omitempty"`

	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`

	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	TaxExemptAmount decimal.Decimal `json:"tax_exempt_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`

	TaxCategoryID string `json:"tax_category_id"`

	types.BaseModel
}

// TaxCalculationApplied is the audit trail: one row per rate and
// jurisdiction actually applied, either to a specific line or to the
// calculation as a whole (shipping tax). Summing TaxAmount across the
// non-price-inclusive rows of a calculation equals the header TaxAmount.
type TaxCalculationApplied struct {
	ID            string  `json:"id"`
	CalculationID string  `json:"calculation_id"`
	// CalculationLineID is nil for calculation-level rows such as shipping tax
	CalculationLineID *string `json:"calculation_line_id,omitempty"`

	TaxRateID         string                  `json:"tax_rate_id"`
	JurisdictionLevel types.JurisdictionLevel `json:"jurisdiction_level"`
	JurisdictionName  string                  `json:"jurisdiction_name"`

	Rate           decimal.Decimal `json:"rate"`
	IsCompound     bool            `json:"is_compound"`
	IncludeInPrice bool            `json:"include_in_price"`

	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Currency      string          `json:"currency"`

	AppliedAt time.Time `json:"applied_at"`

	types.BaseModel
}

// Totals carries the aggregate amounts written when a calculation completes
type Totals struct {
	TaxableAmount   decimal.Decimal
	TaxExemptAmount decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
}
