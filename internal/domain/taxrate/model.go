package taxrate

import (
	"time"

	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/shopspring/decimal"
)

// TaxRate belongs to exactly one (tax category, tax zone) pair. A category
// may carry several rates in a zone, which is how stacked taxes (state +
// local) are configured.
type TaxRate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Code          string `json:"code,omitempty"`
	Description   string `json:"description,omitempty"`
	TaxCategoryID string `json:"tax_category_id"`
	TaxZoneID     string `json:"tax_zone_id"`

	// RateType selects how Rate/FixedAmount are interpreted
	RateType types.TaxRateType `json:"rate_type"`
	// Rate is the percentage value for percentage rates. For fixed rates it
	// is the flat-amount fallback used when FixedAmount is not set.
	Rate decimal.Decimal `json:"rate"`
	// FixedAmount is the flat amount for fixed rates, not scaled by the base
	FixedAmount *decimal.Decimal `json:"fixed_amount,omitempty"`

	// Priority orders rate application, lower first
	Priority int `json:"priority"`
	// IsCompound computes this rate on base plus previously accumulated tax
	IsCompound bool `json:"is_compound"`
	// IncludeInPrice marks the rate as already embedded in the displayed
	// price; its contribution is recorded for audit but never added to totals
	IncludeInPrice bool `json:"include_in_price"`
	// IsShippingTaxable extends this rate to the document's shipping amount
	IsShippingTaxable bool `json:"is_shipping_taxable"`

	// Threshold is the minimum taxable base before the rate applies
	Threshold *decimal.Decimal `json:"threshold,omitempty"`
	// MinimumAmount and MaximumAmount clamp the computed per-rate amount
	MinimumAmount *decimal.Decimal `json:"minimum_amount,omitempty"`
	MaximumAmount *decimal.Decimal `json:"maximum_amount,omitempty"`

	// ValidFrom/ValidTo bound the active window; a nil ValidTo is open-ended
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	types.BaseModel
}

// IsApplicableAt reports whether the rate may be applied at the given
// evaluation time: it must be published and inside its validity window.
func (r *TaxRate) IsApplicableAt(asOf time.Time) bool {
	if r.Status != types.StatusPublished {
		return false
	}
	if r.ValidFrom != nil && r.ValidFrom.After(asOf) {
		return false
	}
	if r.ValidTo != nil && r.ValidTo.Before(asOf) {
		return false
	}
	return true
}

// ValidateConfig checks the rate for configuration mistakes that make it
// unusable: a negative percentage, or a fixed rate with no usable amount.
// Misconfigured rates are skipped and logged by the line calculator rather
// than failing the whole calculation.
func (r *TaxRate) ValidateConfig() error {
	if err := r.RateType.Validate(); err != nil {
		return err
	}

	switch r.RateType {
	case types.TaxRateTypePercentage:
		if r.Rate.IsNegative() {
			return ierr.NewError("percentage tax rate cannot be negative").
				WithHintf("Tax rate %s has a negative percentage value", r.ID).
				Mark(ierr.ErrInvalidRateConfig)
		}
	case types.TaxRateTypeFixed:
		if r.FixedAmount == nil && r.Rate.IsZero() {
			return ierr.NewError("fixed tax rate has no amount").
				WithHintf("Tax rate %s must set fixed_amount or a flat rate value", r.ID).
				Mark(ierr.ErrInvalidRateConfig)
		}
		if r.FixedAmount != nil && r.FixedAmount.IsNegative() {
			return ierr.NewError("fixed tax amount cannot be negative").
				WithHintf("Tax rate %s has a negative fixed amount", r.ID).
				Mark(ierr.ErrInvalidRateConfig)
		}
	}

	if r.MinimumAmount != nil && r.MaximumAmount != nil && r.MaximumAmount.LessThan(*r.MinimumAmount) {
		return ierr.NewError("maximum amount is below minimum amount").
			WithHintf("Tax rate %s has an inverted clamp range", r.ID).
			Mark(ierr.ErrInvalidRateConfig)
	}

	return nil
}
