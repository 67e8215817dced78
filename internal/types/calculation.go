package types

import (
	"slices"

	ierr "github.com/ledgerline/taxengine/internal/errors"
)

// CalculationStatus tracks the lifecycle of a tax calculation.
// A calculation is created pending and transitions exactly once to
// completed or failed; terminal records are never mutated.
type CalculationStatus string

const (
	CalculationStatusPending   CalculationStatus = "pending"
	CalculationStatusCompleted CalculationStatus = "completed"
	CalculationStatusFailed    CalculationStatus = "failed"
)

func (s CalculationStatus) String() string {
	return string(s)
}

func (s CalculationStatus) Validate() error {
	allowedValues := []string{
		CalculationStatusPending.String(),
		CalculationStatusCompleted.String(),
		CalculationStatusFailed.String(),
	}

	if !slices.Contains(allowedValues, string(s)) {
		return ierr.NewError("invalid calculation status").
			WithHint("Calculation status must be one of pending, completed, failed").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CalculationMethod selects how per-line tax is derived.
// item_based applies rates to the line total; unit_based applies rates to the
// per-unit base, rounds per unit, and scales by quantity.
type CalculationMethod string

const (
	CalculationMethodItemBased CalculationMethod = "item_based"
	CalculationMethodUnitBased CalculationMethod = "unit_based"
)

func (m CalculationMethod) String() string {
	return string(m)
}

func (m CalculationMethod) Validate() error {
	allowedValues := []string{
		CalculationMethodItemBased.String(),
		CalculationMethodUnitBased.String(),
	}

	if !slices.Contains(allowedValues, string(m)) {
		return ierr.NewError("invalid calculation method").
			WithHint("Calculation method must be either item_based or unit_based").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CalculationSourceType identifies the document a calculation was computed for
type CalculationSourceType string

const (
	CalculationSourceTypeOrder   CalculationSourceType = "order"
	CalculationSourceTypeBasket  CalculationSourceType = "basket"
	CalculationSourceTypeInvoice CalculationSourceType = "invoice"
)

func (t CalculationSourceType) String() string {
	return string(t)
}

func (t CalculationSourceType) Validate() error {
	allowedValues := []string{
		CalculationSourceTypeOrder.String(),
		CalculationSourceTypeBasket.String(),
		CalculationSourceTypeInvoice.String(),
	}

	if !slices.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid calculation source type").
			WithHint("Source type must be one of order, basket, invoice").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TaxCalculationFilter represents filters for calculation queries
type TaxCalculationFilter struct {
	*QueryFilter
	*TimeRangeFilter
	CalculationIDs    []string              `json:"calculation_ids,omitempty" form:"calculation_ids" validate:"omitempty"`
	SourceType        CalculationSourceType `json:"source_type,omitempty" form:"source_type" validate:"omitempty"`
	SourceID          string                `json:"source_id,omitempty" form:"source_id" validate:"omitempty"`
	CalculationStatus CalculationStatus     `json:"calculation_status,omitempty" form:"calculation_status" validate:"omitempty"`
}

// NewTaxCalculationFilter creates a new TaxCalculationFilter with default values
func NewTaxCalculationFilter() *TaxCalculationFilter {
	return &TaxCalculationFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitTaxCalculationFilter creates a new TaxCalculationFilter with no pagination limits
func NewNoLimitTaxCalculationFilter() *TaxCalculationFilter {
	return &TaxCalculationFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the TaxCalculationFilter
func (f TaxCalculationFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}

	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}

	if f.SourceType != "" {
		if err := f.SourceType.Validate(); err != nil {
			return err
		}
	}

	if f.CalculationStatus != "" {
		if err := f.CalculationStatus.Validate(); err != nil {
			return err
		}
	}

	return nil
}
