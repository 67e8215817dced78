package types

import (
	"slices"

	ierr "github.com/ledgerline/taxengine/internal/errors"
)

// TaxRuleConditionType narrows when a tax rate applies to a line item.
// Rules are a tagged union over these three fixed cases and are dispatched
// with an explicit switch in the rule filter.
type TaxRuleConditionType string

const (
	TaxRuleConditionTypeProduct  TaxRuleConditionType = "product"
	TaxRuleConditionTypeCategory TaxRuleConditionType = "category"
	TaxRuleConditionTypeBrand    TaxRuleConditionType = "brand"
)

func (t TaxRuleConditionType) String() string {
	return string(t)
}

func (t TaxRuleConditionType) Validate() error {
	allowedValues := []string{
		TaxRuleConditionTypeProduct.String(),
		TaxRuleConditionTypeCategory.String(),
		TaxRuleConditionTypeBrand.String(),
	}

	if !slices.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid tax rule condition type").
			WithHint("Tax rule condition type must be one of product, category, brand").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TaxRuleFilter represents filters for taxrule queries
type TaxRuleFilter struct {
	*QueryFilter
	TaxRateIDs []string `json:"taxrate_ids,omitempty" form:"taxrate_ids" validate:"omitempty"`
}

// NewTaxRuleFilter creates a new TaxRuleFilter with default values
func NewTaxRuleFilter() *TaxRuleFilter {
	return &TaxRuleFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitTaxRuleFilter creates a new TaxRuleFilter with no pagination limits
func NewNoLimitTaxRuleFilter() *TaxRuleFilter {
	return &TaxRuleFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the TaxRuleFilter
func (f TaxRuleFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	return nil
}
