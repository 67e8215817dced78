package types

import (
	"slices"

	ierr "github.com/ledgerline/taxengine/internal/errors"
)

type TaxRateType string

const (
	TaxRateTypePercentage TaxRateType = "percentage"
	TaxRateTypeFixed      TaxRateType = "fixed"
)

func (t TaxRateType) String() string {
	return string(t)
}

func (t TaxRateType) Validate() error {
	allowedValues := []string{string(TaxRateTypePercentage), string(TaxRateTypeFixed)}
	if !slices.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid tax rate type").
			WithHint("Tax rate type must be either percentage or fixed").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// JurisdictionLevel defines the reporting granularity of an applied tax row
type JurisdictionLevel string

const (
	JurisdictionLevelCountry  JurisdictionLevel = "country"
	JurisdictionLevelState    JurisdictionLevel = "state"
	JurisdictionLevelCounty   JurisdictionLevel = "county"
	JurisdictionLevelCity     JurisdictionLevel = "city"
	JurisdictionLevelDistrict JurisdictionLevel = "district"
	JurisdictionLevelSpecial  JurisdictionLevel = "special"
)

func (l JurisdictionLevel) String() string {
	return string(l)
}

func (l JurisdictionLevel) Validate() error {
	allowedValues := []string{
		JurisdictionLevelCountry.String(),
		JurisdictionLevelState.String(),
		JurisdictionLevelCounty.String(),
		JurisdictionLevelCity.String(),
		JurisdictionLevelDistrict.String(),
		JurisdictionLevelSpecial.String(),
	}

	if !slices.Contains(allowedValues, string(l)) {
		return ierr.NewError("invalid jurisdiction level").
			WithHint("Jurisdiction level must be one of country, state, county, city, district, special").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TaxRateFilter represents filters for taxrate queries
type TaxRateFilter struct {
	*QueryFilter
	*TimeRangeFilter
	TaxRateIDs    []string `json:"taxrate_ids,omitempty" form:"taxrate_ids" validate:"omitempty"`
	TaxCategoryID string   `json:"tax_category_id,omitempty" form:"tax_category_id" validate:"omitempty"`
	TaxZoneID     string   `json:"tax_zone_id,omitempty" form:"tax_zone_id" validate:"omitempty"`
}

// NewTaxRateFilter creates a new TaxRateFilter with default values
func NewTaxRateFilter() *TaxRateFilter {
	return &TaxRateFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitTaxRateFilter creates a new TaxRateFilter with no pagination limits
func NewNoLimitTaxRateFilter() *TaxRateFilter {
	return &TaxRateFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the TaxRateFilter
func (f TaxRateFilter) Validate() error {
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

	return nil
}
