package types

// TaxZoneFilter represents filters for taxzone queries
type TaxZoneFilter struct {
	*QueryFilter
	TaxZoneIDs  []string `json:"taxzone_ids,omitempty" form:"taxzone_ids" validate:"omitempty"`
	CountryCode string   `json:"country_code,omitempty" form:"country_code" validate:"omitempty"`
	OnlyDefault bool     `json:"only_default,omitempty" form:"only_default" validate:"omitempty"`
}

// NewTaxZoneFilter creates a new TaxZoneFilter with default values
func NewTaxZoneFilter() *TaxZoneFilter {
	return &TaxZoneFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitTaxZoneFilter creates a new TaxZoneFilter with no pagination limits
func NewNoLimitTaxZoneFilter() *TaxZoneFilter {
	return &TaxZoneFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the TaxZoneFilter
func (f TaxZoneFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	return nil
}
