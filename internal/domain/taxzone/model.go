package taxzone

import (
	"strconv"
	"strings"

	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
)

// Address is the destination a calculation is computed against. Only the
// country is mandatory; the remaining fields narrow zone matching.
type Address struct {
	Country  string `json:"country" validate:"required"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	City     string `json:"city,omitempty"`
}

// TaxZone is a named geographic matcher grouping tax rates. Zones are
// long-lived admin configuration and are read-only during calculation.
type TaxZone struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	CountryCodes []string                `json:"country_codes"`
	States       []string                `json:"states,omitempty"`
	Postcodes    []string                `json:"postcodes,omitempty"`
	Cities       []string                `json:"cities,omitempty"`
	Level        types.JurisdictionLevel `json:"level,omitempty"`
	IsDefault    bool                    `json:"is_default"`
	types.BaseModel
}

// Matches reports whether the address falls inside this zone. A zone matches
// when the country is listed and every non-empty constraint list contains the
// corresponding address field. An empty list places no constraint.
func (z *TaxZone) Matches(addr Address) bool {
	if !containsFold(z.CountryCodes, addr.Country) {
		return false
	}

	if len(z.States) > 0 && !containsFold(z.States, addr.State) {
		return false
	}

	if len(z.Postcodes) > 0 && !matchesPostcode(z.Postcodes, addr.Postcode) {
		return false
	}

	if len(z.Cities) > 0 && !containsFold(z.Cities, addr.City) {
		return false
	}

	return true
}

// Specificity returns the number of constrained dimensions. A zone
// constrained by city, state, and country outranks one constrained by
// country alone; the zone matcher sorts matches most specific first.
func (z *TaxZone) Specificity() int {
	specificity := 0
	if len(z.CountryCodes) > 0 {
		specificity++
	}
	if len(z.States) > 0 {
		specificity++
	}
	if len(z.Postcodes) > 0 {
		specificity++
	}
	if len(z.Cities) > 0 {
		specificity++
	}
	return specificity
}

// JurisdictionLevel returns the explicit level when configured, otherwise a
// level derived from the zone's most specific constraint.
func (z *TaxZone) JurisdictionLevel() types.JurisdictionLevel {
	if z.Level != "" {
		return z.Level
	}

	switch {
	case len(z.Cities) > 0:
		return types.JurisdictionLevelCity
	case len(z.Postcodes) > 0:
		return types.JurisdictionLevelDistrict
	case len(z.States) > 0:
		return types.JurisdictionLevelState
	default:
		return types.JurisdictionLevelCountry
	}
}

func containsFold(values []string, target string) bool {
	return lo.ContainsBy(values, func(v string) bool {
		return strings.EqualFold(v, target)
	})
}

// matchesPostcode checks the address postcode against configured patterns.
// Supported syntax: exact ("12345"), prefix wildcard ("98*"), and inclusive
// numeric range ("1000-1999"). Anything else is an exact comparison.
func matchesPostcode(patterns []string, postcode string) bool {
	for _, pattern := range patterns {
		if matchPostcodePattern(pattern, postcode) {
			return true
		}
	}
	return false
}

func matchPostcodePattern(pattern, postcode string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return len(postcode) >= len(prefix) && strings.EqualFold(postcode[:len(prefix)], prefix)
	}

	if low, high, ok := splitNumericRange(pattern); ok {
		value, err := strconv.Atoi(strings.TrimSpace(postcode))
		if err != nil {
			return false
		}
		return value >= low && value <= high
	}

	return strings.EqualFold(pattern, postcode)
}

func splitNumericRange(pattern string) (int, int, bool) {
	parts := strings.SplitN(pattern, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	low, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	high, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if high < low {
		low, high = high, low
	}

	return low, high, true
}
