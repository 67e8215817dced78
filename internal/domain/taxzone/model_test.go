package taxzone

import (
	"testing"

	"github.com/ledgerline/taxengine/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestTaxZoneMatches(t *testing.T) {
	tests := []struct {
		name    string
		zone    TaxZone
		address Address
		want    bool
	}{
		{
			name:    "country only zone matches any address in country",
			zone:    TaxZone{CountryCodes: []string{"US"}},
			address: Address{Country: "US", State: "CA", City: "Oakland"},
			want:    true,
		},
		{
			name:    "country mismatch",
			zone:    TaxZone{CountryCodes: []string{"US"}},
			address: Address{Country: "DE"},
			want:    false,
		},
		{
			name:    "country match is case insensitive",
			zone:    TaxZone{CountryCodes: []string{"US"}},
			address: Address{Country: "us"},
			want:    true,
		},
		{
			name:    "state constraint narrows the match",
			zone:    TaxZone{CountryCodes: []string{"US"}, States: []string{"CA", "WA"}},
			address: Address{Country: "US", State: "WA"},
			want:    true,
		},
		{
			name:    "state constraint rejects other states",
			zone:    TaxZone{CountryCodes: []string{"US"}, States: []string{"CA"}},
			address: Address{Country: "US", State: "NY"},
			want:    false,
		},
		{
			name:    "city constraint is case insensitive",
			zone:    TaxZone{CountryCodes: []string{"US"}, Cities: []string{"Seattle"}},
			address: Address{Country: "US", City: "seattle"},
			want:    true,
		},
		{
			name:    "empty address state fails a state constrained zone",
			zone:    TaxZone{CountryCodes: []string{"US"}, States: []string{"CA"}},
			address: Address{Country: "US"},
			want:    false,
		},
		{
			name:    "multiple countries",
			zone:    TaxZone{CountryCodes: []string{"DE", "FR", "NL"}},
			address: Address{Country: "FR"},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.zone.Matches(tt.address))
		})
	}
}

func TestTaxZonePostcodeMatching(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		postcode string
		want     bool
	}{
		{
			name:     "exact match",
			patterns: []string{"12345"},
			postcode: "12345",
			want:     true,
		},
		{
			name:     "exact mismatch",
			patterns: []string{"12345"},
			postcode: "12346",
			want:     false,
		},
		{
			name:     "prefix wildcard matches",
			patterns: []string{"98*"},
			postcode: "98101",
			want:     true,
		},
		{
			name:     "prefix wildcard rejects other prefixes",
			patterns: []string{"98*"},
			postcode: "10001",
			want:     false,
		},
		{
			name:     "numeric range includes lower bound",
			patterns: []string{"1000-1999"},
			postcode: "1000",
			want:     true,
		},
		{
			name:     "numeric range includes upper bound",
			patterns: []string{"1000-1999"},
			postcode: "1999",
			want:     true,
		},
		{
			name:     "numeric range excludes outside values",
			patterns: []string{"1000-1999"},
			postcode: "2000",
			want:     false,
		},
		{
			name:     "non numeric postcode never matches a range",
			patterns: []string{"1000-1999"},
			postcode: "SW1A",
			want:     false,
		},
		{
			name:     "alphanumeric pattern falls back to exact comparison",
			patterns: []string{"SW1A-1AA"},
			postcode: "sw1a-1aa",
			want:     true,
		},
		{
			name:     "any pattern in the list may match",
			patterns: []string{"11111", "98*", "1000-1999"},
			postcode: "1500",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone := TaxZone{
				CountryCodes: []string{"US"},
				Postcodes:    tt.patterns,
			}
			addr := Address{Country: "US", Postcode: tt.postcode}
			assert.Equal(t, tt.want, zone.Matches(addr))
		})
	}
}

func TestTaxZoneSpecificity(t *testing.T) {
	country := TaxZone{CountryCodes: []string{"US"}}
	state := TaxZone{CountryCodes: []string{"US"}, States: []string{"CA"}}
	city := TaxZone{CountryCodes: []string{"US"}, States: []string{"CA"}, Cities: []string{"San Francisco"}}

	assert.Equal(t, 1, country.Specificity())
	assert.Equal(t, 2, state.Specificity())
	assert.Equal(t, 3, city.Specificity())
	assert.Greater(t, city.Specificity(), state.Specificity())
}

func TestTaxZoneJurisdictionLevel(t *testing.T) {
	tests := []struct {
		name string
		zone TaxZone
		want types.JurisdictionLevel
	}{
		{
			name: "explicit level wins",
			zone: TaxZone{Level: types.JurisdictionLevelSpecial, Cities: []string{"Denver"}},
			want: types.JurisdictionLevelSpecial,
		},
		{
			name: "city constraint derives city level",
			zone: TaxZone{CountryCodes: []string{"US"}, Cities: []string{"Denver"}},
			want: types.JurisdictionLevelCity,
		},
		{
			name: "postcode constraint derives district level",
			zone: TaxZone{CountryCodes: []string{"US"}, Postcodes: []string{"80*"}},
			want: types.JurisdictionLevelDistrict,
		},
		{
			name: "state constraint derives state level",
			zone: TaxZone{CountryCodes: []string{"US"}, States: []string{"CO"}},
			want: types.JurisdictionLevelState,
		},
		{
			name: "country only derives country level",
			zone: TaxZone{CountryCodes: []string{"US"}},
			want: types.JurisdictionLevelCountry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.zone.JurisdictionLevel())
		})
	}
}
