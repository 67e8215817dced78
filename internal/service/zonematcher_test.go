package service

import (
	"testing"

	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/testutil"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/stretchr/testify/suite"
)

type ZoneMatcherServiceSuite struct {
	testutil.BaseServiceTestSuite
	service ZoneMatcherService
}

func TestZoneMatcherService(t *testing.T) {
	suite.Run(t, new(ZoneMatcherServiceSuite))
}

func (s *ZoneMatcherServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewZoneMatcherService(ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		DB:          s.GetDB(),
		TaxZoneRepo: s.GetStores().TaxZoneRepo,
	})
}

func (s *ZoneMatcherServiceSuite) createZone(zone *taxzone.TaxZone) *taxzone.TaxZone {
	zone.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.NoError(s.GetStores().TaxZoneRepo.Create(s.GetContext(), zone))
	return zone
}

func (s *ZoneMatcherServiceSuite) TestMostSpecificZoneFirst() {
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_us",
		Name:         "United States",
		CountryCodes: []string{"US"},
	})
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_ny",
		Name:         "New York",
		CountryCodes: []string{"US"},
		States:       []string{"NY"},
	})
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_nyc",
		Name:         "New York City",
		CountryCodes: []string{"US"},
		States:       []string{"NY"},
		Cities:       []string{"New York"},
	})

	zones, err := s.service.MatchZones(s.GetContext(), taxzone.Address{
		Country: "US",
		State:   "NY",
		City:    "New York",
	})
	s.NoError(err)
	s.Len(zones, 3)
	s.Equal("taxzone_nyc", zones[0].ID)
	s.Equal("taxzone_ny", zones[1].ID)
	s.Equal("taxzone_us", zones[2].ID)
}

func (s *ZoneMatcherServiceSuite) TestStateConstraintExcludesOtherStates() {
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_ca",
		Name:         "California",
		CountryCodes: []string{"US"},
		States:       []string{"CA"},
	})
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_us",
		Name:         "United States",
		CountryCodes: []string{"US"},
	})

	zones, err := s.service.MatchZones(s.GetContext(), taxzone.Address{
		Country: "US",
		State:   "TX",
	})
	s.NoError(err)
	s.Len(zones, 1)
	s.Equal("taxzone_us", zones[0].ID)
}

func (s *ZoneMatcherServiceSuite) TestDefaultZoneFallback() {
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_us",
		Name:         "United States",
		CountryCodes: []string{"US"},
	})
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_row",
		Name:         "Rest of World",
		CountryCodes: []string{"*"},
		IsDefault:    true,
	})

	zones, err := s.service.MatchZones(s.GetContext(), taxzone.Address{Country: "DE"})
	s.NoError(err)
	s.Len(zones, 1)
	s.Equal("taxzone_row", zones[0].ID)
}

func (s *ZoneMatcherServiceSuite) TestNoZoneAndNoDefault() {
	s.createZone(&taxzone.TaxZone{
		ID:           "taxzone_us",
		Name:         "United States",
		CountryCodes: []string{"US"},
	})

	zones, err := s.service.MatchZones(s.GetContext(), taxzone.Address{Country: "DE"})
	s.Error(err)
	s.Nil(zones)
	s.True(ierr.IsNoApplicableZone(err))
}

func (s *ZoneMatcherServiceSuite) TestCountryIsRequired() {
	_, err := s.service.MatchZones(s.GetContext(), taxzone.Address{State: "NY"})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
