package service

import (
	"testing"
	"time"

	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/testutil"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RateResolverServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RateResolverService
}

func TestRateResolverService(t *testing.T) {
	suite.Run(t, new(RateResolverServiceSuite))
}

func (s *RateResolverServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRateResolverService(ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		DB:          s.GetDB(),
		TaxRateRepo: s.GetStores().TaxRateRepo,
	})
}

func (s *RateResolverServiceSuite) createRate(rate *taxrate.TaxRate) *taxrate.TaxRate {
	rate.TaxCategoryID = "cat_standard"
	rate.TaxZoneID = "taxzone_us"
	if rate.RateType == "" {
		rate.RateType = types.TaxRateTypePercentage
	}
	rate.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.NoError(s.GetStores().TaxRateRepo.Create(s.GetContext(), rate))
	return rate
}

func (s *RateResolverServiceSuite) TestRatesOrderedByPriority() {
	s.createRate(&taxrate.TaxRate{ID: "taxrate_local", Rate: decimal.NewFromInt(2), Priority: 20})
	s.createRate(&taxrate.TaxRate{ID: "taxrate_state", Rate: decimal.NewFromInt(6), Priority: 10})

	rates, err := s.service.ResolveRates(s.GetContext(), "cat_standard", "taxzone_us", s.GetNow())
	s.NoError(err)
	s.Len(rates, 2)
	s.Equal("taxrate_state", rates[0].ID)
	s.Equal("taxrate_local", rates[1].ID)
}

func (s *RateResolverServiceSuite) TestExpiredRateIsExcluded() {
	expired := s.createRate(&taxrate.TaxRate{ID: "taxrate_old", Rate: decimal.NewFromInt(5)})
	expired.ValidTo = lo.ToPtr(s.GetNow().Add(-24 * time.Hour))
	s.NoError(s.GetStores().TaxRateRepo.Update(s.GetContext(), expired))
	s.createRate(&taxrate.TaxRate{ID: "taxrate_current", Rate: decimal.NewFromInt(6)})

	rates, err := s.service.ResolveRates(s.GetContext(), "cat_standard", "taxzone_us", s.GetNow())
	s.NoError(err)
	s.Len(rates, 1)
	s.Equal("taxrate_current", rates[0].ID)
}

func (s *RateResolverServiceSuite) TestMisconfiguredRateIsSkipped() {
	s.createRate(&taxrate.TaxRate{ID: "taxrate_bad", Rate: decimal.NewFromInt(-5)})
	s.createRate(&taxrate.TaxRate{ID: "taxrate_good", Rate: decimal.NewFromInt(8)})

	rates, err := s.service.ResolveRates(s.GetContext(), "cat_standard", "taxzone_us", s.GetNow())
	s.NoError(err)
	s.Len(rates, 1)
	s.Equal("taxrate_good", rates[0].ID)
}

func (s *RateResolverServiceSuite) TestCategoryAndZoneAreRequired() {
	_, err := s.service.ResolveRates(s.GetContext(), "", "taxzone_us", s.GetNow())
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.ResolveRates(s.GetContext(), "cat_standard", "", s.GetNow())
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
