package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ledgerline/taxengine/internal/api/dto"
	"github.com/ledgerline/taxengine/internal/config"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/testutil"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TaxCalculationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service TaxCalculationService
}

func TestTaxCalculationService(t *testing.T) {
	suite.Run(t, new(TaxCalculationServiceSuite))
}

func (s *TaxCalculationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewTaxCalculationService(s.params(s.GetConfig()))
}

func (s *TaxCalculationServiceSuite) params(cfg *config.Configuration) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:          s.GetLogger(),
		Config:          cfg,
		DB:              s.GetDB(),
		TaxZoneRepo:     stores.TaxZoneRepo,
		TaxRateRepo:     stores.TaxRateRepo,
		TaxRuleRepo:     stores.TaxRuleRepo,
		CalculationRepo: stores.CalculationRepo,
		Catalog:         s.GetCatalog(),
		Client:          s.GetHTTPClient(),
	}
}

func (s *TaxCalculationServiceSuite) setupUSZone() *taxzone.TaxZone {
	zone := &taxzone.TaxZone{
		ID:           "taxzone_us",
		Name:         "United States",
		CountryCodes: []string{"US"},
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().TaxZoneRepo.Create(s.GetContext(), zone))
	return zone
}

func (s *TaxCalculationServiceSuite) setupRate(rate *taxrate.TaxRate) *taxrate.TaxRate {
	if rate.TaxCategoryID == "" {
		rate.TaxCategoryID = "cat_standard"
	}
	if rate.TaxZoneID == "" {
		rate.TaxZoneID = "taxzone_us"
	}
	rate.RateType = types.TaxRateTypePercentage
	rate.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.NoError(s.GetStores().TaxRateRepo.Create(s.GetContext(), rate))
	return rate
}

func (s *TaxCalculationServiceSuite) orderRequest(lines ...dto.LineItem) dto.CalculateTaxRequest {
	return dto.CalculateTaxRequest{
		SourceType: types.CalculationSourceTypeOrder,
		SourceID:   "order_123",
		Currency:   "USD",
		Address:    taxzone.Address{Country: "US"},
		Lines:      lines,
	}
}

func standardLine(id string, total float64) dto.LineItem {
	return dto.LineItem{
		ID:            id,
		ProductID:     "prod_1",
		Quantity:      decimal.NewFromInt(1),
		UnitPrice:     decimal.NewFromFloat(total),
		LineTotal:     decimal.NewFromFloat(total),
		TaxCategoryID: "cat_standard",
	}
}

func (s *TaxCalculationServiceSuite) TestSimpleCalculation() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Name: "Sales Tax",
		Rate: decimal.NewFromInt(8),
	})

	resp, err := s.service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 200)))
	s.NoError(err)
	s.Equal(types.CalculationStatusCompleted, resp.CalculationStatus)
	s.Equal("usd", resp.Currency)
	s.True(resp.TaxableAmount.Equal(decimal.NewFromInt(200)))
	s.True(resp.TaxAmount.Equal(decimal.NewFromInt(16)))
	s.True(resp.TotalAmount.Equal(decimal.NewFromInt(216)))

	// The audit record is persisted with its lines and applied rows
	stored, err := s.GetStores().CalculationRepo.Get(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.CalculationStatusCompleted, stored.CalculationStatus)
	s.True(stored.TaxAmount.Equal(decimal.NewFromInt(16)))

	lines, err := s.GetStores().CalculationRepo.GetLines(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(lines, 1)
	s.Equal("line_1", lines[0].SourceLineID)
	s.True(lines[0].TaxAmount.Equal(decimal.NewFromInt(16)))

	applied, err := s.GetStores().CalculationRepo.GetApplied(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(applied, 1)
	s.Equal("taxrate_sales", applied[0].TaxRateID)
	s.Equal(lines[0].ID, lo.FromPtr(applied[0].CalculationLineID))
	s.True(applied[0].TaxAmount.Equal(decimal.NewFromInt(16)))
}

func (s *TaxCalculationServiceSuite) TestCategoryResolvedFromCatalog() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(10),
	})
	s.GetCatalog().SetCategory("prod_1", "cat_standard")

	line := standardLine("line_1", 100)
	line.TaxCategoryID = ""

	resp, err := s.service.Calculate(s.GetContext(), s.orderRequest(line))
	s.NoError(err)
	s.True(resp.TaxAmount.Equal(decimal.NewFromInt(10)))

	lines, err := s.GetStores().CalculationRepo.GetLines(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(lines, 1)
	s.Equal("cat_standard", lines[0].TaxCategoryID)
}

func (s *TaxCalculationServiceSuite) TestExemptLineContributesNoTax() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(8),
	})

	exempt := standardLine("line_2", 50)
	exempt.IsTaxExempt = true

	resp, err := s.service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 100), exempt))
	s.NoError(err)
	s.True(resp.TaxableAmount.Equal(decimal.NewFromInt(100)))
	s.True(resp.TaxExemptAmount.Equal(decimal.NewFromInt(50)))
	s.True(resp.TaxAmount.Equal(decimal.NewFromInt(8)))
	s.True(resp.TotalAmount.Equal(decimal.NewFromInt(158)))

	applied, err := s.GetStores().CalculationRepo.GetApplied(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(applied, 1)
}

func (s *TaxCalculationServiceSuite) TestShippingTax() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:                "taxrate_sales",
		Rate:              decimal.NewFromInt(8),
		IsShippingTaxable: true,
	})

	req := s.orderRequest(standardLine("line_1", 100))
	req.ShippingAmount = lo.ToPtr(decimal.NewFromInt(10))

	resp, err := s.service.Calculate(s.GetContext(), req)
	s.NoError(err)

	// 8.00 on the line plus 0.80 on shipping; the shipping base itself is
	// not part of the calculation total.
	s.True(resp.TaxAmount.Equal(decimal.NewFromFloat(8.80)))
	s.True(resp.TotalAmount.Equal(decimal.NewFromFloat(108.80)))

	applied, err := s.GetStores().CalculationRepo.GetApplied(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(applied, 2)

	shippingRows := lo.Filter(applied, func(row *calculation.TaxCalculationApplied, _ int) bool {
		return row.CalculationLineID == nil
	})
	s.Len(shippingRows, 1)
	s.True(shippingRows[0].TaxAmount.Equal(decimal.NewFromFloat(0.80)))
}

// faultyCalculationRepo fails the applied-row insert so the persistence
// transaction aborts mid-write.
type faultyCalculationRepo struct {
	calculation.Repository
	createdID  string
	appliedErr error
}

func (r *faultyCalculationRepo) Create(ctx context.Context, calc *calculation.TaxCalculation) error {
	r.createdID = calc.ID
	return r.Repository.Create(ctx, calc)
}

func (r *faultyCalculationRepo) CreateApplied(ctx context.Context, rows []*calculation.TaxCalculationApplied) error {
	return r.appliedErr
}

func (s *TaxCalculationServiceSuite) TestFailedWriteLeavesNoPartialRecord() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(8),
	})

	repo := &faultyCalculationRepo{
		Repository: s.GetStores().CalculationRepo,
		appliedErr: ierr.NewError("applied row insert failed").
			WithHint("Failed to write tax calculation").
			Mark(ierr.ErrDatabase),
	}
	params := s.params(s.GetConfig())
	params.CalculationRepo = repo
	service := NewTaxCalculationService(params)

	_, err := service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 200)))
	s.Error(err)
	s.True(ierr.IsDatabase(err))

	// The write is all or nothing: no header, lines, or applied rows are
	// observable after the aborted transaction.
	s.NotEmpty(repo.createdID)
	_, err = s.GetStores().CalculationRepo.Get(s.GetContext(), repo.createdID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	lines, err := s.GetStores().CalculationRepo.GetLines(s.GetContext(), repo.createdID)
	s.NoError(err)
	s.Empty(lines)

	count, err := s.GetStores().CalculationRepo.Count(s.GetContext(), types.NewNoLimitTaxCalculationFilter())
	s.NoError(err)
	s.Equal(0, count)
}

func (s *TaxCalculationServiceSuite) TestNoApplicableZonePersistsFailure() {
	_, err := s.service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 100)))
	s.Error(err)
	s.True(ierr.IsNoApplicableZone(err))

	calcs, err := s.GetStores().CalculationRepo.List(s.GetContext(), types.NewNoLimitTaxCalculationFilter())
	s.NoError(err)
	s.Len(calcs, 1)
	s.Equal(types.CalculationStatusFailed, calcs[0].CalculationStatus)
	s.Equal(ierr.ErrCodeNoApplicableZone, calcs[0].ErrorCode)
	s.NotEmpty(calcs[0].ErrorMessage)
}

func (s *TaxCalculationServiceSuite) TestValidationErrorIsNotPersisted() {
	req := s.orderRequest()

	_, err := s.service.Calculate(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	count, err := s.GetStores().CalculationRepo.Count(s.GetContext(), types.NewNoLimitTaxCalculationFilter())
	s.NoError(err)
	s.Equal(0, count)
}

func (s *TaxCalculationServiceSuite) TestRecalculationCreatesNewRecord() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(8),
	})

	req := s.orderRequest(standardLine("line_1", 200))

	first, err := s.service.Calculate(s.GetContext(), req)
	s.NoError(err)
	second, err := s.service.Calculate(s.GetContext(), req)
	s.NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.True(first.TaxAmount.Equal(second.TaxAmount))
	s.True(first.TotalAmount.Equal(second.TotalAmount))

	count, err := s.GetStores().CalculationRepo.Count(s.GetContext(), types.NewNoLimitTaxCalculationFilter())
	s.NoError(err)
	s.Equal(2, count)
}

func (s *TaxCalculationServiceSuite) TestProviderCalculation() {
	cfg := *s.GetConfig()
	cfg.Provider = config.ProviderConfig{
		Enabled: true,
		BaseURL: "https://provider.test",
		Timeout: 5 * time.Second,
	}
	service := NewTaxCalculationService(s.params(&cfg))

	body, err := json.Marshal(map[string]any{
		"reference":         "prov_123",
		"taxable_amount":    "200",
		"tax_exempt_amount": "0",
		"tax_amount":        "16",
		"total_amount":      "216",
	})
	s.NoError(err)
	s.GetHTTPClient().RegisterResponse("/v1/calculations", testutil.MockResponse{
		StatusCode: 200,
		Body:       body,
	})

	resp, err := service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 200)))
	s.NoError(err)
	s.Equal(types.CalculationStatusCompleted, resp.CalculationStatus)
	s.Equal("prov_123", resp.ProviderRef)
	s.NotEmpty(resp.ProviderResponse)
	s.True(resp.TaxAmount.Equal(decimal.NewFromInt(16)))

	// The provider keeps the breakdown; only the header is persisted
	stored, err := s.GetStores().CalculationRepo.Get(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.CalculationStatusCompleted, stored.CalculationStatus)
	lines, err := s.GetStores().CalculationRepo.GetLines(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Empty(lines)
}

func (s *TaxCalculationServiceSuite) TestProviderFailureFallsBackToLocalEngine() {
	cfg := *s.GetConfig()
	cfg.Provider = config.ProviderConfig{
		Enabled: true,
		BaseURL: "https://provider.test",
		Timeout: 5 * time.Second,
	}
	service := NewTaxCalculationService(s.params(&cfg))
	s.GetHTTPClient().FailWith(errors.New("connection refused"))

	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(8),
	})

	resp, err := service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 200)))
	s.NoError(err)
	s.Equal(types.CalculationStatusCompleted, resp.CalculationStatus)
	s.Empty(resp.ProviderRef)
	s.True(resp.TaxAmount.Equal(decimal.NewFromInt(16)))

	lines, err := s.GetStores().CalculationRepo.GetLines(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(lines, 1)
}

func (s *TaxCalculationServiceSuite) TestGetCalculation() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(8),
	})

	created, err := s.service.Calculate(s.GetContext(), s.orderRequest(standardLine("line_1", 100)))
	s.NoError(err)

	resp, err := s.service.GetCalculation(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(created.ID, resp.ID)
	s.Len(resp.Lines, 1)
	s.Len(resp.Applied, 1)

	_, err = s.service.GetCalculation(s.GetContext(), "")
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.GetCalculation(s.GetContext(), "calc_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *TaxCalculationServiceSuite) TestListCalculationsBySource() {
	s.setupUSZone()
	s.setupRate(&taxrate.TaxRate{
		ID:   "taxrate_sales",
		Rate: decimal.NewFromInt(8),
	})

	reqA := s.orderRequest(standardLine("line_1", 100))
	reqB := s.orderRequest(standardLine("line_1", 100))
	reqB.SourceID = "order_456"

	_, err := s.service.Calculate(s.GetContext(), reqA)
	s.NoError(err)
	_, err = s.service.Calculate(s.GetContext(), reqB)
	s.NoError(err)

	filter := types.NewTaxCalculationFilter()
	filter.SourceID = "order_456"

	resp, err := s.service.ListCalculations(s.GetContext(), filter)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal("order_456", resp.Items[0].SourceID)
	s.Equal(1, resp.Pagination.Total)
}
