package service

import (
	"testing"

	"github.com/ledgerline/taxengine/internal/api/dto"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	"github.com/ledgerline/taxengine/internal/testutil"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AggregatorServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  AggregatorService
	lineCalc LineCalculatorService
	zone     *taxzone.TaxZone
}

func TestAggregatorService(t *testing.T) {
	suite.Run(t, new(AggregatorServiceSuite))
}

func (s *AggregatorServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := ServiceParams{
		Logger: s.GetLogger(),
		Config: s.GetConfig(),
	}
	s.service = NewAggregatorService(params)
	s.lineCalc = NewLineCalculatorService(params)
	s.zone = &taxzone.TaxZone{
		ID:           "taxzone_us",
		Name:         "United States",
		CountryCodes: []string{"US"},
	}
}

func (s *AggregatorServiceSuite) header() *calculation.TaxCalculation {
	return &calculation.TaxCalculation{
		ID:                "calc_test",
		Currency:          "usd",
		CalculationMethod: types.CalculationMethodItemBased,
	}
}

func (s *AggregatorServiceSuite) computeLine(line dto.LineItem, rates ...*taxrate.TaxRate) LineComputation {
	result, err := s.lineCalc.Calculate(LineTaxInput{
		LineTotal:       line.LineTotal,
		DiscountAmount:  line.DiscountAmount,
		TaxExemptAmount: line.TaxExemptAmount,
		IsTaxExempt:     line.IsTaxExempt,
		Quantity:        line.Quantity,
		Currency:        "usd",
		Rates:           rates,
	})
	s.NoError(err)
	return LineComputation{
		Line:          line,
		TaxCategoryID: "cat_standard",
		Result:        result,
	}
}

func (s *AggregatorServiceSuite) TestShippingTaxedOncePerRate() {
	rate := &taxrate.TaxRate{
		ID:                "taxrate_sales",
		RateType:          types.TaxRateTypePercentage,
		Rate:              decimal.NewFromInt(10),
		IsShippingTaxable: true,
	}

	lineA := dto.LineItem{ID: "line_1", Quantity: decimal.NewFromInt(1), LineTotal: decimal.NewFromInt(100)}
	lineB := dto.LineItem{ID: "line_2", Quantity: decimal.NewFromInt(1), LineTotal: decimal.NewFromInt(50)}

	result, err := s.service.Aggregate(s.GetContext(), AggregationInput{
		Calculation:    s.header(),
		Zone:           s.zone,
		Lines:          []LineComputation{s.computeLine(lineA, rate), s.computeLine(lineB, rate)},
		ShippingAmount: lo.ToPtr(decimal.NewFromInt(20)),
	})
	s.NoError(err)

	// Both lines carry the rate but shipping is taxed a single time; the
	// shipping base stays out of the total.
	s.True(result.Totals.TaxAmount.Equal(decimal.NewFromInt(17)))
	s.True(result.Totals.TotalAmount.Equal(decimal.NewFromInt(167)))

	shippingRows := lo.Filter(result.Applied, func(row *calculation.TaxCalculationApplied, _ int) bool {
		return row.CalculationLineID == nil
	})
	s.Len(shippingRows, 1)
	s.True(shippingRows[0].TaxAmount.Equal(decimal.NewFromInt(2)))
	s.Equal("United States", shippingRows[0].JurisdictionName)
}

func (s *AggregatorServiceSuite) TestPriceInclusiveRowsStayOutOfTotals() {
	inclusive := &taxrate.TaxRate{
		ID:             "taxrate_vat",
		RateType:       types.TaxRateTypePercentage,
		Rate:           decimal.NewFromInt(20),
		IncludeInPrice: true,
	}
	additive := &taxrate.TaxRate{
		ID:       "taxrate_duty",
		RateType: types.TaxRateTypePercentage,
		Rate:     decimal.NewFromInt(5),
	}

	line := dto.LineItem{ID: "line_1", Quantity: decimal.NewFromInt(1), LineTotal: decimal.NewFromInt(100)}

	result, err := s.service.Aggregate(s.GetContext(), AggregationInput{
		Calculation: s.header(),
		Zone:        s.zone,
		Lines:       []LineComputation{s.computeLine(line, inclusive, additive)},
	})
	s.NoError(err)

	s.True(result.Totals.TaxAmount.Equal(decimal.NewFromInt(5)))
	s.True(result.Totals.TotalAmount.Equal(decimal.NewFromInt(105)))
	s.Len(result.Applied, 2)

	inclusiveRows := lo.Filter(result.Applied, func(row *calculation.TaxCalculationApplied, _ int) bool {
		return row.IncludeInPrice
	})
	s.Len(inclusiveRows, 1)
	s.True(inclusiveRows[0].TaxAmount.Equal(decimal.NewFromInt(20)))
}

func (s *AggregatorServiceSuite) TestExemptAmountClampedToLineValue() {
	rate := &taxrate.TaxRate{
		ID:       "taxrate_sales",
		RateType: types.TaxRateTypePercentage,
		Rate:     decimal.NewFromInt(10),
	}

	line := dto.LineItem{
		ID:              "line_1",
		Quantity:        decimal.NewFromInt(1),
		LineTotal:       decimal.NewFromInt(100),
		DiscountAmount:  decimal.NewFromInt(10),
		TaxExemptAmount: decimal.NewFromInt(200),
	}

	result, err := s.service.Aggregate(s.GetContext(), AggregationInput{
		Calculation: s.header(),
		Zone:        s.zone,
		Lines:       []LineComputation{s.computeLine(line, rate)},
	})
	s.NoError(err)

	// The exempt amount cannot exceed the discounted line value, so
	// taxable + exempt never overstates the line.
	s.True(result.Totals.TaxableAmount.IsZero())
	s.True(result.Totals.TaxExemptAmount.Equal(decimal.NewFromInt(90)))
	s.True(result.Totals.TaxAmount.IsZero())
	s.True(result.Totals.TotalAmount.Equal(decimal.NewFromInt(90)))
	s.Len(result.Lines, 1)
	s.True(result.Lines[0].TaxExemptAmount.Equal(decimal.NewFromInt(90)))
}

func (s *AggregatorServiceSuite) TestExemptLineFeedsExemptTotal() {
	line := dto.LineItem{
		ID:          "line_1",
		Quantity:    decimal.NewFromInt(1),
		LineTotal:   decimal.NewFromInt(80),
		IsTaxExempt: true,
	}

	result, err := s.service.Aggregate(s.GetContext(), AggregationInput{
		Calculation: s.header(),
		Zone:        s.zone,
		Lines:       []LineComputation{s.computeLine(line)},
	})
	s.NoError(err)

	s.True(result.Totals.TaxableAmount.IsZero())
	s.True(result.Totals.TaxExemptAmount.Equal(decimal.NewFromInt(80)))
	s.True(result.Totals.TaxAmount.IsZero())
	s.True(result.Totals.TotalAmount.Equal(decimal.NewFromInt(80)))
	s.Empty(result.Applied)
}
