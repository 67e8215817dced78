package service

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerline/taxengine/internal/api/dto"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineComputation pairs a request line with its computed tax result
type LineComputation struct {
	Line          dto.LineItem
	TaxCategoryID string
	Result        *LineTaxResult
}

// AggregationInput carries everything the aggregator folds into the
// persisted calculation rows.
type AggregationInput struct {
	Calculation    *calculation.TaxCalculation
	Zone           *taxzone.TaxZone
	Lines          []LineComputation
	ShippingAmount *decimal.Decimal
}

// AggregationResult is the persisted shape of a completed calculation
type AggregationResult struct {
	Lines   []*calculation.TaxCalculationLine
	Applied []*calculation.TaxCalculationApplied
	Totals  calculation.Totals
}

// AggregatorService folds per-line results into calculation lines, applied
// audit rows, shipping tax, and header totals.
type AggregatorService interface {
	Aggregate(ctx context.Context, input AggregationInput) (*AggregationResult, error)
}

type aggregatorService struct {
	ServiceParams
	lineCalc LineCalculatorService
}

func NewAggregatorService(params ServiceParams) AggregatorService {
	return &aggregatorService{
		ServiceParams: params,
		lineCalc:      NewLineCalculatorService(params),
	}
}

func (s *aggregatorService) Aggregate(ctx context.Context, input AggregationInput) (*AggregationResult, error) {
	calc := input.Calculation
	now := time.Now().UTC()

	result := &AggregationResult{
		Lines:   make([]*calculation.TaxCalculationLine, 0, len(input.Lines)),
		Applied: make([]*calculation.TaxCalculationApplied, 0),
	}

	taxable := decimal.Zero
	exempt := decimal.Zero
	tax := decimal.Zero

	for _, comp := range input.Lines {
		line := s.buildLine(ctx, calc, comp)
		result.Lines = append(result.Lines, line)

		taxable = taxable.Add(line.TaxableAmount)
		exempt = exempt.Add(line.TaxExemptAmount)
		tax = tax.Add(line.TaxAmount)

		for _, row := range comp.Result.Applied {
			result.Applied = append(result.Applied, s.buildApplied(ctx, calc, input.Zone, lo.ToPtr(line.ID), row, now))
		}
	}

	// Shipping is taxed once per contributing shipping-taxable rate, not
	// once per line carrying that rate.
	if input.ShippingAmount != nil && input.ShippingAmount.IsPositive() {
		shippingTax, shippingRows, err := s.taxShipping(ctx, calc, input, now)
		if err != nil {
			return nil, err
		}
		tax = tax.Add(shippingTax)
		result.Applied = append(result.Applied, shippingRows...)
	}

	// A supplied shipping amount contributes only its tax to the totals;
	// the shipping base itself stays with the source document.
	result.Totals = calculation.Totals{
		TaxableAmount:   taxable,
		TaxExemptAmount: exempt,
		TaxAmount:       tax,
		TotalAmount:     taxable.Add(exempt).Add(tax),
	}

	if err := s.checkConservation(result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *aggregatorService) buildLine(ctx context.Context, calc *calculation.TaxCalculation, comp LineComputation) *calculation.TaxCalculationLine {
	// The recorded exempt amount is clamped to the discounted line value so
	// that taxable + exempt never exceeds what the line is worth.
	maxExempt := comp.Line.LineTotal.Sub(comp.Line.DiscountAmount)
	if maxExempt.IsNegative() {
		maxExempt = decimal.Zero
	}

	exemptAmount := comp.Line.TaxExemptAmount
	if comp.Line.IsTaxExempt || exemptAmount.GreaterThan(maxExempt) {
		exemptAmount = maxExempt
	}

	return &calculation.TaxCalculationLine{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CALCULATION_LINE),
		CalculationID:   calc.ID,
		SourceLineID:    comp.Line.ID,
		ProductID:       comp.Line.ProductID,
		SKU:             comp.Line.SKU,
		Name:            comp.Line.Name,
		Quantity:        comp.Line.Quantity,
		UnitPrice:       comp.Line.UnitPrice,
		LineTotal:       comp.Line.LineTotal,
		DiscountAmount:  comp.Line.DiscountAmount,
		TaxableAmount:   comp.Result.TaxableAmount,
		TaxExemptAmount: exemptAmount,
		TaxAmount:       comp.Result.TaxAmount,
		TaxCategoryID:   comp.TaxCategoryID,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
}

func (s *aggregatorService) buildApplied(ctx context.Context, calc *calculation.TaxCalculation, zone *taxzone.TaxZone, lineID *string, row AppliedRateResult, appliedAt time.Time) *calculation.TaxCalculationApplied {
	return &calculation.TaxCalculationApplied{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CALCULATION_APPLIED),
		CalculationID:     calc.ID,
		CalculationLineID: lineID,
		TaxRateID:         row.Rate.ID,
		JurisdictionLevel: zone.JurisdictionLevel(),
		JurisdictionName:  zone.Name,
		Rate:              row.Rate.Rate,
		IsCompound:        row.Rate.IsCompound,
		IncludeInPrice:    row.Rate.IncludeInPrice,
		TaxableAmount:     row.TaxableAmount,
		TaxAmount:         row.TaxAmount,
		Currency:          calc.Currency,
		AppliedAt:         appliedAt,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
}

func (s *aggregatorService) taxShipping(ctx context.Context, calc *calculation.TaxCalculation, input AggregationInput, now time.Time) (decimal.Decimal, []*calculation.TaxCalculationApplied, error) {
	seen := make(map[string]bool)
	var shippingRates []*taxrate.TaxRate
	for _, comp := range input.Lines {
		for _, row := range comp.Result.Applied {
			if row.Rate.IsShippingTaxable && !seen[row.Rate.ID] {
				seen[row.Rate.ID] = true
				shippingRates = append(shippingRates, row.Rate)
			}
		}
	}
	if len(shippingRates) == 0 {
		return decimal.Zero, nil, nil
	}

	sort.SliceStable(shippingRates, func(i, j int) bool {
		if shippingRates[i].Priority != shippingRates[j].Priority {
			return shippingRates[i].Priority < shippingRates[j].Priority
		}
		return shippingRates[i].CreatedAt.Before(shippingRates[j].CreatedAt)
	})

	shippingResult, err := s.lineCalc.Calculate(LineTaxInput{
		LineTotal: *input.ShippingAmount,
		Quantity:  decimal.NewFromInt(1),
		Currency:  calc.Currency,
		Method:    types.CalculationMethodItemBased,
		Rates:     shippingRates,
	})
	if err != nil {
		return decimal.Zero, nil, err
	}

	rows := make([]*calculation.TaxCalculationApplied, 0, len(shippingResult.Applied))
	for _, row := range shippingResult.Applied {
		rows = append(rows, s.buildApplied(ctx, calc, input.Zone, nil, row, now))
	}

	return shippingResult.TaxAmount, rows, nil
}

// checkConservation verifies that the applied rows outside the
// price-inclusive set sum exactly to the header tax amount.
func (s *aggregatorService) checkConservation(result *AggregationResult) error {
	sum := decimal.Zero
	for _, row := range result.Applied {
		if !row.IncludeInPrice {
			sum = sum.Add(row.TaxAmount)
		}
	}

	if !sum.Equal(result.Totals.TaxAmount) {
		s.Logger.Errorw("applied tax rows do not sum to the calculation tax amount",
			"applied_sum", sum,
			"tax_amount", result.Totals.TaxAmount,
		)
		return ierr.NewError("tax amounts do not reconcile").
			WithHint("Applied tax rows must sum to the calculation tax amount").
			Mark(ierr.ErrSystem)
	}

	return nil
}
