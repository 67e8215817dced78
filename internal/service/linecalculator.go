package service

import (
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineTaxInput carries everything needed to tax one line. Rates must
// already be resolved, rule-filtered, and ordered by priority.
type LineTaxInput struct {
	LineTotal       decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxExemptAmount decimal.Decimal
	IsTaxExempt     bool
	Quantity        decimal.Decimal
	Currency        string
	Method          types.CalculationMethod
	Rates           []*taxrate.TaxRate
}

// AppliedRateResult is one rate actually applied to a line, carrying the
// base it was computed against and its rounded amount.
type AppliedRateResult struct {
	Rate          *taxrate.TaxRate
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// LineTaxResult is the outcome of taxing one line. TaxAmount excludes
// price-inclusive rows, which appear in Applied for audit only.
type LineTaxResult struct {
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
	Applied       []AppliedRateResult
}

// LineCalculatorService computes the tax for a single line. It is a pure
// decimal fold over the supplied rates and never touches storage.
type LineCalculatorService interface {
	Calculate(input LineTaxInput) (*LineTaxResult, error)
}

type lineCalculatorService struct {
	ServiceParams
}

func NewLineCalculatorService(params ServiceParams) LineCalculatorService {
	return &lineCalculatorService{
		ServiceParams: params,
	}
}

func (s *lineCalculatorService) Calculate(input LineTaxInput) (*LineTaxResult, error) {
	if input.Method != "" {
		if err := input.Method.Validate(); err != nil {
			return nil, err
		}
	}

	// An exempt line produces no tax and no applied rows regardless of the
	// rates in scope.
	if input.IsTaxExempt {
		return &LineTaxResult{
			TaxableAmount: decimal.Zero,
			TaxAmount:     decimal.Zero,
		}, nil
	}

	base := input.LineTotal.Sub(input.DiscountAmount).Sub(input.TaxExemptAmount)
	if base.IsNegative() {
		base = decimal.Zero
	}

	if input.Method == types.CalculationMethodUnitBased && input.Quantity.IsPositive() {
		return s.calculateUnitBased(base, input)
	}
	return s.applyRates(base, input.Rates, input.Currency, decimal.NewFromInt(1))
}

// calculateUnitBased taxes the per-unit base, rounds per unit, and scales
// each amount by the quantity. Unit pricing differences therefore never
// round away across large quantities.
func (s *lineCalculatorService) calculateUnitBased(base decimal.Decimal, input LineTaxInput) (*LineTaxResult, error) {
	unitBase := base.Div(input.Quantity)
	return s.applyRates(unitBase, input.Rates, input.Currency, input.Quantity)
}

// applyRates folds the ordered rates over the base. Non-compound rates are
// computed against the plain base and summed first; compound rates then
// apply sequentially against the base plus all previously accumulated tax.
// Every amount is rounded to currency precision before it joins the sum.
func (s *lineCalculatorService) applyRates(base decimal.Decimal, rates []*taxrate.TaxRate, currency string, scale decimal.Decimal) (*LineTaxResult, error) {
	nonCompound := lo.Filter(rates, func(r *taxrate.TaxRate, _ int) bool { return !r.IsCompound })
	compound := lo.Filter(rates, func(r *taxrate.TaxRate, _ int) bool { return r.IsCompound })

	accumulated := decimal.Zero
	applied := make([]AppliedRateResult, 0, len(rates))

	for _, rate := range nonCompound {
		if belowThreshold(rate, base) {
			continue
		}
		row, err := s.applyRate(rate, base, currency)
		if err != nil {
			return nil, err
		}
		applied = append(applied, row)
		if !rate.IncludeInPrice {
			accumulated = accumulated.Add(row.TaxAmount)
		}
	}

	for _, rate := range compound {
		// The threshold is a floor on the taxable base itself, so compound
		// rates check it before previously accumulated tax is added.
		if belowThreshold(rate, base) {
			continue
		}
		row, err := s.applyRate(rate, base.Add(accumulated), currency)
		if err != nil {
			return nil, err
		}
		applied = append(applied, row)
		if !rate.IncludeInPrice {
			accumulated = accumulated.Add(row.TaxAmount)
		}
	}

	result := &LineTaxResult{
		TaxableAmount: base.Mul(scale),
		TaxAmount:     accumulated.Mul(scale),
		Applied:       applied,
	}
	if !scale.Equal(decimal.NewFromInt(1)) {
		for i := range result.Applied {
			result.Applied[i].TaxableAmount = result.Applied[i].TaxableAmount.Mul(scale)
			result.Applied[i].TaxAmount = result.Applied[i].TaxAmount.Mul(scale)
		}
	}

	return result, nil
}

// belowThreshold reports whether the taxable base stays under the rate's
// minimum; such a rate is skipped and leaves no trace.
func belowThreshold(rate *taxrate.TaxRate, base decimal.Decimal) bool {
	return rate.Threshold != nil && base.LessThan(*rate.Threshold)
}

// applyRate computes one rate against its base
func (s *lineCalculatorService) applyRate(rate *taxrate.TaxRate, base decimal.Decimal, currency string) (AppliedRateResult, error) {
	var amount decimal.Decimal
	switch rate.RateType {
	case types.TaxRateTypePercentage:
		amount = base.Mul(rate.Rate).Div(decimal.NewFromInt(100))
	case types.TaxRateTypeFixed:
		if rate.FixedAmount != nil {
			amount = *rate.FixedAmount
		} else {
			amount = rate.Rate
		}
	default:
		return AppliedRateResult{}, ierr.NewError("unknown tax rate type").
			WithHintf("Tax rate %s has unsupported type %s", rate.ID, rate.RateType).
			Mark(ierr.ErrInvalidRateConfig)
	}

	if rate.MinimumAmount != nil && amount.LessThan(*rate.MinimumAmount) {
		amount = *rate.MinimumAmount
	}
	if rate.MaximumAmount != nil && amount.GreaterThan(*rate.MaximumAmount) {
		amount = *rate.MaximumAmount
	}

	amount = types.RoundToCurrencyPrecision(amount, currency)

	return AppliedRateResult{
		Rate:          rate,
		TaxableAmount: base,
		TaxAmount:     amount,
	}, nil
}
