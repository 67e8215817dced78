package service

import (
	"context"
	"time"

	"github.com/ledgerline/taxengine/internal/api/dto"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// maxLineWorkers bounds the per-line fan-out of one calculation
const maxLineWorkers = 4

// TaxCalculationService orchestrates a tax calculation end to end: zone
// matching, per-line rate resolution and computation, aggregation, and
// all-or-nothing persistence of the audit record.
type TaxCalculationService interface {
	// Calculate computes and persists a calculation for the request. The
	// record transitions pending to completed or failed exactly once; a
	// recalculation for the same source creates a new record.
	Calculate(ctx context.Context, req dto.CalculateTaxRequest) (*dto.TaxCalculationResponse, error)

	// GetCalculation returns a calculation with its lines and applied rows
	GetCalculation(ctx context.Context, id string) (*dto.TaxCalculationResponse, error)

	// ListCalculations lists calculation headers matching the filter
	ListCalculations(ctx context.Context, filter *types.TaxCalculationFilter) (*dto.ListTaxCalculationsResponse, error)
}

type taxCalculationService struct {
	ServiceParams
	zoneMatcher  ZoneMatcherService
	rateResolver RateResolverService
	ruleFilter   RuleFilterService
	lineCalc     LineCalculatorService
	aggregator   AggregatorService
	provider     ProviderService
}

func NewTaxCalculationService(params ServiceParams) TaxCalculationService {
	return &taxCalculationService{
		ServiceParams: params,
		zoneMatcher:   NewZoneMatcherService(params),
		rateResolver:  NewRateResolverService(params),
		ruleFilter:    NewRuleFilterService(params),
		lineCalc:      NewLineCalculatorService(params),
		aggregator:    NewAggregatorService(params),
		provider:      NewProviderService(params),
	}
}

func (s *taxCalculationService) Calculate(ctx context.Context, req dto.CalculateTaxRequest) (*dto.TaxCalculationResponse, error) {
	if err := req.Validate(); err != nil {
		s.Logger.Warnw("tax calculation request validation failed",
			"error", err,
			"source_type", req.SourceType,
			"source_id", req.SourceID,
		)
		return nil, err
	}

	method := req.CalculationMethod
	if method == "" {
		method = s.Config.Calculation.DefaultMethod
	}

	calc := req.ToTaxCalculation(ctx, method)

	s.Logger.Infow("starting tax calculation",
		"calculation_id", calc.ID,
		"source_type", calc.SourceType,
		"source_id", calc.SourceID,
		"lines", len(req.Lines),
	)

	if s.provider.Enabled() {
		if resp, err := s.calculateWithProvider(ctx, calc, req); err == nil {
			return resp, nil
		} else {
			s.Logger.Warnw("provider calculation failed, falling back to local engine",
				"error", err,
				"calculation_id", calc.ID,
			)
		}
	}

	result, err := s.compute(ctx, calc, req)
	if err != nil {
		s.persistFailure(ctx, calc, err)
		return nil, err
	}

	calc.CalculationStatus = types.CalculationStatusCompleted
	calc.TaxableAmount = result.Totals.TaxableAmount
	calc.TaxExemptAmount = result.Totals.TaxExemptAmount
	calc.TaxAmount = result.Totals.TaxAmount
	calc.TotalAmount = result.Totals.TotalAmount

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		pending := *calc
		pending.CalculationStatus = types.CalculationStatusPending
		if err := s.CalculationRepo.Create(txCtx, &pending); err != nil {
			return err
		}
		if err := s.CalculationRepo.CreateLines(txCtx, result.Lines); err != nil {
			return err
		}
		if err := s.CalculationRepo.CreateApplied(txCtx, result.Applied); err != nil {
			return err
		}
		return s.CalculationRepo.MarkCompleted(txCtx, calc.ID, result.Totals)
	})
	if err != nil {
		s.Logger.Errorw("failed to persist tax calculation",
			"error", err,
			"calculation_id", calc.ID,
		)
		return nil, err
	}

	s.Logger.Infow("tax calculation completed",
		"calculation_id", calc.ID,
		"tax_amount", calc.TaxAmount,
		"total_amount", calc.TotalAmount,
	)

	return &dto.TaxCalculationResponse{
		TaxCalculation: calc,
		Lines:          result.Lines,
		Applied:        result.Applied,
	}, nil
}

// compute runs the local engine: one zone for the document, then each line
// resolved and taxed concurrently.
func (s *taxCalculationService) compute(ctx context.Context, calc *calculation.TaxCalculation, req dto.CalculateTaxRequest) (*AggregationResult, error) {
	zones, err := s.zoneMatcher.MatchZones(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	zone := zones[0]
	asOf := time.Now().UTC()

	comps := make([]LineComputation, len(req.Lines))
	p := pool.New().
		WithMaxGoroutines(min(len(req.Lines), maxLineWorkers)).
		WithErrors().
		WithContext(ctx)

	for i, line := range req.Lines {
		p.Go(func(ctx context.Context) error {
			comp, err := s.computeLine(ctx, calc, zone, line, asOf)
			if err != nil {
				return err
			}
			comps[i] = comp
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	return s.aggregator.Aggregate(ctx, AggregationInput{
		Calculation:    calc,
		Zone:           zone,
		Lines:          comps,
		ShippingAmount: req.ShippingAmount,
	})
}

func (s *taxCalculationService) computeLine(ctx context.Context, calc *calculation.TaxCalculation, zone *taxzone.TaxZone, line dto.LineItem, asOf time.Time) (LineComputation, error) {
	comp := LineComputation{Line: line}

	// Exempt lines never need a category or rates
	if line.IsTaxExempt {
		result, err := s.lineCalc.Calculate(LineTaxInput{IsTaxExempt: true})
		if err != nil {
			return comp, err
		}
		comp.Result = result
		return comp, nil
	}

	category := line.TaxCategoryID
	if category == "" {
		resolved, err := s.Catalog.GetTaxCategory(ctx, line.ProductID, line.ProductVariantID)
		if err != nil {
			s.Logger.Errorw("failed to resolve tax category",
				"error", err,
				"product_id", line.ProductID,
			)
			return comp, err
		}
		category = resolved
	}
	comp.TaxCategoryID = category

	rates, err := s.rateResolver.ResolveRates(ctx, category, zone.ID, asOf)
	if err != nil {
		return comp, err
	}

	target := taxrule.Target{
		ProductID:   line.ProductID,
		CategoryIDs: line.CategoryIDs,
		BrandID:     line.BrandID,
	}
	applicable := make([]*taxrate.TaxRate, 0, len(rates))
	for _, rate := range rates {
		ok, err := s.ruleFilter.Applies(ctx, rate, target)
		if err != nil {
			return comp, err
		}
		if ok {
			applicable = append(applicable, rate)
		}
	}

	result, err := s.lineCalc.Calculate(LineTaxInput{
		LineTotal:       line.LineTotal,
		DiscountAmount:  line.DiscountAmount,
		TaxExemptAmount: line.TaxExemptAmount,
		Quantity:        line.Quantity,
		Currency:        calc.Currency,
		Method:          calc.CalculationMethod,
		Rates:           applicable,
	})
	if err != nil {
		return comp, err
	}
	comp.Result = result

	return comp, nil
}

// calculateWithProvider persists the provider's totals with its reference
// and raw payload; the breakdown stays with the provider.
func (s *taxCalculationService) calculateWithProvider(ctx context.Context, calc *calculation.TaxCalculation, req dto.CalculateTaxRequest) (*dto.TaxCalculationResponse, error) {
	result, err := s.provider.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	calc.CalculationStatus = types.CalculationStatusCompleted
	calc.TaxableAmount = result.Totals.TaxableAmount
	calc.TaxExemptAmount = result.Totals.TaxExemptAmount
	calc.TaxAmount = result.Totals.TaxAmount
	calc.TotalAmount = result.Totals.TotalAmount
	calc.ProviderRef = result.Reference
	calc.ProviderResponse = result.RawResponse

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		pending := *calc
		pending.CalculationStatus = types.CalculationStatusPending
		if err := s.CalculationRepo.Create(txCtx, &pending); err != nil {
			return err
		}
		return s.CalculationRepo.MarkCompleted(txCtx, calc.ID, result.Totals)
	})
	if err != nil {
		return nil, err
	}

	return &dto.TaxCalculationResponse{TaxCalculation: calc}, nil
}

// persistFailure records a failed calculation with its structured reason.
// The original computation error is what callers receive; persistence
// problems here are logged but never mask it.
func (s *taxCalculationService) persistFailure(ctx context.Context, calc *calculation.TaxCalculation, cause error) {
	calc.CalculationStatus = types.CalculationStatusFailed
	calc.ErrorCode = ierr.ErrorCode(cause)
	calc.ErrorMessage = cause.Error()

	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		pending := *calc
		pending.CalculationStatus = types.CalculationStatusPending
		if err := s.CalculationRepo.Create(txCtx, &pending); err != nil {
			return err
		}
		return s.CalculationRepo.MarkFailed(txCtx, calc.ID, calc.ErrorCode, calc.ErrorMessage)
	})
	if err != nil {
		s.Logger.Errorw("failed to persist failed tax calculation",
			"error", err,
			"calculation_id", calc.ID,
			"cause", cause,
		)
	}
}

func (s *taxCalculationService) GetCalculation(ctx context.Context, id string) (*dto.TaxCalculationResponse, error) {
	if id == "" {
		return nil, ierr.NewError("calculation_id is required").
			WithHint("Calculation ID is required").
			Mark(ierr.ErrValidation)
	}

	calc, err := s.CalculationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.CalculationRepo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}

	applied, err := s.CalculationRepo.GetApplied(ctx, id)
	if err != nil {
		return nil, err
	}

	return &dto.TaxCalculationResponse{
		TaxCalculation: calc,
		Lines:          lines,
		Applied:        applied,
	}, nil
}

func (s *taxCalculationService) ListCalculations(ctx context.Context, filter *types.TaxCalculationFilter) (*dto.ListTaxCalculationsResponse, error) {
	if filter == nil {
		filter = types.NewTaxCalculationFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	calcs, err := s.CalculationRepo.List(ctx, filter)
	if err != nil {
		s.Logger.Errorw("failed to list tax calculations", "error", err)
		return nil, err
	}

	count, err := s.CalculationRepo.Count(ctx, filter)
	if err != nil {
		s.Logger.Errorw("failed to count tax calculations", "error", err)
		return nil, err
	}

	items := make([]*dto.TaxCalculationResponse, len(calcs))
	for i, c := range calcs {
		items[i] = &dto.TaxCalculationResponse{TaxCalculation: c}
	}

	pagination := types.NewPaginationResponse(count, filter.GetLimit(), filter.GetOffset())

	return &dto.ListTaxCalculationsResponse{
		Items:      items,
		Pagination: &pagination,
	}, nil
}
