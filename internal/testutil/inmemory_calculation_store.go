package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerline/taxengine/internal/domain/calculation"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
)

// InMemoryCalculationStore implements calculation.Repository
type InMemoryCalculationStore struct {
	headers *InMemoryStore[*calculation.TaxCalculation]
	lines   *InMemoryStore[*calculation.TaxCalculationLine]
	applied *InMemoryStore[*calculation.TaxCalculationApplied]
}

func NewInMemoryCalculationStore() *InMemoryCalculationStore {
	return &InMemoryCalculationStore{
		headers: NewInMemoryStore[*calculation.TaxCalculation](),
		lines:   NewInMemoryStore[*calculation.TaxCalculationLine](),
		applied: NewInMemoryStore[*calculation.TaxCalculationApplied](),
	}
}

// calculationSnapshot captures all three row sets for mock transaction
// rollback
type calculationSnapshot struct {
	headers map[string]*calculation.TaxCalculation
	lines   map[string]*calculation.TaxCalculationLine
	applied map[string]*calculation.TaxCalculationApplied
}

// Snapshot implements TxParticipant. Headers are copied by value because the
// status transitions mutate stored records in place.
func (s *InMemoryCalculationStore) Snapshot() any {
	headers := s.headers.snapshot()
	for id, header := range headers {
		copied := *header
		headers[id] = &copied
	}
	return calculationSnapshot{
		headers: headers,
		lines:   s.lines.snapshot(),
		applied: s.applied.snapshot(),
	}
}

// Restore implements TxParticipant
func (s *InMemoryCalculationStore) Restore(snapshot any) {
	snap, ok := snapshot.(calculationSnapshot)
	if !ok {
		return
	}
	s.headers.restore(snap.headers)
	s.lines.restore(snap.lines)
	s.applied.restore(snap.applied)
}

func calculationFilterFn(ctx context.Context, c *calculation.TaxCalculation, filter interface{}) bool {
	if c == nil {
		return false
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok {
		if c.TenantID != tenantID {
			return false
		}
	}

	f, ok := filter.(*types.TaxCalculationFilter)
	if !ok {
		return true
	}

	if len(f.CalculationIDs) > 0 && !lo.Contains(f.CalculationIDs, c.ID) {
		return false
	}
	if f.SourceType != "" && c.SourceType != f.SourceType {
		return false
	}
	if f.SourceID != "" && c.SourceID != f.SourceID {
		return false
	}
	if f.CalculationStatus != "" && c.CalculationStatus != f.CalculationStatus {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && c.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && c.CreatedAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

func calculationSortFn(i, j *calculation.TaxCalculation) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryCalculationStore) Create(ctx context.Context, calc *calculation.TaxCalculation) error {
	if calc == nil {
		return ierr.NewError("calculation cannot be nil").
			WithHint("Calculation data is required").
			Mark(ierr.ErrValidation)
	}

	if calc.TenantID == "" {
		calc.TenantID = types.GetTenantID(ctx)
	}

	// Store a copy so later header mutations go through the repository
	stored := *calc
	return s.headers.Create(ctx, calc.ID, &stored)
}

func (s *InMemoryCalculationStore) Get(ctx context.Context, id string) (*calculation.TaxCalculation, error) {
	calc, err := s.headers.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("tax calculation not found").
			WithHintf("Tax calculation %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return calc, nil
}

func (s *InMemoryCalculationStore) List(ctx context.Context, filter *types.TaxCalculationFilter) ([]*calculation.TaxCalculation, error) {
	return s.headers.List(ctx, filter, calculationFilterFn, calculationSortFn)
}

func (s *InMemoryCalculationStore) Count(ctx context.Context, filter *types.TaxCalculationFilter) (int, error) {
	return s.headers.Count(ctx, filter, calculationFilterFn)
}

func (s *InMemoryCalculationStore) CreateLines(ctx context.Context, lines []*calculation.TaxCalculationLine) error {
	for _, line := range lines {
		if err := s.lines.Create(ctx, line.ID, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryCalculationStore) CreateApplied(ctx context.Context, rows []*calculation.TaxCalculationApplied) error {
	for _, row := range rows {
		if err := s.applied.Create(ctx, row.ID, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryCalculationStore) GetLines(ctx context.Context, calculationID string) ([]*calculation.TaxCalculationLine, error) {
	lines, err := s.lines.List(ctx, nil, func(ctx context.Context, l *calculation.TaxCalculationLine, _ interface{}) bool {
		return l != nil && l.CalculationID == calculationID
	}, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (s *InMemoryCalculationStore) GetApplied(ctx context.Context, calculationID string) ([]*calculation.TaxCalculationApplied, error) {
	rows, err := s.applied.List(ctx, nil, func(ctx context.Context, a *calculation.TaxCalculationApplied, _ interface{}) bool {
		return a != nil && a.CalculationID == calculationID
	}, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *InMemoryCalculationStore) MarkCompleted(ctx context.Context, id string, totals calculation.Totals) error {
	calc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if calc.CalculationStatus != types.CalculationStatusPending {
		return ierr.NewError("tax calculation is not pending").
			WithHintf("Tax calculation %s already reached a terminal status", id).
			Mark(ierr.ErrInvalidOperation)
	}

	calc.CalculationStatus = types.CalculationStatusCompleted
	calc.TaxableAmount = totals.TaxableAmount
	calc.TaxExemptAmount = totals.TaxExemptAmount
	calc.TaxAmount = totals.TaxAmount
	calc.TotalAmount = totals.TotalAmount
	calc.UpdatedAt = time.Now().UTC()
	return s.headers.Update(ctx, id, calc)
}

func (s *InMemoryCalculationStore) MarkFailed(ctx context.Context, id string, errorCode, errorMessage string) error {
	calc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if calc.CalculationStatus != types.CalculationStatusPending {
		return ierr.NewError("tax calculation is not pending").
			WithHintf("Tax calculation %s already reached a terminal status", id).
			Mark(ierr.ErrInvalidOperation)
	}

	calc.CalculationStatus = types.CalculationStatusFailed
	calc.ErrorCode = errorCode
	calc.ErrorMessage = errorMessage
	calc.UpdatedAt = time.Now().UTC()
	return s.headers.Update(ctx, id, calc)
}

// Clear removes all calculations, lines, and applied rows
func (s *InMemoryCalculationStore) Clear() {
	s.headers.Clear()
	s.lines.Clear()
	s.applied.Clear()
}
