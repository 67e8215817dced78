package calculation

import (
	"context"

	"github.com/ledgerline/taxengine/internal/types"
)

// Repository defines the interface for calculation persistence operations.
// The orchestrator runs CreateLines, CreateApplied, and MarkCompleted inside
// a single transaction so a reader never observes a completed calculation
// with missing rows.
type Repository interface {
	Create(ctx context.Context, calc *TaxCalculation) error
	Get(ctx context.Context, id string) (*TaxCalculation, error)
	List(ctx context.Context, filter *types.TaxCalculationFilter) ([]*TaxCalculation, error)
	Count(ctx context.Context, filter *types.TaxCalculationFilter) (int, error)

	CreateLines(ctx context.Context, lines []*TaxCalculationLine) error
	CreateApplied(ctx context.Context, rows []*TaxCalculationApplied) error

	GetLines(ctx context.Context, calculationID string) ([]*TaxCalculationLine, error)
	GetApplied(ctx context.Context, calculationID string) ([]*TaxCalculationApplied, error)

	// MarkCompleted transitions a pending calculation to completed with its
	// aggregate totals
	MarkCompleted(ctx context.Context, id string, totals Totals) error
	// MarkFailed transitions a pending calculation to failed with a
	// structured reason
	MarkFailed(ctx context.Context, id string, errorCode, errorMessage string) error
}
