package taxrate

import (
	"context"
	"time"

	"github.com/ledgerline/taxengine/internal/types"
)

// Repository defines the interface for taxrate persistence operations
type Repository interface {
	// Core operations
	Create(ctx context.Context, rate *TaxRate) error
	Get(ctx context.Context, id string) (*TaxRate, error)
	List(ctx context.Context, filter *types.TaxRateFilter) ([]*TaxRate, error)
	Count(ctx context.Context, filter *types.TaxRateFilter) (int, error)
	Update(ctx context.Context, rate *TaxRate) error
	Delete(ctx context.Context, rate *TaxRate) error

	// Lookup operations
	// ListActive returns the applicable rates for a category inside a zone
	// at the given evaluation time, ordered by priority ascending with
	// created_at ascending as the deterministic tie break.
	ListActive(ctx context.Context, taxCategoryID, taxZoneID string, asOf time.Time) ([]*TaxRate, error)
}
