package taxzone

import (
	"context"

	"github.com/ledgerline/taxengine/internal/types"
)

// Repository defines the interface for taxzone persistence operations
type Repository interface {
	// Core operations
	Create(ctx context.Context, zone *TaxZone) error
	Get(ctx context.Context, id string) (*TaxZone, error)
	List(ctx context.Context, filter *types.TaxZoneFilter) ([]*TaxZone, error)
	Count(ctx context.Context, filter *types.TaxZoneFilter) (int, error)
	Update(ctx context.Context, zone *TaxZone) error
	Delete(ctx context.Context, zone *TaxZone) error

	// Lookup operations
	// ListActive returns every published zone; the zone matcher evaluates
	// address containment in memory against this snapshot.
	ListActive(ctx context.Context) ([]*TaxZone, error)
	// GetDefault returns the single active zone flagged as default, or a
	// not found error when none is configured.
	GetDefault(ctx context.Context) (*TaxZone, error)
}
