package taxrule

import (
	"context"

	"github.com/ledgerline/taxengine/internal/types"
)

// Repository defines the interface for taxrule persistence operations
type Repository interface {
	Create(ctx context.Context, rule *TaxRule) error
	Get(ctx context.Context, id string) (*TaxRule, error)
	List(ctx context.Context, filter *types.TaxRuleFilter) ([]*TaxRule, error)
	Update(ctx context.Context, rule *TaxRule) error
	Delete(ctx context.Context, rule *TaxRule) error

	// ListActive returns the published rules for a rate ordered by
	// sort_order ascending
	ListActive(ctx context.Context, taxRateID string) ([]*TaxRule, error)
}
