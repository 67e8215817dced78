package testutil

import (
	"context"
	"sync"

	"github.com/ledgerline/taxengine/internal/domain/catalog"
	ierr "github.com/ledgerline/taxengine/internal/errors"
)

var _ catalog.ProductCatalog = (*InMemoryCatalog)(nil)

// InMemoryCatalog implements catalog.ProductCatalog over a plain map.
// Variant entries take precedence over their product entry.
type InMemoryCatalog struct {
	mu         sync.RWMutex
	categories map[string]string
}

func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		categories: make(map[string]string),
	}
}

// SetCategory maps a product or variant id to a tax category
func (c *InMemoryCatalog) SetCategory(id, taxCategoryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[id] = taxCategoryID
}

func (c *InMemoryCatalog) GetTaxCategory(ctx context.Context, productID, productVariantID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if productVariantID != "" {
		if category, ok := c.categories[productVariantID]; ok {
			return category, nil
		}
	}
	if category, ok := c.categories[productID]; ok {
		return category, nil
	}

	return "", ierr.NewError("product has no tax category").
		WithHintf("Product %s is not mapped to a tax category", productID).
		Mark(ierr.ErrNotFound)
}

// Clear removes all category mappings
func (c *InMemoryCatalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = make(map[string]string)
}
