package catalog

import "context"

// ProductCatalog resolves a product or variant to its tax category. The
// catalog itself lives outside this engine; calculations depend on it only
// through this port. An empty category is a valid answer and means the line
// is untaxed unless the request carries an explicit category.
type ProductCatalog interface {
	GetTaxCategory(ctx context.Context, productID, productVariantID string) (string, error)
}
