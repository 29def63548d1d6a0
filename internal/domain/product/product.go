package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when the inventory service has no record of the
// requested product.
var ErrNotFound = errors.New("product not found")

// Product is the read view of a catalog item owned by the external inventory
// service. Quantity is the stock available for sale at read time; it is
// remotely mutable shared state, so any read may be stale by the time a
// follow-up write lands.
type Product struct {
	ID             string
	Name           string
	ManufacturerID string
	Quantity       int
}

// InventoryClient queries and adjusts product stock held by the external
// inventory service. Implementations hold no local state.
type InventoryClient interface {
	// Product returns the current view of a single product, or ErrNotFound.
	Product(ctx context.Context, id string) (*Product, error)

	// Products batch-resolves the given IDs in a single round trip. IDs with
	// no matching product are simply absent from the result; the caller
	// decides whether that is an error.
	Products(ctx context.Context, ids []string) (map[string]Product, error)

	// SetQuantity replaces the available quantity of a product.
	SetQuantity(ctx context.Context, id string, quantity int) error
}
