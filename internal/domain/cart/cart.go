package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	ErrNotFound         = errors.New("cart line not found")
	ErrRetailerNotFound = errors.New("retailer not found")
	ErrInvalidQuantity  = errors.New("quantity must be greater than 0")
)

// Line is one pending cart entry. Lines are never hard-deleted: once an order
// is created from a line, or the buyer removes it, the line is deactivated
// and kept for audit.
type Line struct {
	ID             string
	RetailerID     string
	ProductID      string
	ManufacturerID string
	Quantity       int
	UnitPrice      decimal.Decimal
	Active         bool
	CreatedBy      string
	CreatedOn      time.Time
	UpdatedBy      string
	UpdatedOn      time.Time
}

// Store persists cart lines.
type Store interface {
	// Create inserts the line.
	Create(ctx context.Context, l *Line) error

	// ActiveByRetailer returns the retailer's active lines, oldest first.
	ActiveByRetailer(ctx context.Context, retailerID string) ([]Line, error)

	// ByID returns a line regardless of its active flag, or ErrNotFound.
	ByID(ctx context.Context, id string) (*Line, error)

	// Deactivate clears the active flag and stamps UpdatedOn. Deactivating an
	// already-inactive line is a successful no-op; a line that does not exist
	// at all is ErrNotFound, since deactivating a phantom line indicates a
	// race or bad input.
	Deactivate(ctx context.Context, id string) error
}
