package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Reason is a stable machine-checkable failure code. Callers branch on the
// reason; the error message is for humans only.
type Reason string

const (
	ReasonValidation            Reason = "validation"
	ReasonOrderNotFound         Reason = "order_not_found"
	ReasonNoOrderLines          Reason = "no_order_lines"
	ReasonOrderItemNotFound     Reason = "order_item_not_found"
	ReasonProductNotFound       Reason = "product_not_found"
	ReasonInsufficientStock     Reason = "insufficient_stock"
	ReasonInventoryUpdateFailed Reason = "inventory_update_failed"
	ReasonRetailerNotFound      Reason = "retailer_not_found"
	ReasonStateTerminal         Reason = "order_state_terminal"
	ReasonConcurrencyConflict   Reason = "concurrency_conflict"
)

// Sentinel errors for conditions that carry no extra detail.
var (
	ErrValidation          = errors.New("invalid request")
	ErrNotFound            = errors.New("order not found")
	ErrNoLines             = errors.New("order has no lines")
	ErrNoDecisions         = errors.New("at least one line decision is required")
	ErrRetailerNotFound    = errors.New("retailer not found")
	ErrStateTerminal       = errors.New("order is in a terminal state")
	ErrConcurrencyConflict = errors.New("order was modified concurrently")
)

// ItemNotFoundError indicates a decision referenced a line that does not
// belong to the order.
type ItemNotFoundError struct {
	LineID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("order line %s not found", e.LineID)
}

// ProductNotFoundError indicates the inventory service has no record of a
// line's product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError indicates an accepted line asked for more stock than
// the product has available.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s has insufficient stock: %d available, %d requested",
		e.ProductID, e.Available, e.Requested)
}

// InventoryUpdateError indicates the inventory decrement call itself failed.
type InventoryUpdateError struct {
	ProductID string
	Err       error
}

func (e *InventoryUpdateError) Error() string {
	return fmt.Sprintf("updating inventory for product %s: %v", e.ProductID, e.Err)
}

func (e *InventoryUpdateError) Unwrap() error { return e.Err }

// ReasonOf classifies err into a Reason. Unrecognized errors are treated as
// infrastructure failures and get an empty reason.
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrNotFound):
		return ReasonOrderNotFound
	case errors.Is(err, ErrNoLines):
		return ReasonNoOrderLines
	case errors.Is(err, ErrNoDecisions), errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrRetailerNotFound):
		return ReasonRetailerNotFound
	case errors.Is(err, ErrStateTerminal):
		return ReasonStateTerminal
	case errors.Is(err, ErrConcurrencyConflict):
		return ReasonConcurrencyConflict
	}

	var (
		itemErr  *ItemNotFoundError
		prodErr  *ProductNotFoundError
		stockErr *InsufficientStockError
		invErr   *InventoryUpdateError
	)
	switch {
	case errors.As(err, &itemErr):
		return ReasonOrderItemNotFound
	case errors.As(err, &prodErr):
		return ReasonProductNotFound
	case errors.As(err, &stockErr):
		return ReasonInsufficientStock
	case errors.As(err, &invErr):
		return ReasonInventoryUpdateFailed
	}
	return ""
}
