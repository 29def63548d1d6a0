package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the aggregate lifecycle state of an order. After an acceptance
// pass it is always derivable from the statuses of the order's lines.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusAccepted, StatusRejected,
		StatusInProgress, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// LineStatus is the review state of a single order line. Lines only ever move
// Submitted -> Accepted or Submitted -> Rejected; the inventory effect of an
// acceptance can still be reversed by the rejection compensation rule, but the
// line status itself is never flipped back within a pass.
type LineStatus string

const (
	LineSubmitted LineStatus = "submitted"
	LineAccepted  LineStatus = "accepted"
	LineRejected  LineStatus = "rejected"
)

// Valid reports whether s is a known line status.
func (s LineStatus) Valid() bool {
	switch s {
	case LineSubmitted, LineAccepted, LineRejected:
		return true
	}
	return false
}

// OrderStatus maps a line status onto the order status sharing its name, for
// the few places that compare across the two lifecycles.
func (s LineStatus) OrderStatus() Status {
	switch s {
	case LineAccepted:
		return StatusAccepted
	case LineRejected:
		return StatusRejected
	default:
		return StatusSubmitted
	}
}

// PaymentMode enumerates the supported payment methods.
type PaymentMode string

const (
	PaymentCash       PaymentMode = "cash"
	PaymentCreditCard PaymentMode = "credit_card"
	PaymentDebitCard  PaymentMode = "debit_card"
	PaymentPayPal     PaymentMode = "paypal"
)

// Order is a retailer's purchase order together with its line items.
type Order struct {
	ID                 string
	RetailerID         string
	FulfillmentAgentID string // empty until the order is shipped
	Status             Status
	TotalPrice         decimal.Decimal
	PaymentMode        PaymentMode
	PaymentCurrency    string
	ShippingCost       decimal.Decimal
	ShippingCurrency   string
	ShippingAddress    string
	Version            int64
	CreatedBy          string
	CreatedOn          time.Time
	UpdatedBy          string
	UpdatedOn          time.Time
	Lines              []Line
}

// Line is one product/quantity/price entry within an order.
type Line struct {
	ID             string
	OrderID        string
	ProductID      string
	ManufacturerID string
	Quantity       int
	UnitPrice      decimal.Decimal
	Status         LineStatus
	CreatedBy      string
	CreatedOn      time.Time
	UpdatedBy      string
	UpdatedOn      time.Time
}

// Subtotal returns quantity * unit price for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Filter selects orders in Store.Filtered. Zero values mean "no constraint";
// all set fields are AND-combined. ManufacturerID and LineStatus match an
// order when any of its lines matches.
type Filter struct {
	OrderID            string
	RetailerID         string
	FulfillmentAgentID string
	Status             Status
	ManufacturerID     string
	LineStatus         LineStatus
}

// Store persists orders and their lines.
type Store interface {
	// Create inserts the order and all of its lines.
	Create(ctx context.Context, o *Order) error

	// ByID returns the order without its lines, or ErrNotFound.
	ByID(ctx context.Context, id string) (*Order, error)

	// LinesByOrder returns all lines belonging to the order, in creation order.
	LinesByOrder(ctx context.Context, orderID string) ([]Line, error)

	// Update persists the mutable order fields (status, fulfillment agent,
	// audit). The write is conditional on o.Version; a lost race surfaces as
	// ErrConcurrencyConflict. On success o.Version is advanced.
	Update(ctx context.Context, o *Order) error

	// UpdateStatus is the targeted status-only update used by the acceptance
	// workflow. Same version semantics as Update; returns the new version.
	UpdateStatus(ctx context.Context, orderID string, status Status, version int64) (int64, error)

	// UpdateLineStatus persists a single line's new status.
	UpdateLineStatus(ctx context.Context, lineID string, status LineStatus) error

	// Filtered returns the page of orders (with lines) matching f in stable
	// order (newest first, ID as tiebreak) plus the total number of matching
	// orders. pageSize <= 0 disables pagination and returns every match.
	Filtered(ctx context.Context, f Filter, page, pageSize int) ([]Order, int, error)
}
