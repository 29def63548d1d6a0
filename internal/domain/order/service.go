package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/retailhub/order-service/internal/domain/product"
	"github.com/retailhub/order-service/internal/domain/user"
)

// CartDeactivator is the slice of the cart store the order service needs:
// marking a cart line consumed once an order has been created from it.
type CartDeactivator interface {
	Deactivate(ctx context.Context, cartLineID string) error
}

// Notifier publishes best-effort order events. Failures are logged by the
// caller and never change the outcome of the operation that triggered them.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, o *Order) error
}

// FailurePolicy decides what happens to inventory decrements already applied
// when a later line in the same acceptance batch hits a hard error.
type FailurePolicy int

const (
	// LeaveAppliedEffects keeps earlier decrements in place on a hard error:
	// the loop stops on first error with no unwinding.
	LeaveAppliedEffects FailurePolicy = iota

	// UndoAppliedEffects attempts a best-effort re-add of every decrement
	// applied earlier in the failed batch. Undo failures are logged and
	// swallowed.
	UndoAppliedEffects
)

// Config carries the non-dependency knobs of the order service.
type Config struct {
	// FulfillmentAgentID is assigned to an order when it transitions to
	// Shipped.
	FulfillmentAgentID string

	// OnHardFailure selects the partial-failure policy for the acceptance
	// workflow. Defaults to LeaveAppliedEffects.
	OnHardFailure FailurePolicy
}

// Service implements order creation, the generic status update path, and the
// acceptance workflow.
type Service struct {
	store     Store
	carts     CartDeactivator
	inventory product.InventoryClient
	users     user.Directory
	notifier  Notifier
	cfg       Config
}

// NewService creates an order Service with the required dependencies.
func NewService(
	store Store,
	carts CartDeactivator,
	inventory product.InventoryClient,
	users user.Directory,
	notifier Notifier,
	cfg Config,
) *Service {
	return &Service{
		store:     store,
		carts:     carts,
		inventory: inventory,
		users:     users,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// CreateLine is one requested order line together with the cart line it was
// built from.
type CreateLine struct {
	CartLineID     string
	ProductID      string
	ManufacturerID string
	Quantity       int
	UnitPrice      decimal.Decimal
}

// CreateRequest holds the input for creating an order from a cart.
type CreateRequest struct {
	RetailerID       string
	PaymentMode      PaymentMode
	PaymentCurrency  string
	ShippingCost     decimal.Decimal
	ShippingCurrency string
	ShippingAddress  string
	Lines            []CreateLine
}

// Create converts a batch of cart lines into a submitted order. The order
// insert and the per-cart-line deactivations are not atomic: a failure after
// the insert leaves the order in place with one or more cart lines still
// active, and the error tells the caller which deactivation failed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, errors.Wrap(ErrValidation, "at least one line is required")
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, errors.Wrapf(ErrValidation, "quantity must be positive for product %s", l.ProductID)
		}
	}

	retailers, err := s.users.ByIDs(ctx, []string{req.RetailerID})
	if err != nil {
		return nil, errors.Wrap(err, "resolve retailer")
	}
	if _, ok := retailers[req.RetailerID]; !ok {
		return nil, ErrRetailerNotFound
	}

	now := time.Now().UTC()
	o := &Order{
		ID:               uuid.New().String(),
		RetailerID:       req.RetailerID,
		Status:           StatusSubmitted,
		PaymentMode:      req.PaymentMode,
		PaymentCurrency:  req.PaymentCurrency,
		ShippingCost:     req.ShippingCost,
		ShippingCurrency: req.ShippingCurrency,
		ShippingAddress:  req.ShippingAddress,
		CreatedBy:        req.RetailerID,
		CreatedOn:        now,
	}

	total := decimal.Zero
	for _, l := range req.Lines {
		line := Line{
			ID:             uuid.New().String(),
			OrderID:        o.ID,
			ProductID:      l.ProductID,
			ManufacturerID: l.ManufacturerID,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			Status:         LineSubmitted,
			CreatedBy:      req.RetailerID,
			CreatedOn:      now,
		}
		total = total.Add(line.Subtotal())
		o.Lines = append(o.Lines, line)
	}
	o.TotalPrice = total.Round(2)

	if err := s.store.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The cart line is the source of truth for "this stock was reserved for
	// this buyer": a missing one fails the whole creation even though the
	// order row already exists.
	for _, l := range req.Lines {
		if err := s.carts.Deactivate(ctx, l.CartLineID); err != nil {
			return nil, errors.Wrapf(err, "deactivate cart line %s", l.CartLineID)
		}
	}

	return o, nil
}

// UpdateStatus is the generic order-update path used for the post-acceptance
// lifecycle (in progress, shipped, delivered). Transitioning to Shipped
// assigns the configured fulfillment agent.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, actor string) (*Order, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(ErrValidation, "unknown order status %q", status)
	}

	o, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, ErrStateTerminal
	}

	o.Status = status
	if status == StatusShipped {
		o.FulfillmentAgentID = s.cfg.FulfillmentAgentID
	}
	o.UpdatedBy = actor
	o.UpdatedOn = time.Now().UTC()

	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Decision is one per-line accept/reject choice in an acceptance batch.
type Decision struct {
	LineID string
	Accept bool
}

// AcceptResult reports the aggregate outcome of an acceptance pass.
type AcceptResult struct {
	OrderID string
	Status  Status
}

// appliedEffect records one inventory decrement applied during the line loop,
// in application order.
type appliedEffect struct {
	productID string
	quantity  int
}

// AcceptReject processes a batch of per-line accept/reject decisions for one
// order. Lines are handled strictly sequentially in input order; each line's
// new status is persisted immediately. A hard error stops the loop and, under
// the default policy, leaves the effects of earlier lines in place.
//
// After a clean pass the aggregate order status is derived: any rejection in
// the batch rejects the whole order and re-adds the stock of every accepted
// line (previous passes included) back to inventory; otherwise the order is
// accepted. Restoration failures and notification failures are logged and
// swallowed.
//
// Decisions that restate a line's existing status are no-ops: re-running an
// all-accept batch on an already accepted order does not decrement stock a
// second time.
func (s *Service) AcceptReject(ctx context.Context, orderID string, decisions []Decision) (*AcceptResult, error) {
	lg := zctx.From(ctx)

	if len(decisions) == 0 {
		return nil, ErrNoDecisions
	}

	o, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.store.LinesByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load order lines")
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	byID := make(map[string]*Line, len(lines))
	for i := range lines {
		byID[lines[i].ID] = &lines[i]
	}

	// Lines accepted in earlier passes participate in restoration if this
	// pass rejects anything.
	var previouslyAccepted []*Line
	for i := range lines {
		if lines[i].Status == LineAccepted {
			previouslyAccepted = append(previouslyAccepted, &lines[i])
		}
	}

	var (
		newlyAccepted []*Line
		anyRejected   bool
		applied       []appliedEffect
	)

	for _, d := range decisions {
		line, ok := byID[d.LineID]
		if !ok {
			s.undoOnHardFailure(ctx, applied)
			return nil, &ItemNotFoundError{LineID: d.LineID}
		}

		p, err := s.inventory.Product(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				s.undoOnHardFailure(ctx, applied)
				return nil, &ProductNotFoundError{ProductID: line.ProductID}
			}
			s.undoOnHardFailure(ctx, applied)
			return nil, errors.Wrapf(err, "resolve product %s", line.ProductID)
		}

		if d.Accept {
			if line.Status == LineAccepted {
				// Already accepted in an earlier pass; no second decrement.
				continue
			}
			if p.Quantity < line.Quantity {
				s.undoOnHardFailure(ctx, applied)
				return nil, &InsufficientStockError{
					ProductID: line.ProductID,
					Available: p.Quantity,
					Requested: line.Quantity,
				}
			}
			if err := s.inventory.SetQuantity(ctx, line.ProductID, p.Quantity-line.Quantity); err != nil {
				s.undoOnHardFailure(ctx, applied)
				return nil, &InventoryUpdateError{ProductID: line.ProductID, Err: err}
			}
			applied = append(applied, appliedEffect{productID: line.ProductID, quantity: line.Quantity})
			line.Status = LineAccepted
			newlyAccepted = append(newlyAccepted, line)
		} else {
			if line.Status == LineRejected {
				continue
			}
			line.Status = LineRejected
			anyRejected = true
		}

		if err := s.store.UpdateLineStatus(ctx, line.ID, line.Status); err != nil {
			s.undoOnHardFailure(ctx, applied)
			return nil, errors.Wrapf(err, "persist status for line %s", line.ID)
		}
	}

	switch {
	case anyRejected:
		next := LineRejected.OrderStatus()
		version, err := s.store.UpdateStatus(ctx, o.ID, next, o.Version)
		if err != nil {
			return nil, err
		}
		o.Version = version
		o.Status = next

		// One rejection undoes every acceptance for this order, old and new.
		s.restoreAccepted(ctx, append(previouslyAccepted, newlyAccepted...))
	case len(newlyAccepted) > 0:
		next := LineAccepted.OrderStatus()
		version, err := s.store.UpdateStatus(ctx, o.ID, next, o.Version)
		if err != nil {
			return nil, err
		}
		o.Version = version
		o.Status = next
	default:
		// Every decision restated an existing status; nothing to persist.
		lg.Debug("acceptance pass was a no-op", zap.String("order_id", o.ID))
	}

	if err := s.notifier.OrderStatusChanged(ctx, o); err != nil {
		lg.Error("order status notification failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return &AcceptResult{OrderID: o.ID, Status: o.Status}, nil
}

// restoreAccepted re-adds each line's quantity to its product's stock. This is
// best-effort compensation: a failed restore is logged and skipped so it can
// never mask the already persisted order status.
func (s *Service) restoreAccepted(ctx context.Context, lines []*Line) {
	lg := zctx.From(ctx)
	for _, line := range lines {
		p, err := s.inventory.Product(ctx, line.ProductID)
		if err != nil {
			lg.Error("inventory restore: product lookup failed",
				zap.String("product_id", line.ProductID),
				zap.Error(err),
			)
			continue
		}
		if err := s.inventory.SetQuantity(ctx, line.ProductID, p.Quantity+line.Quantity); err != nil {
			lg.Error("inventory restore failed",
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

// undoOnHardFailure reverses decrements applied earlier in a failed batch when
// the service is configured with UndoAppliedEffects. Under the default policy
// it does nothing.
func (s *Service) undoOnHardFailure(ctx context.Context, applied []appliedEffect) {
	if s.cfg.OnHardFailure != UndoAppliedEffects {
		return
	}
	lg := zctx.From(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		e := applied[i]
		p, err := s.inventory.Product(ctx, e.productID)
		if err != nil {
			lg.Error("undo: product lookup failed",
				zap.String("product_id", e.productID),
				zap.Error(err),
			)
			continue
		}
		if err := s.inventory.SetQuantity(ctx, e.productID, p.Quantity+e.quantity); err != nil {
			lg.Error("undo: inventory re-add failed",
				zap.String("product_id", e.productID),
				zap.Error(err),
			)
		}
	}
}
