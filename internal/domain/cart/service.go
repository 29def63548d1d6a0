package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/retailhub/order-service/internal/domain/product"
	"github.com/retailhub/order-service/internal/domain/user"
)

// AddRequest holds the input for adding an item to a retailer's cart.
type AddRequest struct {
	RetailerID     string
	ProductID      string
	ManufacturerID string
	Quantity       int
	UnitPrice      decimal.Decimal
}

// LineView is a cart line enriched with retailer and product details for
// display.
type LineView struct {
	Line
	RetailerName string
	Phone        string
	Address      string
	ProductName  string
	// ProductResolved is false when the inventory service had no record of
	// the product; OutOfStock is only meaningful when it is true.
	ProductResolved bool
	OutOfStock      bool
	LineTotal       decimal.Decimal
}

// Service wraps the cart store with retailer validation and enrichment.
type Service struct {
	store     Store
	users     user.Directory
	inventory product.InventoryClient
}

// NewService creates a cart Service.
func NewService(store Store, users user.Directory, inventory product.InventoryClient) *Service {
	return &Service{
		store:     store,
		users:     users,
		inventory: inventory,
	}
}

// Add validates the retailer and inserts an active cart line.
func (s *Service) Add(ctx context.Context, req AddRequest) (*Line, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	retailers, err := s.users.ByIDs(ctx, []string{req.RetailerID})
	if err != nil {
		return nil, errors.Wrap(err, "resolve retailer")
	}
	if _, ok := retailers[req.RetailerID]; !ok {
		return nil, ErrRetailerNotFound
	}

	l := &Line{
		ID:             uuid.New().String(),
		RetailerID:     req.RetailerID,
		ProductID:      req.ProductID,
		ManufacturerID: req.ManufacturerID,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		Active:         true,
		CreatedBy:      req.RetailerID,
		CreatedOn:      time.Now().UTC(),
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, errors.Wrap(err, "create cart line")
	}
	return l, nil
}

// ByID returns a single cart line.
func (s *Service) ByID(ctx context.Context, id string) (*Line, error) {
	return s.store.ByID(ctx, id)
}

// Remove deactivates a cart line at the buyer's request.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.Deactivate(ctx, id)
}

// ActiveByRetailer returns the retailer's active cart lines without
// enrichment.
func (s *Service) ActiveByRetailer(ctx context.Context, retailerID string) ([]Line, error) {
	return s.store.ActiveByRetailer(ctx, retailerID)
}

// EnrichedByRetailer returns the retailer's active cart lines decorated with
// retailer identity, product names, and stock availability. Product and user
// lookups are batched over the distinct IDs in the cart and run concurrently;
// a product missing from inventory leaves the view unresolved rather than
// failing the call.
func (s *Service) EnrichedByRetailer(ctx context.Context, retailerID string) ([]LineView, error) {
	lg := zctx.From(ctx)

	lines, err := s.store.ActiveByRetailer(ctx, retailerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	productIDs := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		productIDs[l.ProductID] = struct{}{}
	}
	ids := make([]string, 0, len(productIDs))
	for id := range productIDs {
		ids = append(ids, id)
	}

	var (
		products  map[string]product.Product
		retailers map[string]user.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.inventory.Products(gctx, ids)
		if err != nil {
			lg.Error("cart enrichment: product lookup failed", zap.Error(err))
			return nil
		}
		products = m
		return nil
	})
	g.Go(func() error {
		m, err := s.users.ByIDs(gctx, []string{retailerID})
		if err != nil {
			lg.Error("cart enrichment: retailer lookup failed", zap.Error(err))
			return nil
		}
		retailers = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]LineView, 0, len(lines))
	for _, l := range lines {
		v := LineView{
			Line:      l,
			LineTotal: l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		}
		if r, ok := retailers[retailerID]; ok {
			v.RetailerName = r.Name
			v.Phone = r.Phone
			v.Address = r.Address
		}
		if p, ok := products[l.ProductID]; ok {
			v.ProductName = p.Name
			v.ProductResolved = true
			v.OutOfStock = p.Quantity < l.Quantity
		}
		views = append(views, v)
	}
	return views, nil
}
