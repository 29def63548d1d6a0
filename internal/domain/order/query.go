package order

import (
	"context"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/retailhub/order-service/internal/domain/product"
	"github.com/retailhub/order-service/internal/domain/user"
)

// NameFilterMode selects where name-substring filters apply relative to
// pagination. Under NameFilterPostPage names are resolved for the already
// paginated window, so name filters shrink a page without changing the
// reported page count. NameFilterPrePage applies them before pagination so
// the page count reflects the name filters too.
type NameFilterMode int

const (
	NameFilterPostPage NameFilterMode = iota
	NameFilterPrePage
)

// NameFilter holds the optional case-insensitive name-substring filters.
// Retailer matches against the order's retailer; manufacturer and product
// match when any line matches.
type NameFilter struct {
	RetailerName     string
	ManufacturerName string
	ProductName      string
}

func (f NameFilter) empty() bool {
	return f.RetailerName == "" && f.ManufacturerName == "" && f.ProductName == ""
}

// QueryRequest is the full input of the order query engine. Page is
// 1-indexed; the engine assumes Page and PageSize are positive.
type QueryRequest struct {
	Filter   Filter
	Names    NameFilter
	Page     int
	PageSize int
}

// Ref is an identity or product reference enriched with its display name.
// Resolved is false when the lookup had no record for the ID, letting callers
// distinguish "not found" from an entity legitimately named the empty string.
type Ref struct {
	ID       string
	Name     string
	Resolved bool
}

// LineView is the enriched projection of one order line.
type LineView struct {
	ID           string
	Product      Ref
	Manufacturer Ref
	Quantity     int
	UnitPrice    decimal.Decimal
	Status       LineStatus
}

// View is the enriched projection of one order.
type View struct {
	ID                 string
	Retailer           Ref
	FulfillmentAgentID string
	Status             Status
	TotalPrice         decimal.Decimal
	PaymentMode        PaymentMode
	PaymentCurrency    string
	ShippingCost       decimal.Decimal
	ShippingCurrency   string
	ShippingAddress    string
	Lines              []LineView
}

// QueryResult is a page of enriched orders. TotalOrders and TotalPages count
// matches of the structural filters; under NameFilterPostPage the name filters
// can shrink Orders below a full page without affecting either total.
type QueryResult struct {
	Orders      []View
	TotalOrders int
	TotalPages  int
}

// QueryEngine builds filtered, paginated, enriched order projections.
type QueryEngine struct {
	store     Store
	inventory product.InventoryClient
	users     user.Directory
	mode      NameFilterMode
}

// NewQueryEngine creates a QueryEngine using the given name-filter mode.
func NewQueryEngine(store Store, inventory product.InventoryClient, users user.Directory, mode NameFilterMode) *QueryEngine {
	return &QueryEngine{
		store:     store,
		inventory: inventory,
		users:     users,
		mode:      mode,
	}
}

// Query applies the structural filters in the store, computes the page count,
// loads the requested window, and enriches it with product and user names
// resolved in one batched lookup each.
func (e *QueryEngine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if e.mode == NameFilterPrePage && !req.Names.empty() {
		return e.queryPrePage(ctx, req)
	}

	orders, total, err := e.store.Filtered(ctx, req.Filter, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	views, err := e.enrich(ctx, orders)
	if err != nil {
		return nil, err
	}
	views = filterByNames(views, req.Names)

	return &QueryResult{
		Orders:      views,
		TotalOrders: total,
		TotalPages:  pageCount(total, req.PageSize),
	}, nil
}

// queryPrePage loads every structural match, enriches it, applies the name
// filters, and paginates the filtered set in memory. Name lookups live in
// external collaborators, so this cannot be pushed into the store's SQL.
func (e *QueryEngine) queryPrePage(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	orders, _, err := e.store.Filtered(ctx, req.Filter, 0, 0)
	if err != nil {
		return nil, err
	}

	views, err := e.enrich(ctx, orders)
	if err != nil {
		return nil, err
	}
	views = filterByNames(views, req.Names)

	total := len(views)
	lo := (req.Page - 1) * req.PageSize
	if lo > total {
		lo = total
	}
	hi := lo + req.PageSize
	if hi > total {
		hi = total
	}

	return &QueryResult{
		Orders:      views[lo:hi],
		TotalOrders: total,
		TotalPages:  pageCount(total, req.PageSize),
	}, nil
}

// enrich resolves display names for every distinct product, retailer, and
// manufacturer ID appearing in the window. Both lookups are batched and run
// concurrently. A failed batch degrades to unresolved refs instead of failing
// the query.
func (e *QueryEngine) enrich(ctx context.Context, orders []Order) ([]View, error) {
	lg := zctx.From(ctx)

	productIDs := make(map[string]struct{})
	userIDs := make(map[string]struct{})
	for _, o := range orders {
		userIDs[o.RetailerID] = struct{}{}
		for _, l := range o.Lines {
			productIDs[l.ProductID] = struct{}{}
			userIDs[l.ManufacturerID] = struct{}{}
		}
	}

	var (
		products map[string]product.Product
		users    map[string]user.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := e.inventory.Products(gctx, keys(productIDs))
		if err != nil {
			lg.Error("query enrichment: product lookup failed", zap.Error(err))
			return nil
		}
		products = m
		return nil
	})
	g.Go(func() error {
		m, err := e.users.ByIDs(gctx, keys(userIDs))
		if err != nil {
			lg.Error("query enrichment: user lookup failed", zap.Error(err))
			return nil
		}
		users = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]View, 0, len(orders))
	for _, o := range orders {
		v := View{
			ID:                 o.ID,
			Retailer:           userRef(users, o.RetailerID),
			FulfillmentAgentID: o.FulfillmentAgentID,
			Status:             o.Status,
			TotalPrice:         o.TotalPrice,
			PaymentMode:        o.PaymentMode,
			PaymentCurrency:    o.PaymentCurrency,
			ShippingCost:       o.ShippingCost,
			ShippingCurrency:   o.ShippingCurrency,
			ShippingAddress:    o.ShippingAddress,
		}
		for _, l := range o.Lines {
			v.Lines = append(v.Lines, LineView{
				ID:           l.ID,
				Product:      productRef(products, l.ProductID),
				Manufacturer: userRef(users, l.ManufacturerID),
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice,
				Status:       l.Status,
			})
		}
		views = append(views, v)
	}
	return views, nil
}

// filterByNames keeps the views matching every set name filter.
func filterByNames(views []View, f NameFilter) []View {
	if f.empty() {
		return views
	}
	out := views[:0]
	for _, v := range views {
		if f.RetailerName != "" && !containsFold(v.Retailer.Name, f.RetailerName) {
			continue
		}
		if f.ManufacturerName != "" && !anyLine(v, func(l LineView) bool {
			return containsFold(l.Manufacturer.Name, f.ManufacturerName)
		}) {
			continue
		}
		if f.ProductName != "" && !anyLine(v, func(l LineView) bool {
			return containsFold(l.Product.Name, f.ProductName)
		}) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func anyLine(v View, match func(LineView) bool) bool {
	for _, l := range v.Lines {
		if match(l) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func pageCount(total, pageSize int) int {
	if pageSize <= 0 {
		if total > 0 {
			return 1
		}
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func userRef(users map[string]user.User, id string) Ref {
	if u, ok := users[id]; ok {
		return Ref{ID: id, Name: u.Name, Resolved: true}
	}
	return Ref{ID: id}
}

func productRef(products map[string]product.Product, id string) Ref {
	if p, ok := products[id]; ok {
		return Ref{ID: id, Name: p.Name, Resolved: true}
	}
	return Ref{ID: id}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
