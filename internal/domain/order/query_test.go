package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhub/order-service/internal/domain/user"
)

func queryFixture() ([]Order, *mockInventory, *mockDirectory) {
	price := decimal.RequireFromString("10.00")
	orders := []Order{
		{
			ID: "o1", RetailerID: "r1", Status: StatusSubmitted, TotalPrice: price,
			Lines: []Line{
				{ID: "l1", OrderID: "o1", ProductID: "p1", ManufacturerID: "m1", Quantity: 1, UnitPrice: price, Status: LineSubmitted},
			},
		},
		{
			ID: "o2", RetailerID: "r2", Status: StatusAccepted, TotalPrice: price,
			Lines: []Line{
				{ID: "l2", OrderID: "o2", ProductID: "p2", ManufacturerID: "m2", Quantity: 2, UnitPrice: price, Status: LineAccepted},
			},
		},
		{
			ID: "o3", RetailerID: "r1", Status: StatusAccepted, TotalPrice: price,
			Lines: []Line{
				{ID: "l3", OrderID: "o3", ProductID: "p2", ManufacturerID: "m1", Quantity: 1, UnitPrice: price, Status: LineAccepted},
			},
		},
	}

	inv := newMockInventory()
	inv.stock["p1"] = 5
	inv.stock["p2"] = 5
	inv.name["p1"] = "Oat Crackers"
	inv.name["p2"] = "Sparkling Water"

	dir := &mockDirectory{users: map[string]user.User{
		"r1": {ID: "r1", Name: "Harbor Street Grocers"},
		"r2": {ID: "r2", Name: "Lakeview Corner Market"},
		"m1": {ID: "m1", Name: "Cascade Foods"},
		"m2": {ID: "m2", Name: "Bluefield Dairy"},
	}}
	return orders, inv, dir
}

func TestQuery_EnrichesNames(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	engine := NewQueryEngine(store, inv, dir, NameFilterPostPage)

	res, err := engine.Query(context.Background(), QueryRequest{Page: 1, PageSize: 10})

	require.NoError(t, err)
	require.Len(t, res.Orders, 3)
	assert.Equal(t, 3, res.TotalOrders)
	assert.Equal(t, 1, res.TotalPages)

	first := res.Orders[0]
	assert.Equal(t, Ref{ID: "r1", Name: "Harbor Street Grocers", Resolved: true}, first.Retailer)
	require.Len(t, first.Lines, 1)
	assert.Equal(t, Ref{ID: "p1", Name: "Oat Crackers", Resolved: true}, first.Lines[0].Product)
	assert.Equal(t, Ref{ID: "m1", Name: "Cascade Foods", Resolved: true}, first.Lines[0].Manufacturer)
}

func TestQuery_UnresolvedRefsDegradeGracefully(t *testing.T) {
	orders, inv, _ := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	// The directory knows nobody; product p1 is gone from inventory.
	inv.missing["p1"] = true
	engine := NewQueryEngine(store, inv, &mockDirectory{users: map[string]user.User{}}, NameFilterPostPage)

	res, err := engine.Query(context.Background(), QueryRequest{Page: 1, PageSize: 10})

	require.NoError(t, err)
	first := res.Orders[0]
	assert.Equal(t, Ref{ID: "r1"}, first.Retailer)
	assert.False(t, first.Lines[0].Product.Resolved)
	assert.Equal(t, "p1", first.Lines[0].Product.ID)
}

func TestQuery_LookupFailureDoesNotFailQuery(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	dir.err = user.ErrNotFound
	engine := NewQueryEngine(store, inv, dir, NameFilterPostPage)

	res, err := engine.Query(context.Background(), QueryRequest{Page: 1, PageSize: 10})

	require.NoError(t, err)
	assert.False(t, res.Orders[0].Retailer.Resolved)
	assert.True(t, res.Orders[0].Lines[0].Product.Resolved, "product lookup unaffected")
}

func TestQuery_PostPageNameFilterShrinksPageOnly(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	engine := NewQueryEngine(store, inv, dir, NameFilterPostPage)

	res, err := engine.Query(context.Background(), QueryRequest{
		Names:    NameFilter{RetailerName: "harbor"},
		Page:     1,
		PageSize: 2,
	})

	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "o1", res.Orders[0].ID)
	// Totals still reflect the structural matches, not the name filter.
	assert.Equal(t, 3, res.TotalOrders)
	assert.Equal(t, 2, res.TotalPages)
	// Pagination was pushed into the store.
	assert.Equal(t, 1, store.lastPage)
	assert.Equal(t, 2, store.lastPageSize)
}

func TestQuery_PrePageNameFilterPaginatesFilteredSet(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	engine := NewQueryEngine(store, inv, dir, NameFilterPrePage)

	res, err := engine.Query(context.Background(), QueryRequest{
		Names:    NameFilter{RetailerName: "harbor"},
		Page:     1,
		PageSize: 2,
	})

	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, 1, res.TotalOrders)
	assert.Equal(t, 1, res.TotalPages)
	// The store was asked for everything; pagination happened in memory.
	assert.Equal(t, 0, store.lastPageSize)
}

func TestQuery_PrePageOutOfRangePageIsEmpty(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	engine := NewQueryEngine(store, inv, dir, NameFilterPrePage)

	res, err := engine.Query(context.Background(), QueryRequest{
		Names:    NameFilter{RetailerName: "market"},
		Page:     5,
		PageSize: 2,
	})

	require.NoError(t, err)
	assert.Empty(t, res.Orders)
	assert.Equal(t, 1, res.TotalOrders)
}

func TestQuery_ManufacturerNameMatchesAnyLine(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	engine := NewQueryEngine(store, inv, dir, NameFilterPostPage)

	res, err := engine.Query(context.Background(), QueryRequest{
		Names:    NameFilter{ManufacturerName: "cascade"},
		Page:     1,
		PageSize: 10,
	})

	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, "o1", res.Orders[0].ID)
	assert.Equal(t, "o3", res.Orders[1].ID)
}

func TestQuery_ProductNameFilter(t *testing.T) {
	orders, inv, dir := queryFixture()
	store := newMockStore(nil)
	store.filteredOrders = orders
	store.filteredTotal = 3
	engine := NewQueryEngine(store, inv, dir, NameFilterPostPage)

	res, err := engine.Query(context.Background(), QueryRequest{
		Names:    NameFilter{ProductName: "sparkling"},
		Page:     1,
		PageSize: 10,
	})

	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
}

func TestQuery_StructuralFilterPassedThrough(t *testing.T) {
	_, inv, dir := queryFixture()
	store := newMockStore(nil)
	engine := NewQueryEngine(store, inv, dir, NameFilterPostPage)

	f := Filter{RetailerID: "r1", Status: StatusAccepted, ManufacturerID: "m1"}
	_, err := engine.Query(context.Background(), QueryRequest{Filter: f, Page: 2, PageSize: 5})

	require.NoError(t, err)
	assert.Equal(t, f, store.lastFilter)
	assert.Equal(t, 2, store.lastPage)
	assert.Equal(t, 5, store.lastPageSize)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, pageCount(0, 10))
	assert.Equal(t, 1, pageCount(1, 10))
	assert.Equal(t, 1, pageCount(10, 10))
	assert.Equal(t, 2, pageCount(11, 10))
	assert.Equal(t, 1, pageCount(5, 0))
	assert.Equal(t, 0, pageCount(0, 0))
}
