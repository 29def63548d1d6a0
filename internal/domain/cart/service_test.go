package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhub/order-service/internal/domain/product"
	"github.com/retailhub/order-service/internal/domain/user"
)

// --- Mock implementations ---

type mockStore struct {
	created     *Line
	createErr   error
	active      []Line
	activeErr   error
	deactivated []string
}

func (m *mockStore) Create(_ context.Context, l *Line) error {
	m.created = l
	return m.createErr
}

func (m *mockStore) ActiveByRetailer(_ context.Context, _ string) ([]Line, error) {
	return m.active, m.activeErr
}

func (m *mockStore) ByID(_ context.Context, id string) (*Line, error) {
	for i := range m.active {
		if m.active[i].ID == id {
			return &m.active[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockStore) Deactivate(_ context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockDirectory struct {
	users map[string]user.User
	err   error
}

func (m *mockDirectory) ByIDs(_ context.Context, ids []string) (map[string]user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]user.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type mockInventory struct {
	products map[string]product.Product
	err      error
}

func (m *mockInventory) Product(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockInventory) Products(_ context.Context, ids []string) (map[string]product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]product.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockInventory) SetQuantity(_ context.Context, _ string, _ int) error {
	return nil
}

// --- Helpers ---

func newTestService(store *mockStore, inv *mockInventory) *Service {
	dir := &mockDirectory{users: map[string]user.User{
		"r1": {ID: "r1", Name: "Harbor Street Grocers", Phone: "555-0132", Address: "118 Harbor St"},
	}}
	return NewService(store, dir, inv)
}

func activeLine(id, productID string, qty int) Line {
	return Line{
		ID:         id,
		RetailerID: "r1",
		ProductID:  productID,
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString("4.50"),
		Active:     true,
	}
}

// --- Tests ---

func TestAdd_InvalidQuantity(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockInventory{})

	_, err := svc.Add(context.Background(), AddRequest{RetailerID: "r1", ProductID: "p1", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAdd_UnknownRetailer(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockInventory{})

	_, err := svc.Add(context.Background(), AddRequest{RetailerID: "nobody", ProductID: "p1", Quantity: 1})
	require.ErrorIs(t, err, ErrRetailerNotFound)
}

func TestAdd_CreatesActiveLine(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockInventory{})

	l, err := svc.Add(context.Background(), AddRequest{
		RetailerID:     "r1",
		ProductID:      "p1",
		ManufacturerID: "m1",
		Quantity:       3,
		UnitPrice:      decimal.RequireFromString("4.50"),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.True(t, l.Active)
	assert.Equal(t, "r1", l.CreatedBy)
	require.NotNil(t, store.created)
	assert.Equal(t, l, store.created)
}

func TestAdd_StoreError(t *testing.T) {
	store := &mockStore{createErr: errors.New("db write failed")}
	svc := newTestService(store, &mockInventory{})

	_, err := svc.Add(context.Background(), AddRequest{RetailerID: "r1", ProductID: "p1", Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create cart line")
}

func TestRemove_DelegatesToStore(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store, &mockInventory{})

	require.NoError(t, svc.Remove(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, store.deactivated)
}

func TestEnrichedByRetailer_Empty(t *testing.T) {
	svc := newTestService(&mockStore{}, &mockInventory{})

	views, err := svc.EnrichedByRetailer(context.Background(), "r1")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestEnrichedByRetailer_Enriches(t *testing.T) {
	store := &mockStore{active: []Line{
		activeLine("c1", "p1", 2),
		activeLine("c2", "p2", 10),
	}}
	inv := &mockInventory{products: map[string]product.Product{
		"p1": {ID: "p1", Name: "Oat Crackers", Quantity: 5},
		"p2": {ID: "p2", Name: "Sparkling Water", Quantity: 4},
	}}
	svc := newTestService(store, inv)

	views, err := svc.EnrichedByRetailer(context.Background(), "r1")

	require.NoError(t, err)
	require.Len(t, views, 2)

	first := views[0]
	assert.Equal(t, "Harbor Street Grocers", first.RetailerName)
	assert.Equal(t, "555-0132", first.Phone)
	assert.Equal(t, "Oat Crackers", first.ProductName)
	assert.True(t, first.ProductResolved)
	assert.False(t, first.OutOfStock)
	assert.True(t, decimal.RequireFromString("9.00").Equal(first.LineTotal))

	second := views[1]
	assert.True(t, second.OutOfStock, "requested 10 with 4 in stock")
}

func TestEnrichedByRetailer_UnknownProductUnresolved(t *testing.T) {
	store := &mockStore{active: []Line{activeLine("c1", "ghost", 1)}}
	svc := newTestService(store, &mockInventory{})

	views, err := svc.EnrichedByRetailer(context.Background(), "r1")

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].ProductResolved)
	assert.Empty(t, views[0].ProductName)
	assert.False(t, views[0].OutOfStock)
}

func TestEnrichedByRetailer_LookupFailureDegrades(t *testing.T) {
	store := &mockStore{active: []Line{activeLine("c1", "p1", 1)}}
	inv := &mockInventory{err: errors.New("inventory unreachable")}
	svc := newTestService(store, inv)

	views, err := svc.EnrichedByRetailer(context.Background(), "r1")

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].ProductResolved)
	assert.Equal(t, "Harbor Street Grocers", views[0].RetailerName, "retailer lookup unaffected")
}
