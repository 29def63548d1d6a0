package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailhub/order-service/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, retailer_id, fulfillment_agent_id, status, total_price,
		payment_mode, payment_currency, shipping_cost, shipping_currency, shipping_address,
		version, created_by, created_on)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)`

	createOrderLineSQL = `INSERT INTO order_lines (id, order_id, product_id, manufacturer_id,
		quantity, unit_price, status, created_by, created_on)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	orderColumns = `id, retailer_id, fulfillment_agent_id, status, total_price,
		payment_mode, payment_currency, shipping_cost, shipping_currency, shipping_address,
		version, created_by, created_on, updated_by, updated_on`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lineColumns = `id, order_id, product_id, manufacturer_id, quantity, unit_price, status,
		created_by, created_on, updated_by, updated_on`

	getLinesByOrderSQL = `SELECT ` + lineColumns + ` FROM order_lines
		WHERE order_id = $1 ORDER BY created_on, id`

	getLinesByOrdersSQL = `SELECT ` + lineColumns + ` FROM order_lines
		WHERE order_id = ANY($1) ORDER BY created_on, id`

	updateOrderSQL = `UPDATE orders
		SET status = $2, fulfillment_agent_id = $3, updated_by = $4, updated_on = $5,
			version = version + 1
		WHERE id = $1 AND version = $6`

	updateOrderStatusSQL = `UPDATE orders
		SET status = $2, updated_on = now(), version = version + 1
		WHERE id = $1 AND version = $3
		RETURNING version`

	updateLineStatusSQL = `UPDATE order_lines SET status = $2, updated_on = now() WHERE id = $1`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	// Structural filters only; empty parameters disable the corresponding
	// predicate. Name filters never reach the store: display names live in
	// external collaborators.
	filteredOrdersWhereSQL = ` FROM orders o
		WHERE ($1 = '' OR o.id = $1)
		  AND ($2 = '' OR o.retailer_id = $2)
		  AND ($3 = '' OR o.fulfillment_agent_id = $3)
		  AND ($4 = '' OR o.status = $4)
		  AND ($5 = '' OR EXISTS (SELECT 1 FROM order_lines l WHERE l.order_id = o.id AND l.manufacturer_id = $5))
		  AND ($6 = '' OR EXISTS (SELECT 1 FROM order_lines l WHERE l.order_id = o.id AND l.status = $6))`

	countFilteredOrdersSQL = `SELECT count(*)` + filteredOrdersWhereSQL

	filteredOrdersSQL = `SELECT ` + prefixedOrderColumns + filteredOrdersWhereSQL +
		` ORDER BY o.created_on DESC, o.id`

	filteredOrdersPageSQL = filteredOrdersSQL + ` LIMIT $7 OFFSET $8`

	prefixedOrderColumns = `o.id, o.retailer_id, o.fulfillment_agent_id, o.status, o.total_price,
		o.payment_mode, o.payment_currency, o.shipping_cost, o.shipping_currency, o.shipping_address,
		o.version, o.created_by, o.created_on, o.updated_by, o.updated_on`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts the order and its lines in a single transaction.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.RetailerID, o.FulfillmentAgentID, o.Status, o.TotalPrice,
			o.PaymentMode, o.PaymentCurrency, o.ShippingCost, o.ShippingCurrency, o.ShippingAddress,
			o.CreatedBy, o.CreatedOn,
		)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range o.Lines {
			batch.Queue(createOrderLineSQL,
				l.ID, o.ID, l.ProductID, l.ManufacturerID,
				l.Quantity, l.UnitPrice, l.Status, l.CreatedBy, l.CreatedOn,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	o.Version = 1
	return nil
}

// ByID returns the order without its lines.
func (s *OrderStore) ByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// LinesByOrder returns the order's lines in creation order.
func (s *OrderStore) LinesByOrder(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := s.pool.Query(ctx, getLinesByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanLine)
}

// Update persists the mutable order fields with a compare-and-swap on the
// version column.
func (s *OrderStore) Update(ctx context.Context, o *order.Order) error {
	tag, err := s.pool.Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.FulfillmentAgentID, o.UpdatedBy, o.UpdatedOn, o.Version,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, o.ID)
	}
	o.Version++
	return nil
}

// UpdateStatus performs the targeted status-only update with the same version
// compare-and-swap, returning the new version.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status order.Status, version int64) (int64, error) {
	var newVersion int64
	err := s.pool.QueryRow(ctx, updateOrderStatusSQL, orderID, status, version).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, s.missOrConflict(ctx, orderID)
		}
		return 0, fmt.Errorf("updating status of order %q: %w", orderID, err)
	}
	return newVersion, nil
}

// UpdateLineStatus persists a single line's status.
func (s *OrderStore) UpdateLineStatus(ctx context.Context, lineID string, status order.LineStatus) error {
	tag, err := s.pool.Exec(ctx, updateLineStatusSQL, lineID, status)
	if err != nil {
		return fmt.Errorf("updating status of line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.ItemNotFoundError{LineID: lineID}
	}
	return nil
}

// Filtered returns one page of matching orders with their lines, plus the
// total match count. pageSize <= 0 returns every match.
func (s *OrderStore) Filtered(ctx context.Context, f order.Filter, page, pageSize int) ([]order.Order, int, error) {
	args := []any{
		f.OrderID, f.RetailerID, f.FulfillmentAgentID,
		string(f.Status), f.ManufacturerID, string(f.LineStatus),
	}

	var total int
	if err := s.pool.QueryRow(ctx, countFilteredOrdersSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting filtered orders: %w", err)
	}

	query := filteredOrdersSQL
	if pageSize > 0 {
		query = filteredOrdersPageSQL
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying filtered orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning filtered orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, total, nil
	}

	// Attach lines for the whole window in one query.
	ids := make([]string, len(orders))
	index := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = &orders[i]
	}
	lineRows, err := s.pool.Query(ctx, getLinesByOrdersSQL, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("querying lines for filtered orders: %w", err)
	}
	lines, err := pgx.CollectRows(lineRows, scanLine)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning lines for filtered orders: %w", err)
	}
	for _, l := range lines {
		if o, ok := index[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}

	return orders, total, nil
}

// missOrConflict distinguishes a vanished row from a lost version race.
func (s *OrderStore) missOrConflict(ctx context.Context, orderID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, orderExistsSQL, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", orderID, err)
	}
	if exists {
		return order.ErrConcurrencyConflict
	}
	return order.ErrNotFound
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		updatedOn *time.Time
	)
	err := row.Scan(
		&o.ID, &o.RetailerID, &o.FulfillmentAgentID, &o.Status, &o.TotalPrice,
		&o.PaymentMode, &o.PaymentCurrency, &o.ShippingCost, &o.ShippingCurrency, &o.ShippingAddress,
		&o.Version, &o.CreatedBy, &o.CreatedOn, &o.UpdatedBy, &updatedOn,
	)
	if updatedOn != nil {
		o.UpdatedOn = *updatedOn
	}
	return o, err
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l         order.Line
		updatedOn *time.Time
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.ManufacturerID, &l.Quantity, &l.UnitPrice, &l.Status,
		&l.CreatedBy, &l.CreatedOn, &l.UpdatedBy, &updatedOn,
	)
	if updatedOn != nil {
		l.UpdatedOn = *updatedOn
	}
	return l, err
}
