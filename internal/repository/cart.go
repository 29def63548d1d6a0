package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailhub/order-service/internal/domain/cart"
)

const (
	createCartLineSQL = `INSERT INTO cart_lines (id, retailer_id, product_id, manufacturer_id,
		quantity, unit_price, active, created_by, created_on)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	cartLineColumns = `id, retailer_id, product_id, manufacturer_id, quantity, unit_price, active,
		created_by, created_on, updated_by, updated_on`

	getCartLineByIDSQL = `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE id = $1`

	getActiveCartLinesSQL = `SELECT ` + cartLineColumns + ` FROM cart_lines
		WHERE retailer_id = $1 AND active ORDER BY created_on, id`

	// Matches active and inactive rows alike so a repeated deactivation stays
	// a successful no-op.
	deactivateCartLineSQL = `UPDATE cart_lines SET active = FALSE, updated_on = $2 WHERE id = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Create inserts a new cart line.
func (s *CartStore) Create(ctx context.Context, l *cart.Line) error {
	_, err := s.pool.Exec(ctx, createCartLineSQL,
		l.ID, l.RetailerID, l.ProductID, l.ManufacturerID,
		l.Quantity, l.UnitPrice, l.Active, l.CreatedBy, l.CreatedOn,
	)
	if err != nil {
		return fmt.Errorf("creating cart line %q: %w", l.ID, err)
	}
	return nil
}

// ActiveByRetailer returns the retailer's active cart lines, oldest first.
func (s *CartStore) ActiveByRetailer(ctx context.Context, retailerID string) ([]cart.Line, error) {
	rows, err := s.pool.Query(ctx, getActiveCartLinesSQL, retailerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart lines for retailer %q: %w", retailerID, err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// ByID returns a single cart line regardless of its active flag.
func (s *CartStore) ByID(ctx context.Context, id string) (*cart.Line, error) {
	rows, err := s.pool.Query(ctx, getCartLineByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart line %q: %w", id, err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart line %q: %w", id, err)
	}
	return &l, nil
}

// Deactivate clears the active flag. A missing row is cart.ErrNotFound; an
// already-inactive row is updated again without complaint.
func (s *CartStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deactivateCartLineSQL, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivating cart line %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l         cart.Line
		updatedOn *time.Time
	)
	err := row.Scan(
		&l.ID, &l.RetailerID, &l.ProductID, &l.ManufacturerID, &l.Quantity, &l.UnitPrice, &l.Active,
		&l.CreatedBy, &l.CreatedOn, &l.UpdatedBy, &updatedOn,
	)
	if updatedOn != nil {
		l.UpdatedOn = *updatedOn
	}
	return l, err
}
