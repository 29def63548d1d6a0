package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailhub/order-service/internal/domain/user"
)

const getUsersByIDsSQL = `SELECT id, name, phone, address, login_id
	FROM users WHERE id = ANY($1)`

var _ user.Directory = (*UserDirectory)(nil)

// UserDirectory implements user.Directory backed by PostgreSQL.
type UserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory returns a UserDirectory that uses the given pool.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// ByIDs resolves the given user IDs in one query. Unknown IDs are absent from
// the result.
func (d *UserDirectory) ByIDs(ctx context.Context, ids []string) (map[string]user.User, error) {
	if len(ids) == 0 {
		return map[string]user.User{}, nil
	}

	rows, err := d.pool.Query(ctx, getUsersByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting users by ids: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		var u user.User
		err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Address, &u.LoginID)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}

	out := make(map[string]user.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
