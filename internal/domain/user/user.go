package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a referenced user does not exist.
var ErrNotFound = errors.New("user not found")

// User is the identity view of a platform participant: retailers placing
// orders, manufacturers reviewing them, and fulfillment agents delivering
// them all live in the same directory.
type User struct {
	ID      string
	Name    string
	Phone   string
	Address string
	LoginID string
}

// Directory provides batched identity lookups. Callers are expected to
// collect distinct IDs and resolve them in one call rather than looking up
// users one by one.
type Directory interface {
	// ByIDs returns the users matching the given IDs, keyed by ID. Unknown
	// IDs are absent from the map.
	ByIDs(ctx context.Context, ids []string) (map[string]User, error)
}
