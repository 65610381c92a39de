package orders

import (
	"context"

	"github.com/parcelwatch/fraud-screening/internal/address"
)

// Store persists order records and answers duplicate-address queries.
type Store interface {
	// FindMatches counts stored records in the postal code whose normalized
	// street contains the house number followed by the street name.
	FindMatches(ctx context.Context, postalCode string, addr address.NormalizedAddress) (int, error)

	// Insert appends a record unconditionally; repeated order IDs are kept.
	Insert(ctx context.Context, rec OrderRecord) error

	// CheckAndRecord counts matches and then inserts the new record in one
	// atomic step, so concurrent callers never observe a torn count.
	CheckAndRecord(ctx context.Context, orderID string, addr address.NormalizedAddress, postalCode string) (int, error)
}
