package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/parcelwatch/fraud-screening/internal/address"
)

// OrderRecord is one recorded order used for duplicate-address matching.
type OrderRecord struct {
	ID               uuid.UUID `json:"id"`
	OrderID          string    `json:"order_id"`
	NormalizedStreet string    `json:"normalized_street"`
	PostalCode       string    `json:"postal_code"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewOrderRecord builds the record persisted for an incoming order.
func NewOrderRecord(orderID string, addr address.NormalizedAddress, postalCode string) OrderRecord {
	return OrderRecord{
		ID:               uuid.New(),
		OrderID:          orderID,
		NormalizedStreet: addr.String(),
		PostalCode:       postalCode,
		CreatedAt:        time.Now().UTC(),
	}
}
