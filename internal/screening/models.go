package screening

import (
	"time"

	"github.com/google/uuid"
)

// ShippingAddress is the origin address the shopper supplied at purchase
// time, reduced to what geocoding needs.
type ShippingAddress struct {
	City string `json:"city" binding:"required"`
	Zip  string `json:"zip" binding:"required" validate:"postal_code"`
}

// ReturnCheckRequest asks whether a return shipment looks fraudulent.
type ReturnCheckRequest struct {
	OrderID           string          `json:"order_id" binding:"required"`
	ShippingAddress   ShippingAddress `json:"shipping_address" binding:"required"`
	TrackingNumber    string          `json:"tracking_number" binding:"required" validate:"tracking_number"`
	Carrier           string          `json:"carrier" binding:"required" validate:"carrier"`
	ExpectedWeightLbs float64         `json:"correct_item_weight_lbs" binding:"required,gt=0"`
}

// OrderCheckRequest asks whether a new order reuses an address already seen
// in recent orders with the same postal code.
type OrderCheckRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Street  string `json:"street" binding:"required"`
	Zip     string `json:"zip" binding:"required" validate:"postal_code"`
}

// ReturnEvaluation is the outcome of a return check. DistanceMiles and
// ReturnWeightLbs are rounded for display; the heuristics run on the
// unrounded values.
type ReturnEvaluation struct {
	IsFraud           bool    `json:"is_fraud"`
	DistanceMiles     float64 `json:"distance_miles"`
	DropOffCity       string  `json:"drop_off_city"`
	ShippingCity      string  `json:"shipping_city"`
	ReturnWeightLbs   float64 `json:"return_weight_lbs"`
	ExpectedWeightLbs float64 `json:"expected_weight_lbs"`
	DistanceFlagged   bool    `json:"distance_flagged"`
	WeightFlagged     bool    `json:"weight_flagged"`
}

// OrderFraudEvaluation is the outcome of a duplicate-order check.
type OrderFraudEvaluation struct {
	IsFraud          bool   `json:"is_fraud"`
	MatchedEntries   int    `json:"matched_entries"`
	NormalizedStreet string `json:"normalized_street"`
}

// ReturnEvaluationRecord is the persisted audit row for a return check.
// DistanceMiles and ReturnWeightLbs hold the unrounded values the heuristics
// ran on, not the rounded figures returned to callers.
type ReturnEvaluationRecord struct {
	ID                uuid.UUID `json:"id" db:"id"`
	OrderID           string    `json:"order_id" db:"order_id"`
	TrackingNumber    string    `json:"tracking_number" db:"tracking_number"`
	Carrier           string    `json:"carrier" db:"carrier"`
	IsFraud           bool      `json:"is_fraud" db:"is_fraud"`
	DistanceFlagged   bool      `json:"distance_flagged" db:"distance_flagged"`
	WeightFlagged     bool      `json:"weight_flagged" db:"weight_flagged"`
	DistanceMiles     float64   `json:"distance_miles" db:"distance_miles"`
	ReturnWeightLbs   float64   `json:"return_weight_lbs" db:"return_weight_lbs"`
	ExpectedWeightLbs float64   `json:"expected_weight_lbs" db:"expected_weight_lbs"`
	ShippingCity      string    `json:"shipping_city" db:"shipping_city"`
	ShippingZip       string    `json:"shipping_zip" db:"shipping_zip"`
	DropOffCity       string    `json:"drop_off_city" db:"drop_off_city"`
	DropOffZip        string    `json:"drop_off_zip" db:"drop_off_zip"`
	DropOffCell       string    `json:"drop_off_cell,omitempty" db:"drop_off_cell"` // H3 cell of the drop-off, for hotspot aggregation
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// DropOffHotspot aggregates fraudulent returns by the H3 cell their
// drop-off location falls in.
type DropOffHotspot struct {
	Cell       string    `json:"cell" db:"drop_off_cell"`
	FraudCount int64     `json:"fraud_count" db:"fraud_count"`
	LastSeen   time.Time `json:"last_seen" db:"last_seen"`
}
