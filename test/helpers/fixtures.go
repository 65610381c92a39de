package helpers

import (
	"time"

	"github.com/parcelwatch/fraud-screening/internal/geo"
)

// Austin, TX fixtures shared across screening tests. The shipping centroid
// sits about 18.5 miles from the northwest drop-off, past the default 15
// mile threshold; the nearby drop-off stays well inside it.
var (
	AustinShipping   = geo.Coordinate{Latitude: 30.27, Longitude: -97.74}
	NorthwestDropOff = geo.Coordinate{Latitude: 30.50, Longitude: -97.90}
	NearbyDropOff    = geo.Coordinate{Latitude: 30.28, Longitude: -97.75}
)

// CreateReturnCheckBody builds a valid return-check request with an Austin
// shipping address and the given expected weight.
func CreateReturnCheckBody(orderID, trackingNumber string, expectedLbs float64) map[string]interface{} {
	return map[string]interface{}{
		"order_id": orderID,
		"shipping_address": map[string]interface{}{
			"city": "Austin",
			"zip":  "78701",
		},
		"tracking_number":         trackingNumber,
		"carrier":                 "usps",
		"correct_item_weight_lbs": expectedLbs,
	}
}

// CreateOrderCheckBody builds a valid order-check request.
func CreateOrderCheckBody(orderID, street, zip string) map[string]interface{} {
	return map[string]interface{}{
		"order_id": orderID,
		"street":   street,
		"zip":      zip,
	}
}

// WeightOunces returns a pointer to an ounce value, the way carrier payloads
// carry optional weights.
func WeightOunces(v float64) *float64 {
	return &v
}

// ScanTime formats a scan timestamp the way carrier payloads do.
func ScanTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
