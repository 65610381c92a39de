package orders

import (
	"context"

	"github.com/parcelwatch/fraud-screening/internal/address"
)

// DefaultThreshold is the number of prior matching orders that marks an
// address as recycled.
const DefaultThreshold = 3

// Detector applies the duplicate-address policy over a Store.
type Detector struct {
	store     Store
	threshold int
}

// NewDetector creates a detector with the given threshold. Values below one
// fall back to DefaultThreshold.
func NewDetector(store Store, threshold int) *Detector {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Detector{store: store, threshold: threshold}
}

// Threshold reports the configured duplicate threshold.
func (d *Detector) Threshold() int {
	return d.threshold
}

// CheckAndRecord counts prior matching orders, records the incoming one, and
// reports whether the address crossed the duplicate threshold. The count
// reflects the store before this order is added, and the insert happens even
// when the address is flagged.
func (d *Detector) CheckAndRecord(ctx context.Context, orderID string, addr address.NormalizedAddress, postalCode string) (matched int, fraud bool, err error) {
	matched, err = d.store.CheckAndRecord(ctx, orderID, addr, postalCode)
	if err != nil {
		return 0, false, err
	}
	return matched, matched >= d.threshold, nil
}
