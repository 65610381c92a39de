package screening

import "github.com/parcelwatch/fraud-screening/pkg/config"

const (
	// OuncesPerPound converts carrier-reported weights to pounds.
	OuncesPerPound = 16.0

	// DefaultDistanceThresholdMiles flags a return whose drop-off sits
	// farther than this from the shipping address.
	DefaultDistanceThresholdMiles = 15.0

	// DefaultDuplicateThreshold is the number of prior matching orders at
	// which an order is considered part of a recycled-address pattern.
	DefaultDuplicateThreshold = 3
)

// Weight tier boundaries, in pounds of expected item weight. Items at or
// under tierLightMaxLbs are never weight-flagged.
const (
	tierLightMaxLbs  = 1.0
	tierMediumMaxLbs = 3.0
	tierHeavyMaxLbs  = 8.0

	minLightReturnLbs   = 1.0
	maxMediumDeficitLbs = 1.0
	maxHeavyDeficitLbs  = 2.0
)

// Policy carries the tunable screening knobs. Zero values are replaced with
// defaults by PolicyFromConfig.
type Policy struct {
	DistanceThresholdMiles float64
	DuplicateThreshold     int
	ScanSelection          string
}

// PolicyFromConfig builds a Policy from the service configuration, filling
// in defaults for unset values.
func PolicyFromConfig(cfg *config.ScreeningConfig) Policy {
	p := Policy{
		DistanceThresholdMiles: DefaultDistanceThresholdMiles,
		DuplicateThreshold:     DefaultDuplicateThreshold,
		ScanSelection:          config.ScanPolicyLast,
	}
	if cfg == nil {
		return p
	}
	if cfg.DistanceThresholdMiles > 0 {
		p.DistanceThresholdMiles = cfg.DistanceThresholdMiles
	}
	if cfg.DuplicateOrderThreshold >= 1 {
		p.DuplicateThreshold = cfg.DuplicateOrderThreshold
	}
	if cfg.DropOffScanPolicy == config.ScanPolicyFirst || cfg.DropOffScanPolicy == config.ScanPolicyLast {
		p.ScanSelection = cfg.DropOffScanPolicy
	}
	return p
}
