package screening

import "github.com/parcelwatch/fraud-screening/internal/geo"

// DistanceHeuristic flags returns dropped off suspiciously far from the
// shipping address.
type DistanceHeuristic struct {
	ThresholdMiles float64
}

// Evaluate computes the geodesic distance between the shipping address and
// the drop-off location. Flagged when the distance strictly exceeds the
// threshold; a drop-off exactly at the threshold passes.
func (h DistanceHeuristic) Evaluate(shipping, dropOff geo.Coordinate) (miles float64, flagged bool) {
	miles = geo.DistanceMiles(shipping, dropOff)
	return miles, miles > h.ThresholdMiles
}

// WeightHeuristic flags returns whose package weight falls short of the
// expected item weight by more than the tier allows.
type WeightHeuristic struct{}

// Evaluate converts the carrier-reported weight from ounces to pounds and
// applies the tier rules. Items at or under one pound are never flagged,
// and a return heavier than expected never is either.
func (WeightHeuristic) Evaluate(expectedLbs, returnedOunces float64) (returnedLbs float64, flagged bool) {
	returnedLbs = returnedOunces / OuncesPerPound
	switch {
	case expectedLbs > tierLightMaxLbs && expectedLbs <= tierMediumMaxLbs:
		flagged = returnedLbs < minLightReturnLbs
	case expectedLbs > tierMediumMaxLbs && expectedLbs <= tierHeavyMaxLbs:
		flagged = expectedLbs-returnedLbs > maxMediumDeficitLbs
	case expectedLbs > tierHeavyMaxLbs:
		flagged = expectedLbs-returnedLbs > maxHeavyDeficitLbs
	}
	return returnedLbs, flagged
}
