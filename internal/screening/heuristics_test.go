package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parcelwatch/fraud-screening/internal/geo"
)

func TestWeightHeuristic_Evaluate(t *testing.T) {
	tests := []struct {
		name            string
		expectedLbs     float64
		returnedOunces  float64
		wantReturnedLbs float64
		wantFlagged     bool
	}{
		{
			name:            "sub-pound item never flagged",
			expectedLbs:     0.5,
			returnedOunces:  1.6,
			wantReturnedLbs: 0.1,
			wantFlagged:     false,
		},
		{
			name:            "one pound item never flagged even when empty",
			expectedLbs:     1.0,
			returnedOunces:  0,
			wantReturnedLbs: 0,
			wantFlagged:     false,
		},
		{
			name:            "light tier flags return below one pound",
			expectedLbs:     2.0,
			returnedOunces:  8,
			wantReturnedLbs: 0.5,
			wantFlagged:     true,
		},
		{
			name:            "light tier passes at exactly one pound",
			expectedLbs:     2.0,
			returnedOunces:  16,
			wantReturnedLbs: 1.0,
			wantFlagged:     false,
		},
		{
			name:            "three pound item still in light tier",
			expectedLbs:     3.0,
			returnedOunces:  8,
			wantReturnedLbs: 0.5,
			wantFlagged:     true,
		},
		{
			name:            "medium tier flags deficit over one pound",
			expectedLbs:     5.0,
			returnedOunces:  48,
			wantReturnedLbs: 3.0,
			wantFlagged:     true,
		},
		{
			name:            "medium tier passes deficit of exactly one pound",
			expectedLbs:     5.0,
			returnedOunces:  64,
			wantReturnedLbs: 4.0,
			wantFlagged:     false,
		},
		{
			name:            "eight pound item still in medium tier",
			expectedLbs:     8.0,
			returnedOunces:  96,
			wantReturnedLbs: 6.0,
			wantFlagged:     true,
		},
		{
			name:            "heavy tier flags deficit over two pounds",
			expectedLbs:     10.0,
			returnedOunces:  112,
			wantReturnedLbs: 7.0,
			wantFlagged:     true,
		},
		{
			name:            "heavy tier passes deficit of exactly two pounds",
			expectedLbs:     10.0,
			returnedOunces:  128,
			wantReturnedLbs: 8.0,
			wantFlagged:     false,
		},
		{
			name:            "medium tier overage never flagged",
			expectedLbs:     5.0,
			returnedOunces:  96,
			wantReturnedLbs: 6.0,
			wantFlagged:     false,
		},
		{
			name:            "heavy tier overage never flagged",
			expectedLbs:     12.0,
			returnedOunces:  224,
			wantReturnedLbs: 14.0,
			wantFlagged:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLbs, gotFlagged := WeightHeuristic{}.Evaluate(tt.expectedLbs, tt.returnedOunces)
			assert.InDelta(t, tt.wantReturnedLbs, gotLbs, 1e-9)
			assert.Equal(t, tt.wantFlagged, gotFlagged)
		})
	}
}

func TestDistanceHeuristic_Evaluate(t *testing.T) {
	austin := geo.Coordinate{Latitude: 30.27, Longitude: -97.74}
	northwestDropOff := geo.Coordinate{Latitude: 30.50, Longitude: -97.90}
	nearbyDropOff := geo.Coordinate{Latitude: 30.30, Longitude: -97.77}

	h := DistanceHeuristic{ThresholdMiles: DefaultDistanceThresholdMiles}

	miles, flagged := h.Evaluate(austin, northwestDropOff)
	assert.True(t, flagged)
	assert.InDelta(t, 18.5, miles, 0.1)

	miles, flagged = h.Evaluate(austin, nearbyDropOff)
	assert.False(t, flagged)
	assert.Less(t, miles, DefaultDistanceThresholdMiles)

	miles, flagged = h.Evaluate(austin, austin)
	assert.False(t, flagged)
	assert.Zero(t, miles)
}

// A drop-off at exactly the threshold distance is not flagged; the rule is
// strictly greater than.
func TestDistanceHeuristic_ExactThresholdNotFlagged(t *testing.T) {
	from := geo.Coordinate{Latitude: 30.27, Longitude: -97.74}
	to := geo.Coordinate{Latitude: 30.50, Longitude: -97.90}
	miles := geo.DistanceMiles(from, to)

	h := DistanceHeuristic{ThresholdMiles: miles}
	_, flagged := h.Evaluate(from, to)
	assert.False(t, flagged)

	h.ThresholdMiles = miles - 0.001
	_, flagged = h.Evaluate(from, to)
	assert.True(t, flagged)
}
