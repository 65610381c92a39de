package screening

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parcelwatch/fraud-screening/internal/address"
)

var (
	returnChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screening_return_checks_total",
		Help: "Total number of completed return checks, labeled by verdict",
	}, []string{"verdict"})

	orderChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screening_order_checks_total",
		Help: "Total number of completed duplicate-order checks, labeled by verdict",
	}, []string{"verdict"})

	checkFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screening_check_failures_total",
		Help: "Total number of checks that ended before reaching a verdict, labeled by reason",
	}, []string{"reason"})

	heuristicFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screening_heuristic_flags_total",
		Help: "Total number of individual heuristic flags raised on return checks",
	}, []string{"heuristic"})
)

func verdictLabel(isFraud bool) string {
	if isFraud {
		return "fraud"
	}
	return "clean"
}

func recordReturnCheck(isFraud bool) {
	returnChecksTotal.WithLabelValues(verdictLabel(isFraud)).Inc()
}

func recordOrderCheck(isFraud bool) {
	orderChecksTotal.WithLabelValues(verdictLabel(isFraud)).Inc()
}

func recordCheckFailure(err error) {
	checkFailuresTotal.WithLabelValues(failureReason(err)).Inc()
}

func recordHeuristicFlag(heuristic string) {
	heuristicFlagsTotal.WithLabelValues(heuristic).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrTrackingNotFound):
		return "tracking_not_found"
	case errors.Is(err, ErrIncompleteLocation):
		return "incomplete_location"
	case errors.Is(err, ErrGeocodeFailure):
		return "geocode_failure"
	case errors.Is(err, ErrMissingWeight):
		return "missing_weight"
	case errors.Is(err, address.ErrInvalidFormat):
		return "invalid_address"
	default:
		return "internal"
	}
}
