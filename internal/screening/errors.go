package screening

import "errors"

// Sentinel errors returned by Engine.CheckReturn. Handlers map these to
// HTTP statuses; everything else is treated as an internal failure.
var (
	// ErrUpstreamUnavailable means the carrier tracking API could not be
	// reached or returned a failure response.
	ErrUpstreamUnavailable = errors.New("screening: tracking upstream unavailable")

	// ErrTrackingNotFound means the tracker exists but carries no scan events.
	ErrTrackingNotFound = errors.New("screening: tracking details not found")

	// ErrIncompleteLocation means the selected drop-off scan is missing its
	// city or zip and cannot be geocoded.
	ErrIncompleteLocation = errors.New("screening: incomplete drop-off location")

	// ErrGeocodeFailure means one of the two locations could not be resolved
	// to coordinates.
	ErrGeocodeFailure = errors.New("screening: geocoding failed")

	// ErrMissingWeight means the tracker carries no return package weight.
	ErrMissingWeight = errors.New("screening: return package weight not found")
)
