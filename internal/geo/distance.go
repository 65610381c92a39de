package geo

import "math"

// WGS-84 ellipsoid parameters.
const (
	semiMajorAxisMeters = 6378137.0
	flattening          = 1.0 / 298.257223563
	semiMinorAxisMeters = semiMajorAxisMeters * (1.0 - flattening)

	metersPerMile = 1609.344

	earthRadiusMeters = 6371000.0

	vincentyMaxIterations = 200
	vincentyConvergence   = 1e-12
)

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceMiles calculates the geodesic distance between two coordinates in
// statute miles using Vincenty's inverse formula on the WGS-84 ellipsoid.
// Near-antipodal pairs where the iteration does not converge fall back to the
// spherical great-circle distance.
func DistanceMiles(from, to Coordinate) float64 {
	meters, ok := vincentyDistanceMeters(from, to)
	if !ok {
		meters = haversineDistance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	}
	return meters / metersPerMile
}

// vincentyDistanceMeters computes the ellipsoidal distance in meters. The
// second return value is false when the iteration failed to converge.
func vincentyDistanceMeters(from, to Coordinate) (float64, bool) {
	lat1 := from.Latitude * math.Pi / 180.0
	lat2 := to.Latitude * math.Pi / 180.0
	deltaLon := (to.Longitude - from.Longitude) * math.Pi / 180.0

	u1 := math.Atan((1.0 - flattening) * math.Tan(lat1))
	u2 := math.Atan((1.0 - flattening) * math.Tan(lat2))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := deltaLon
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64

	for i := 0; i < vincentyMaxIterations; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)

		x := cosU2 * sinLambda
		y := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(x*x + y*y)
		if sinSigma == 0 {
			// Coincident points.
			return 0, true
		}

		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)

		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1.0 - sinAlpha*sinAlpha

		if cosSqAlpha == 0 {
			// Both points on the equator.
			cos2SigmaM = 0
		} else {
			cos2SigmaM = cosSigma - 2.0*sinU1*sinU2/cosSqAlpha
		}

		c := flattening / 16.0 * cosSqAlpha * (4.0 + flattening*(4.0-3.0*cosSqAlpha))
		prev := lambda
		lambda = deltaLon + (1.0-c)*flattening*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1.0+2.0*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyConvergence {
			uSq := cosSqAlpha * (semiMajorAxisMeters*semiMajorAxisMeters - semiMinorAxisMeters*semiMinorAxisMeters) /
				(semiMinorAxisMeters * semiMinorAxisMeters)
			a := 1.0 + uSq/16384.0*(4096.0+uSq*(-768.0+uSq*(320.0-175.0*uSq)))
			b := uSq / 1024.0 * (256.0 + uSq*(-128.0+uSq*(74.0-47.0*uSq)))
			deltaSigma := b * sinSigma * (cos2SigmaM + b/4.0*
				(cosSigma*(-1.0+2.0*cos2SigmaM*cos2SigmaM)-
					b/6.0*cos2SigmaM*(-3.0+4.0*sinSigma*sinSigma)*(-3.0+4.0*cos2SigmaM*cos2SigmaM)))

			return semiMinorAxisMeters * a * (sigma - deltaSigma), true
		}
	}

	return 0, false
}

// haversineDistance calculates the spherical great-circle distance in meters.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Round2 rounds a value to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
