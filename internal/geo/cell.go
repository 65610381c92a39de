package geo

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// DefaultCellResolution groups drop-off points into neighborhood-scale
// hexagons (H3 resolution 7, ~5 km² per cell).
const DefaultCellResolution = 7

// CellID returns the H3 cell index for a coordinate at the given resolution,
// encoded as the canonical hexadecimal string.
func CellID(c Coordinate, resolution int) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), resolution)
	if err != nil {
		return "", fmt.Errorf("h3 cell for (%f, %f): %w", c.Latitude, c.Longitude, err)
	}
	return cell.String(), nil
}
