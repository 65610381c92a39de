package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidFormat is returned when a street line does not start with a house
// number followed by a street name.
var ErrInvalidFormat = errors.New("address: invalid street format")

// streetPattern captures a leading house number, an optional letter suffix
// (a unit marker, discarded), and the street name.
var streetPattern = regexp.MustCompile(`^(\d+)[A-Za-z]*\s+(.+)$`)

// NormalizedAddress is the canonical form of a street line used for
// duplicate-order matching.
type NormalizedAddress struct {
	HouseNumber string
	StreetName  string
}

// String renders the stored "number street" form.
func (a NormalizedAddress) String() string {
	return a.HouseNumber + " " + a.StreetName
}

// Normalize parses a raw street line into its canonical form. The street name
// is lowercased and trimmed; "312k Arbor Downs" normalizes to house number
// "312" and street name "arbor downs".
func Normalize(rawStreet string) (NormalizedAddress, error) {
	m := streetPattern.FindStringSubmatch(strings.TrimSpace(rawStreet))
	if m == nil {
		return NormalizedAddress{}, fmt.Errorf("%w: %q", ErrInvalidFormat, rawStreet)
	}

	return NormalizedAddress{
		HouseNumber: m[1],
		StreetName:  strings.ToLower(strings.TrimSpace(m[2])),
	}, nil
}
