package orders

import (
	"strings"

	"github.com/parcelwatch/fraud-screening/internal/address"
)

// Matcher decides whether a stored normalized street refers to the same
// address as an incoming one. Postal codes are compared by the store; the
// matcher only sees streets that share one.
type Matcher interface {
	Matches(storedStreet string, addr address.NormalizedAddress) bool
}

// TokenMatcher matches when the stored street contains the house number
// followed by the street name, with anything in between. This mirrors the
// SQL policy `LIKE '%' || house || '%' || street || '%'` used by PGStore.
type TokenMatcher struct{}

// Matches reports whether storedStreet contains addr's tokens in order.
func (TokenMatcher) Matches(storedStreet string, addr address.NormalizedAddress) bool {
	idx := strings.Index(storedStreet, addr.HouseNumber)
	if idx < 0 {
		return false
	}
	return strings.Contains(storedStreet[idx+len(addr.HouseNumber):], addr.StreetName)
}
