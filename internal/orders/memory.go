package orders

import (
	"context"
	"sync"

	"github.com/parcelwatch/fraud-screening/internal/address"
)

// MemoryStore keeps order records in memory. Intended for development and
// tests; the mutex makes CheckAndRecord atomic across goroutines.
type MemoryStore struct {
	mu      sync.Mutex
	records []OrderRecord
	matcher Matcher
}

// Ensure the in-memory store satisfies the detector's requirements.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A nil matcher falls back to the
// default token policy.
func NewMemoryStore(matcher Matcher) *MemoryStore {
	if matcher == nil {
		matcher = TokenMatcher{}
	}
	return &MemoryStore{matcher: matcher}
}

// FindMatches counts matching records without modifying the store.
func (s *MemoryStore) FindMatches(ctx context.Context, postalCode string, addr address.NormalizedAddress) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countMatches(postalCode, addr), nil
}

// Insert appends a record unconditionally.
func (s *MemoryStore) Insert(ctx context.Context, rec OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// CheckAndRecord counts prior matches and records the incoming order under a
// single lock acquisition.
func (s *MemoryStore) CheckAndRecord(ctx context.Context, orderID string, addr address.NormalizedAddress, postalCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.countMatches(postalCode, addr)
	s.records = append(s.records, NewOrderRecord(orderID, addr, postalCode))
	return matched, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// countMatches must be called with the lock held.
func (s *MemoryStore) countMatches(postalCode string, addr address.NormalizedAddress) int {
	matched := 0
	for _, rec := range s.records {
		if rec.PostalCode == postalCode && s.matcher.Matches(rec.NormalizedStreet, addr) {
			matched++
		}
	}
	return matched
}
