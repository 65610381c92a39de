package orders

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parcelwatch/fraud-screening/internal/address"
	"github.com/parcelwatch/fraud-screening/pkg/database"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

// PGStore persists order records in PostgreSQL. Matching uses the SQL
// equivalent of TokenMatcher: `LIKE '%' || house || '%' || street || '%'`.
type PGStore struct {
	db *pgxpool.Pool
}

// Ensure the postgres store satisfies the detector's requirements.
var _ Store = (*PGStore)(nil)

// NewPGStore creates a postgres-backed order store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// FindMatches counts matching records without modifying the store.
func (s *PGStore) FindMatches(ctx context.Context, postalCode string, addr address.NormalizedAddress) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM order_records
		WHERE postal_code = $1
		  AND normalized_street LIKE '%' || $2 || '%' || $3 || '%'
	`

	var matched int
	err := s.db.QueryRow(ctx, query, postalCode, addr.HouseNumber, addr.StreetName).Scan(&matched)
	if err != nil {
		return 0, err
	}

	return matched, nil
}

// Insert appends a record unconditionally.
func (s *PGStore) Insert(ctx context.Context, rec OrderRecord) error {
	query := `
		INSERT INTO order_records (id, order_id, normalized_street, postal_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.OrderID,
		rec.NormalizedStreet,
		rec.PostalCode,
		rec.CreatedAt,
	)

	return err
}

// CheckAndRecord counts prior matches and inserts the incoming order in a
// single transaction. An advisory lock keyed on the postal code serializes
// concurrent callers so each one observes every earlier insert. Serialization
// failures and deadlocks retry the whole transaction.
func (s *PGStore) CheckAndRecord(ctx context.Context, orderID string, addr address.NormalizedAddress, postalCode string) (int, error) {
	result, err := resilience.Retry(ctx, database.ConservativeRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return s.checkAndRecordTx(ctx, orderID, addr, postalCode)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (s *PGStore) checkAndRecordTx(ctx context.Context, orderID string, addr address.NormalizedAddress, postalCode string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, postalCode); err != nil {
		return 0, err
	}

	countQuery := `
		SELECT COUNT(*)
		FROM order_records
		WHERE postal_code = $1
		  AND normalized_street LIKE '%' || $2 || '%' || $3 || '%'
	`

	var matched int
	if err := tx.QueryRow(ctx, countQuery, postalCode, addr.HouseNumber, addr.StreetName).Scan(&matched); err != nil {
		return 0, err
	}

	rec := NewOrderRecord(orderID, addr, postalCode)
	insertQuery := `
		INSERT INTO order_records (id, order_id, normalized_street, postal_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		rec.ID,
		rec.OrderID,
		rec.NormalizedStreet,
		rec.PostalCode,
		rec.CreatedAt,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return matched, nil
}
