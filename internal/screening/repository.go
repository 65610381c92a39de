package screening

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/parcelwatch/fraud-screening/pkg/database"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

// Repository persists return evaluations. Writes go to the primary through
// the pool's circuit breaker; list and lookup reads tolerate replication lag
// and go to a replica.
type Repository struct {
	pool *database.DBPool
}

// Ensure the concrete repository satisfies the engine's requirements.
var _ EvaluationSink = (*Repository)(nil)

// NewRepository creates a new screening repository
func NewRepository(pool *database.DBPool) *Repository {
	return &Repository{pool: pool}
}

// Create stores a return evaluation. The insert retries through transient
// failures so audit rows are not silently lost.
func (r *Repository) Create(ctx context.Context, rec *ReturnEvaluationRecord) error {
	query := `
		INSERT INTO return_evaluations (
			id, order_id, tracking_number, carrier, is_fraud,
			distance_flagged, weight_flagged, distance_miles,
			return_weight_lbs, expected_weight_lbs, shipping_city,
			shipping_zip, drop_off_city, drop_off_zip, drop_off_cell,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	var cell interface{}
	if rec.DropOffCell != "" {
		cell = rec.DropOffCell
	}

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := r.pool.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return resilience.Retry(ctx, database.AggressiveRetryConfig(), func(ctx context.Context) (interface{}, error) {
			return r.pool.Primary.Exec(ctx, query,
				rec.ID,
				rec.OrderID,
				rec.TrackingNumber,
				rec.Carrier,
				rec.IsFraud,
				rec.DistanceFlagged,
				rec.WeightFlagged,
				rec.DistanceMiles,
				rec.ReturnWeightLbs,
				rec.ExpectedWeightLbs,
				rec.ShippingCity,
				rec.ShippingZip,
				rec.DropOffCity,
				rec.DropOffZip,
				cell,
				rec.CreatedAt,
			)
		})
	})
	r.pool.RecordQuery("create_evaluation", time.Since(start), err)

	return err
}

// GetByID retrieves a single return evaluation
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*ReturnEvaluationRecord, error) {
	query := `
		SELECT id, order_id, tracking_number, carrier, is_fraud,
		       distance_flagged, weight_flagged, distance_miles,
		       return_weight_lbs, expected_weight_lbs, shipping_city,
		       shipping_zip, drop_off_city, drop_off_zip, drop_off_cell,
		       created_at
		FROM return_evaluations
		WHERE id = $1
	`

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	var rec ReturnEvaluationRecord
	var cell sql.NullString

	start := time.Now()
	err := r.pool.GetReplica().QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.TrackingNumber,
		&rec.Carrier,
		&rec.IsFraud,
		&rec.DistanceFlagged,
		&rec.WeightFlagged,
		&rec.DistanceMiles,
		&rec.ReturnWeightLbs,
		&rec.ExpectedWeightLbs,
		&rec.ShippingCity,
		&rec.ShippingZip,
		&rec.DropOffCity,
		&rec.DropOffZip,
		&cell,
		&rec.CreatedAt,
	)
	r.pool.RecordQuery("get_evaluation", time.Since(start), err)

	if err != nil {
		return nil, err
	}

	if cell.Valid {
		rec.DropOffCell = cell.String
	}

	return &rec, nil
}

// ListEvaluations retrieves evaluations newest first, optionally filtered by
// fraud verdict
func (r *Repository) ListEvaluations(ctx context.Context, flagged *bool, limit, offset int) ([]*ReturnEvaluationRecord, error) {
	query := `
		SELECT id, order_id, tracking_number, carrier, is_fraud,
		       distance_flagged, weight_flagged, distance_miles,
		       return_weight_lbs, expected_weight_lbs, shipping_city,
		       shipping_zip, drop_off_city, drop_off_zip, drop_off_cell,
		       created_at
		FROM return_evaluations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	args := []interface{}{limit, offset}

	if flagged != nil {
		query = `
			SELECT id, order_id, tracking_number, carrier, is_fraud,
			       distance_flagged, weight_flagged, distance_miles,
			       return_weight_lbs, expected_weight_lbs, shipping_city,
			       shipping_zip, drop_off_city, drop_off_zip, drop_off_cell,
			       created_at
			FROM return_evaluations
			WHERE is_fraud = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		args = []interface{}{*flagged, limit, offset}
	}

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.GetReplica().Query(ctx, query, args...)
	r.pool.RecordQuery("list_evaluations", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evaluations := make([]*ReturnEvaluationRecord, 0)
	for rows.Next() {
		var rec ReturnEvaluationRecord
		var cell sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.OrderID,
			&rec.TrackingNumber,
			&rec.Carrier,
			&rec.IsFraud,
			&rec.DistanceFlagged,
			&rec.WeightFlagged,
			&rec.DistanceMiles,
			&rec.ReturnWeightLbs,
			&rec.ExpectedWeightLbs,
			&rec.ShippingCity,
			&rec.ShippingZip,
			&rec.DropOffCity,
			&rec.DropOffZip,
			&cell,
			&rec.CreatedAt,
		)

		if err != nil {
			continue
		}

		if cell.Valid {
			rec.DropOffCell = cell.String
		}

		evaluations = append(evaluations, &rec)
	}

	return evaluations, nil
}

// ListEvaluationsWithTotal retrieves evaluations with the total count for
// pagination
func (r *Repository) ListEvaluationsWithTotal(ctx context.Context, flagged *bool, limit, offset int) ([]*ReturnEvaluationRecord, int64, error) {
	// Get total count
	var total int64
	countQuery := `SELECT COUNT(*) FROM return_evaluations`
	args := []interface{}{}
	if flagged != nil {
		countQuery = `SELECT COUNT(*) FROM return_evaluations WHERE is_fraud = $1`
		args = []interface{}{*flagged}
	}

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	err := r.pool.GetReplica().QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// Get paginated evaluations
	evaluations, err := r.ListEvaluations(ctx, flagged, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return evaluations, total, nil
}

// DropOffHotspots aggregates fraudulent returns by drop-off H3 cell, most
// active cells first
func (r *Repository) DropOffHotspots(ctx context.Context, limit int) ([]*DropOffHotspot, error) {
	query := `
		SELECT drop_off_cell, COUNT(*) AS fraud_count, MAX(created_at) AS last_seen
		FROM return_evaluations
		WHERE is_fraud = TRUE AND drop_off_cell IS NOT NULL
		GROUP BY drop_off_cell
		ORDER BY fraud_count DESC, last_seen DESC
		LIMIT $1
	`

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := r.pool.GetReplica().Query(ctx, query, limit)
	r.pool.RecordQuery("drop_off_hotspots", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hotspots := make([]*DropOffHotspot, 0)
	for rows.Next() {
		var h DropOffHotspot

		if err := rows.Scan(&h.Cell, &h.FraudCount, &h.LastSeen); err != nil {
			continue
		}

		hotspots = append(hotspots, &h)
	}

	return hotspots, nil
}
