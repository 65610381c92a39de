package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parcelwatch/fraud-screening/internal/address"
	"github.com/parcelwatch/fraud-screening/internal/geo"
	"github.com/parcelwatch/fraud-screening/internal/geocode"
	"github.com/parcelwatch/fraud-screening/internal/orders"
	"github.com/parcelwatch/fraud-screening/internal/tracking"
	"github.com/parcelwatch/fraud-screening/pkg/config"
	"github.com/parcelwatch/fraud-screening/pkg/eventbus"
	"github.com/parcelwatch/fraud-screening/pkg/logger"
)

// EvaluationSink persists return evaluations for audit and reporting.
type EvaluationSink interface {
	Create(ctx context.Context, rec *ReturnEvaluationRecord) error
}

// EventPublisher pushes screening outcomes onto the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, subject, eventType string, data interface{}) error
}

// Engine runs the fraud checks. The evaluation sink and event publisher are
// optional; a nil value disables that side effect.
type Engine struct {
	tracker     tracking.Lookup
	geocoder    geocode.Geocoder
	detector    *orders.Detector
	evaluations EvaluationSink
	events      EventPublisher
	policy      Policy
	distance    DistanceHeuristic
	weight      WeightHeuristic
}

// NewEngine creates a screening engine with the given dependencies.
func NewEngine(tracker tracking.Lookup, geocoder geocode.Geocoder, detector *orders.Detector, evaluations EvaluationSink, events EventPublisher, policy Policy) *Engine {
	if policy.DistanceThresholdMiles <= 0 {
		policy.DistanceThresholdMiles = DefaultDistanceThresholdMiles
	}
	if policy.ScanSelection == "" {
		policy.ScanSelection = config.ScanPolicyLast
	}
	return &Engine{
		tracker:     tracker,
		geocoder:    geocoder,
		detector:    detector,
		evaluations: evaluations,
		events:      events,
		policy:      policy,
		distance:    DistanceHeuristic{ThresholdMiles: policy.DistanceThresholdMiles},
		weight:      WeightHeuristic{},
	}
}

// CheckReturn scores a return shipment. It fetches the carrier tracking
// record, geocodes the drop-off and shipping locations, and applies the
// distance and weight heuristics. A return is fraudulent when either
// heuristic flags it.
func (e *Engine) CheckReturn(ctx context.Context, req *ReturnCheckRequest) (*ReturnEvaluation, error) {
	info, err := e.tracker.Fetch(ctx, req.Carrier, req.TrackingNumber)
	if err != nil {
		recordCheckFailure(ErrUpstreamUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(info.Details) == 0 {
		recordCheckFailure(ErrTrackingNotFound)
		return nil, ErrTrackingNotFound
	}

	scan := selectDropOffScan(info.Details, e.policy.ScanSelection)
	if scan.City == "" || scan.Zip == "" {
		recordCheckFailure(ErrIncompleteLocation)
		return nil, ErrIncompleteLocation
	}

	dropOff, err := e.geocoder.Resolve(ctx, scan.City, scan.Zip)
	if err != nil {
		recordCheckFailure(ErrGeocodeFailure)
		return nil, fmt.Errorf("%w: drop-off %s %s: %v", ErrGeocodeFailure, scan.City, scan.Zip, err)
	}
	shipping, err := e.geocoder.Resolve(ctx, req.ShippingAddress.City, req.ShippingAddress.Zip)
	if err != nil {
		recordCheckFailure(ErrGeocodeFailure)
		return nil, fmt.Errorf("%w: shipping %s %s: %v", ErrGeocodeFailure, req.ShippingAddress.City, req.ShippingAddress.Zip, err)
	}

	if info.WeightOunces == nil {
		recordCheckFailure(ErrMissingWeight)
		return nil, ErrMissingWeight
	}

	distanceMiles, distanceFlagged := e.distance.Evaluate(shipping, dropOff)
	returnedLbs, weightFlagged := e.weight.Evaluate(req.ExpectedWeightLbs, *info.WeightOunces)
	isFraud := distanceFlagged || weightFlagged

	if distanceFlagged {
		recordHeuristicFlag("distance")
	}
	if weightFlagged {
		recordHeuristicFlag("weight")
	}
	recordReturnCheck(isFraud)

	eval := &ReturnEvaluation{
		IsFraud:           isFraud,
		DistanceMiles:     geo.Round2(distanceMiles),
		DropOffCity:       scan.City,
		ShippingCity:      req.ShippingAddress.City,
		ReturnWeightLbs:   geo.Round2(returnedLbs),
		ExpectedWeightLbs: req.ExpectedWeightLbs,
		DistanceFlagged:   distanceFlagged,
		WeightFlagged:     weightFlagged,
	}

	logger.Info("Return evaluated",
		zap.String("order_id", req.OrderID),
		zap.String("tracking_number", req.TrackingNumber),
		zap.Bool("is_fraud", isFraud),
		zap.Bool("distance_flagged", distanceFlagged),
		zap.Bool("weight_flagged", weightFlagged),
		zap.Float64("distance_miles", eval.DistanceMiles),
	)

	e.persistEvaluation(ctx, req, eval, dropOff, scan.Zip, distanceMiles, returnedLbs)
	e.publishReturnEvaluated(ctx, req, eval)

	return eval, nil
}

// CheckOrder normalizes the street address and records the order, returning
// how many prior orders in the same postal code already match it.
func (e *Engine) CheckOrder(ctx context.Context, req *OrderCheckRequest) (*OrderFraudEvaluation, error) {
	normalized, err := address.Normalize(req.Street)
	if err != nil {
		recordCheckFailure(err)
		return nil, err
	}

	matched, fraud, err := e.detector.CheckAndRecord(ctx, req.OrderID, normalized, req.Zip)
	if err != nil {
		recordCheckFailure(err)
		return nil, fmt.Errorf("record order %s: %w", req.OrderID, err)
	}

	recordOrderCheck(fraud)

	eval := &OrderFraudEvaluation{
		IsFraud:          fraud,
		MatchedEntries:   matched,
		NormalizedStreet: normalized.String(),
	}

	logger.Info("Order evaluated",
		zap.String("order_id", req.OrderID),
		zap.String("postal_code", req.Zip),
		zap.Bool("is_fraud", fraud),
		zap.Int("matched_entries", matched),
	)

	e.publishOrderEvaluated(ctx, req, eval)

	return eval, nil
}

// selectDropOffScan picks the scan event treated as the drop-off according
// to the configured policy. Carriers that report scans oldest-first make
// the last event the drop-off.
func selectDropOffScan(details []tracking.ScanEvent, selection string) tracking.ScanEvent {
	if selection == config.ScanPolicyFirst {
		return details[0]
	}
	return details[len(details)-1]
}

// persistEvaluation writes the audit row. It stores the unrounded distance
// and weight so the row reflects the exact values the heuristics saw.
func (e *Engine) persistEvaluation(ctx context.Context, req *ReturnCheckRequest, eval *ReturnEvaluation, dropOff geo.Coordinate, dropOffZip string, distanceMiles, returnedLbs float64) {
	if e.evaluations == nil {
		return
	}
	rec := &ReturnEvaluationRecord{
		ID:                uuid.New(),
		OrderID:           req.OrderID,
		TrackingNumber:    req.TrackingNumber,
		Carrier:           req.Carrier,
		IsFraud:           eval.IsFraud,
		DistanceFlagged:   eval.DistanceFlagged,
		WeightFlagged:     eval.WeightFlagged,
		DistanceMiles:     distanceMiles,
		ReturnWeightLbs:   returnedLbs,
		ExpectedWeightLbs: eval.ExpectedWeightLbs,
		ShippingCity:      eval.ShippingCity,
		ShippingZip:       req.ShippingAddress.Zip,
		DropOffCity:       eval.DropOffCity,
		DropOffZip:        dropOffZip,
		CreatedAt:         time.Now().UTC(),
	}
	if cell, err := geo.CellID(dropOff, geo.DefaultCellResolution); err == nil {
		rec.DropOffCell = cell
	}
	if err := e.evaluations.Create(ctx, rec); err != nil {
		logger.Error("Failed to persist return evaluation",
			zap.Error(err),
			zap.String("order_id", req.OrderID),
		)
	}
}

func (e *Engine) publishReturnEvaluated(ctx context.Context, req *ReturnCheckRequest, eval *ReturnEvaluation) {
	if e.events == nil {
		return
	}
	data := eventbus.ReturnEvaluatedData{
		TrackingNumber:  req.TrackingNumber,
		Carrier:         req.Carrier,
		IsFraud:         eval.IsFraud,
		DistanceFlagged: eval.DistanceFlagged,
		WeightFlagged:   eval.WeightFlagged,
		DistanceMiles:   eval.DistanceMiles,
		EvaluatedAt:     time.Now().UTC(),
	}
	if err := e.events.Publish(ctx, eventbus.SubjectReturnEvaluated, "return.evaluated", data); err != nil {
		logger.Error("Failed to publish return evaluation",
			zap.Error(err),
			zap.String("tracking_number", req.TrackingNumber),
		)
	}
}

func (e *Engine) publishOrderEvaluated(ctx context.Context, req *OrderCheckRequest, eval *OrderFraudEvaluation) {
	if e.events == nil {
		return
	}
	data := eventbus.OrderEvaluatedData{
		OrderID:          req.OrderID,
		PostalCode:       req.Zip,
		IsFraud:          eval.IsFraud,
		MatchedEntries:   eval.MatchedEntries,
		NormalizedStreet: eval.NormalizedStreet,
		EvaluatedAt:      time.Now().UTC(),
	}
	if err := e.events.Publish(ctx, eventbus.SubjectOrderEvaluated, "order.evaluated", data); err != nil {
		logger.Error("Failed to publish order evaluation",
			zap.Error(err),
			zap.String("order_id", req.OrderID),
		)
	}
}
