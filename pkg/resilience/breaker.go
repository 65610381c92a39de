package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when an operation is rejected because the
// breaker is open and no fallback produced a value.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings tunes a circuit breaker. FailureThreshold is the number of
// consecutive failures that opens the breaker; SuccessThreshold is the
// number of trial requests allowed (and required to succeed) while
// half-open before it closes again.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// CircuitBreaker wraps gobreaker with context-aware execution, metrics and
// an optional fallback for the open state.
type CircuitBreaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker creates a breaker from the given settings. A nil
// fallback means open-state rejections surface as ErrCircuitOpen.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	name := nextBreakerName(settings.Name)

	failureThreshold := settings.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
		},
	})

	recordBreakerState(name, gobreaker.StateClosed)

	return &CircuitBreaker{
		name:     name,
		cb:       cb,
		fallback: fallback,
	}
}

// Execute runs the operation through the breaker. Open-state rejections go
// to the fallback when one is configured.
func (b *CircuitBreaker) Execute(ctx context.Context, operation func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	recordBreakerRequest(b.name)

	result, err := b.cb.Execute(func() (interface{}, error) {
		return operation(ctx)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			recordBreakerFallback(b.name)
			if b.fallback != nil {
				return b.fallback(ctx, err)
			}
			return nil, ErrCircuitOpen
		}
		recordBreakerFailure(b.name)
		return nil, err
	}

	return result, nil
}

// Name returns the breaker's metric label.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}
