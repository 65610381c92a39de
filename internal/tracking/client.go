package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/parcelwatch/fraud-screening/pkg/config"
	"github.com/parcelwatch/fraud-screening/pkg/httpclient"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

// Lookup fetches parcel tracking state from the carrier API.
type Lookup interface {
	Fetch(ctx context.Context, carrier, trackingNumber string) (*Info, error)
}

// Client talks to an EasyPost-compatible tracker endpoint. Errors are
// returned as-is; classifying them is the caller's concern.
type Client struct {
	http    *httpclient.Client
	apiKey  string
	breaker *resilience.CircuitBreaker
}

// Ensure the concrete client satisfies the engine's requirements.
var _ Lookup = (*Client)(nil)

// NewClient creates a tracking client. Transient upstream failures get one
// fast retry; a nil breaker disables fail-fast protection.
func NewClient(cfg *config.TrackingConfig, breaker *resilience.CircuitBreaker) *Client {
	hc := httpclient.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	httpclient.WithRetry(httpclient.TransientRetryConfig())(hc)

	return &Client{
		http:    hc,
		apiKey:  cfg.APIKey,
		breaker: breaker,
	}
}

// Fetch retrieves the tracker for a carrier and tracking number. A tracker
// without scans comes back as an Info with empty Details, not an error.
func (c *Client) Fetch(ctx context.Context, carrier, trackingNumber string) (*Info, error) {
	path := fmt.Sprintf("/trackers/%s/%s", url.PathEscape(carrier), url.PathEscape(trackingNumber))
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	fetch := func(ctx context.Context) (interface{}, error) {
		return c.http.Get(ctx, path, headers)
	}

	var body []byte
	if c.breaker != nil {
		result, err := c.breaker.Execute(ctx, fetch)
		if err != nil {
			return nil, err
		}
		body = result.([]byte)
	} else {
		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		body = result.([]byte)
	}

	var resp trackerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode tracker response: %w", err)
	}

	return &Info{
		Details:      resp.Tracker.TrackingDetails,
		WeightOunces: resp.Tracker.Weight,
	}, nil
}
