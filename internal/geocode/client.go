package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parcelwatch/fraud-screening/internal/geo"
	"github.com/parcelwatch/fraud-screening/pkg/config"
	"github.com/parcelwatch/fraud-screening/pkg/httpclient"
	"github.com/parcelwatch/fraud-screening/pkg/logger"
	redisClient "github.com/parcelwatch/fraud-screening/pkg/redis"
	"github.com/parcelwatch/fraud-screening/pkg/resilience"
)

const cacheKeyPrefix = "geocode:"

// Geocoder resolves a city and postal code to a coordinate.
type Geocoder interface {
	Resolve(ctx context.Context, city, zip string) (geo.Coordinate, error)
}

// geocodeResponse mirrors the upstream geocoding envelope.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Client talks to a Google-compatible geocoding endpoint. City/zip centroids
// are stable, so successful lookups are cached in redis; cache failures
// degrade to direct calls.
type Client struct {
	http    *httpclient.Client
	apiKey  string
	cache   *redisClient.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
}

// Ensure the concrete client satisfies the engine's requirements.
var _ Geocoder = (*Client)(nil)

// NewClient creates a geocoding client. Transient upstream failures get one
// fast retry; a nil cache disables caching; a nil breaker disables fail-fast
// protection.
func NewClient(cfg *config.GeocodingConfig, cache *redisClient.Client, breaker *resilience.CircuitBreaker) *Client {
	hc := httpclient.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	httpclient.WithRetry(httpclient.TransientRetryConfig())(hc)

	return &Client{
		http:    hc,
		apiKey:  cfg.APIKey,
		cache:   cache,
		ttl:     time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		breaker: breaker,
	}
}

// Resolve returns the centroid coordinate for a city and postal code.
func (c *Client) Resolve(ctx context.Context, city, zip string) (geo.Coordinate, error) {
	key := cacheKey(city, zip)

	if c.cache != nil {
		cached, err := c.cache.GetString(ctx, key)
		switch {
		case err == nil:
			var coord geo.Coordinate
			if jsonErr := json.Unmarshal([]byte(cached), &coord); jsonErr == nil {
				return coord, nil
			}
			// Unreadable entries are treated as misses and overwritten below.
		case !redisClient.IsNil(err):
			logger.Warn("geocode cache read failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	coord, err := c.resolveRemote(ctx, city, zip)
	if err != nil {
		return geo.Coordinate{}, err
	}

	if c.cache != nil {
		if data, jsonErr := json.Marshal(coord); jsonErr == nil {
			if err := c.cache.SetWithExpiration(ctx, key, data, c.ttl); err != nil {
				logger.Warn("geocode cache write failed",
					zap.String("key", key),
					zap.Error(err))
			}
		}
	}

	return coord, nil
}

func (c *Client) resolveRemote(ctx context.Context, city, zip string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("address", fmt.Sprintf("%s,%s", city, zip))
	params.Set("key", c.apiKey)
	path := "/geocode/json?" + params.Encode()

	fetch := func(ctx context.Context) (interface{}, error) {
		return c.http.Get(ctx, path, nil)
	}

	var body []byte
	if c.breaker != nil {
		result, err := c.breaker.Execute(ctx, fetch)
		if err != nil {
			return geo.Coordinate{}, err
		}
		body = result.([]byte)
	} else {
		result, err := fetch(ctx)
		if err != nil {
			return geo.Coordinate{}, err
		}
		body = result.([]byte)
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if resp.Status != "OK" || len(resp.Results) == 0 {
		return geo.Coordinate{}, fmt.Errorf("geocode %s,%s: status %q with %d results",
			city, zip, resp.Status, len(resp.Results))
	}

	location := resp.Results[0].Geometry.Location
	return geo.Coordinate{Latitude: location.Lat, Longitude: location.Lng}, nil
}

func cacheKey(city, zip string) string {
	return cacheKeyPrefix + strings.ToLower(strings.TrimSpace(city)) + ":" + strings.TrimSpace(zip)
}
