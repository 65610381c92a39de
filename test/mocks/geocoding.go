package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeGeocodingAPI serves Google-style geocode payloads keyed by lowercased
// city name. Cities that were never registered come back as ZERO_RESULTS,
// matching how the real API reports unknown addresses.
type FakeGeocodingAPI struct {
	mu     sync.Mutex
	coords map[string][2]float64
	server *httptest.Server
}

// NewFakeGeocodingAPI starts the fake server. Callers must Close it.
func NewFakeGeocodingAPI() *FakeGeocodingAPI {
	f := &FakeGeocodingAPI{coords: make(map[string][2]float64)}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the fake server's base URL.
func (f *FakeGeocodingAPI) URL() string {
	return f.server.URL
}

// Close shuts the fake server down.
func (f *FakeGeocodingAPI) Close() {
	f.server.Close()
}

// SetLocation registers the centroid returned for a city, regardless of the
// postal code in the query.
func (f *FakeGeocodingAPI) SetLocation(city string, lat, lng float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coords[strings.ToLower(city)] = [2]float64{lat, lng}
}

func (f *FakeGeocodingAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/geocode/json" {
		http.NotFound(w, r)
		return
	}

	address := r.URL.Query().Get("address")
	city := strings.ToLower(strings.TrimSpace(strings.SplitN(address, ",", 2)[0]))

	f.mu.Lock()
	coord, ok := f.coords[city]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ZERO_RESULTS",
			"results": []interface{}{},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "OK",
		"results": []interface{}{
			map[string]interface{}{
				"geometry": map[string]interface{}{
					"location": map[string]interface{}{
						"lat": coord[0],
						"lng": coord[1],
					},
				},
			},
		},
	})
}
