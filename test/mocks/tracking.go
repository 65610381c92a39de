package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// TrackerScan is one scan row served by the fake carrier API.
type TrackerScan struct {
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
	Datetime string `json:"datetime,omitempty"`
}

type trackerPayload struct {
	Scans  []TrackerScan
	Weight *float64
}

// FakeCarrierAPI serves EasyPost-style tracker payloads keyed by tracking
// number. Unknown tracking numbers get a 404, and SetUnavailable switches
// every response to a 503.
type FakeCarrierAPI struct {
	mu          sync.Mutex
	trackers    map[string]trackerPayload
	unavailable bool
	server      *httptest.Server
}

// NewFakeCarrierAPI starts the fake server. Callers must Close it.
func NewFakeCarrierAPI() *FakeCarrierAPI {
	f := &FakeCarrierAPI{trackers: make(map[string]trackerPayload)}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the fake server's base URL.
func (f *FakeCarrierAPI) URL() string {
	return f.server.URL
}

// Close shuts the fake server down.
func (f *FakeCarrierAPI) Close() {
	f.server.Close()
}

// SetTracker registers the payload returned for a tracking number. A nil
// weight mimics carriers that do not report one.
func (f *FakeCarrierAPI) SetTracker(trackingNumber string, weightOunces *float64, scans ...TrackerScan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackers[trackingNumber] = trackerPayload{Scans: scans, Weight: weightOunces}
}

// SetUnavailable toggles outage mode.
func (f *FakeCarrierAPI) SetUnavailable(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = down
}

func (f *FakeCarrierAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	down := f.unavailable
	f.mu.Unlock()
	if down {
		http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "trackers" {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	payload, ok := f.trackers[parts[2]]
	f.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":"tracker not found"}`, http.StatusNotFound)
		return
	}

	scans := payload.Scans
	if scans == nil {
		scans = []TrackerScan{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"tracker": map[string]interface{}{
			"tracking_details": scans,
			"weight":           payload.Weight,
		},
	})
}
