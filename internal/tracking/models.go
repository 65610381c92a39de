package tracking

// ScanEvent is one carrier scan in a parcel's history. City and Zip describe
// where the scan happened; the remaining fields are carried through from the
// upstream payload.
type ScanEvent struct {
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
	Datetime string `json:"datetime,omitempty"`
}

// Info is the tracking state for one parcel. Details preserves upstream scan
// order: the first element is the oldest scan, the last the most recent.
// WeightOunces is nil when the carrier did not report a weight.
type Info struct {
	Details      []ScanEvent
	WeightOunces *float64
}

// trackerResponse mirrors the upstream tracker envelope.
type trackerResponse struct {
	Tracker struct {
		TrackingDetails []ScanEvent `json:"tracking_details"`
		Weight          *float64    `json:"weight"`
	} `json:"tracker"`
}
