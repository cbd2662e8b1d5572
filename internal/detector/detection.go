package detector

import (
	"encoding/json"
	"time"
)

// Detection is one timestamped observation of the target position in screen
// pixels.
type Detection struct {
	X         int
	Y         int
	Timestamp time.Time
}

// wireDetection is the JSON shape exchanged with detector processes and the
// HTTP API. Timestamps travel as Unix milliseconds.
type wireDetection struct {
	X           int   `json:"x"`
	Y           int   `json:"y"`
	TimestampMs int64 `json:"timestamp_ms,omitempty"`
}

// MarshalJSON encodes the detection with a millisecond timestamp.
func (d Detection) MarshalJSON() ([]byte, error) {
	w := wireDetection{X: d.X, Y: d.Y}
	if !d.Timestamp.IsZero() {
		w.TimestampMs = d.Timestamp.UnixMilli()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a detection. A missing timestamp leaves Timestamp
// zero so the receiver can stamp it on arrival.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var w wireDetection
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.X = w.X
	d.Y = w.Y
	d.Timestamp = time.Time{}
	if w.TimestampMs != 0 {
		d.Timestamp = time.UnixMilli(w.TimestampMs)
	}
	return nil
}
