// Package detector defines the boundary to the external target detector and
// a few ways of feeding detections into the control loop.
package detector

// Detector yields the detections observed since the previous call.
type Detector interface {
	// Detect drains pending detections in arrival order. It returns an empty
	// slice when nothing new arrived.
	Detect() ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}
