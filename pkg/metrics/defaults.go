package metrics

// Default capture metrics, registered on the Default registry at init.
//
// # Label Conventions
//
// The transport label carries the capture adapter name: http, eventhttp,
// grpc (all lowercase). The kind label on CaptureErrors names the contained
// failure class: annotator, normalize, forward.
var (
	// Default is the registry the capture engine writes to and the inspect
	// API exposes at /metrics.
	Default = NewRegistry()

	// RecordsCaptured counts records inserted into the trace store.
	// Label: transport.
	RecordsCaptured *Counter

	// RecordsEvicted counts records dropped by FIFO eviction.
	RecordsEvicted *Counter

	// CaptureErrors counts failures contained inside the capture machinery.
	// Label: kind. These never reach the traced caller.
	CaptureErrors *Counter

	// ObserverPanics counts subscriber callbacks that panicked during
	// notification.
	ObserverPanics *Counter

	// CaptureDuration tracks observed call durations in seconds.
	CaptureDuration *Histogram
)

func init() {
	RecordsCaptured = Default.NewCounter("tapd_records_captured_total",
		"Total trace records captured.", "transport")
	RecordsEvicted = Default.NewCounter("tapd_records_evicted_total",
		"Total trace records evicted from the ring buffer.", "")
	CaptureErrors = Default.NewCounter("tapd_capture_errors_total",
		"Total errors contained inside the capture machinery.", "kind")
	ObserverPanics = Default.NewCounter("tapd_observer_panics_total",
		"Total subscriber panics recovered during notification.", "")
	CaptureDuration = Default.NewHistogram("tapd_capture_duration_seconds",
		"Observed call durations in seconds.",
		[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
}
