// Package metrics provides the per-subsystem Prometheus collectors.
package metrics

// Label values shared across collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	SourceLive     = "live"
	SourceFallback = "fallback"
)

// Histogram bucket parameters
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

const namespace = "f1predict"
