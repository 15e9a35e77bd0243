package ir

// Version constants for the gateway and its cache key format.
const (
	// LapisVersion is the gateway version reported by /sample/info.
	LapisVersion = "0.4.0"

	// KeyVersion is bumped whenever the canonical query serialization
	// changes, so persisted cache entries from older builds never match.
	KeyVersion = "1"
)
