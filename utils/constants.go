package utils

import (
	"time"
)

// Call center defaults
const (
	// DefaultMaxCallAttempts caps automatic retries of a voter (manual assignment ignores it)
	DefaultMaxCallAttempts = 3

	// DefaultCallbackDelay is how far out a requested callback is scheduled
	DefaultCallbackDelay = 24 * time.Hour

	// DefaultQueueSize is the open-assignment target used by load-batch when none is given
	DefaultQueueSize = 20

	// MaxQueueSize bounds queue reads and load-batch targets
	MaxQueueSize = 500

	// MaxBatchSize bounds the number of voters accepted by one batch request
	MaxBatchSize = 1000

	// DefaultListLimit is the page size used when a list request names none
	DefaultListLimit = 50

	// DefaultLockTTL is the TTL of the per-caller load-batch lock
	DefaultLockTTL = 15 * time.Second

	// RequestTimeout is the default timeout for request-scoped contexts
	RequestTimeout = 30 * time.Second
)
