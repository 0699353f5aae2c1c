// Package vecadd configuration constants
package vecadd

// Launch geometry
const (
	// Default number of elements each program processes
	DefaultBlockSize = 1024

	// Largest accepted block size
	MaxBlockSize = 1 << 20

	// Capacity of a stream's pending task queue
	StreamQueueDepth = 1000
)

// Memory pool parameters
const (
	// Memory alignment for allocations (one cache line)
	MemoryAlignment = 64

	// Free list size threshold for reuse; above it freed blocks are dropped
	FreeListThreshold = 100
)

// Numerical constants
const (
	// Machine epsilon for float32
	Float32Epsilon = 1.192092896e-07

	// Maximum ULP difference for float32 comparisons
	MaxULPDiff = 4
)

// Assumed device memory when the OS cannot report it (16GB)
const fallbackSystemMemory = 16 << 30
