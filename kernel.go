package vecadd

// Program identifies one instance of a kernel within a launch grid. It is
// the block descriptor of the launch: program PID owns the offsets
// [PID*BlockSize, PID*BlockSize+BlockSize).
type Program struct {
	PID         int // Program index within the grid
	NumPrograms int // Size of the grid
	BlockSize   int // Elements handled per program
}

// Kernel represents a compute kernel that can be executed in parallel.
// Implementations must be safe for concurrent use: Execute is called from
// several goroutines at once, once per program, in no particular order.
type Kernel interface {
	Execute(p Program)
}

// KernelFunc is a function that can be launched as a kernel.
type KernelFunc func(p Program)

// Execute implements Kernel.
func (fn KernelFunc) Execute(p Program) {
	fn(p)
}

// Start returns the first offset of the program's block.
func (p Program) Start() int {
	return p.PID * p.BlockSize
}

// Offsets returns the candidate offsets of the block, including the ones
// past the end of the data.
func (p Program) Offsets() []int {
	offsets := make([]int, p.BlockSize)
	start := p.Start()
	for i := range offsets {
		offsets[i] = start + i
	}
	return offsets
}

// Mask returns, for each candidate offset, whether it is below n.
func (p Program) Mask(n int) []bool {
	mask := make([]bool, p.BlockSize)
	start := p.Start()
	for i := range mask {
		mask[i] = start+i < n
	}
	return mask
}

// Bounds returns the half-open range of valid offsets of the block, clipped
// to [0, n). It is the contiguous form of Offsets filtered by Mask and is
// empty when the block starts past n.
func (p Program) Bounds(n int) (lo, hi int) {
	lo = min(p.Start(), n)
	hi = min(p.Start()+p.BlockSize, n)
	return lo, hi
}

// CDiv returns ceil(a / b) for non-negative a and positive b.
func CDiv(a, b int) int {
	return (a + b - 1) / b
}

// validBlockSize reports whether n is a positive power of two no larger
// than MaxBlockSize.
func validBlockSize(n int) bool {
	return n > 0 && n <= MaxBlockSize && n&(n-1) == 0
}
