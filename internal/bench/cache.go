package bench

// cacheLine is the stride between written bytes.
const cacheLine = 64

// CacheFlusher evicts the CPU caches by writing one byte per cache line of
// a buffer larger than the last level cache, so that timed calls start
// cold.
type CacheFlusher struct {
	data []byte
	pass byte
}

// NewCacheFlusher allocates a flush buffer of size bytes. It returns nil
// for size <= 0, which Flush treats as a no-op.
func NewCacheFlusher(size int) *CacheFlusher {
	if size <= 0 {
		return nil
	}
	f := &CacheFlusher{data: make([]byte, size)}
	// Touch every line so the pages are physically backed.
	f.Flush()
	return f
}

// Flush writes a new pattern over the whole buffer.
func (f *CacheFlusher) Flush() {
	if f == nil {
		return
	}
	f.pass++
	for i := 0; i < len(f.data); i += cacheLine {
		f.data[i] = byte(i/cacheLine) ^ f.pass
	}
}

// Size returns the size of the flush buffer in bytes.
func (f *CacheFlusher) Size() int {
	if f == nil {
		return 0
	}
	return len(f.data)
}
