package vecadd

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// MemcpyKind specifies the direction of memory transfer.
// Device memory is ordinary process memory owned by the pool, so every
// direction is a plain copy; the kind is validated against the operands.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

// Residency tells where a Buffer lives.
type Residency int32

const (
	// HostResident memory: a caller-owned Go slice the backend may not touch.
	HostResident Residency = iota
	// DeviceResident memory: allocated from a Context's MemoryPool.
	DeviceResident
	// Released device memory, returned to its pool by Free.
	Released
)

func (r Residency) String() string {
	switch r {
	case HostResident:
		return "host"
	case DeviceResident:
		return "device"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("Residency(%d)", int32(r))
	}
}

// Buffer is a contiguous, fixed-length sequence of numbers of one DType.
// Use the typed views (Float32, Float64, Float16) to read or write elements.
type Buffer struct {
	data      []byte
	n         int
	dtype     DType
	residency atomic.Int32
	pool      *MemoryPool
}

// Len returns the number of elements.
func (b *Buffer) Len() int { return b.n }

// DType returns the element type.
func (b *Buffer) DType() DType { return b.dtype }

// Bytes returns the size in bytes of the valid region.
func (b *Buffer) Bytes() int { return b.n * b.dtype.Size() }

// Residency reports where the buffer currently lives.
func (b *Buffer) Residency() Residency { return Residency(b.residency.Load()) }

// OnDevice reports whether the execution backend may access the buffer.
func (b *Buffer) OnDevice() bool { return b != nil && b.Residency() == DeviceResident }

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s[%d], %s)", b.dtype, b.n, b.Residency())
}

// Float32 returns a float32 view of the buffer. It panics if the buffer
// holds another dtype.
//
// Example:
//
//	d, _ := vecadd.Malloc(vecadd.Float32, 1024)
//	data := d.Float32()
//	data[0] = 3.14 // Direct access
func (b *Buffer) Float32() []float32 {
	b.mustHave(Float32)
	if b.n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.data[0])), b.n)
}

// Float64 returns a float64 view of the buffer. It panics if the buffer
// holds another dtype.
func (b *Buffer) Float64() []float64 {
	b.mustHave(Float64)
	if b.n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b.data[0])), b.n)
}

// Float16 returns a half precision view of the buffer. It panics if the
// buffer holds another dtype.
func (b *Buffer) Float16() []Half {
	b.mustHave(Float16)
	if b.n == 0 {
		return nil
	}
	return unsafe.Slice((*Half)(unsafe.Pointer(&b.data[0])), b.n)
}

// Float64At returns element i widened to float64, whatever the dtype.
func (b *Buffer) Float64At(i int) float64 {
	switch b.dtype {
	case Float32:
		return float64(b.Float32()[i])
	case Float64:
		return b.Float64()[i]
	case Float16:
		return float64(b.Float16()[i].Float32())
	}
	exceptions.Panicf("Buffer.Float64At: unsupported dtype %s", b.dtype)
	return 0
}

func (b *Buffer) mustHave(dtype DType) {
	if b.dtype != dtype {
		exceptions.Panicf("%s: requested %s view of a %s buffer", b, dtype, b.dtype)
	}
}

// HostBuffer wraps a caller-owned []float32, []float64 or []Half without
// copying. The result is host resident: kernels refuse it until it is
// uploaded with Context.Upload.
func HostBuffer(data any) (*Buffer, error) {
	raw, dtype, n, err := sliceBytes("HostBuffer", data)
	if err != nil {
		return nil, err
	}
	b := &Buffer{data: raw, n: n, dtype: dtype}
	b.residency.Store(int32(HostResident))
	return b, nil
}

// sliceBytes returns the bytes backing a supported Go slice.
func sliceBytes(op string, data any) ([]byte, DType, int, error) {
	switch s := data.(type) {
	case []float32:
		if len(s) == 0 {
			return nil, Float32, 0, nil
		}
		return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4), Float32, len(s), nil
	case []float64:
		if len(s) == 0 {
			return nil, Float64, 0, nil
		}
		return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8), Float64, len(s), nil
	case []Half:
		if len(s) == 0 {
			return nil, Float16, 0, nil
		}
		return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2), Float16, len(s), nil
	case *Buffer:
		if err := s.checkLive(op); err != nil {
			return nil, 0, 0, err
		}
		return s.data[:s.Bytes():s.Bytes()], s.dtype, s.n, nil
	}
	return nil, 0, 0, NewInvalidArgError(op, fmt.Sprintf("unsupported type: %T", data))
}

// checkLive fails for a nil buffer and for one released by Free, whose
// memory may already back another buffer.
func (b *Buffer) checkLive(op string) error {
	if b == nil {
		return NewInvalidArgError(op, "nil buffer")
	}
	if b.Residency() == Released {
		return NewResidencyError(op, fmt.Sprintf("%s was released", b))
	}
	return nil
}

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	backing []byte // keeps the aligned region reachable
	aligned []byte
	used    bool
}

// NewMemoryPool creates a new memory pool for efficient memory management.
// The pool tracks allocations and provides statistics on memory usage.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Allocate returns a device buffer of n elements. Contents are not cleared:
// memory recycled from the free list keeps whatever it held before.
func (mp *MemoryPool) Allocate(dtype DType, n int) (*Buffer, error) {
	if n < 0 {
		return nil, ErrInvalidSize
	}
	if dtype.Size() == 0 {
		return nil, NewInvalidArgError("Malloc", fmt.Sprintf("unsupported dtype %s", dtype))
	}
	b := &Buffer{n: n, dtype: dtype, pool: mp}
	b.residency.Store(int32(DeviceResident))
	if n == 0 {
		return b, nil
	}

	size := n * dtype.Size()
	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if len(alloc.aligned) >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			mp.track(int64(len(alloc.aligned)))
			b.data = alloc.aligned
			klog.V(3).Infof("memory pool: reused %d bytes for %s", len(alloc.aligned), b)
			return b, nil
		}
	}

	backing := make([]byte, alignedSize+MemoryAlignment)
	offset := 0
	if rem := int(uintptr(unsafe.Pointer(&backing[0])) % MemoryAlignment); rem != 0 {
		offset = MemoryAlignment - rem
	}
	alloc := &allocation{
		backing: backing,
		aligned: backing[offset : offset+alignedSize : offset+alignedSize],
		used:    true,
	}
	mp.allocated[alloc.key()] = alloc
	mp.track(int64(alignedSize))
	b.data = alloc.aligned
	klog.V(3).Infof("memory pool: allocated %d bytes for %s", alignedSize, b)
	return b, nil
}

func (a *allocation) key() uintptr {
	return uintptr(unsafe.Pointer(&a.aligned[0]))
}

func (mp *MemoryPool) track(delta int64) {
	mp.totalAlloc += delta
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns a buffer's memory to the pool and marks the buffer Released.
func (mp *MemoryPool) Free(b *Buffer) error {
	if b == nil {
		return nil
	}
	if b.pool != mp {
		return NewMemoryError("Free", fmt.Sprintf("%s was not allocated by this pool", b), nil)
	}
	if !b.residency.CompareAndSwap(int32(DeviceResident), int32(Released)) {
		return ErrDoubleFree
	}
	if b.n == 0 {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(unsafe.Pointer(&b.data[0]))]
	if !ok {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}
	if !alloc.used {
		return ErrDoubleFree
	}
	alloc.used = false
	mp.totalAlloc -= int64(len(alloc.aligned))
	if len(mp.freeList) < FreeListThreshold {
		mp.freeList = append(mp.freeList, alloc)
	} else {
		delete(mp.allocated, alloc.key())
	}
	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// Malloc allocates an uninitialized device buffer of n elements.
//
// Example:
//
//	d, err := ctx.Malloc(vecadd.Float32, 1024)
//	if err != nil {
//		return err
//	}
//	defer ctx.Free(d)
func (ctx *Context) Malloc(dtype DType, n int) (*Buffer, error) {
	return ctx.memory.Allocate(dtype, n)
}

// EmptyLike allocates an uninitialized device buffer with the length and
// dtype of b.
func (ctx *Context) EmptyLike(b *Buffer) (*Buffer, error) {
	return ctx.memory.Allocate(b.dtype, b.n)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a nil Buffer.
func (ctx *Context) Free(b *Buffer) error {
	return ctx.memory.Free(b)
}

// Memcpy copies size bytes between host slices and buffers.
//
// Parameters:
//   - dst: Destination (*Buffer or []float32, []float64, []Half)
//   - src: Source (*Buffer or a supported slice)
//   - size: Number of bytes to copy
//   - kind: Transfer direction
//
// Example:
//
//	h := make([]float32, 1024)
//	d, _ := ctx.Malloc(vecadd.Float32, 1024)
//	ctx.Memcpy(d, h, 1024*4, vecadd.MemcpyHostToDevice)
func (ctx *Context) Memcpy(dst, src any, size int, kind MemcpyKind) error {
	dstBytes, _, _, err := sliceBytes("Memcpy", dst)
	if err != nil {
		return err
	}
	srcBytes, _, _, err := sliceBytes("Memcpy", src)
	if err != nil {
		return err
	}
	if err := checkMemcpyKind(dst, src, kind); err != nil {
		return err
	}
	if size < 0 || size > len(dstBytes) || size > len(srcBytes) {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("size %d exceeds operands (dst=%d, src=%d bytes)",
			size, len(dstBytes), len(srcBytes)))
	}
	copy(dstBytes[:size], srcBytes[:size])
	return nil
}

func checkMemcpyKind(dst, src any, kind MemcpyKind) error {
	onDevice := func(v any) bool {
		b, ok := v.(*Buffer)
		return ok && b.OnDevice()
	}
	var wantDst, wantSrc bool
	switch kind {
	case MemcpyDefault:
		return nil
	case MemcpyHostToHost:
	case MemcpyHostToDevice:
		wantDst = true
	case MemcpyDeviceToHost:
		wantSrc = true
	case MemcpyDeviceToDevice:
		wantDst, wantSrc = true, true
	default:
		return NewInvalidArgError("Memcpy", fmt.Sprintf("unknown copy kind %d", kind))
	}
	if wantDst && !onDevice(dst) {
		return NewResidencyError("Memcpy", "destination is not device resident")
	}
	if wantSrc && !onDevice(src) {
		return NewResidencyError("Memcpy", "source is not device resident")
	}
	return nil
}

// Upload copies a host slice ([]float32, []float64 or []Half) into a new
// device buffer.
func (ctx *Context) Upload(data any) (*Buffer, error) {
	raw, dtype, n, err := sliceBytes("Upload", data)
	if err != nil {
		return nil, err
	}
	b, err := ctx.Malloc(dtype, n)
	if err != nil {
		return nil, err
	}
	copy(b.data, raw)
	return b, nil
}

// Download copies a device buffer into dst, which must be a slice of the
// buffer's dtype with at least b.Len() elements.
func (ctx *Context) Download(dst any, b *Buffer) error {
	if !b.OnDevice() {
		return NewResidencyError("Download", fmt.Sprintf("%v is not device resident", b))
	}
	_, dtype, n, err := sliceBytes("Download", dst)
	if err != nil {
		return err
	}
	if dtype != b.dtype {
		return NewDTypeError("Download", fmt.Sprintf("destination is %s, buffer is %s", dtype, b.dtype))
	}
	if n < b.n {
		return NewShapeError("Download", fmt.Sprintf("destination holds %d elements, buffer has %d", n, b.n))
	}
	return ctx.Memcpy(dst, b, b.Bytes(), MemcpyDeviceToHost)
}
