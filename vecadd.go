package vecadd

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Device represents a compute device. Here, this is the CPU with its
// cores and available memory.
type Device struct {
	ID         int    // Unique device identifier
	Name       string // Human-readable device name
	TotalMem   uint64 // Total available memory in bytes
	NumCores   int    // Number of CPU cores
	MaxThreads int    // Maximum concurrent threads
	Features   string // Detected SIMD extensions
}

// Context represents an execution context.
// It manages device resources, memory allocation, and stream execution.
// A Context should be destroyed when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      atomic.Int32
	memory        *MemoryPool
	defaultStream *Stream
	workers       int
	destroyed     atomic.Bool
}

// ContextOption configures a Context created by NewContext.
type ContextOption func(*Context)

// WithWorkers caps the number of goroutines a single launch fans out to.
// Values <= 0 select runtime.NumCPU().
func WithWorkers(n int) ContextOption {
	return func(ctx *Context) {
		if n > 0 {
			ctx.workers = n
		}
	}
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
type Stream struct {
	id    int
	ctx   *Context
	tasks chan func()
	done  chan struct{}

	mu     sync.RWMutex // guards closed and sends on tasks
	closed bool

	errMu   sync.Mutex
	lastErr error // first launch failure since the last Synchronize
}

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

func init() {
	initOnce.Do(func() {
		defaultDevice = newDevice()
		defaultContext = NewContext()
	})
}

func newDevice() *Device {
	return &Device{
		ID:         0,
		Name:       "CPU",
		TotalMem:   getSystemMemory(),
		NumCores:   runtime.NumCPU(),
		MaxThreads: runtime.GOMAXPROCS(0),
		Features:   GetCPUInfo(),
	}
}

// NewContext creates a Context with its own memory pool and default stream.
func NewContext(opts ...ContextOption) *Context {
	ctx := &Context{
		device:  defaultDevice,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(),
		workers: runtime.NumCPU(),
	}
	if ctx.device == nil {
		ctx.device = newDevice()
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Default returns the process-wide Context used by the package-level functions.
func Default() *Context {
	return defaultContext
}

// Malloc allocates an uninitialized device buffer of n elements on the
// default context.
//
// Example:
//
//	d, err := vecadd.Malloc(vecadd.Float32, 1024)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer vecadd.Free(d)
func Malloc(dtype DType, n int) (*Buffer, error) {
	return defaultContext.Malloc(dtype, n)
}

// Free releases device memory allocated by Malloc.
func Free(b *Buffer) error {
	return defaultContext.Free(b)
}

// Upload copies a host slice into a new buffer on the default context.
func Upload(data any) (*Buffer, error) {
	return defaultContext.Upload(data)
}

// Download copies a device buffer into a host slice.
func Download(dst any, b *Buffer) error {
	return defaultContext.Download(dst, b)
}

// Memcpy copies memory between host and device on the default context.
func Memcpy(dst, src any, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a kernel over grid programs on the default stream.
//
// Example:
//
//	ev, err := vecadd.Launch(kernel, vecadd.CDiv(n, 1024), 1024)
func Launch(kernel Kernel, grid, blockSize int) (*Event, error) {
	return defaultContext.Launch(kernel, grid, blockSize)
}

// LaunchFunc executes a kernel function
func LaunchFunc(fn KernelFunc, grid, blockSize int) (*Event, error) {
	return defaultContext.Launch(fn, grid, blockSize)
}

// Synchronize waits for all operations on all streams of the default
// context to complete.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the current device information.
func GetDevice() *Device {
	return defaultDevice
}

// GetDeviceCount returns the number of available devices. Only the CPU is
// exposed.
func GetDeviceCount() int {
	return 1
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewInvalidArgError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id))
	}
	return defaultDevice, nil
}

// Context methods

// Device returns the device the context executes on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Workers returns the maximum fan-out of a launch.
func (ctx *Context) Workers() int {
	return ctx.workers
}

// MemoryStats returns the bytes currently allocated and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// DefaultStream returns the stream used when none is given.
func (ctx *Context) DefaultStream() *Stream {
	return ctx.defaultStream
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(ctx.streamID.Add(1))
	stream := &Stream{
		id:    id,
		ctx:   ctx,
		tasks: make(chan func(), StreamQueueDepth),
		done:  make(chan struct{}),
	}

	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel Kernel, grid, blockSize int) (*Event, error) {
	return ctx.LaunchStream(kernel, grid, blockSize, ctx.defaultStream)
}

// LaunchStream executes a kernel on a specific stream
func (ctx *Context) LaunchStream(kernel Kernel, grid, blockSize int, stream *Stream) (*Event, error) {
	if ctx.destroyed.Load() {
		return nil, NewInvalidArgError("Launch", "context destroyed")
	}
	if stream == nil {
		stream = ctx.defaultStream
	}
	if stream.ctx != ctx {
		return nil, NewInvalidArgError("Launch", fmt.Sprintf("stream %d belongs to another context", stream.id))
	}
	return ctx.launchInternal(kernel, grid, blockSize, stream)
}

// Synchronize waits for all streams to complete and returns the first
// launch failure recorded since the previous call.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	var first error
	for _, stream := range streams {
		if err := stream.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy waits for outstanding work and stops every stream. Buffers stay
// readable but the context accepts no further launches.
func (ctx *Context) Destroy() {
	if ctx.destroyed.Swap(true) {
		return
	}
	if err := ctx.Synchronize(); err != nil {
		klog.Warningf("vecadd: pending launch failed during Destroy: %v", err)
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for _, s := range ctx.streams {
		s.close()
	}
}

// Stream methods

// ID returns the stream identifier within its context.
func (s *Stream) ID() int {
	return s.id
}

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		task()
	}
	close(s.done)
}

// Synchronize waits for every task submitted before the call and returns
// the first launch failure recorded since the previous Synchronize.
func (s *Stream) Synchronize() error {
	// Tasks run in FIFO order: once the marker runs, everything queued
	// ahead of it has completed.
	marker := make(chan struct{})
	if err := s.Submit(func() { close(marker) }); err != nil {
		<-s.done
	} else {
		<-marker
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	return err
}

// Submit adds a task to the stream. It fails once the stream is closed.
func (s *Stream) Submit(task func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return NewInvalidArgError("Submit", fmt.Sprintf("stream %d is closed", s.id))
	}
	s.tasks <- task
	return nil
}

func (s *Stream) recordErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.lastErr == nil {
		s.lastErr = err
	}
}

// close stops accepting tasks and waits for the queued ones to finish.
func (s *Stream) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.tasks)
	}
	s.mu.Unlock()
	<-s.done
}
