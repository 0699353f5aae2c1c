package vecadd

import (
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// LaunchOption configures a single Add launch.
type LaunchOption func(*launchConfig)

type launchConfig struct {
	blockSize int
	stream    *Stream
}

// WithBlockSize sets the number of elements each program handles. It must
// be a power of two; it changes parallel granularity, never the result.
func WithBlockSize(n int) LaunchOption {
	return func(c *launchConfig) { c.blockSize = n }
}

// WithStream enqueues the launch on s instead of the default stream.
func WithStream(s *Stream) LaunchOption {
	return func(c *launchConfig) { c.stream = s }
}

// AddKernel returns the kernel computing out = x + y over the first n
// elements. Each program loads x and y at the valid offsets of its block,
// adds them and stores the sum at the same offsets; offsets >= n are
// neither read nor written.
func AddKernel(x, y, out *Buffer, n int) KernelFunc {
	switch out.dtype {
	case Float32:
		xs, ys, os := x.Float32(), y.Float32(), out.Float32()
		return func(p Program) {
			lo, hi := p.Bounds(n)
			addBlock(xs[lo:hi], ys[lo:hi], os[lo:hi])
		}
	case Float64:
		xs, ys, os := x.Float64(), y.Float64(), out.Float64()
		return func(p Program) {
			lo, hi := p.Bounds(n)
			vecmath.AddBlock(os[lo:hi], xs[lo:hi], ys[lo:hi])
		}
	case Float16:
		xs, ys, os := x.Float16(), y.Float16(), out.Float16()
		return func(p Program) {
			lo, hi := p.Bounds(n)
			addBlockHalf(xs[lo:hi], ys[lo:hi], os[lo:hi])
		}
	}
	exceptions.Panicf("AddKernel: unsupported dtype %s", out.dtype)
	return nil
}

func addBlock[T constraints.Float](x, y, out []T) {
	x = x[:len(out)]
	y = y[:len(out)]
	for i := range out {
		out[i] = x[i] + y[i]
	}
}

// addBlockHalf adds in float32 and rounds once to half precision.
func addBlockHalf(x, y, out []Half) {
	x = x[:len(out)]
	y = y[:len(out)]
	for i := range out {
		out[i] = float16.Fromfloat32(x[i].Float32() + y[i].Float32())
	}
}

// validateOperands checks the preconditions shared by every binary add:
// both operands on this device, same length, same dtype.
func validateOperands(op string, x, y *Buffer) error {
	if !x.OnDevice() {
		return NewResidencyError(op, fmt.Sprintf("x: %v is not device resident", x))
	}
	if !y.OnDevice() {
		return NewResidencyError(op, fmt.Sprintf("y: %v is not device resident", y))
	}
	if x.n != y.n {
		return NewShapeError(op, fmt.Sprintf("x has %d elements, y has %d", x.n, y.n))
	}
	if x.dtype != y.dtype {
		return NewDTypeError(op, fmt.Sprintf("x is %s, y is %s", x.dtype, y.dtype))
	}
	return nil
}

// Add launches out = x + y and returns the freshly allocated output with
// the launch's completion Event. The call returns before the kernel has
// run: wait on the Event before reading out.
//
// Both inputs must be device resident, of equal length and dtype; no work
// is dispatched otherwise. An empty input launches zero programs.
func (ctx *Context) Add(x, y *Buffer, opts ...LaunchOption) (*Buffer, *Event, error) {
	cfg := launchConfig{blockSize: DefaultBlockSize, stream: ctx.defaultStream}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateOperands("Add", x, y); err != nil {
		return nil, nil, err
	}
	if !validBlockSize(cfg.blockSize) {
		return nil, nil, errors.Wrapf(ErrInvalidBlockSize, "block size %d", cfg.blockSize)
	}

	out, err := ctx.EmptyLike(x)
	if err != nil {
		return nil, nil, err
	}
	if !out.OnDevice() {
		return nil, nil, NewResidencyError("Add", "output is not device resident")
	}

	n := out.Len()
	ev, err := ctx.LaunchStream(AddKernel(x, y, out, n), CDiv(n, cfg.blockSize), cfg.blockSize, cfg.stream)
	if err != nil {
		_ = ctx.Free(out)
		return nil, nil, err
	}
	return out, ev, nil
}

// Add launches out = x + y on the default context. See Context.Add.
func Add(x, y *Buffer, opts ...LaunchOption) (*Buffer, *Event, error) {
	return defaultContext.Add(x, y, opts...)
}
