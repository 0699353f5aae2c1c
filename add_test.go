package vecadd

import (
	"fmt"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func newTestContext(t *testing.T, opts ...ContextOption) *Context {
	t.Helper()
	ctx := NewContext(opts...)
	t.Cleanup(ctx.Destroy)
	return ctx
}

func iota32(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i)
	}
	return s
}

func TestAddDoublesRamp(t *testing.T) {
	ctx := newTestContext(t)
	x := UploadOrFail(t, ctx, iota32(4))
	y := UploadOrFail(t, ctx, iota32(4))

	out := AddOrFail(t, ctx, x, y)
	require.Equal(t, []float32{0, 2, 4, 6}, out.Float32())
}

func TestAddDoublesRampAtFullSize(t *testing.T) {
	ctx := newTestContext(t)
	const n = 98432
	ramp := iota32(n)
	x := UploadOrFail(t, ctx, ramp)
	y := UploadOrFail(t, ctx, ramp)

	out, ev, err := ctx.Add(x, y)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.Equal(t, 97, ev.Programs())
	require.Equal(t, n, out.Len())
	for i, v := range out.Float32() {
		require.Equal(t, float32(2*i), v, "index %d", i)
	}
}

func TestAddLeavesPoolPaddingUntouched(t *testing.T) {
	ctx := newTestContext(t)
	// 1000 float32 fill 4000 bytes of a 4032-byte aligned block; the single
	// program's last 24 offsets fall in the padding.
	const n = 1000
	x := UploadOrFail(t, ctx, iota32(n))
	y := UploadOrFail(t, ctx, iota32(n))

	poison := MallocOrFail(t, ctx, Float32, n)
	for i := range poison.data {
		poison.data[i] = 0xAB
	}
	require.NoError(t, ctx.Free(poison))

	out := AddOrFail(t, ctx, x, y)
	require.Same(t, &poison.data[0], &out.data[0], "output reuses the poisoned block")
	padding := out.data[out.Bytes():]
	require.Len(t, padding, 32)
	for i, b := range padding {
		assert.Equal(t, byte(0xAB), b, "padding byte %d", i)
	}
	for i, v := range out.Float32() {
		require.Equal(t, float32(2*i), v)
	}
}

func TestAddMatchesReference(t *testing.T) {
	ctx := newTestContext(t)
	const n = 98432
	x := must.M1(ctx.Rand(Float32, n, 0))
	y := must.M1(ctx.Rand(Float32, n, 1))

	out, ev, err := ctx.Add(x, y)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	require.Equal(t, n, out.Len())
	require.Equal(t, Float32, out.DType())
	assert.Equal(t, CDiv(n, DefaultBlockSize), ev.Programs())
	assert.Equal(t, 97, ev.Programs())

	expected := must.M1(ctx.ReferenceAdd(x, y))
	diff := must.M1(MaxAbsDiff(expected, out))
	assert.Equal(t, 0.0, diff)

	xs, ys, os := x.Float32(), y.Float32(), out.Float32()
	for _, i := range []int{0, 1023, 1024, n - 2, n - 1} {
		assert.Equal(t, xs[i]+ys[i], os[i], "index %d", i)
	}
}

func TestAddPartialLastBlockLeavesInputsUntouched(t *testing.T) {
	ctx := newTestContext(t)
	const n = 1000
	hostX, hostY := iota32(n), iota32(n)
	x := UploadOrFail(t, ctx, hostX)
	y := UploadOrFail(t, ctx, hostY)

	out := AddOrFail(t, ctx, x, y, WithBlockSize(256))
	require.Equal(t, n, out.Len())
	for i, v := range out.Float32() {
		require.Equal(t, float32(2*i), v)
	}
	assert.Equal(t, hostX, x.Float32())
	assert.Equal(t, hostY, y.Float32())
}

func TestAddIsRepeatable(t *testing.T) {
	ctx := newTestContext(t)
	x := must.M1(ctx.Rand(Float32, 5000, 7))
	y := must.M1(ctx.Rand(Float32, 5000, 8))

	first := AddOrFail(t, ctx, x, y)
	second := AddOrFail(t, ctx, x, y)
	assert.Equal(t, first.Float32(), second.Float32())
}

func TestAddBlockSizeDoesNotChangeResult(t *testing.T) {
	ctx := newTestContext(t)
	const n = 4099
	x := must.M1(ctx.Rand(Float32, n, 3))
	y := must.M1(ctx.Rand(Float32, n, 4))
	want := AddOrFail(t, ctx, x, y).Float32()

	for _, bs := range []int{1, 2, 64, 1024, 4096, 8192} {
		t.Run(fmt.Sprintf("block=%d", bs), func(t *testing.T) {
			out, ev, err := ctx.Add(x, y, WithBlockSize(bs))
			require.NoError(t, err)
			require.NoError(t, ev.Wait())
			assert.Equal(t, CDiv(n, bs), ev.Programs())
			assert.Equal(t, want, out.Float32())
		})
	}
}

func TestAddEmpty(t *testing.T) {
	ctx := newTestContext(t)
	x := UploadOrFail(t, ctx, []float32{})
	y := UploadOrFail(t, ctx, []float32{})

	out, ev, err := ctx.Add(x, y)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 0, ev.Programs())
	assert.True(t, out.OnDevice())
}

func TestAddSingleElement(t *testing.T) {
	ctx := newTestContext(t)
	x := UploadOrFail(t, ctx, []float32{1.5})
	y := UploadOrFail(t, ctx, []float32{2.25})

	out, ev, err := ctx.Add(x, y)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.Equal(t, 1, ev.Programs())
	assert.Equal(t, []float32{3.75}, out.Float32())
}

func TestAddFloat64(t *testing.T) {
	ctx := newTestContext(t)
	const n = 3001
	x := must.M1(ctx.Rand(Float64, n, 11))
	y := must.M1(ctx.Rand(Float64, n, 12))

	out := AddOrFail(t, ctx, x, y, WithBlockSize(128))
	xs, ys := x.Float64(), y.Float64()
	for i, v := range out.Float64() {
		require.Equal(t, xs[i]+ys[i], v, "index %d", i)
	}
}

func TestAddFloat16(t *testing.T) {
	ctx := newTestContext(t)
	hx := []Half{float16.Fromfloat32(1), float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}
	hy := []Half{float16.Fromfloat32(2), float16.Fromfloat32(0.25), float16.Fromfloat32(2)}
	x := UploadOrFail(t, ctx, hx)
	y := UploadOrFail(t, ctx, hy)

	out := AddOrFail(t, ctx, x, y)
	got := make([]float32, out.Len())
	for i, h := range out.Float16() {
		got[i] = h.Float32()
	}
	assert.Equal(t, []float32{3, 0.75, 0}, got)
}

func TestAddRejectsHostResidentInput(t *testing.T) {
	ctx := newTestContext(t)
	host := must.M1(HostBuffer([]float32{1, 2, 3}))
	dev := UploadOrFail(t, ctx, []float32{1, 2, 3})

	for name, args := range map[string][2]*Buffer{
		"x": {host, dev},
		"y": {dev, host},
	} {
		t.Run(name, func(t *testing.T) {
			before, _ := ctx.MemoryStats()
			out, ev, err := ctx.Add(args[0], args[1])
			require.Error(t, err)
			assert.True(t, IsResidencyError(err))
			assert.True(t, errors.Is(err, ErrNotDeviceResident))
			assert.Nil(t, out)
			assert.Nil(t, ev)
			after, _ := ctx.MemoryStats()
			assert.Equal(t, before, after, "no output allocated")
		})
	}
}

func TestAddRejectsReleasedInput(t *testing.T) {
	ctx := newTestContext(t)
	x := UploadOrFail(t, ctx, []float32{1, 2})
	y := UploadOrFail(t, ctx, []float32{3, 4})
	require.NoError(t, ctx.Free(x))

	_, _, err := ctx.Add(x, y)
	require.Error(t, err)
	assert.True(t, IsResidencyError(err))
}

func TestAddRejectsNilInput(t *testing.T) {
	ctx := newTestContext(t)
	y := UploadOrFail(t, ctx, []float32{3, 4})
	_, _, err := ctx.Add(nil, y)
	assert.True(t, IsResidencyError(err))
}

func TestAddRejectsMismatchedOperands(t *testing.T) {
	ctx := newTestContext(t)
	a3 := UploadOrFail(t, ctx, []float32{1, 2, 3})
	a4 := UploadOrFail(t, ctx, []float32{1, 2, 3, 4})
	d3 := UploadOrFail(t, ctx, []float64{1, 2, 3})

	_, _, err := ctx.Add(a3, a4)
	assert.True(t, IsShapeError(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, _, err = ctx.Add(a3, d3)
	assert.True(t, IsDTypeError(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrDTypeMismatch))
}

func TestAddRejectsInvalidBlockSize(t *testing.T) {
	ctx := newTestContext(t)
	x := UploadOrFail(t, ctx, iota32(8))
	y := UploadOrFail(t, ctx, iota32(8))

	for _, bs := range []int{0, -4, 3, 1000, 2 * MaxBlockSize} {
		_, _, err := ctx.Add(x, y, WithBlockSize(bs))
		assert.True(t, errors.Is(err, ErrInvalidBlockSize), "block size %d: %v", bs, err)
	}
}

func TestAddOrdersLaunchesOnAStream(t *testing.T) {
	ctx := newTestContext(t)
	s := ctx.CreateStream()
	x := UploadOrFail(t, ctx, iota32(10000))
	y := UploadOrFail(t, ctx, iota32(10000))

	// The second launch consumes the first output without waiting for it.
	first, _, err := ctx.Add(x, y, WithStream(s), WithBlockSize(64))
	require.NoError(t, err)
	second, ev, err := ctx.Add(first, x, WithStream(s), WithBlockSize(64))
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	for i, v := range second.Float32() {
		require.Equal(t, float32(3*i), v)
	}
}

func TestAddOnDestroyedContext(t *testing.T) {
	ctx := NewContext()
	x := UploadOrFail(t, ctx, []float32{1})
	y := UploadOrFail(t, ctx, []float32{2})
	ctx.Destroy()

	_, _, err := ctx.Add(x, y)
	assert.True(t, IsInvalidArgError(err), "got %v", err)
	allocated, _ := ctx.MemoryStats()
	assert.Equal(t, int64(128), allocated, "failed launch releases its output")
}

func TestPackageLevelAdd(t *testing.T) {
	x := must.M1(Upload([]float32{1, 2}))
	y := must.M1(Upload([]float32{10, 20}))
	defer func() { must.M(Free(x)); must.M(Free(y)) }()

	out, ev, err := Add(x, y)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	defer func() { must.M(Free(out)) }()

	host := make([]float32, 2)
	require.NoError(t, Download(host, out))
	assert.Equal(t, []float32{11, 22}, host)
}

func BenchmarkAdd(b *testing.B) {
	ctx := NewContext()
	defer ctx.Destroy()
	for _, n := range []int{1 << 12, 1 << 16, 1 << 20} {
		x := must.M1(ctx.Rand(Float32, n, 0))
		y := must.M1(ctx.Rand(Float32, n, 1))
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.SetBytes(int64(3 * n * Float32.Size()))
			for i := 0; i < b.N; i++ {
				out, ev, err := ctx.Add(x, y)
				if err != nil {
					b.Fatal(err)
				}
				if err := ev.Wait(); err != nil {
					b.Fatal(err)
				}
				_ = ctx.Free(out)
			}
		})
	}
}
