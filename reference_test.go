package vecadd

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestReferenceAdd(t *testing.T) {
	ctx := newTestContext(t)

	t.Run("float32", func(t *testing.T) {
		x := UploadOrFail(t, ctx, []float32{1, 2, 3})
		y := UploadOrFail(t, ctx, []float32{0.5, -2, 10})
		out := must.M1(ctx.ReferenceAdd(x, y))
		assert.Equal(t, []float32{1.5, 0, 13}, out.Float32())
		assert.Equal(t, []float32{0.5, -2, 10}, y.Float32(), "y is not modified")
	})

	t.Run("float64", func(t *testing.T) {
		x := UploadOrFail(t, ctx, []float64{1, 2, 3})
		y := UploadOrFail(t, ctx, []float64{0.25, 0.5, 0.75})
		out := must.M1(ctx.ReferenceAdd(x, y))
		assert.Equal(t, []float64{1.25, 2.5, 3.75}, out.Float64())
	})

	t.Run("float16", func(t *testing.T) {
		x := UploadOrFail(t, ctx, []Half{float16.Fromfloat32(1), float16.Fromfloat32(2)})
		y := UploadOrFail(t, ctx, []Half{float16.Fromfloat32(0.5), float16.Fromfloat32(2)})
		out := must.M1(ctx.ReferenceAdd(x, y))
		assert.Equal(t, float32(1.5), out.Float16()[0].Float32())
		assert.Equal(t, float32(4), out.Float16()[1].Float32())
	})

	t.Run("empty", func(t *testing.T) {
		x := UploadOrFail(t, ctx, []float32{})
		out := must.M1(ctx.ReferenceAdd(x, x))
		assert.Zero(t, out.Len())
	})
}

func TestReferenceAddValidatesOperands(t *testing.T) {
	ctx := newTestContext(t)
	host := must.M1(HostBuffer([]float32{1}))
	dev := UploadOrFail(t, ctx, []float32{1})
	_, err := ctx.ReferenceAdd(host, dev)
	assert.True(t, IsResidencyError(err))
	assert.True(t, errors.Is(err, ErrNotDeviceResident), "got %v", err)

	_, err = ctx.ReferenceAdd(dev, UploadOrFail(t, ctx, []float32{1, 2}))
	assert.True(t, IsShapeError(err))
}

func TestKernelAgreesWithReferenceForAllDTypes(t *testing.T) {
	ctx := newTestContext(t)
	for _, dtype := range []DType{Float32, Float64, Float16} {
		t.Run(dtype.String(), func(t *testing.T) {
			x := must.M1(ctx.Rand(dtype, 10007, 1))
			y := must.M1(ctx.Rand(dtype, 10007, 2))
			result, err := ctx.VerifyAdd(x, y, ExactTolerance(), WithBlockSize(512))
			require.NoError(t, err)
			assert.Zero(t, result.NumErrors, result.String())
			assert.Equal(t, 10007, result.TotalItems)
		})
	}
}
