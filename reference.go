package vecadd

import (
	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
)

// ReferenceAdd computes x + y synchronously with gonum's vector routines.
// It is the baseline the kernel is verified and benchmarked against, and
// applies the same operand checks as Add.
func (ctx *Context) ReferenceAdd(x, y *Buffer) (*Buffer, error) {
	if err := validateOperands("ReferenceAdd", x, y); err != nil {
		return nil, err
	}
	out, err := ctx.EmptyLike(x)
	if err != nil {
		return nil, err
	}
	n := x.Len()
	switch x.dtype {
	case Float32:
		// out = y; out += 1*x
		o := out.Float32()
		copy(o, y.Float32())
		blas32.Axpy(1, blas32.Vector{N: n, Inc: 1, Data: x.Float32()}, blas32.Vector{N: n, Inc: 1, Data: o})
	case Float64:
		floats.AddTo(out.Float64(), x.Float64(), y.Float64())
	case Float16:
		xs, ys, o := x.Float16(), y.Float16(), out.Float16()
		for i := range o {
			o[i] = float16.Fromfloat32(xs[i].Float32() + ys[i].Float32())
		}
	}
	return out, nil
}

// ReferenceAdd runs Context.ReferenceAdd on the default context.
func ReferenceAdd(x, y *Buffer) (*Buffer, error) {
	return defaultContext.ReferenceAdd(x, y)
}
