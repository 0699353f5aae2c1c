package vecadd

import (
	"math"
	"math/rand/v2"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/stat/distuv"
)

// Rand allocates a device buffer of n elements drawn uniformly from [0, 1).
// The same seed always yields the same values for a given dtype.
func (ctx *Context) Rand(dtype DType, n int, seed uint64) (*Buffer, error) {
	b, err := ctx.Malloc(dtype, n)
	if err != nil {
		return nil, err
	}
	fillUniform(b, seed)
	return b, nil
}

// Rand fills a new buffer on the default context. See Context.Rand.
func Rand(dtype DType, n int, seed uint64) (*Buffer, error) {
	return defaultContext.Rand(dtype, n, seed)
}

func fillUniform(b *Buffer, seed uint64) {
	dist := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	switch b.dtype {
	case Float32:
		below := math.Nextafter32(1, 0)
		for i, s := 0, b.Float32(); i < len(s); i++ {
			// Narrowing may round up to 1.
			s[i] = min(float32(dist.Rand()), below)
		}
	case Float64:
		for i, s := 0, b.Float64(); i < len(s); i++ {
			s[i] = dist.Rand()
		}
	case Float16:
		// Largest half below 1.
		below := float32(1 - 1.0/2048)
		for i, s := 0, b.Float16(); i < len(s); i++ {
			s[i] = float16.Fromfloat32(min(float32(dist.Rand()), below))
		}
	}
}
