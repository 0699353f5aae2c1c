package vecadd

import (
	"fmt"
	"strings"

	"github.com/x448/float16"
)

// DType is the element type of a Buffer.
type DType int

const (
	Float32 DType = iota
	Float64
	Float16
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	case Float16:
		return 2
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// ParseDType maps a name such as "float32" or "f16" to a DType.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "f32", "":
		return Float32, nil
	case "float64", "f64":
		return Float64, nil
	case "float16", "f16", "half":
		return Float16, nil
	}
	return 0, NewInvalidArgError("ParseDType", fmt.Sprintf("unknown dtype %q", s))
}

// Half is the storage type of Float16 buffers.
type Half = float16.Float16
