// Package vecadd tolerance-based verification for floating-point comparisons
package vecadd

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// ULPTol is the maximum allowed difference in ULPs at the buffer's precision
	ULPTol int

	// CheckNaN determines if NaN values should be considered equal
	CheckNaN bool

	// CheckInf determines if Inf values should be considered equal
	CheckInf bool
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-7,
		RelTol:   1e-5,
		ULPTol:   MaxULPDiff,
		CheckNaN: true,
		CheckInf: true,
	}
}

// ExactTolerance accepts bit-identical values only.
func ExactTolerance() ToleranceConfig {
	return ToleranceConfig{CheckNaN: true, CheckInf: true}
}

// NearEqual checks if two values are equal within tolerance, ignoring the
// ULP criterion.
func NearEqual(a, b float64, tol ToleranceConfig) bool {
	if tol.CheckNaN && math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	if tol.CheckInf && math.IsInf(a, 0) && math.IsInf(b, 0) && math.Signbit(a) == math.Signbit(b) {
		return true
	}

	// Check if exactly equal (handles ±0)
	if a == b {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}

	diff := math.Abs(a - b)
	if diff <= tol.AbsTol {
		return true
	}
	larger := math.Max(math.Abs(a), math.Abs(b))
	return diff <= larger*tol.RelTol
}

// Float32ULPDiff computes the difference in ULPs between two float32 values
func Float32ULPDiff(a, b float32) int {
	aBits := math.Float32bits(a)
	bBits := math.Float32bits(b)

	// Different signs, can't use simple subtraction
	if (aBits^bBits)&0x80000000 != 0 {
		return math.MaxInt32
	}
	if aBits > bBits {
		return int(aBits - bBits)
	}
	return int(bBits - aBits)
}

// Float16ULPDiff computes the difference in ULPs between two half values.
func Float16ULPDiff(a, b Half) int {
	aBits, bBits := a.Bits(), b.Bits()
	if (aBits^bBits)&0x8000 != 0 {
		return math.MaxInt32
	}
	if aBits > bBits {
		return int(aBits - bBits)
	}
	return int(bBits - aBits)
}

// Float64ULPDiff computes the difference in ULPs between two float64
// values, saturating at math.MaxInt32.
func Float64ULPDiff(a, b float64) int {
	aBits := math.Float64bits(a)
	bBits := math.Float64bits(b)
	if (aBits^bBits)&(1<<63) != 0 {
		return math.MaxInt32
	}
	diff := aBits - bBits
	if bBits > aBits {
		diff = bBits - aBits
	}
	if diff > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(diff)
}

func ulpDiffAt(expected, actual *Buffer, i int) int {
	switch expected.dtype {
	case Float32:
		return Float32ULPDiff(expected.Float32()[i], actual.Float32()[i])
	case Float16:
		return Float16ULPDiff(expected.Float16()[i], actual.Float16()[i])
	default:
		return Float64ULPDiff(expected.Float64At(i), actual.Float64At(i))
	}
}

// VerificationResult summarizes the comparison of two buffers.
type VerificationResult struct {
	MaxAbsError float64
	MaxRelError float64
	MaxULPError int
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// MaxAbsDiff returns max |expected[i] - actual[i]| over all elements.
func MaxAbsDiff(expected, actual *Buffer) (float64, error) {
	if err := expected.checkLive("MaxAbsDiff"); err != nil {
		return 0, err
	}
	if err := actual.checkLive("MaxAbsDiff"); err != nil {
		return 0, err
	}
	if expected.Len() != actual.Len() {
		return 0, NewShapeError("MaxAbsDiff", fmt.Sprintf("%d vs %d elements", expected.Len(), actual.Len()))
	}
	var maxDiff float64
	for i := 0; i < expected.Len(); i++ {
		maxDiff = math.Max(maxDiff, math.Abs(expected.Float64At(i)-actual.Float64At(i)))
	}
	return maxDiff, nil
}

// Verify compares two buffers of the same dtype element by element.
func Verify(expected, actual *Buffer, tol ToleranceConfig) (VerificationResult, error) {
	result := VerificationResult{FirstError: -1}
	if err := expected.checkLive("Verify"); err != nil {
		return result, err
	}
	if err := actual.checkLive("Verify"); err != nil {
		return result, err
	}
	result.TotalItems = expected.Len()
	if expected.Len() != actual.Len() {
		return result, NewShapeError("Verify", fmt.Sprintf("%d vs %d elements", expected.Len(), actual.Len()))
	}
	if expected.dtype != actual.dtype {
		return result, NewDTypeError("Verify", fmt.Sprintf("%s vs %s", expected.dtype, actual.dtype))
	}

	for i := 0; i < expected.Len(); i++ {
		e, a := expected.Float64At(i), actual.Float64At(i)
		if NearEqual(e, a, tol) {
			continue
		}
		ulp := ulpDiffAt(expected, actual, i)
		if tol.ULPTol > 0 && ulp <= tol.ULPTol {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}
		absDiff := math.Abs(e - a)
		result.MaxAbsError = math.Max(result.MaxAbsError, absDiff)
		if e != 0 {
			result.MaxRelError = math.Max(result.MaxRelError, absDiff/math.Abs(e))
		}
		result.MaxULPError = max(result.MaxULPError, ulp)
	}
	return result, nil
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  Max ULP difference: %d\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError, r.MaxULPError,
		r.FirstError)
}

// VerifyAdd runs the kernel and the reference on the same inputs, waits for
// the kernel and compares both outputs.
func (ctx *Context) VerifyAdd(x, y *Buffer, tol ToleranceConfig, opts ...LaunchOption) (VerificationResult, error) {
	expected, err := ctx.ReferenceAdd(x, y)
	if err != nil {
		return VerificationResult{}, errors.Wrap(err, "reference add")
	}
	defer func() { _ = ctx.Free(expected) }()

	actual, ev, err := ctx.Add(x, y, opts...)
	if err != nil {
		return VerificationResult{}, errors.Wrap(err, "kernel add")
	}
	defer func() { _ = ctx.Free(actual) }()
	if err := ev.Wait(); err != nil {
		return VerificationResult{}, NewExecutionError("VerifyAdd", "kernel failed", err)
	}
	return Verify(expected, actual, tol)
}
