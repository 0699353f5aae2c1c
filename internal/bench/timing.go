// Package bench provides benchmarking primitives for the vecadd bench command.
package bench

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Quantiles reported for every measurement: the median and the 20th and
// 80th percentiles of the per-call times.
var Quantiles = []float64{0.5, 0.2, 0.8}

// Bounds on the number of timed calls per measurement.
const (
	estimateReps = 5
	maxReps      = 100_000
)

// Timing holds the per-call time quantiles of one measurement, in
// milliseconds.
type Timing struct {
	MedianMS float64
	P20MS    float64
	P80MS    float64
	Reps     int
}

// Quantile returns the p-quantile of samples using linear interpolation of
// the empirical distribution. samples is not modified.
func Quantile(p float64, samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// ComputeTiming summarizes per-call times in milliseconds.
func ComputeTiming(samplesMS []float64) Timing {
	sorted := slices.Clone(samplesMS)
	slices.Sort(sorted)
	if len(sorted) == 0 {
		return Timing{}
	}
	return Timing{
		MedianMS: stat.Quantile(Quantiles[0], stat.LinInterp, sorted, nil),
		P20MS:    stat.Quantile(Quantiles[1], stat.LinInterp, sorted, nil),
		P80MS:    stat.Quantile(Quantiles[2], stat.LinInterp, sorted, nil),
		Reps:     len(sorted),
	}
}

// DoBenchOption configures DoBench.
type DoBenchOption func(*doBenchConfig)

type doBenchConfig struct {
	flusher *CacheFlusher
}

// WithCacheFlush flushes the CPU caches with f before every estimate and
// timed call. The flush is excluded from the timed samples.
func WithCacheFlush(f *CacheFlusher) DoBenchOption {
	return func(c *doBenchConfig) {
		c.flusher = f
	}
}

// DoBench times fn, which must return only once its work is complete.
// A few calls estimate the cost of one call; fn is then run for about the
// warmup budget untimed and for about the rep budget timed one call at a
// time. Both phases run at least once.
func DoBench(ctx context.Context, fn func() error, warmup, rep time.Duration, opts ...DoBenchOption) (Timing, error) {
	var cfg doBenchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	for i := 0; i < estimateReps; i++ {
		cfg.flusher.Flush()
		if err := fn(); err != nil {
			return Timing{}, errors.Wrap(err, "estimate")
		}
	}
	estimate := max(time.Since(start)/estimateReps, time.Nanosecond)

	nWarmup := max(1, int(warmup/estimate))
	nRepeat := min(max(1, int(rep/estimate)), maxReps)

	for i := 0; i < nWarmup; i++ {
		if err := ctx.Err(); err != nil {
			return Timing{}, err
		}
		if err := fn(); err != nil {
			return Timing{}, errors.Wrap(err, "warmup")
		}
	}

	samples := make([]float64, 0, nRepeat)
	for i := 0; i < nRepeat; i++ {
		if err := ctx.Err(); err != nil {
			return Timing{}, err
		}
		cfg.flusher.Flush()
		t0 := time.Now()
		if err := fn(); err != nil {
			return Timing{}, errors.Wrapf(err, "rep %d", i)
		}
		samples = append(samples, float64(time.Since(t0))/float64(time.Millisecond))
	}
	return ComputeTiming(samples), nil
}

// GBps converts the time of one add over n elements of elemSize bytes into
// global memory bandwidth: two inputs read and one output written.
func GBps(n, elemSize int, ms float64) float64 {
	if ms <= 0 {
		return 0
	}
	return 3 * float64(n) * float64(elemSize) / ms * 1e-6
}
