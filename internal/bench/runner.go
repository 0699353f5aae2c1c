package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/vecadd"
)

// Result is the measurement of one provider at one size.
type Result struct {
	Size     int     `json:"size"`
	Provider string  `json:"provider"`
	MedianMS float64 `json:"median_ms"`
	P20MS    float64 `json:"p20_ms"`
	P80MS    float64 `json:"p80_ms"`
	Reps     int     `json:"reps"`

	// Bandwidth at the median, the 80th percentile time (low) and the 20th
	// percentile time (high), in GB/s.
	GBps     float64 `json:"gbps"`
	GBpsLow  float64 `json:"gbps_low"`
	GBpsHigh float64 `json:"gbps_high"`
}

// Report is the outcome of one benchmark session.
type Report struct {
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	Device      string    `json:"device"`
	CPUFeatures string    `json:"cpu_features"`
	DType       string    `json:"dtype"`
	BlockSize   int       `json:"block_size"`
	Workers     int       `json:"workers"`
	Results     []Result  `json:"results"`
}

// Options configures a benchmark session.
type Options struct {
	MinExp, MaxExp int
	Providers      []string
	DType          vecadd.DType
	BlockSize      int
	Warmup, Rep    time.Duration
	Seed           uint64

	// FlushCache is the size in bytes of the buffer written before every
	// timed call to evict the caches; 0 disables flushing.
	FlushCache int

	// Progress receives the progress bar; nil hides it.
	Progress io.Writer
}

// Sizes returns 2^minExp .. 2^maxExp inclusive.
func Sizes(minExp, maxExp int) []int {
	var sizes []int
	for e := minExp; e <= maxExp; e++ {
		sizes = append(sizes, 1<<e)
	}
	return sizes
}

// Run measures every provider at every size with fresh seeded inputs.
func Run(ctx context.Context, vctx *vecadd.Context, opts Options) (*Report, error) {
	providers, err := Providers(vctx, opts.Providers, opts.BlockSize)
	if err != nil {
		return nil, err
	}
	sizes := Sizes(opts.MinExp, opts.MaxExp)

	dev := vctx.Device()
	report := &Report{
		SessionID:   uuid.NewString(),
		Timestamp:   time.Now(),
		Device:      fmt.Sprintf("%s (%d cores)", dev.Name, dev.NumCores),
		CPUFeatures: dev.Features,
		DType:       opts.DType.String(),
		BlockSize:   opts.BlockSize,
		Workers:     vctx.Workers(),
		Results:     make([]Result, 0, len(sizes)*len(providers)),
	}

	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(sizes)*len(providers),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("benchmarking"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	flusher := NewCacheFlusher(opts.FlushCache)
	for _, n := range sizes {
		results, err := runSize(ctx, vctx, providers, n, opts, flusher, bar)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, results...)
	}
	return report, nil
}

func runSize(ctx context.Context, vctx *vecadd.Context, providers []Provider, n int, opts Options, flusher *CacheFlusher, bar *progressbar.ProgressBar) ([]Result, error) {
	results := make([]Result, 0, len(providers))
	for i, p := range providers {
		bar.Describe(fmt.Sprintf("%-9s n=%d", p.Name, n))
		r, err := runProvider(ctx, vctx, p, n, inputSeed(opts.Seed, i), opts, flusher)
		if err != nil {
			return nil, errors.Wrapf(err, "%s at size %d", p.Name, n)
		}
		klog.V(1).Infof("bench: %s n=%d median=%.4fms (%.1f GB/s, %d reps)",
			p.Name, n, r.MedianMS, r.GBps, r.Reps)
		results = append(results, r)
		_ = bar.Add(1)
	}
	return results, nil
}

// inputSeed returns the seed of x for the provider at index i; y uses the
// next one, so every provider sees its own fresh inputs.
func inputSeed(seed uint64, i int) uint64 {
	return seed + 2*uint64(i)
}

// runProvider times p on freshly drawn inputs of n elements.
func runProvider(ctx context.Context, vctx *vecadd.Context, p Provider, n int, seed uint64, opts Options, flusher *CacheFlusher) (Result, error) {
	x, err := vctx.Rand(opts.DType, n, seed)
	if err != nil {
		return Result{}, errors.Wrap(err, "inputs")
	}
	defer func() { _ = vctx.Free(x) }()
	y, err := vctx.Rand(opts.DType, n, seed+1)
	if err != nil {
		return Result{}, errors.Wrap(err, "inputs")
	}
	defer func() { _ = vctx.Free(y) }()

	timing, err := DoBench(ctx, func() error { return p.Run(x, y) }, opts.Warmup, opts.Rep, WithCacheFlush(flusher))
	if err != nil {
		return Result{}, err
	}
	return newResult(n, opts.DType.Size(), p.Name, timing), nil
}

func newResult(n, elemSize int, provider string, t Timing) Result {
	return Result{
		Size:     n,
		Provider: provider,
		MedianMS: t.MedianMS,
		P20MS:    t.P20MS,
		P80MS:    t.P80MS,
		Reps:     t.Reps,
		GBps:     GBps(n, elemSize, t.MedianMS),
		GBpsLow:  GBps(n, elemSize, t.P80MS),
		GBpsHigh: GBps(n, elemSize, t.P20MS),
	}
}

// Lookup returns the result of provider at size.
func (r *Report) Lookup(provider string, size int) (Result, bool) {
	for _, res := range r.Results {
		if res.Provider == provider && res.Size == size {
			return res, true
		}
	}
	return Result{}, false
}

// ProviderNames returns the providers of the report in first-seen order.
func (r *Report) ProviderNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, res := range r.Results {
		if !seen[res.Provider] {
			seen[res.Provider] = true
			names = append(names, res.Provider)
		}
	}
	return names
}
