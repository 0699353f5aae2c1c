package bench

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Comparison statuses.
const (
	StatusPass    = "PASS"
	StatusSlower  = "SLOWER"
	StatusFaster  = "FASTER"
	StatusMissing = "MISSING"
)

// fasterThreshold is the speedup from which a result is reported FASTER.
const fasterThreshold = 1.2

// Comparison is the outcome of one (provider, size) pair of two reports.
type Comparison struct {
	Provider     string
	Size         int
	BaselineGBps float64
	CurrentGBps  float64
	// SpeedupFactor is current over baseline bandwidth.
	SpeedupFactor float64
	Status        string
	Message       string
}

// Failed reports whether the comparison should fail a regression check.
func (c Comparison) Failed() bool {
	return c.Status == StatusSlower || c.Status == StatusMissing
}

// Compare matches every baseline result with the current one. A result is
// SLOWER when its bandwidth dropped by more than the perfRegress factor
// (1.1 = 10% slower) and MISSING when current has no such measurement.
func Compare(baseline, current *Report, perfRegress float64) []Comparison {
	comparisons := make([]Comparison, 0, len(baseline.Results))
	for _, base := range baseline.Results {
		comp := Comparison{
			Provider:     base.Provider,
			Size:         base.Size,
			BaselineGBps: base.GBps,
		}

		curr, ok := current.Lookup(base.Provider, base.Size)
		if !ok {
			comp.Status = StatusMissing
			comp.Message = "measurement missing in current results"
			comparisons = append(comparisons, comp)
			continue
		}
		comp.CurrentGBps = curr.GBps
		comp.SpeedupFactor = 1
		if base.GBps > 0 {
			comp.SpeedupFactor = curr.GBps / base.GBps
		}

		switch {
		case comp.SpeedupFactor < 1.0/perfRegress:
			comp.Status = StatusSlower
			comp.Message = fmt.Sprintf("bandwidth regression: %.2fx slower", 1.0/comp.SpeedupFactor)
		case comp.SpeedupFactor > fasterThreshold:
			comp.Status = StatusFaster
			comp.Message = fmt.Sprintf("bandwidth improvement: %.2fx faster", comp.SpeedupFactor)
		default:
			comp.Status = StatusPass
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

// PrintSummary writes the status counts and the non-passing comparisons.
func PrintSummary(comparisons []Comparison, w io.Writer) {
	fmt.Fprintln(w, "=== vector-add bandwidth comparison ===")
	fmt.Fprintln(w)

	statusCount := make(map[string]int)
	for _, comp := range comparisons {
		statusCount[comp.Status]++
	}

	fmt.Fprintf(w, "Total measurements: %d\n", len(comparisons))
	for _, status := range []string{StatusPass, StatusFaster, StatusSlower, StatusMissing} {
		fmt.Fprintf(w, "  %-8s %d\n", status+":", statusCount[status])
	}

	var notable []Comparison
	for _, comp := range comparisons {
		if comp.Status != StatusPass {
			notable = append(notable, comp)
		}
	}
	if len(notable) == 0 {
		return
	}
	sort.SliceStable(notable, func(i, j int) bool { return notable[i].Status > notable[j].Status })

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, comp := range notable {
		fmt.Fprintf(w, "%-8s %-9s n=%-10d %8.1f -> %8.1f GB/s  %s\n",
			comp.Status, comp.Provider, comp.Size, comp.BaselineGBps, comp.CurrentGBps, comp.Message)
	}
}
