package bench

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/LynnColeArt/vecadd"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// rows pivots the results into one row per size with one cell per provider.
func (r *Report) rows() (sizes []int, cells map[int]map[string]Result) {
	cells = make(map[int]map[string]Result)
	for _, res := range r.Results {
		if _, ok := cells[res.Size]; !ok {
			sizes = append(sizes, res.Size)
			cells[res.Size] = make(map[string]Result)
		}
		cells[res.Size][res.Provider] = res
	}
	return sizes, cells
}

// FormatTable writes the global memory bandwidth of every provider, one row
// per size, as a bordered table.
func FormatTable(r *Report, w io.Writer) {
	providers := r.ProviderNames()
	headers := []string{"size", "moved"}
	for _, p := range providers {
		headers = append(headers, p+" GB/s", p+" ms")
	}

	elemSize := dtypeSize(r.DType)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return normalStyle
			}
			return rightAlignedStyle
		})

	sizes, cells := r.rows()
	for _, n := range sizes {
		row := []string{humanize.Comma(int64(n)), humanize.IBytes(uint64(3 * n * elemSize))}
		for _, p := range providers {
			res, ok := cells[n][p]
			if !ok {
				row = append(row, "-", "-")
				continue
			}
			row = append(row,
				fmt.Sprintf("%.1f (%.1f-%.1f)", res.GBps, res.GBpsLow, res.GBpsHigh),
				fmt.Sprintf("%.4f", res.MedianMS))
		}
		t.Row(row...)
	}

	fmt.Fprintf(w, "vector-add: %s, block %d, %d workers, %s\n", r.DType, r.BlockSize, r.Workers, r.Device)
	fmt.Fprintln(w, t.String())
}

// FormatJSON writes the full report as indented JSON.
func FormatJSON(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// FormatCSV writes one row per size with the median bandwidth in GB/s of
// each provider.
func FormatCSV(r *Report, w io.Writer) error {
	providers := r.ProviderNames()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"size"}, providers...)); err != nil {
		return err
	}
	sizes, cells := r.rows()
	for _, n := range sizes {
		record := []string{strconv.Itoa(n)}
		for _, p := range providers {
			record = append(record, strconv.FormatFloat(cells[n][p].GBps, 'f', 6, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadReport reads a report written by FormatJSON.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read report %s", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "parse report %s", path)
	}
	return &r, nil
}

func dtypeSize(name string) int {
	dtype, err := vecadd.ParseDType(name)
	if err != nil {
		return vecadd.Float32.Size()
	}
	return dtype.Size()
}
