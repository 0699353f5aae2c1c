package bench

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ArtifactName is the base name of the files written by SaveArtifacts.
const ArtifactName = "vector_add_benchmarks"

// bandAlpha is the opacity of the p20-p80 bandwidth band.
const bandAlpha = 0x40

// NewPlot draws the median bandwidth of every provider against size, with
// size on a log axis, over a shaded band spanning the bandwidth at the 80th
// and 20th percentile times.
func NewPlot(r *Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("vector-add (%s)", r.DType)
	p.X.Label.Text = "size"
	p.Y.Label.Text = "Global Memory Bandwidth (GB/s)"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true
	p.Legend.Left = true

	for i, name := range r.ProviderNames() {
		var xys, high, low plotter.XYs
		for _, res := range r.Results {
			if res.Provider == name && res.Size > 0 {
				x := float64(res.Size)
				xys = append(xys, plotter.XY{X: x, Y: res.GBps})
				high = append(high, plotter.XY{X: x, Y: res.GBpsHigh})
				low = append(low, plotter.XY{X: x, Y: res.GBpsLow})
			}
		}
		band, err := newBand(high, low, plotutil.Color(i))
		if err != nil {
			return nil, errors.Wrapf(err, "plot %s band", name)
		}
		p.Add(band)

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "plot %s", name)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}
	return p, nil
}

// newBand returns the filled polygon between high and low, both ordered by
// ascending x.
func newBand(high, low plotter.XYs, c color.Color) (*plotter.Polygon, error) {
	ring := make(plotter.XYs, 0, len(high)+len(low))
	ring = append(ring, high...)
	for i := len(low) - 1; i >= 0; i-- {
		ring = append(ring, low[i])
	}
	band, err := plotter.NewPolygon(ring)
	if err != nil {
		return nil, err
	}
	r, g, b, _ := c.RGBA()
	band.Color = color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: bandAlpha}
	band.LineStyle.Width = 0
	band.LineStyle.Color = color.Transparent
	return band, nil
}

// WritePlot renders the plot of r as PNG.
func WritePlot(r *Report, w io.Writer) error {
	p, err := NewPlot(r)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return errors.Wrap(err, "render plot")
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveArtifacts writes the PNG plot, the CSV table and the JSON report of r
// into dir, creating it if needed. It returns the paths written.
func SaveArtifacts(r *Report, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	writers := []struct {
		ext   string
		write func(*Report, io.Writer) error
	}{
		{"png", WritePlot},
		{"csv", FormatCSV},
		{"json", FormatJSON},
	}
	var paths []string
	for _, wr := range writers {
		path := filepath.Join(dir, ArtifactName+"."+wr.ext)
		if err := writeFile(path, func(w io.Writer) error { return wr.write(r, w) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return errors.Wrapf(write(f), "write %s", path)
}
