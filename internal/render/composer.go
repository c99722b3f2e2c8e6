package render

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/fogleman/gg"

	"ufpmap/internal/fileutil"
	"ufpmap/internal/frames"
	"ufpmap/internal/geo"
	"ufpmap/internal/scale"
	"ufpmap/internal/services"
)

// Options are the read-only inputs shared by every frame of a run.
type Options struct {
	Width       int
	Height      int
	Extent      geo.Extent
	Scale       scale.Scale
	Style       frames.Style
	Background  image.Image
	Title       string
	Subtitle    string
	Unit        string
	LegendTitle string
	Location    *time.Location
}

// Layer draws one step of a frame. A layer with nothing to draw returns
// without touching the canvas.
type Layer func(c *canvas, f frames.Frame)

// Composer renders frames.
type Composer struct {
	opts       Options
	background *image.RGBA
	layers     []Layer
}

// New validates opts and prepares the scaled background.
func New(opts Options) (*Composer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if err := opts.Extent.Validate(); err != nil {
		return nil, err
	}
	if opts.Scale.Max < opts.Scale.Min {
		return nil, errors.New("concentration scale max below min")
	}
	if opts.Style.MarkerMaxPx < opts.Style.MarkerMinPx || opts.Style.MarkerMinPx <= 0 {
		return nil, fmt.Errorf("invalid marker size range [%g, %g]", opts.Style.MarkerMinPx, opts.Style.MarkerMaxPx)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if err := loadFonts(); err != nil {
		return nil, err
	}

	c := &Composer{opts: opts, background: Fit(opts.Background, opts.Width, opts.Height)}
	c.layers = []Layer{
		c.drawBackground,
		c.drawHeatmap,
		c.drawWind,
		c.drawMarkers,
		c.drawMarkerLabels,
		c.drawTitle,
		c.drawLegend,
	}
	return c, nil
}

// OptionsFromJob rebuilds composer options from a batch descriptor.
func OptionsFromJob(job *frames.Job, background image.Image) (Options, error) {
	loc := time.Local
	if job.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(job.Timezone); err != nil {
			return Options{}, fmt.Errorf("load timezone %q: %w", job.Timezone, err)
		}
	}
	return Options{
		Width:       job.Width,
		Height:      job.Height,
		Extent:      job.Extent,
		Scale:       job.Scale,
		Style:       job.Style,
		Background:  background,
		Title:       job.Title,
		Subtitle:    job.Subtitle,
		Unit:        job.Unit,
		LegendTitle: job.LegendTitle,
		Location:    loc,
	}, nil
}

// canvas is the drawing surface handed to layers.
type canvas struct {
	*gg.Context
	faces *faces
}

// Compose draws one frame.
func (c *Composer) Compose(f frames.Frame) (image.Image, error) {
	fc, err := newFaces(c.opts.Height)
	if err != nil {
		return nil, err
	}
	defer fc.Close()

	cv := &canvas{Context: gg.NewContext(c.opts.Width, c.opts.Height), faces: fc}
	for _, layer := range c.layers {
		layer(cv, f)
	}
	return cv.Image(), nil
}

// Save composes f and writes it to dir under its zero-padded file name.
func (c *Composer) Save(f frames.Frame, dir string) (string, error) {
	img, err := c.Compose(f)
	if err != nil {
		return "", services.Wrap(services.ErrRendering, "render", "compose", fmt.Sprintf("frame %d", f.Index), err)
	}
	path := f.Path(dir)
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(bw, img); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return "", services.Wrap(services.ErrRendering, "render", "save", fmt.Sprintf("frame %d", f.Index), err)
	}
	return path, nil
}

// MarkerRadius maps a concentration onto the configured pixel radius range.
func (c *Composer) MarkerRadius(v float64) float64 {
	t := c.opts.Scale.Normalize(v)
	return c.opts.Style.MarkerMinPx + t*(c.opts.Style.MarkerMaxPx-c.opts.Style.MarkerMinPx)
}

// Arrow is the wind arrow in pixel coordinates.
type Arrow struct {
	X0, Y0 float64
	X1, Y1 float64
}

// Length is the arrow's length in pixels.
func (a Arrow) Length() float64 {
	return math.Hypot(a.X1-a.X0, a.Y1-a.Y0)
}

// Center returns the pixel position of the map's geographic center.
func (c *Composer) Center() (float64, float64) {
	lon, lat := c.opts.Extent.Center()
	return c.opts.Extent.Project(lon, lat, float64(c.opts.Width), float64(c.opts.Height))
}

// WindArrow returns the arrow for w, or false when the wind is missing or
// calm. The arrow points where the wind blows to.
func (c *Composer) WindArrow(w *frames.Wind) (Arrow, bool) {
	if w.Calm() || math.IsNaN(w.Speed) {
		return Arrow{}, false
	}
	mag := math.Hypot(w.U, w.V)
	if mag == 0 || math.IsNaN(mag) {
		return Arrow{}, false
	}
	maxSpeed := c.opts.Style.MaxWindSpeed
	if maxSpeed <= 0 {
		maxSpeed = 1
	}
	shorter := math.Min(float64(c.opts.Width), float64(c.opts.Height))
	length := math.Min(w.Speed/maxSpeed, 1) * c.opts.Style.ArrowScale * shorter

	cx, cy := c.Center()
	return Arrow{
		X0: cx,
		Y0: cy,
		X1: cx + w.U/mag*length,
		Y1: cy - w.V/mag*length,
	}, true
}

// FormatConcentration renders a marker label: values of 1000 and above are
// abbreviated to thousands with one decimal.
func FormatConcentration(v float64, unit string) string {
	var s string
	if math.Abs(v) >= 1000 {
		s = fmt.Sprintf("%.1fK", v/1000)
	} else {
		s = fmt.Sprintf("%.0f", v)
	}
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// FormatWind renders a wind speed label.
func FormatWind(speed float64) string {
	return fmt.Sprintf("%.1f m/s", speed)
}

// WriteBackground saves the fitted background as a PNG. Used to cache the
// base map for external renderers.
func (c *Composer) WriteBackground(path string) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return png.Encode(w, c.background)
	})
}

