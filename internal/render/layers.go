package render

import (
	"math"

	"github.com/fogleman/gg"

	"ufpmap/internal/frames"
	"ufpmap/internal/interp"
)

const (
	heatmapCell  = 12
	heatmapAlpha = 0.35
	legendBarW   = 26.0
)

func (c *Composer) drawBackground(cv *canvas, _ frames.Frame) {
	cv.DrawImage(c.background, 0, 0)
}

func (c *Composer) drawHeatmap(cv *canvas, f frames.Frame) {
	if !c.opts.Style.Heatmap || len(f.Markers) < 2 {
		return
	}
	points := make([]interp.Point, 0, len(f.Markers))
	for _, m := range f.Markers {
		points = append(points, interp.Point{Lon: m.Lon, Lat: m.Lat, Value: m.Concentration})
	}
	cols := int(math.Ceil(float64(c.opts.Width) / heatmapCell))
	rows := int(math.Ceil(float64(c.opts.Height) / heatmapCell))
	grid := interp.Grid(points, c.opts.Extent, cols, rows, c.opts.Style.HeatmapPower)

	cellW := float64(c.opts.Width) / float64(cols)
	cellH := float64(c.opts.Height) / float64(rows)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			v := grid[r*cols+col]
			if math.IsNaN(v) {
				continue
			}
			red, green, blue := Plasma(c.opts.Scale.Normalize(v))
			cv.SetRGBA(red, green, blue, heatmapAlpha)
			cv.DrawRectangle(float64(col)*cellW, float64(r)*cellH, cellW+0.5, cellH+0.5)
			cv.Fill()
		}
	}
}

func (c *Composer) drawWind(cv *canvas, f frames.Frame) {
	cx, cy := c.Center()
	if arrow, ok := c.WindArrow(f.Wind); ok {
		width := math.Max(3, float64(c.opts.Height)/240)
		cv.SetLineCap(gg.LineCapRound)
		cv.SetLineWidth(width)
		cv.SetRGBA(0.1, 0.25, 0.55, 0.9)
		cv.DrawLine(arrow.X0, arrow.Y0, arrow.X1, arrow.Y1)
		cv.Stroke()

		angle := math.Atan2(arrow.Y1-arrow.Y0, arrow.X1-arrow.X0)
		head := math.Max(14, arrow.Length()*0.18)
		cv.MoveTo(arrow.X1, arrow.Y1)
		cv.LineTo(arrow.X1-head*math.Cos(angle-0.45), arrow.Y1-head*math.Sin(angle-0.45))
		cv.LineTo(arrow.X1-head*math.Cos(angle+0.45), arrow.Y1-head*math.Sin(angle+0.45))
		cv.ClosePath()
		cv.Fill()

		cv.SetFontFace(cv.faces.label)
		label := FormatWind(f.Wind.Speed)
		lw, lh := cv.MeasureString(label)
		lx, ly := arrow.X1+12*math.Cos(angle), arrow.Y1+12*math.Sin(angle)+lh
		cv.SetRGBA(1, 1, 1, 0.8)
		cv.DrawRoundedRectangle(lx-lw/2-6, ly-lh-4, lw+12, lh+10, 4)
		cv.Fill()
		cv.SetRGB(0.1, 0.25, 0.55)
		cv.DrawStringAnchored(label, lx, ly-lh/2, 0.5, 0.5)
	}

	radius := math.Max(6, float64(c.opts.Height)/160)
	cv.SetRGB(0.1, 0.25, 0.55)
	cv.DrawCircle(cx, cy, radius)
	cv.FillPreserve()
	cv.SetRGB(1, 1, 1)
	cv.SetLineWidth(2)
	cv.Stroke()
}

func (c *Composer) markerPixel(m frames.Marker) (float64, float64) {
	return c.opts.Extent.Project(m.Lon, m.Lat, float64(c.opts.Width), float64(c.opts.Height))
}

func (c *Composer) drawMarkers(cv *canvas, f frames.Frame) {
	for _, m := range f.Markers {
		x, y := c.markerPixel(m)
		r := c.MarkerRadius(m.Concentration)
		red, green, blue := Plasma(c.opts.Scale.Normalize(m.Concentration))
		cv.SetRGBA(red, green, blue, 0.9)
		cv.DrawCircle(x, y, r)
		cv.FillPreserve()
		cv.SetRGBA(1, 1, 1, 0.95)
		cv.SetLineWidth(2)
		cv.Stroke()
	}
}

func (c *Composer) drawMarkerLabels(cv *canvas, f frames.Frame) {
	if len(f.Markers) == 0 {
		return
	}
	cv.SetFontFace(cv.faces.label)
	for _, m := range f.Markers {
		x, y := c.markerPixel(m)
		top := y - c.MarkerRadius(m.Concentration) - 8
		text := FormatConcentration(m.Concentration, c.opts.Unit)
		w, h := cv.MeasureString(text)
		cv.SetRGBA(1, 1, 1, 0.85)
		cv.DrawRoundedRectangle(x-w/2-6, top-h-6, w+12, h+10, 4)
		cv.Fill()
		cv.SetRGB(0.1, 0.1, 0.1)
		cv.DrawStringAnchored(text, x, top-h/2-1, 0.5, 0.5)
	}
}

func (c *Composer) drawTitle(cv *canvas, f frames.Frame) {
	width := float64(c.opts.Width)
	band := math.Max(60, float64(c.opts.Height)*0.085)
	cv.SetRGBA(1, 1, 1, 0.82)
	cv.DrawRectangle(0, 0, width, band)
	cv.Fill()

	cv.SetRGB(0.08, 0.08, 0.12)
	if c.opts.Title != "" {
		cv.SetFontFace(cv.faces.title)
		cv.DrawStringAnchored(c.opts.Title, width/2, band*0.33, 0.5, 0.5)
	}
	subtitle := f.Bucket.In(c.opts.Location).Format("Monday, January 2, 2006  15:04 MST")
	if c.opts.Subtitle != "" {
		subtitle = c.opts.Subtitle + "  ·  " + subtitle
	}
	cv.SetFontFace(cv.faces.subtitle)
	cv.DrawStringAnchored(subtitle, width/2, band*0.74, 0.5, 0.5)
}

func (c *Composer) drawLegend(cv *canvas, _ frames.Frame) {
	h := float64(c.opts.Height)
	barH := h * 0.45
	x := float64(c.opts.Width) - legendBarW - 110
	y := (h - barH) / 2

	cv.SetRGBA(1, 1, 1, 0.82)
	cv.DrawRoundedRectangle(x-14, y-52, legendBarW+124, barH+78, 8)
	cv.Fill()

	for i := 0; i < int(barH); i++ {
		red, green, blue := Plasma(1 - float64(i)/barH)
		cv.SetRGB(red, green, blue)
		cv.DrawRectangle(x, y+float64(i), legendBarW, 1.5)
		cv.Fill()
	}
	cv.SetRGB(0.2, 0.2, 0.2)
	cv.SetLineWidth(1)
	cv.DrawRectangle(x, y, legendBarW, barH)
	cv.Stroke()

	cv.SetFontFace(cv.faces.label)
	title := c.opts.LegendTitle
	if title == "" {
		title = c.opts.Unit
	}
	cv.DrawStringAnchored(title, x+legendBarW/2+50, y-30, 0.5, 0.5)

	cv.SetFontFace(cv.faces.small)
	s := c.opts.Scale
	ticks := s.Ticks
	if len(ticks) == 0 {
		ticks = []float64{s.Min, s.Max}
	}
	for _, tick := range ticks {
		ty := y + barH - s.Normalize(tick)*barH
		if s.Max == s.Min {
			ty = y + barH
		}
		cv.DrawLine(x+legendBarW, ty, x+legendBarW+6, ty)
		cv.Stroke()
		cv.DrawStringAnchored(FormatConcentration(tick, ""), x+legendBarW+10, ty, 0, 0.5)
	}
}
