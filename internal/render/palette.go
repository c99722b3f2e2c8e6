package render

import (
	"image/color"
	"math"
)

// plasma holds 26 evenly spaced anchors of the plasma color map.
var plasma = [26][3]float64{
	{0.050, 0.030, 0.528}, {0.133, 0.022, 0.563}, {0.208, 0.020, 0.588},
	{0.282, 0.024, 0.602}, {0.352, 0.034, 0.607}, {0.417, 0.050, 0.601},
	{0.478, 0.071, 0.586}, {0.536, 0.095, 0.563}, {0.591, 0.121, 0.533},
	{0.643, 0.150, 0.498}, {0.692, 0.180, 0.459}, {0.738, 0.213, 0.418},
	{0.781, 0.248, 0.375}, {0.821, 0.286, 0.332}, {0.857, 0.326, 0.289},
	{0.890, 0.369, 0.246}, {0.918, 0.416, 0.204}, {0.942, 0.466, 0.163},
	{0.960, 0.520, 0.124}, {0.973, 0.578, 0.089}, {0.981, 0.639, 0.058},
	{0.984, 0.702, 0.038}, {0.981, 0.768, 0.034}, {0.972, 0.834, 0.053},
	{0.959, 0.899, 0.101}, {0.940, 0.975, 0.131},
}

// Plasma samples the ramp at t in [0, 1] by linear interpolation between the
// two nearest anchors. Out-of-range input is clamped.
func Plasma(t float64) (r, g, b float64) {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	pos := t * float64(len(plasma)-1)
	i := int(pos)
	if i >= len(plasma)-1 {
		last := plasma[len(plasma)-1]
		return last[0], last[1], last[2]
	}
	f := pos - float64(i)
	lo, hi := plasma[i], plasma[i+1]
	return lo[0] + f*(hi[0]-lo[0]), lo[1] + f*(hi[1]-lo[1]), lo[2] + f*(hi[2]-lo[2])
}

// PlasmaColor is Plasma as an opaque color.
func PlasmaColor(t float64) color.RGBA {
	r, g, b := Plasma(t)
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 0xff}
}

func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
