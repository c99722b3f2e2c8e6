package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// PlaceholderColor fills the canvas when no background image is available.
var PlaceholderColor = color.RGBA{R: 0xEB, G: 0xEB, B: 0xEB, A: 0xff}

// LoadBackground decodes a PNG or JPEG background image.
func LoadBackground(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Fit scales img to exactly width x height. Images that already match are
// copied so the result never aliases caller memory.
func Fit(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if img == nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(PlaceholderColor), image.Point{}, draw.Src)
		return dst
	}
	src := img.Bounds()
	if src.Dx() == width && src.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// Placeholder returns a flat neutral canvas.
func Placeholder(width, height int) *image.RGBA {
	return Fit(nil, width, height)
}
