package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	fontsOnce sync.Once
	regular   *opentype.Font
	bold      *opentype.Font
	fontsErr  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regular, fontsErr = opentype.Parse(goregular.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse regular font: %w", fontsErr)
			return
		}
		if bold, fontsErr = opentype.Parse(gobold.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse bold font: %w", fontsErr)
		}
	})
	return fontsErr
}

// faces are per-compose: opentype faces carry a scratch buffer and must not
// be shared between goroutines.
type faces struct {
	title    font.Face
	subtitle font.Face
	label    font.Face
	small    font.Face
}

func newFaces(height int) (*faces, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	unit := float64(height) / 1200
	if unit < 0.4 {
		unit = 0.4
	}
	mk := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size * unit, DPI: 72, Hinting: font.HintingFull})
	}
	var out faces
	var err error
	if out.title, err = mk(bold, 34); err != nil {
		return nil, err
	}
	if out.subtitle, err = mk(regular, 24); err != nil {
		return nil, err
	}
	if out.label, err = mk(bold, 18); err != nil {
		return nil, err
	}
	if out.small, err = mk(regular, 15); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *faces) Close() {
	for _, face := range []font.Face{f.title, f.subtitle, f.label, f.small} {
		if face != nil {
			_ = face.Close()
		}
	}
}
