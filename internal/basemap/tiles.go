package basemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/image/draw"

	"ufpmap/internal/fileutil"
	"ufpmap/internal/geo"
	"ufpmap/internal/logging"
)

const maxTileBytes = 4 << 20

// PlaceholderTile fills tiles that could not be fetched.
var PlaceholderTile = color.RGBA{R: 200, G: 200, B: 200, A: 0xff}

var subdomains = []string{"a", "b", "c"}

// TileURL expands a {s}/{z}/{x}/{y} template. The {s} subdomain rotates with
// the tile position so neighbouring tiles spread across servers.
func TileURL(template string, x, y, zoom int) string {
	r := strings.NewReplacer(
		"{s}", subdomains[(x+y)%len(subdomains)],
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(template)
}

func (b *Builder) tileCachePath(x, y, zoom int) string {
	return filepath.Join(b.settings.TileCacheDir, fmt.Sprintf("%d_%d_%d.png", zoom, x, y))
}

// tile returns one decoded tile, from the cache when possible.
func (b *Builder) tile(ctx context.Context, x, y, zoom int) (image.Image, bool, error) {
	cached := b.tileCachePath(x, y, zoom)
	if data, err := os.ReadFile(cached); err == nil {
		if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			return img, true, nil
		}
		_ = os.Remove(cached)
	}

	data, err := b.fetch(ctx, TileURL(b.settings.TileURL, x, y, zoom))
	if err != nil {
		return nil, false, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode tile %d/%d/%d: %w", zoom, x, y, err)
	}
	if err := os.MkdirAll(b.settings.TileCacheDir, 0o755); err == nil {
		_ = fileutil.WriteAtomic(cached, 0o644, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
	}
	return img, false, nil
}

func (b *Builder) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return b.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", b.settings.UserAgent)
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	})
}

func (b *Builder) newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tile-server",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info("circuit breaker state change",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// mosaic pastes tiles into one image covering r.
func mosaic(r geo.TileRange, tiles map[[2]int]image.Image) *image.RGBA {
	cols := r.MaxX - r.MinX + 1
	rows := r.MaxY - r.MinY + 1
	out := image.NewRGBA(image.Rect(0, 0, cols*geo.TileSize, rows*geo.TileSize))
	placeholder := image.NewUniform(PlaceholderTile)
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			dst := image.Rect(0, 0, geo.TileSize, geo.TileSize).
				Add(image.Pt((x-r.MinX)*geo.TileSize, (y-r.MinY)*geo.TileSize))
			img, ok := tiles[[2]int{x, y}]
			if !ok || img == nil {
				draw.Draw(out, dst, placeholder, image.Point{}, draw.Src)
				continue
			}
			draw.Draw(out, dst, img, img.Bounds().Min, draw.Src)
		}
	}
	return out
}

// cropRect returns the mosaic pixel rectangle covering the extent.
func cropRect(e geo.Extent, r geo.TileRange, bounds image.Rectangle) image.Rectangle {
	originX := float64(r.MinX * geo.TileSize)
	originY := float64(r.MinY * geo.TileSize)
	left, top := geo.MercatorPixel(e.LatMax, e.LonMin, r.Zoom)
	right, bottom := geo.MercatorPixel(e.LatMin, e.LonMax, r.Zoom)
	rect := image.Rect(
		int(left-originX), int(top-originY),
		int(right-originX), int(bottom-originY),
	).Intersect(bounds)
	if rect.Empty() {
		return bounds
	}
	return rect
}

func scale(src image.Image, rect image.Rectangle, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, rect, draw.Src, nil)
	return dst
}
