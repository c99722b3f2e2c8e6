package basemap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ufpmap/internal/config"
	"ufpmap/internal/fileutil"
	"ufpmap/internal/geo"
	"ufpmap/internal/logging"
	"ufpmap/internal/services"
)

// MaxTiles bounds a single build; larger ranges indicate a zoom level that is
// too high for the extent.
const MaxTiles = 400

// Settings configure tile retrieval.
type Settings struct {
	TileURL           string
	UserAgent         string
	Zoom              int
	RequestsPerSecond float64
	Timeout           time.Duration
	Concurrency       int
	CacheDir          string
	TileCacheDir      string
}

// SettingsFromConfig copies the basemap section and cache paths.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		TileURL:           cfg.BaseMap.TileURL,
		UserAgent:         cfg.BaseMap.UserAgent,
		Zoom:              cfg.BaseMap.Zoom,
		RequestsPerSecond: cfg.BaseMap.RequestsPerSecond,
		Timeout:           time.Duration(cfg.BaseMap.TimeoutSeconds) * time.Second,
		Concurrency:       cfg.BaseMap.Concurrency,
		CacheDir:          cfg.Paths.CacheDir,
		TileCacheDir:      cfg.TileCacheDir(),
	}
}

// Stats describes one build.
type Stats struct {
	Tiles  int
	Cached int
	Failed int
}

// Builder produces cached base map images.
type Builder struct {
	settings Settings
	logger   *slog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]

	mu sync.Mutex
}

// NewBuilder constructs a Builder. A zero request rate disables pacing.
func NewBuilder(settings Settings, logger *slog.Logger) *Builder {
	if settings.Zoom <= 0 {
		settings.Zoom = 15
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 4
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.TileCacheDir == "" {
		settings.TileCacheDir = filepath.Join(settings.CacheDir, "tiles")
	}
	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}
	b := &Builder{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "basemap"),
		client:   &http.Client{Timeout: settings.Timeout},
		limiter:  rate.NewLimiter(limit, settings.Concurrency),
	}
	b.breaker = b.newBreaker()
	return b
}

// Path is the cache location of the base map for the given extent and size.
func (b *Builder) Path(e geo.Extent, width, height int) string {
	key := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f|z%d|%dx%d|%s",
		e.LonMin, e.LonMax, e.LatMin, e.LatMax, b.settings.Zoom, width, height, b.settings.TileURL)
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.settings.CacheDir, "basemap_"+hex.EncodeToString(sum[:6])+".png")
}

// Ensure returns the path of a width x height base map for e, building it
// when no cached copy exists.
func (b *Builder) Ensure(ctx context.Context, e geo.Extent, width, height int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.Path(e, width, height)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		b.logger.Debug("using cached base map", logging.String("path", path))
		return path, nil
	}

	img, stats, err := b.Build(ctx, e, width, height)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "basemap", "write", path, err)
	}
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return png.Encode(w, img)
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "basemap", "write", path, err)
	}
	b.logger.Info("base map created",
		logging.String(logging.FieldEventType, "basemap_created"),
		logging.String("path", path),
		logging.Int("tiles", stats.Tiles),
		logging.Int("cached_tiles", stats.Cached),
		logging.Int("failed_tiles", stats.Failed),
	)
	return path, nil
}

// Refresh discards the cached base map for e and rebuilds it.
func (b *Builder) Refresh(ctx context.Context, e geo.Extent, width, height int) (string, error) {
	if err := os.Remove(b.Path(e, width, height)); err != nil && !os.IsNotExist(err) {
		return "", services.Wrap(services.ErrExternalTool, "basemap", "refresh", "remove cached base map", err)
	}
	return b.Ensure(ctx, e, width, height)
}

// Build fetches, stitches, crops, and scales the tiles covering e.
func (b *Builder) Build(ctx context.Context, e geo.Extent, width, height int) (image.Image, Stats, error) {
	if err := e.Validate(); err != nil {
		return nil, Stats{}, err
	}
	if width <= 0 || height <= 0 {
		return nil, Stats{}, services.Wrap(services.ErrConfiguration, "basemap", "build",
			fmt.Sprintf("invalid size %dx%d", width, height), nil)
	}
	if strings.TrimSpace(b.settings.TileURL) == "" {
		return nil, Stats{}, services.Wrap(services.ErrConfiguration, "basemap", "build", "tile url is empty", nil)
	}
	r := e.Tiles(b.settings.Zoom)
	if r.Count() > MaxTiles {
		return nil, Stats{}, services.Wrap(services.ErrConfiguration, "basemap", "build",
			fmt.Sprintf("zoom %d needs %d tiles (limit %d); lower basemap.zoom", r.Zoom, r.Count(), MaxTiles), nil)
	}

	b.logger.Info("fetching map tiles",
		logging.Int("zoom", r.Zoom),
		logging.Int("tiles", r.Count()),
		logging.String("grid", fmt.Sprintf("%dx%d", r.MaxX-r.MinX+1, r.MaxY-r.MinY+1)),
	)

	var (
		mu    sync.Mutex
		tiles = make(map[[2]int]image.Image, r.Count())
		stats = Stats{Tiles: r.Count()}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.settings.Concurrency)
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			g.Go(func() error {
				img, cached, err := b.tile(gctx, x, y, r.Zoom)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return ctxErr
					}
					stats.Failed++
					if !isBreakerRejection(err) {
						b.logger.Warn("tile fetch failed; using placeholder",
							logging.String(logging.FieldEventType, "tile_fetch_failed"),
							logging.String("tile", fmt.Sprintf("%d/%d/%d", r.Zoom, x, y)),
							logging.Error(err),
						)
					}
					return nil
				}
				if cached {
					stats.Cached++
				}
				tiles[[2]int{x, y}] = img
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	if stats.Failed == stats.Tiles {
		return nil, stats, services.Wrap(services.ErrExternalTool, "basemap", "fetch tiles",
			fmt.Sprintf("all %d tiles failed", stats.Tiles), nil)
	}

	composite := mosaic(r, tiles)
	return scale(composite, cropRect(e, r, composite.Bounds()), width, height), stats, nil
}
