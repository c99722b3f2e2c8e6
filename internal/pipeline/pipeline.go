package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ufpmap/internal/aggregate"
	"ufpmap/internal/basemap"
	"ufpmap/internal/config"
	"ufpmap/internal/dispatch"
	"ufpmap/internal/encoding"
	"ufpmap/internal/frames"
	"ufpmap/internal/geo"
	"ufpmap/internal/logging"
	"ufpmap/internal/metrics"
	"ufpmap/internal/readings"
	"ufpmap/internal/render"
	"ufpmap/internal/runstore"
	"ufpmap/internal/scale"
	"ufpmap/internal/services"
)

// BaseMap supplies the path of a background image for an extent and size.
type BaseMap interface {
	Ensure(ctx context.Context, e geo.Extent, width, height int) (string, error)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithStore records runs in the ledger.
func WithStore(store *runstore.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithMetrics records run metrics.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = rec }
}

// WithBaseMap overrides the base map source. A nil value disables it.
func WithBaseMap(b BaseMap) Option {
	return func(p *Pipeline) {
		p.basemap = b
		p.basemapSet = true
	}
}

// Pipeline renders animations for configured data.
type Pipeline struct {
	cfg        *config.Config
	logger     *slog.Logger
	loc        *time.Location
	store      *runstore.Store
	metrics    *metrics.Recorder
	basemap    BaseMap
	basemapSet bool
}

// New builds a Pipeline.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		loc:    cfg.Location(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.basemapSet && cfg.BaseMap.Enabled {
		p.basemap = basemap.NewBuilder(basemap.SettingsFromConfig(cfg), logger)
	}
	return p
}

// Request selects what to render. Zero values fall back to configuration.
type Request struct {
	Dates     []string
	AllDates  bool
	Backend   string
	Workers   int
	OutputDir string
	FrameRate float64
	Cleanup   bool
	NoBaseMap bool
	Archive   bool
	// Combined renders every selected date into a single video on one
	// shared scale instead of one video per date.
	Combined bool
}

// Dataset is the loaded input shared by every date of a request.
type Dataset struct {
	Readings  []readings.Reading
	Locations []readings.Location
	Stats     readings.NormalizeStats
}

// Summary describes one rendered video. Date is the date, or the
// "first_last" span label of a combined run.
type Summary struct {
	RunID     string
	Date      string
	Dates     []string
	OutputDir string
	Buckets   int
	Frames    int
	Scale     scale.Scale
	Backend   string
	Video     string
	Encoder   string
	Fallback  bool
	Duration  float64
	Cleaned   int
	Archive   string
	Elapsed   time.Duration
}

// Load reads the configured readings and sensor locations.
func (p *Pipeline) Load(ctx context.Context) (*Dataset, error) {
	ctx = services.WithStage(ctx, StageLoad)
	logger := logging.WithContext(ctx, p.logger)

	rs, stats, err := readings.Load(ctx, p.cfg.Data.Path, p.cfg.Data.Columns, p.loc)
	if err != nil {
		return nil, err
	}
	locations, err := readings.ResolveLocations(p.cfg)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, services.Wrap(services.ErrInput, StageLoad, "locations",
			"no sensor locations configured (set data.locations_path or [[site.sensors]])", nil)
	}
	p.metrics.SetReadings(stats.Kept)

	logger.Info("readings loaded",
		logging.String(logging.FieldEventType, "readings_loaded"),
		logging.String("path", p.cfg.Data.Path),
		logging.Int("rows", stats.Rows),
		logging.Int("kept", stats.Kept),
		logging.Int("bad_timestamps", stats.BadTimestamps),
		logging.Int("missing_sensor", stats.MissingSensor),
		logging.Int("missing_concentration", stats.MissingConcentration),
		logging.Bool("derived_wind", stats.DerivedWind),
		logging.Int("locations", len(locations)),
	)
	if unknown := readings.UnknownSensors(rs, locations); len(unknown) > 0 {
		logging.WarnWithContext(logger, "readings reference sensors without coordinates", "unknown_sensors",
			logging.String("sensors", strings.Join(unknown, ", ")),
			logging.String(logging.FieldErrorHint, "add the sensors to data.locations_path or [[site.sensors]]"),
			logging.String(logging.FieldImpact, "their readings are left off the map"),
		)
	}
	return &Dataset{Readings: rs, Locations: locations, Stats: stats}, nil
}

// Dates resolves the dates a request covers.
func (p *Pipeline) Dates(ds *Dataset, req Request) ([]string, error) {
	if req.AllDates {
		var out []string
		for _, dc := range readings.AvailableDates(ds.Readings, p.loc) {
			out = append(out, dc.Date)
		}
		return out, nil
	}
	if len(req.Dates) == 0 {
		return nil, services.Wrap(services.ErrInput, StageFilter, "dates", "no date selected (pass --date or --all-dates)", nil)
	}
	for _, d := range req.Dates {
		if _, err := readings.ParseDate(d, p.loc); err != nil {
			return nil, err
		}
	}
	return req.Dates, nil
}

// Run loads the data once and renders every requested date. With several
// dates a failure does not stop the remaining dates; all failures are
// returned joined. A combined request renders all dates as one video.
func (p *Pipeline) Run(ctx context.Context, req Request) ([]Summary, error) {
	defer p.exportMetrics()

	ds, err := p.Load(ctx)
	if err != nil {
		p.metrics.RunFinished(strings.Join(req.Dates, ","), string(runstore.StatusFailed), services.Kind(err), 0)
		return nil, err
	}
	dates, err := p.Dates(ds, req)
	if err != nil {
		return nil, err
	}
	if req.Combined {
		summary, err := p.RenderCombined(ctx, ds, dates, req)
		if err != nil {
			return nil, err
		}
		return []Summary{summary}, nil
	}

	var (
		summaries []Summary
		errs      []error
	)
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary, err := p.RenderDate(ctx, ds, date, req)
		if err != nil {
			if len(dates) == 1 {
				return nil, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", date, err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Join(errs...)
}

func (p *Pipeline) exportMetrics() {
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath); err != nil {
		p.logger.Warn("metrics export failed", logging.Error(err))
	}
}

// runState carries intermediate results between stages of one date.
type runState struct {
	locations []readings.Location
	located   []readings.Located
	agg       aggregate.Result
	scale     scale.Scale
	extent    geo.Extent
	frames    []frames.Frame
	outDir    string
	video     encoding.Result
}

// RenderDate renders one date from a loaded dataset.
func (p *Pipeline) RenderDate(ctx context.Context, ds *Dataset, date string, req Request) (Summary, error) {
	return p.renderSpan(ctx, ds, []string{date}, req)
}

// RenderCombined renders several dates into one video. The dates share one
// concentration scale and their frames are numbered continuously in time
// order into a single output directory.
func (p *Pipeline) RenderCombined(ctx context.Context, ds *Dataset, dates []string, req Request) (Summary, error) {
	span := slices.Clone(dates)
	slices.Sort(span)
	span = slices.Compact(span)
	if len(span) == 0 {
		return Summary{}, services.Wrap(services.ErrInput, StageFilter, "dates", "no date selected for a combined render", nil)
	}
	return p.renderSpan(ctx, ds, span, req)
}

// spanLabel names a run covering dates, which must be sorted.
func spanLabel(dates []string) string {
	if len(dates) == 1 {
		return dates[0]
	}
	return dates[0] + "_" + dates[len(dates)-1]
}

func (p *Pipeline) renderSpan(ctx context.Context, ds *Dataset, dates []string, req Request) (Summary, error) {
	start := time.Now()
	date := spanLabel(dates)
	run := &runstore.Run{
		ID:      uuid.NewString(),
		Date:    date,
		Status:  runstore.StatusLoaded,
		Backend: p.backend(req),
	}
	ctx = services.WithRunID(ctx, run.ID)
	ctx = services.WithDate(ctx, date)
	t := &tracker{logger: p.logger, store: p.store, run: run}
	if p.store != nil {
		if err := p.store.Create(ctx, run); err != nil {
			p.logger.Warn("failed to record run", logging.Error(err))
			t.store = nil
		}
	}

	summary, err := p.renderDates(ctx, t, ds, dates, req)
	summary.RunID = run.ID
	summary.Elapsed = time.Since(start)
	p.metrics.RunFinished(date, string(run.Status), services.Kind(err), summary.Elapsed)
	if err != nil {
		return summary, err
	}
	logging.WithContext(ctx, p.logger).Info("animation complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("video", summary.Video),
		logging.Int("frames", summary.Frames),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (p *Pipeline) renderDates(ctx context.Context, t *tracker, ds *Dataset, dates []string, req Request) (Summary, error) {
	st := &runState{locations: ds.Locations}
	summary := Summary{Date: t.run.Date, Dates: dates, Backend: t.run.Backend}

	err := t.stage(ctx, StageFilter, runstore.StatusFiltered, func(ctx context.Context, logger *slog.Logger) error {
		selected, err := p.selectDates(logger, ds, dates)
		if err != nil {
			return err
		}
		st.located, err = readings.Join(selected, ds.Locations)
		if err != nil {
			return err
		}
		logger.Info("readings selected",
			logging.Int("dates", len(dates)),
			logging.Int("day", len(selected)),
			logging.Int("located", len(st.located)),
		)
		return nil
	})
	if err != nil {
		return summary, err
	}

	err = t.stage(ctx, StageAggregate, runstore.StatusAggregated, func(ctx context.Context, logger *slog.Logger) error {
		var err error
		st.agg, err = aggregate.Aggregate(st.located, p.cfg.BucketWidth())
		if err != nil {
			return err
		}
		summary.Buckets = len(aggregate.Buckets(st.agg))
		logger.Info("readings aggregated",
			logging.Duration("bucket", p.cfg.BucketWidth()),
			logging.Int("buckets", summary.Buckets),
			logging.Int("sensor_rows", len(st.agg.Sensors)),
		)
		return nil
	})
	if err != nil {
		return summary, err
	}

	err = t.stage(ctx, StageScale, runstore.StatusScaled, func(ctx context.Context, logger *slog.Logger) error {
		var err error
		if st.scale, err = scale.Compute(st.agg.Sensors); err != nil {
			return err
		}
		if st.extent, err = geo.Resolve(p.cfg, ds.Locations); err != nil {
			return services.Wrap(services.ErrConfiguration, StageScale, "extent", "map extent", err)
		}
		summary.Scale = st.scale
		logger.Info("concentration scale computed",
			logging.Float64("min", st.scale.Min),
			logging.Float64("max", st.scale.Max),
			logging.Int("ticks", len(st.scale.Ticks)),
		)
		return nil
	})
	if err != nil {
		return summary, err
	}

	st.outDir = p.outputDir(req, t.run.Date)
	summary.OutputDir = st.outDir
	t.run.OutputDir = st.outDir

	// The output directory stays claimed from rendering through cleanup so a
	// concurrent run cannot touch the frames while they are encoded.
	var lock *runstore.OutputLock
	defer func() { _ = lock.Unlock() }()

	err = t.stage(ctx, StageRender, runstore.StatusRendered, func(ctx context.Context, logger *slog.Logger) error {
		var err error
		if lock, err = runstore.Lock(p.cfg.Paths.StateDir, st.outDir); err != nil {
			return services.Wrap(services.ErrConfiguration, StageRender, "lock output", st.outDir, err)
		}
		return p.render(ctx, logger, t.run, st, req)
	})
	if err != nil {
		return summary, err
	}
	summary.Frames = len(st.frames)

	err = t.stage(ctx, StageEncode, runstore.StatusEncoded, func(ctx context.Context, logger *slog.Logger) error {
		return p.encode(ctx, logger, t.run, st, req)
	})
	if err != nil {
		return summary, err
	}
	summary.Video = st.video.Output
	summary.Encoder = st.video.Encoder
	summary.Fallback = st.video.Fallback
	summary.Duration = st.video.Duration

	if req.Archive || p.cfg.Video.Archive {
		err = t.stage(ctx, StageArchive, "", func(ctx context.Context, logger *slog.Logger) error {
			path, err := encoding.NewArchiver(logger).Archive(ctx, st.video.Output, filepath.Join(st.outDir, "archive"))
			if err != nil {
				logging.WarnWithContext(logger, "archive encode failed", "archive_failed",
					logging.String(logging.FieldErrorHint, "check the drapto library requirements (ffmpeg with libsvtav1)"),
					logging.String(logging.FieldImpact, "the mp4 video is kept; no archive copy was written"),
					logging.Error(err),
				)
				return nil
			}
			summary.Archive = path
			return nil
		})
		if err != nil {
			return summary, err
		}
	}

	if req.Cleanup || p.cfg.Video.CleanupFrames {
		err = t.stage(ctx, StageCleanup, runstore.StatusCleaned, func(ctx context.Context, logger *slog.Logger) error {
			n, err := encoding.Cleanup(st.outDir, st.video.Output)
			summary.Cleaned = n
			if err == nil {
				logger.Info("frames removed", logging.Int("frames", n))
			}
			return err
		})
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// selectDates gathers the readings of every date. A single date without
// readings is an error; in a span such dates are skipped as long as one
// date has data.
func (p *Pipeline) selectDates(logger *slog.Logger, ds *Dataset, dates []string) ([]readings.Reading, error) {
	if len(dates) == 1 {
		return readings.FilterDate(ds.Readings, dates[0], p.loc)
	}
	var (
		out     []readings.Reading
		skipped []string
	)
	for _, date := range dates {
		day, err := readings.FilterDate(ds.Readings, date, p.loc)
		if errors.Is(err, services.ErrNoData) {
			skipped = append(skipped, date)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, day...)
	}
	if len(skipped) > 0 {
		logging.WarnWithContext(logger, "dates without readings left out of the combined video", "dates_skipped",
			logging.String("dates", strings.Join(skipped, ", ")),
			logging.String(logging.FieldImpact, "the video jumps over the missing dates"),
		)
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrNoData, StageFilter, "dates",
			"no readings for "+strings.Join(dates, ", "), nil)
	}
	return out, nil
}

func (p *Pipeline) render(ctx context.Context, logger *slog.Logger, run *runstore.Run, st *runState, req Request) error {
	if err := os.MkdirAll(st.outDir, 0o755); err != nil {
		return services.Wrap(services.ErrRendering, StageRender, "create output", st.outDir, err)
	}
	if err := removeStaleFrames(logger, st.outDir); err != nil {
		return err
	}

	st.frames = frames.Build(st.agg, st.locations)
	if len(st.frames) == 0 {
		return services.Wrap(services.ErrNoData, StageRender, "build frames", "no time buckets to render", nil)
	}

	bgPath, bg := p.background(ctx, logger, st.extent, req)
	opts := p.composerOptions(st, bg)
	backend := p.backend(req)

	var renderer dispatch.Renderer
	if backend != dispatch.ModeExternal {
		composer, err := render.New(opts)
		if err != nil {
			return services.Wrap(services.ErrRendering, StageRender, "composer", "invalid drawing options", err)
		}
		renderer = composer
	}

	d := dispatch.New(renderer, dispatch.Options{
		Mode:           backend,
		Workers:        p.workers(req),
		OutputDir:      st.outDir,
		Logger:         logger,
		RendererBinary: p.cfg.Render.RendererBinary,
		Job:            p.job(opts, bgPath),
		OnFrame: func(elapsed time.Duration) {
			p.metrics.FrameRendered(backend, elapsed)
		},
	})
	result, err := d.Run(ctx, st.frames)
	if err != nil {
		return err
	}
	if backend == dispatch.ModeExternal {
		p.metrics.FramesWritten(backend, result.Rendered)
	}
	run.FrameCount = result.Rendered
	return nil
}

// removeStaleFrames deletes frame files left by an earlier run so the encoder
// never sees a mixed sequence.
func removeStaleFrames(logger *slog.Logger, dir string) error {
	stale, err := filepath.Glob(filepath.Join(dir, frames.Glob))
	if err != nil {
		return services.Wrap(services.ErrRendering, StageRender, "list stale frames", dir, err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrRendering, StageRender, "remove stale frame", path, err)
		}
	}
	if len(stale) > 0 {
		logger.Info("removed frames from a previous run", logging.Int("frames", len(stale)))
	}
	return nil
}

func (p *Pipeline) encode(ctx context.Context, logger *slog.Logger, run *runstore.Run, st *runState, req Request) error {
	rate := req.FrameRate
	if rate <= 0 {
		rate = p.cfg.FrameRate()
	}
	enc := encoding.NewEncoder(encoding.SettingsFromConfig(p.cfg.Video), logger)
	result, err := enc.Encode(ctx, encoding.Request{
		FramesDir: st.outDir,
		FrameRate: rate,
		Output:    filepath.Join(st.outDir, p.cfg.Video.FileName),
	})
	if err != nil {
		return err
	}
	if result.Fallback {
		p.metrics.EncoderFellBack()
	}
	st.video = result
	run.VideoPath = result.Output
	run.Encoder = result.Encoder
	return nil
}

// background returns the base map path and decoded image, or empty values
// when the map is disabled or unavailable.
func (p *Pipeline) background(ctx context.Context, logger *slog.Logger, e geo.Extent, req Request) (string, image.Image) {
	if req.NoBaseMap || p.basemap == nil {
		return "", nil
	}
	path, err := p.basemap.Ensure(ctx, e, p.cfg.Render.Width, p.cfg.Render.Height)
	if err == nil {
		var img image.Image
		if img, err = render.LoadBackground(path); err == nil {
			return path, img
		}
	}
	logging.WarnWithContext(logger, "base map unavailable; using placeholder background", "basemap_unavailable",
		logging.String(logging.FieldErrorHint, "check network access to basemap.tile_url or set basemap.enabled = false"),
		logging.String(logging.FieldImpact, "frames are drawn on a flat grey background"),
		logging.Error(err),
	)
	return "", nil
}

func (p *Pipeline) composerOptions(st *runState, bg image.Image) render.Options {
	title := strings.TrimSpace(p.cfg.Render.Title)
	if title == "" {
		title = p.cfg.Pollutant.DisplayName
	}
	return render.Options{
		Width:       p.cfg.Render.Width,
		Height:      p.cfg.Render.Height,
		Extent:      st.extent,
		Scale:       st.scale,
		Style:       p.style(),
		Background:  bg,
		Title:       title,
		Subtitle:    p.cfg.Site.DisplayName,
		Unit:        p.cfg.Pollutant.Unit,
		LegendTitle: p.cfg.Pollutant.LegendTitle,
		Location:    p.loc,
	}
}

func (p *Pipeline) style() frames.Style {
	r := p.cfg.Render
	return frames.Style{
		MarkerMinPx:  r.MarkerMinPx,
		MarkerMaxPx:  r.MarkerMaxPx,
		ArrowScale:   r.ArrowScale,
		MaxWindSpeed: r.MaxWindSpeed,
		Heatmap:      r.Heatmap,
		HeatmapPower: r.HeatmapPower,
	}
}

func (p *Pipeline) job(opts render.Options, background string) *frames.Job {
	return &frames.Job{
		Version:     frames.JobVersion,
		Width:       opts.Width,
		Height:      opts.Height,
		Extent:      opts.Extent,
		Scale:       opts.Scale,
		Style:       opts.Style,
		Background:  background,
		Title:       opts.Title,
		Subtitle:    opts.Subtitle,
		Unit:        opts.Unit,
		LegendTitle: opts.LegendTitle,
		Timezone:    p.loc.String(),
	}
}

func (p *Pipeline) backend(req Request) string {
	if b := strings.ToLower(strings.TrimSpace(req.Backend)); b != "" {
		return b
	}
	return p.cfg.Render.Backend
}

func (p *Pipeline) workers(req Request) int {
	if req.Workers > 0 {
		return req.Workers
	}
	return p.cfg.Render.Workers
}

func (p *Pipeline) outputDir(req Request, date string) string {
	root := strings.TrimSpace(req.OutputDir)
	if root == "" {
		root = p.cfg.Paths.OutputDir
	}
	return filepath.Join(root, date)
}
