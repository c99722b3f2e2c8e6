package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ufpmap/internal/logging"
	"ufpmap/internal/runstore"
	"ufpmap/internal/services"
)

// Stage names.
const (
	StageLoad      = "load"
	StageFilter    = "filter"
	StageAggregate = "aggregate"
	StageScale     = "scale"
	StageRender    = "render"
	StageEncode    = "encode"
	StageArchive   = "archive"
	StageCleanup   = "cleanup"
)

type stageFunc func(ctx context.Context, logger *slog.Logger) error

// tracker follows one run through its stages.
type tracker struct {
	logger *slog.Logger
	store  *runstore.Store
	run    *runstore.Run
}

// stage executes fn and, on success, advances the run to done. An empty done
// leaves the status unchanged.
func (t *tracker) stage(ctx context.Context, name string, done runstore.Status, fn stageFunc) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, t.logger)

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", string(t.run.Status)),
	)
	start := time.Now()
	if err := fn(stageCtx, logger); err != nil {
		return t.fail(stageCtx, logger, err)
	}
	if done != "" {
		t.run.Status = done
		t.persist(stageCtx, logger)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(t.run.Status)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (t *tracker) fail(ctx context.Context, logger *slog.Logger, stageErr error) error {
	t.run.Status = runstore.StatusFailed
	t.run.ErrorKind = services.Kind(stageErr)
	t.run.ErrorDetail = strings.TrimSpace(stageErr.Error())

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(runstore.StatusFailed)),
		logging.String("error_kind", t.run.ErrorKind),
		logging.Error(stageErr),
	}
	if hint := errorHint(stageErr); hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, hint))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	// Persist with a fresh context so a cancelled run still records failure.
	persistCtx := context.WithoutCancel(ctx)
	t.persist(persistCtx, logger)
	return stageErr
}

func (t *tracker) persist(ctx context.Context, logger *slog.Logger) {
	if t.store == nil {
		return
	}
	if err := t.store.Update(ctx, t.run); err != nil {
		logger.Warn("failed to persist run status",
			logging.String("status", string(t.run.Status)),
			logging.Error(err),
		)
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrNoData):
		return "run `ufpmap dates` to list the dates that have readings"
	case errors.Is(err, services.ErrInput):
		return "check data.path, data.locations_path, and the [data.columns] overrides"
	case errors.Is(err, services.ErrExternalTool):
		return "check that ffmpeg and the renderer binary are installed and on PATH"
	case errors.Is(err, services.ErrConfiguration):
		return "run `ufpmap config validate`"
	case errors.Is(err, services.ErrRendering):
		return "check free space and permissions in the output directory"
	case errors.Is(err, context.Canceled):
		return ""
	default:
		return ""
	}
}
