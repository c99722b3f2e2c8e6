package frames

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"ufpmap/internal/fileutil"
	"ufpmap/internal/geo"
	"ufpmap/internal/scale"
	"ufpmap/internal/services"
)

// JobVersion is the current descriptor schema version.
const JobVersion = 1

// JobFileName is the descriptor file written next to the frames.
const JobFileName = "render_job.json"

// Style carries the drawing parameters shared by every frame.
type Style struct {
	MarkerMinPx  float64 `json:"marker_min_px" validate:"gt=0"`
	MarkerMaxPx  float64 `json:"marker_max_px" validate:"gtefield=MarkerMinPx"`
	ArrowScale   float64 `json:"arrow_scale" validate:"gt=0,lte=1"`
	MaxWindSpeed float64 `json:"max_wind_speed" validate:"gt=0"`
	Heatmap      bool    `json:"heatmap"`
	HeatmapPower float64 `json:"heatmap_power" validate:"gte=0"`
}

// Job is the self-contained description of a frame batch. A renderer that
// reads it needs no other input besides the optional background image.
type Job struct {
	Version     int         `json:"version" validate:"eq=1"`
	OutputDir   string      `json:"output_dir" validate:"required"`
	Width       int         `json:"width" validate:"gt=0"`
	Height      int         `json:"height" validate:"gt=0"`
	Extent      geo.Extent  `json:"extent"`
	Scale       scale.Scale `json:"scale"`
	Style       Style       `json:"style"`
	Background  string      `json:"background,omitempty"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Unit        string      `json:"unit"`
	LegendTitle string      `json:"legend_title"`
	Timezone    string      `json:"timezone,omitempty"`
	Frames      []Frame     `json:"frames" validate:"required,min=1,dive"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func jobValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints and that frame indices are unique.
func (j *Job) Validate() error {
	if err := jobValidator().Struct(j); err != nil {
		return services.Wrap(services.ErrValidation, "dispatch", "validate job", "", err)
	}
	seen := make(map[int]struct{}, len(j.Frames))
	for _, f := range j.Frames {
		if _, ok := seen[f.Index]; ok {
			return services.Wrap(services.ErrValidation, "dispatch", "validate job",
				fmt.Sprintf("duplicate frame index %d", f.Index), nil)
		}
		seen[f.Index] = struct{}{}
	}
	return nil
}

// WriteJob validates job and writes it to path atomically.
func WriteJob(path string, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrRendering, "dispatch", "encode job", "", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrRendering, "dispatch", "write job", path, err)
	}
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return services.Wrap(services.ErrRendering, "dispatch", "write job", path, err)
	}
	return nil
}

// ReadJob loads and validates a descriptor.
func ReadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "render", "read job", path, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, services.Wrap(services.ErrInput, "render", "decode job", path, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}
