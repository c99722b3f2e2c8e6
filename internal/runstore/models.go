package runstore

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusLoaded     Status = "loaded"
	StatusFiltered   Status = "filtered"
	StatusAggregated Status = "aggregated"
	StatusScaled     Status = "scaled"
	StatusRendered   Status = "rendered"
	StatusEncoded    Status = "encoded"
	StatusCleaned    Status = "cleaned"
	StatusFailed     Status = "failed"
)

var statusOrder = []Status{
	StatusLoaded,
	StatusFiltered,
	StatusAggregated,
	StatusScaled,
	StatusRendered,
	StatusEncoded,
	StatusCleaned,
}

// AllStatuses lists every status in lifecycle order, failed last.
func AllStatuses() []Status {
	out := make([]Status, 0, len(statusOrder)+1)
	out = append(out, statusOrder...)
	return append(out, StatusFailed)
}

// ParseStatus converts a stored value.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range AllStatuses() {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusEncoded || s == StatusCleaned || s == StatusFailed
}

// CanAdvanceTo reports whether next is a valid successor of s. Any
// non-terminal status may fail.
func (s Status) CanAdvanceTo(next Status) bool {
	if next == StatusFailed {
		return !s.Terminal()
	}
	for i, st := range statusOrder {
		if st == s {
			return i+1 < len(statusOrder) && statusOrder[i+1] == next
		}
	}
	return false
}

// Run is one pipeline execution for a single date.
type Run struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Status      Status    `json:"status"`
	Backend     string    `json:"backend"`
	OutputDir   string    `json:"output_dir,omitempty"`
	FrameCount  int       `json:"frame_count"`
	VideoPath   string    `json:"video_path,omitempty"`
	Encoder     string    `json:"encoder,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Failed reports whether the run ended in failure.
func (r *Run) Failed() bool {
	return r != nil && r.Status == StatusFailed
}
