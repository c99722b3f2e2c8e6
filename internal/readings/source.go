package readings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ufpmap/internal/config"
	"ufpmap/internal/services"
)

// Format identifies how a reading table is decoded.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
	FormatCSVGzip Format = "csv.gz"
)

// DetectFormat picks a decoder from the file extension.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv.gz"), strings.HasSuffix(lower, ".csv.zst"):
		return FormatCSVGzip, nil
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".txt"):
		return FormatCSV, nil
	case strings.HasSuffix(lower, ".tsv"):
		return FormatTSV, nil
	case strings.HasSuffix(lower, ".parquet"), strings.HasSuffix(lower, ".pq"):
		return FormatParquet, nil
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".ndjson"), strings.HasSuffix(lower, ".jsonl"):
		return FormatJSON, nil
	case strings.HasSuffix(lower, ".rds"), strings.HasSuffix(lower, ".rdata"):
		return "", fmt.Errorf("R data files are not readable directly; export %s to CSV or Parquet", filepath.Base(path))
	default:
		return "", fmt.Errorf("unsupported table format %q", filepath.Ext(path))
	}
}

// ReadTable decodes the file at path into a raw table.
func ReadTable(ctx context.Context, path string) (Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return Table{}, services.Wrap(services.ErrInput, "load", "detect format", "", err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Table{}, services.Wrap(services.ErrInput, "load", "open", fmt.Sprintf("data file %s not found", path), nil)
		}
		return Table{}, services.Wrap(services.ErrInput, "load", "stat", path, err)
	}

	var table Table
	switch format {
	case FormatCSV:
		table, err = ReadCSV(path, ',')
	case FormatTSV:
		table, err = ReadCSV(path, '\t')
	case FormatParquet:
		table, err = ReadDuckDB(ctx, path, "read_parquet")
	case FormatJSON:
		table, err = ReadDuckDB(ctx, path, "read_json_auto")
	case FormatCSVGzip:
		table, err = ReadDuckDB(ctx, path, "read_csv_auto")
	}
	if err != nil {
		return Table{}, services.Wrap(services.ErrInput, "load", "read "+string(format), path, err)
	}
	return table, nil
}

// Load reads and normalizes the reading table at path.
func Load(ctx context.Context, path string, overrides config.Columns, loc *time.Location) ([]Reading, NormalizeStats, error) {
	if strings.TrimSpace(path) == "" {
		return nil, NormalizeStats{}, services.Wrap(services.ErrInput, "load", "open", "no data file configured (set data.path or pass --data)", nil)
	}
	table, err := ReadTable(ctx, path)
	if err != nil {
		return nil, NormalizeStats{}, err
	}
	readings, stats, err := Normalize(table, overrides, loc)
	if err != nil {
		return nil, stats, err
	}
	if len(readings) == 0 {
		return nil, stats, services.Wrap(services.ErrNoData, "load", "normalize",
			fmt.Sprintf("%s contains no usable readings (%d rows, %d bad timestamps)", filepath.Base(path), stats.Rows, stats.BadTimestamps), nil)
	}
	return readings, stats, nil
}
