// Package readings loads sensor measurement tables and maps their varied
// column naming conventions onto one canonical Reading shape.
//
// Sources are picked by file extension: CSV and TSV files are streamed
// directly, while Parquet, JSON and compressed CSV files are read through an
// in-process DuckDB engine. Either way the raw Table passes through Normalize,
// which resolves columns from candidate lists, derives missing wind
// components, and marks unusable cells as missing (NaN).
//
// The package also owns the Filter/Join stage (FilterDate, Join) and the
// exploration helpers behind the dates and summary commands.
package readings
