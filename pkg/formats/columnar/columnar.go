// Package columnar reads and writes Arrow records in on-disk columnar and
// row formats. Arrow IPC and Parquet serve as fragment encodings; CSV, JSON
// and Avro are import and export formats.
package columnar

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Format represents a storage format
type Format string

const (
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is Apache Avro object container format (write only)
	Avro Format = "avro"
	// CSV is comma separated values with a header row
	CSV Format = "csv"
	// JSON is one JSON object per line (write only)
	JSON Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Arrow, Parquet, Avro, CSV, JSON:
		return f, nil
	case "ipc", "feather":
		return Arrow, nil
	case "jsonl", "ndjson":
		return JSON, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// FromPath guesses a format from a file extension.
func FromPath(path string) (Format, error) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", fmt.Errorf("cannot infer format of %q", path)
	}
	return ParseFormat(path[i+1:])
}

// Writer writes records in one format
type Writer interface {
	// WriteRecord appends a record. All records share the writer's schema.
	WriteRecord(rec arrow.Record) error
	// Close flushes and finalizes the output. It does not close the
	// underlying io.Writer.
	Close() error
	// Format returns the format
	Format() Format
	// RecordsWritten returns rows written
	RecordsWritten() int64
}

// Reader reads records in one format
type Reader interface {
	// Schema returns the Arrow schema of the input
	Schema() *arrow.Schema
	// ReadAll reads every remaining record into one record
	ReadAll() (arrow.Record, error)
	// Close releases reader resources
	Close() error
	// Format returns the format
	Format() Format
}

// WriterConfig configures writers
type WriterConfig struct {
	Format Format
	Schema *arrow.Schema
	// Compression applies to Parquet column chunks and Avro blocks
	Compression string
	// RowGroupSize is the Parquet row group length
	RowGroupSize int64
	Allocator    memory.Allocator
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:       Arrow,
		Compression:  "snappy",
		RowGroupSize: 1 << 20,
	}
}

// ReaderConfig configures readers
type ReaderConfig struct {
	Format    Format
	Allocator memory.Allocator
	// BatchSize is the CSV read batch length
	BatchSize int
}

// DefaultReaderConfig returns default reader configuration
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		Format:    Arrow,
		BatchSize: 64 * 1024,
	}
}

// NewWriter creates a new writer
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if config.Schema == nil {
		return nil, fmt.Errorf("schema is required for %s writer", config.Format)
	}
	if config.Allocator == nil {
		config.Allocator = memory.DefaultAllocator
	}
	if config.RowGroupSize <= 0 {
		config.RowGroupSize = DefaultWriterConfig().RowGroupSize
	}

	switch config.Format {
	case Arrow:
		return newArrowWriter(w, config)
	case Parquet:
		return newParquetWriter(w, config)
	case Avro:
		return newAvroWriter(w, config)
	case CSV:
		return newCSVWriter(w, config)
	case JSON:
		return newJSONWriter(w, config)
	default:
		return nil, fmt.Errorf("unsupported format: %s", config.Format)
	}
}

// ReadAtSeeker is the input required by readers. *os.File and
// *bytes.Reader satisfy it.
type ReadAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// NewReader creates a new reader
func NewReader(r ReadAtSeeker, config *ReaderConfig) (Reader, error) {
	if config == nil {
		config = DefaultReaderConfig()
	}
	if config.Allocator == nil {
		config.Allocator = memory.DefaultAllocator
	}

	switch config.Format {
	case Arrow:
		return newArrowReader(r, config)
	case Parquet:
		return newParquetReader(r, config)
	case CSV:
		return newCSVReader(r, config)
	default:
		return nil, fmt.Errorf("format %s cannot be read", config.Format)
	}
}

// FormatInfo provides information about formats
type FormatInfo struct {
	Format        Format
	Name          string
	FileExtension string
	MIMEType      string
	Readable      bool
	Fragment      bool
}

// GetFormatInfo returns information about a format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Arrow:
		return &FormatInfo{Format: Arrow, Name: "Apache Arrow IPC", FileExtension: ".arrow",
			MIMEType: "application/vnd.apache.arrow.file", Readable: true, Fragment: true}
	case Parquet:
		return &FormatInfo{Format: Parquet, Name: "Apache Parquet", FileExtension: ".parquet",
			MIMEType: "application/x-parquet", Readable: true, Fragment: true}
	case Avro:
		return &FormatInfo{Format: Avro, Name: "Apache Avro", FileExtension: ".avro",
			MIMEType: "application/x-avro"}
	case CSV:
		return &FormatInfo{Format: CSV, Name: "CSV", FileExtension: ".csv",
			MIMEType: "text/csv", Readable: true}
	case JSON:
		return &FormatInfo{Format: JSON, Name: "JSON Lines", FileExtension: ".jsonl",
			MIMEType: "application/x-ndjson"}
	default:
		return nil
	}
}
