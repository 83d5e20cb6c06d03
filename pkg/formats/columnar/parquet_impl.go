package columnar

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
)

// parquetWriter implements Writer for Parquet format
type parquetWriter struct {
	config         *WriterConfig
	fileWriter     *pqarrow.FileWriter
	recordsWritten int64
	mu             sync.Mutex
}

func newParquetWriter(w io.Writer, config *WriterConfig) (*parquetWriter, error) {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(getParquetCompression(config.Compression)),
		parquet.WithMaxRowGroupLength(config.RowGroupSize),
		parquet.WithAllocator(config.Allocator),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(config.Allocator),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(config.Schema, w, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	return &parquetWriter{config: config, fileWriter: fw}, nil
}

func (pw *parquetWriter) WriteRecord(rec arrow.Record) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.fileWriter.Write(rec); err != nil {
		return fmt.Errorf("failed to write Parquet record: %w", err)
	}
	pw.recordsWritten += rec.NumRows()
	return nil
}

func (pw *parquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func (pw *parquetWriter) Format() Format {
	return Parquet
}

func (pw *parquetWriter) RecordsWritten() int64 {
	return pw.recordsWritten
}

// parquetReader implements Reader for Parquet format
type parquetReader struct {
	config      *ReaderConfig
	fileReader  *file.Reader
	arrowReader *pqarrow.FileReader
	schema      *arrow.Schema
}

func newParquetReader(r ReadAtSeeker, config *ReaderConfig) (*parquetReader, error) {
	fr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, config.Allocator)
	if err != nil {
		fr.Close()
		return nil, fmt.Errorf("failed to create Arrow reader for Parquet: %w", err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		fr.Close()
		return nil, fmt.Errorf("failed to read Parquet schema: %w", err)
	}

	return &parquetReader{
		config:      config,
		fileReader:  fr,
		arrowReader: arrowReader,
		schema:      schema,
	}, nil
}

func (pr *parquetReader) Schema() *arrow.Schema {
	return pr.schema
}

func (pr *parquetReader) ReadAll() (arrow.Record, error) {
	tbl, err := pr.arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet table: %w", err)
	}
	defer tbl.Release()
	return arrowutil.TableToRecord(pr.config.Allocator, tbl)
}

func (pr *parquetReader) Close() error {
	return pr.fileReader.Close()
}

func (pr *parquetReader) Format() Format {
	return Parquet
}

func getParquetCompression(name string) compress.Compression {
	switch strings.ToLower(name) {
	case "", "none", "uncompressed":
		return compress.Codecs.Uncompressed
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "brotli":
		return compress.Codecs.Brotli
	default:
		return compress.Codecs.Snappy
	}
}
