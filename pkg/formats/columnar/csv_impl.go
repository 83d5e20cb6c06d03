package columnar

import (
	encsv "encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
)

// csvWriter implements Writer for CSV with a header row. Nulls are written
// as empty fields.
type csvWriter struct {
	config         *WriterConfig
	writer         *encsv.Writer
	wroteHeader    bool
	recordsWritten int64
	mu             sync.Mutex
}

func newCSVWriter(w io.Writer, config *WriterConfig) (*csvWriter, error) {
	return &csvWriter{config: config, writer: encsv.NewWriter(w)}, nil
}

func (cw *csvWriter) WriteRecord(rec arrow.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.wroteHeader {
		header := make([]string, cw.config.Schema.NumFields())
		for i, f := range cw.config.Schema.Fields() {
			header[i] = f.Name
		}
		if err := cw.writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		cw.wroteHeader = true
	}

	row := make([]string, rec.NumCols())
	for i := 0; i < int(rec.NumRows()); i++ {
		for c := range row {
			col := rec.Column(c)
			if col.IsNull(i) {
				row[c] = ""
				continue
			}
			row[c] = col.ValueStr(i)
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.recordsWritten += rec.NumRows()
	return nil
}

func (cw *csvWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.writer.Flush()
	return cw.writer.Error()
}

func (cw *csvWriter) Format() Format {
	return CSV
}

func (cw *csvWriter) RecordsWritten() int64 {
	return cw.recordsWritten
}

// csvReader implements Reader for CSV, inferring column types from the data
type csvReader struct {
	config *ReaderConfig
	reader *csv.Reader
	first  arrow.Record
}

func newCSVReader(r ReadAtSeeker, config *ReaderConfig) (*csvReader, error) {
	batch := config.BatchSize
	if batch <= 0 {
		batch = DefaultReaderConfig().BatchSize
	}
	reader := csv.NewInferringReader(r,
		csv.WithHeader(true),
		csv.WithChunk(batch),
		csv.WithAllocator(config.Allocator),
		csv.WithNullReader(true, ""),
	)

	cr := &csvReader{config: config, reader: reader}
	// the schema is only known after the first batch is inferred
	if reader.Next() {
		cr.first = reader.Record()
		cr.first.Retain()
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return cr, nil
}

func (cr *csvReader) Schema() *arrow.Schema {
	return cr.reader.Schema()
}

func (cr *csvReader) ReadAll() (arrow.Record, error) {
	var recs []arrow.Record
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	if cr.first != nil {
		recs = append(recs, cr.first)
		cr.first = nil
	}
	for cr.reader.Next() {
		rec := cr.reader.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := cr.reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	schema := cr.reader.Schema()
	if schema == nil {
		schema = arrow.NewSchema(nil, nil)
	}
	return arrowutil.ConcatRecords(cr.config.Allocator, schema, recs)
}

func (cr *csvReader) Close() error {
	if cr.first != nil {
		cr.first.Release()
		cr.first = nil
	}
	cr.reader.Release()
	return nil
}

func (cr *csvReader) Format() Format {
	return CSV
}
