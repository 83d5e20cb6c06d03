package columnar

import (
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
)

// arrowWriter implements Writer for the Arrow IPC file format
type arrowWriter struct {
	config         *WriterConfig
	fileWriter     *ipc.FileWriter
	recordsWritten int64
	mu             sync.Mutex
}

func newArrowWriter(w io.Writer, config *WriterConfig) (*arrowWriter, error) {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(config.Schema), ipc.WithAllocator(config.Allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	return &arrowWriter{config: config, fileWriter: fw}, nil
}

func (aw *arrowWriter) WriteRecord(rec arrow.Record) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if err := aw.fileWriter.Write(rec); err != nil {
		return fmt.Errorf("failed to write Arrow record: %w", err)
	}
	aw.recordsWritten += rec.NumRows()
	return nil
}

func (aw *arrowWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if err := aw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

func (aw *arrowWriter) Format() Format {
	return Arrow
}

func (aw *arrowWriter) RecordsWritten() int64 {
	return aw.recordsWritten
}

// arrowReader implements Reader for the Arrow IPC file format
type arrowReader struct {
	config     *ReaderConfig
	fileReader *ipc.FileReader
}

func newArrowReader(r ReadAtSeeker, config *ReaderConfig) (*arrowReader, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(config.Allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	return &arrowReader{config: config, fileReader: fr}, nil
}

func (ar *arrowReader) Schema() *arrow.Schema {
	return ar.fileReader.Schema()
}

func (ar *arrowReader) ReadAll() (arrow.Record, error) {
	recs := make([]arrow.Record, 0, ar.fileReader.NumRecords())
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	for i := 0; i < ar.fileReader.NumRecords(); i++ {
		rec, err := ar.fileReader.RecordAt(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read Arrow record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return arrowutil.ConcatRecords(ar.config.Allocator, ar.fileReader.Schema(), recs)
}

func (ar *arrowReader) Close() error {
	return ar.fileReader.Close()
}

func (ar *arrowReader) Format() Format {
	return Arrow
}
