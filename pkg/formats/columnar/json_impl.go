package columnar

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"
)

// jsonWriter implements Writer for JSON lines. Keys follow column order.
type jsonWriter struct {
	config         *WriterConfig
	writer         *bufio.Writer
	recordsWritten int64
	mu             sync.Mutex
}

func newJSONWriter(w io.Writer, config *WriterConfig) (*jsonWriter, error) {
	return &jsonWriter{config: config, writer: bufio.NewWriter(w)}, nil
}

func (jw *jsonWriter) WriteRecord(rec arrow.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	keys := make([][]byte, rec.NumCols())
	for c := range keys {
		k, err := json.Marshal(rec.ColumnName(c))
		if err != nil {
			return err
		}
		keys[c] = k
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		jw.writer.WriteByte('{')
		for c := range keys {
			if c > 0 {
				jw.writer.WriteByte(',')
			}
			jw.writer.Write(keys[c])
			jw.writer.WriteByte(':')
			v, err := json.Marshal(jsonValue(rec.Column(c), i))
			if err != nil {
				return fmt.Errorf("failed to encode %s row %d: %w", rec.ColumnName(c), i, err)
			}
			jw.writer.Write(v)
		}
		if _, err := jw.writer.WriteString("}\n"); err != nil {
			return fmt.Errorf("failed to write JSON row: %w", err)
		}
	}
	jw.recordsWritten += rec.NumRows()
	return nil
}

func (jw *jsonWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.writer.Flush()
}

func (jw *jsonWriter) Format() Format {
	return JSON
}

func (jw *jsonWriter) RecordsWritten() int64 {
	return jw.recordsWritten
}

// jsonValue returns a JSON-encodable value. Non-finite floats become
// their string form since JSON has no literal for them.
func jsonValue(col arrow.Array, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Float32:
		return finite(float64(a.Value(i)))
	case *array.Float64:
		return finite(a.Value(i))
	}
	return col.GetOneForMarshal(i)
}

func finite(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}
