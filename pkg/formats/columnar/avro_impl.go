package columnar

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
)

// avroWriter implements Writer for Avro object container files
type avroWriter struct {
	config         *WriterConfig
	codec          *goavro.Codec
	ocfWriter      *goavro.OCFWriter
	avroTypes      []string
	recordsWritten int64
	mu             sync.Mutex
}

func newAvroWriter(w io.Writer, config *WriterConfig) (*avroWriter, error) {
	avroSchema, avroTypes, err := arrowToAvroSchema(config.Schema)
	if err != nil {
		return nil, err
	}

	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro codec: %w", err)
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: getAvroCompression(config.Compression),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro writer: %w", err)
	}

	return &avroWriter{
		config:    config,
		codec:     codec,
		ocfWriter: ocfWriter,
		avroTypes: avroTypes,
	}, nil
}

func (aw *avroWriter) WriteRecord(rec arrow.Record) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	rows := make([]interface{}, rec.NumRows())
	for i := range rows {
		native := make(map[string]interface{}, rec.NumCols())
		for c := 0; c < int(rec.NumCols()); c++ {
			col := rec.Column(c)
			name := rec.ColumnName(c)
			if col.IsNull(i) {
				native[name] = nil
				continue
			}
			v := avroNative(col, i)
			if aw.config.Schema.Field(c).Nullable {
				v = goavro.Union(aw.avroTypes[c], v)
			}
			native[name] = v
		}
		rows[i] = native
	}

	if err := aw.ocfWriter.Append(rows); err != nil {
		return fmt.Errorf("failed to write Avro records: %w", err)
	}
	aw.recordsWritten += rec.NumRows()
	return nil
}

// Close is a no-op; OCF blocks are flushed on every Append.
func (aw *avroWriter) Close() error {
	return nil
}

func (aw *avroWriter) Format() Format {
	return Avro
}

func (aw *avroWriter) RecordsWritten() int64 {
	return aw.recordsWritten
}

func arrowToAvroSchema(schema *arrow.Schema) (string, []string, error) {
	fields := make([]map[string]interface{}, 0, schema.NumFields())
	types := make([]string, schema.NumFields())

	for i, field := range schema.Fields() {
		avroType, err := arrowToAvroType(field.Type)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		types[i] = avroType

		avroField := map[string]interface{}{
			"name": field.Name,
			"type": avroType,
		}
		if field.Nullable {
			avroField["type"] = []interface{}{"null", avroType}
		}
		fields = append(fields, avroField)
	}

	schemaMap := map[string]interface{}{
		"type":   "record",
		"name":   "cell",
		"fields": fields,
	}
	schemaBytes, err := json.Marshal(schemaMap)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode Avro schema: %w", err)
	}
	return string(schemaBytes), types, nil
}

func arrowToAvroType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16:
		return "int", nil
	case arrow.INT64, arrow.UINT32, arrow.UINT64:
		return "long", nil
	case arrow.FLOAT32:
		return "float", nil
	case arrow.FLOAT64:
		return "double", nil
	case arrow.BOOL:
		return "boolean", nil
	case arrow.STRING, arrow.LARGE_STRING:
		return "string", nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "bytes", nil
	}
	return "", fmt.Errorf("no Avro type for %s", dt)
}

func avroNative(col arrow.Array, i int) interface{} {
	switch a := col.(type) {
	case *array.Int8:
		return int32(a.Value(i))
	case *array.Int16:
		return int32(a.Value(i))
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int32(a.Value(i))
	case *array.Uint16:
		return int32(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		if a.Value(i) > math.MaxInt64 {
			return int64(math.MaxInt64)
		}
		return int64(a.Value(i))
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return a.Value(i)
	case *array.LargeBinary:
		return a.Value(i)
	}
	return col.ValueStr(i)
}

func getAvroCompression(compression string) string {
	switch compression {
	case "snappy":
		return goavro.CompressionSnappyLabel
	case "deflate", "gzip":
		return goavro.CompressionDeflateLabel
	default:
		return goavro.CompressionNullLabel
	}
}
