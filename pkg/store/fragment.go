package store

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/segmentio/ksuid"

	"github.com/ajitpratap0/arraystore/pkg/compression"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
	"github.com/ajitpratap0/arraystore/pkg/pool"
)

// Fragment identifies one committed, immutable data file of an array.
//
// Fragment files are named "<seq>-<ksuid><ext>" where seq is the zero
// padded commit sequence number, so lexical order is commit order. The
// extension records the encoding, e.g. ".arrow.zst" or ".parquet".
type Fragment struct {
	Key         string                `json:"key"`
	Seq         int                   `json:"seq"`
	ID          ksuid.KSUID           `json:"id"`
	Format      columnar.Format       `json:"format"`
	Compression compression.Algorithm `json:"compression"`
}

func fragmentName(seq int, fo FragmentOptions) string {
	name := fmt.Sprintf("%08d-%s%s", seq, ksuid.New(), columnar.GetFormatInfo(fo.Format).FileExtension)
	if fo.Format == columnar.Arrow {
		name += compression.Extension(fo.Compression)
	}
	return name
}

func parseFragment(key string) (Fragment, error) {
	f := Fragment{Key: key}
	base, alg := compression.FromExtension(path.Base(key))
	f.Compression = alg

	format, err := columnar.FromPath(base)
	if err != nil {
		return f, errors.Wrap(err, errors.ErrorTypeData, "unrecognized fragment file").WithDetail("key", key)
	}
	f.Format = format

	stem := strings.TrimSuffix(base, path.Ext(base))
	seq, id, ok := strings.Cut(stem, "-")
	if !ok {
		return f, errors.Newf(errors.ErrorTypeData, "malformed fragment name %q", key)
	}
	if f.Seq, err = strconv.Atoi(seq); err != nil {
		return f, errors.Wrap(err, errors.ErrorTypeData, "malformed fragment sequence").WithDetail("key", key)
	}
	if f.ID, err = ksuid.Parse(id); err != nil {
		return f, errors.Wrap(err, errors.ErrorTypeData, "malformed fragment id").WithDetail("key", key)
	}
	return f, nil
}

// encodeFragment serializes rec. Arrow fragments hold one IPC batch per
// capacity rows and are compressed as a whole; Parquet fragments use
// capacity as the row group length and compress column chunks.
func encodeFragment(mem memory.Allocator, rec arrow.Record, fo FragmentOptions, capacity int64) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	cfg := &columnar.WriterConfig{
		Format:       fo.Format,
		Schema:       rec.Schema(),
		RowGroupSize: capacity,
		Allocator:    mem,
	}
	if fo.Format == columnar.Parquet {
		cfg.Compression = string(fo.Compression)
	}
	w, err := columnar.NewWriter(buf, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create fragment writer")
	}

	if fo.Format == columnar.Arrow && capacity > 0 && rec.NumRows() > capacity {
		for lo := int64(0); lo < rec.NumRows(); lo += capacity {
			batch := rec.NewSlice(lo, min(lo+capacity, rec.NumRows()))
			err = w.WriteRecord(batch)
			batch.Release()
			if err != nil {
				break
			}
		}
	} else {
		err = w.WriteRecord(rec)
	}
	if err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode fragment")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to finish fragment")
	}

	if fo.Format != columnar.Arrow || fo.Compression == compression.None {
		return bytes.Clone(buf.Bytes()), nil
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: fo.Compression})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}
	out, err := comp.Compress(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to compress fragment")
	}
	return out, nil
}

// decodeFragment parses a fragment payload into a record conforming to
// schema.
func decodeFragment(mem memory.Allocator, f Fragment, payload []byte, schema *arrow.Schema) (arrow.Record, error) {
	if f.Compression != compression.None {
		comp, err := compression.NewCompressor(&compression.Config{Algorithm: f.Compression})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create decompressor")
		}
		if payload, err = comp.Decompress(payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decompress fragment").WithDetail("key", f.Key)
		}
	}

	r, err := columnar.NewReader(bytes.NewReader(payload), &columnar.ReaderConfig{Format: f.Format, Allocator: mem})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open fragment").WithDetail("key", f.Key)
	}
	defer r.Close()

	rec, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode fragment").WithDetail("key", f.Key)
	}
	defer rec.Release()
	return conform(rec, schema)
}

// conform rebinds rec's columns to schema by name. Field metadata added by
// an encoding is discarded; a missing column or differing type is a
// SchemaMismatch.
func conform(rec arrow.Record, schema *arrow.Schema) (arrow.Record, error) {
	cols := make([]arrow.Array, schema.NumFields())
	for i, field := range schema.Fields() {
		idx := rec.Schema().FieldIndices(field.Name)
		if len(idx) != 1 {
			return nil, errors.SchemaMismatch("fragment has no column %q", field.Name).WithDetail("column", field.Name)
		}
		col := rec.Column(idx[0])
		if !arrow.TypeEqual(col.DataType(), field.Type) {
			return nil, errors.SchemaMismatch("fragment column %q is %s, want %s", field.Name, col.DataType(), field.Type).
				WithDetail("column", field.Name)
		}
		cols[i] = col
	}
	return array.NewRecord(schema, cols, rec.NumRows()), nil
}
