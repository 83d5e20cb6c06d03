package store

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/arraystore/pkg/compression"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
)

// ObjectType names the kind of array.
type ObjectType string

const (
	SparseNDArray ObjectType = "SparseNDArray"
	DenseNDArray  ObjectType = "DenseNDArray"
	DataFrame     ObjectType = "DataFrame"
)

// ParseObjectType parses an object type name.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case SparseNDArray, DenseNDArray, DataFrame:
		return t, nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown object type %q", s)
}

const (
	// MetaObjectType holds the ObjectType of an array.
	MetaObjectType = "object_type"
	// MetaEncodingVersion holds the on-disk encoding version.
	MetaEncodingVersion = "encoding_version"
	// EncodingVersion is the encoding version written by this package.
	EncodingVersion = "1"

	// JoinID is the row id dimension of a dataframe.
	JoinID = "joinid"

	// ReservedPrefix starts every store-owned key and column name.
	ReservedPrefix = "__"

	schemaKey    = "__schema.json"
	metaKey      = "__meta.json"
	fragmentsDir = "__fragments"
)

// IsReservedMetadataKey reports whether key may not be set by callers.
func IsReservedMetadataKey(key string) bool {
	return key == MetaObjectType || key == MetaEncodingVersion || strings.HasPrefix(key, ReservedPrefix)
}

// FragmentOptions selects how committed fragments are encoded.
type FragmentOptions struct {
	Format      columnar.Format       `json:"format"`
	Compression compression.Algorithm `json:"compression"`
}

// DefaultFragmentOptions returns Arrow IPC fragments compressed with zstd.
func DefaultFragmentOptions() FragmentOptions {
	return FragmentOptions{Format: columnar.Arrow, Compression: compression.Zstd}
}

func (o FragmentOptions) withDefaults() FragmentOptions {
	if o.Format == "" {
		o.Format = columnar.Arrow
	}
	if o.Compression == "" {
		o.Compression = compression.None
	}
	return o
}

func (o FragmentOptions) validate() error {
	info := columnar.GetFormatInfo(o.Format)
	if info == nil || !info.Fragment {
		return errors.Newf(errors.ErrorTypeConfig, "format %q cannot encode fragments", o.Format)
	}
	if _, err := compression.ParseAlgorithm(string(o.Compression)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid fragment compression")
	}
	return nil
}

// schemaDoc is the content of __schema.json.
type schemaDoc struct {
	Schema    Schema          `json:"schema"`
	Fragments FragmentOptions `json:"fragments"`
}

func encodeSchema(s *Schema, fo FragmentOptions) ([]byte, error) {
	data, err := json.MarshalIndent(schemaDoc{Schema: *s, Fragments: fo}, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to marshal schema")
	}
	return data, nil
}

func decodeSchema(data []byte) (*Schema, FragmentOptions, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, FragmentOptions{}, errors.Wrap(err, errors.ErrorTypeData, "failed to unmarshal schema")
	}
	return &doc.Schema, doc.Fragments.withDefaults(), nil
}

// Metadata is the string key/value metadata of an array.
type Metadata map[string]string

// ObjectType returns the recorded object type.
func (m Metadata) ObjectType() ObjectType {
	return ObjectType(m[MetaObjectType])
}

func (m Metadata) clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func encodeMetadata(m Metadata) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to marshal metadata")
	}
	return data, nil
}

func decodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to unmarshal metadata")
	}
	if m == nil {
		m = Metadata{}
	}
	return m, nil
}
