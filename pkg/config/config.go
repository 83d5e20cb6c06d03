package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/ajitpratap0/arraystore/pkg/chunk"
	"github.com/ajitpratap0/arraystore/pkg/compression"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
	"github.com/ajitpratap0/arraystore/pkg/order"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
)

// Config is the top level configuration of the arraystore CLI.
type Config struct {
	Create        CreateOptions       `yaml:"create" json:"create" mapstructure:"create"`
	Storage       backend.Config      `yaml:"storage" json:"storage" mapstructure:"storage"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// CreateOptions controls how arrays are created and written. A value is
// fixed for the lifetime of an ingestion session.
type CreateOptions struct {
	// WriteChunked splits writes into chunks of roughly GoalChunkNNZ elements
	WriteChunked bool `yaml:"write_chunked" json:"write_chunked" mapstructure:"write_chunked"`
	// GoalChunkNNZ is the target element count per chunk
	GoalChunkNNZ int64 `yaml:"goal_chunk_nnz" json:"goal_chunk_nnz" mapstructure:"goal_chunk_nnz"`
	// RemoteCapNBytes caps the estimated size of one committed fragment. The
	// zero value stands for an absent cap; an explicit cap must be positive.
	RemoteCapNBytes int64 `yaml:"remote_cap_nbytes,omitempty" json:"remote_cap_nbytes,omitempty" mapstructure:"remote_cap_nbytes"`

	// FragmentFormat is the fragment encoding (arrow, parquet)
	FragmentFormat string `yaml:"fragment_format" json:"fragment_format" mapstructure:"fragment_format"`
	// FragmentCompression compresses fragment payloads (none, zstd, lz4, snappy, s2, gzip)
	FragmentCompression string `yaml:"fragment_compression" json:"fragment_compression" mapstructure:"fragment_compression"`
	// Capacity is the number of cells per data tile
	Capacity int64 `yaml:"capacity" json:"capacity" mapstructure:"capacity"`
	// DataFrameDimTile is the tile extent for dataframe index columns
	DataFrameDimTile int64 `yaml:"dataframe_dim_tile" json:"dataframe_dim_tile" mapstructure:"dataframe_dim_tile"`
	// AllowsDuplicates keeps every cell written to the same coordinates
	AllowsDuplicates bool `yaml:"allows_duplicates" json:"allows_duplicates" mapstructure:"allows_duplicates"`
	// CellOrder is the layout of cells within a tile (row-major, col-major)
	CellOrder string `yaml:"cell_order" json:"cell_order" mapstructure:"cell_order"`
	// TileOrder is the layout of tiles (row-major, col-major)
	TileOrder string `yaml:"tile_order" json:"tile_order" mapstructure:"tile_order"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogEncoding selects json or console output
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	// Metrics serves prometheus metrics on MetricsAddr when set
	Metrics     bool   `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// Tracing exports spans to stderr
	Tracing bool `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// DefaultCreateOptions returns the options used when nothing is configured.
func DefaultCreateOptions() CreateOptions {
	return CreateOptions{
		WriteChunked:        true,
		GoalChunkNNZ:        chunk.DefaultGoalNNZ,
		FragmentFormat:      string(columnar.Arrow),
		FragmentCompression: string(compression.Zstd),
		Capacity:            100_000,
		DataFrameDimTile:    2048,
		CellOrder:           string(order.LayoutRowMajor),
		TileOrder:           string(order.LayoutRowMajor),
	}
}

// New returns a Config with defaults: in-memory storage, info logging.
func New() *Config {
	return &Config{
		Create:  DefaultCreateOptions(),
		Storage: backend.Config{Kind: backend.Mem},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
			MetricsAddr: ":9090",
		},
	}
}

// NewCreateOptions builds CreateOptions from a key/value map on top of the
// defaults. Unknown keys are rejected.
//
// Example:
//
//	opts, err := config.NewCreateOptions(map[string]any{
//		"goal_chunk_nnz":    1_000_000,
//		"remote_cap_nbytes": 64 << 20,
//	})
func NewCreateOptions(m map[string]any) (CreateOptions, error) {
	opts := DefaultCreateOptions()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return CreateOptions{}, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build options decoder")
	}
	if err := dec.Decode(m); err != nil {
		return CreateOptions{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid create options")
	}
	if v, ok := m["remote_cap_nbytes"]; ok && v != nil && opts.RemoteCapNBytes <= 0 {
		return CreateOptions{}, errors.New(errors.ErrorTypeConfig, "remote_cap_nbytes must be positive; omit it for no cap").
			WithDetail("remote_cap_nbytes", opts.RemoteCapNBytes)
	}
	if err := opts.Validate(); err != nil {
		return CreateOptions{}, err
	}
	return opts, nil
}

// Validate checks ranges and enumerated values.
func (o *CreateOptions) Validate() error {
	if o.GoalChunkNNZ <= 0 {
		return errors.New(errors.ErrorTypeConfig, "goal_chunk_nnz must be positive").
			WithDetail("goal_chunk_nnz", o.GoalChunkNNZ)
	}
	if o.RemoteCapNBytes < 0 {
		return errors.New(errors.ErrorTypeConfig, "remote_cap_nbytes must be positive").
			WithDetail("remote_cap_nbytes", o.RemoteCapNBytes)
	}
	if o.Capacity <= 0 {
		return errors.New(errors.ErrorTypeConfig, "capacity must be positive")
	}
	if o.DataFrameDimTile <= 0 {
		return errors.New(errors.ErrorTypeConfig, "dataframe_dim_tile must be positive")
	}
	format, err := columnar.ParseFormat(o.FragmentFormat)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid fragment_format")
	}
	if info := columnar.GetFormatInfo(format); info == nil || !info.Fragment {
		return errors.Newf(errors.ErrorTypeConfig, "fragment_format %q cannot encode fragments", o.FragmentFormat)
	}
	if _, err := compression.ParseAlgorithm(o.FragmentCompression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid fragment_compression")
	}
	if _, err := order.ParseLayout(o.CellOrder); err != nil {
		return fmt.Errorf("cell_order: %w", err)
	}
	if _, err := order.ParseLayout(o.TileOrder); err != nil {
		return fmt.Errorf("tile_order: %w", err)
	}
	return nil
}

// ChunkOptions returns the planner settings.
func (o *CreateOptions) ChunkOptions() chunk.Options {
	return chunk.Options{Chunked: o.WriteChunked, GoalNNZ: o.GoalChunkNNZ}
}

// Layouts returns the parsed cell and tile orders. Call Validate first.
func (o *CreateOptions) Layouts() (cell, tile order.Layout) {
	cell, _ = order.ParseLayout(o.CellOrder)
	tile, _ = order.ParseLayout(o.TileOrder)
	return cell, tile
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Create.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	switch c.Observability.LogEncoding {
	case "", "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "log_encoding must be json or console, got %q", c.Observability.LogEncoding)
	}
	return nil
}
