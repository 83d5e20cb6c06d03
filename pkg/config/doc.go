// Package config loads arraystore configuration.
//
// A configuration file has three sections:
//
//	create:
//	  write_chunked: true
//	  goal_chunk_nnz: 100000000
//	  remote_cap_nbytes: 2400000000
//	  fragment_format: arrow
//	  fragment_compression: zstd
//	storage:
//	  backend: s3
//	  bucket: ${ARRAYSTORE_BUCKET}
//	  prefix: experiments
//	observability:
//	  log_level: info
//	  tracing: false
//
// # Strict keys
//
// Unknown keys are errors, both in YAML files (Load) and in option maps
// (NewCreateOptions). A misspelled option never silently falls back to its
// default.
//
// # Environment variables
//
// ${VAR_NAME} references in a file are replaced with the variable's value
// before parsing. An unset variable becomes the empty string.
//
// # Defaults
//
// Fields absent from a file keep the values from New and
// DefaultCreateOptions:
//
//   - write_chunked: true
//   - goal_chunk_nnz: 100000000
//   - remote_cap_nbytes: 0 (unlimited)
//   - fragment_format: arrow, fragment_compression: zstd
//   - capacity: 100000, dataframe_dim_tile: 2048
//   - cell_order, tile_order: row-major
package config
