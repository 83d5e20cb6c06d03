// Package arraystore ingests in-memory matrices and tables into a persistent,
// schema-constrained columnar array store.
//
// Source data arrives as Arrow columns, categorical codes or untyped Go
// values. It is normalized into a narrow set of primitive types, planned into
// write chunks of roughly goal_chunk_nnz elements, and committed as immutable
// fragments that never exceed remote_cap_nbytes. Reading an array back yields
// the same values at the same coordinates.
//
// # Object types
//
//	SparseNDArray  dims dim_0..dim_{n-1}, attr data, nonzero cells only
//	DenseNDArray   dims dim_0..dim_{n-1}, attr data, every cell
//	DataFrame      joinid (or user index columns) plus nullable attributes
//
// # Quick Start
//
// Create a dataframe from an Arrow record in a local directory:
//
//	b, err := backend.NewFile("/data/arrays")
//	if err != nil {
//	    return err
//	}
//	st, err := store.New(b, store.WithLogger(logger.Get()))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	opts := config.DefaultCreateOptions()
//	opts.GoalChunkNNZ = 1_000_000
//	rep, err := ingest.CreateFromTable(ctx, st, "exp/obs", source.TableFromRecord(rec), nil, opts)
//
// Read it back in joinid order:
//
//	arr, err := st.Open(ctx, "exp/obs", store.Read)
//	if err != nil {
//	    return err
//	}
//	defer arr.Close()
//	out, err := arr.Read(ctx, store.ReadOptions{ResultOrder: "rowid-ordered"})
//
// # Key Packages
//
//	pkg/normalize          - source value to target type coercion
//	pkg/chunk              - write chunk planning by nonzero count
//	pkg/writer             - byte-capped fragment commits
//	pkg/store              - schemas, fragments, metadata, read path
//	pkg/store/backend      - local, memory, S3 and GCS object backends
//	pkg/ingest             - create_from_matrix, create_from_table, write_table
//	pkg/order              - result order vocabulary
//	pkg/formats/columnar   - CSV, JSON, Arrow, Parquet and Avro files for the CLI
//	pkg/config             - YAML configuration and create options
//	pkg/errors             - structured error handling
//	pkg/logger             - structured logging
//	pkg/metrics            - Prometheus collectors
//	pkg/observability      - OpenTelemetry tracing
//
// # Command Line
//
//	arraystore ingest dataframe obs.csv exp/obs --root /data/arrays
//	arraystore ingest matrix counts.parquet exp/X --kind sparse --goal-chunk-nnz 100000
//	arraystore read exp/obs --order rowid-ordered --format json
//	arraystore info exp/X
//	arraystore version
//
// Flags may also be set through ARRAYSTORE_* environment variables or a
// YAML file passed with --config.
package arraystore
