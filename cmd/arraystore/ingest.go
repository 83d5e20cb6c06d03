package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
	"github.com/ajitpratap0/arraystore/pkg/ingest"
	"github.com/ajitpratap0/arraystore/pkg/source"
	"github.com/ajitpratap0/arraystore/pkg/store"
)

// createFlags are the per-command overrides of the create section.
type createFlags struct {
	noChunking  bool
	goalNNZ     int64
	capNBytes   int64
	format      string
	compression string
	duplicates  bool
}

func (f *createFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.noChunking, "no-chunking", false, "Write the whole input as a single chunk")
	fs.Int64Var(&f.goalNNZ, "goal-chunk-nnz", 0, "Target number of elements per chunk")
	fs.Int64Var(&f.capNBytes, "cap-nbytes", 0, "Byte cap on each committed fragment (unset for no cap)")
	fs.StringVar(&f.format, "fragment-format", "", "Fragment encoding (arrow, parquet)")
	fs.StringVar(&f.compression, "fragment-compression", "", "Fragment payload compression")
	fs.BoolVar(&f.duplicates, "allows-duplicates", false, "Keep repeated coordinates instead of the last write")
}

// options applies the changed flags over the configured create section.
func (f *createFlags) options(fs *pflag.FlagSet, base config.CreateOptions) (config.CreateOptions, error) {
	opts := base
	if fs.Changed("no-chunking") {
		opts.WriteChunked = !f.noChunking
	}
	if fs.Changed("goal-chunk-nnz") {
		opts.GoalChunkNNZ = f.goalNNZ
	}
	if fs.Changed("cap-nbytes") {
		if f.capNBytes <= 0 {
			return opts, errors.New(errors.ErrorTypeConfig, "--cap-nbytes must be positive").
				WithDetail("remote_cap_nbytes", f.capNBytes)
		}
		opts.RemoteCapNBytes = f.capNBytes
	}
	if fs.Changed("fragment-format") {
		opts.FragmentFormat = f.format
	}
	if fs.Changed("fragment-compression") {
		opts.FragmentCompression = f.compression
	}
	if fs.Changed("allows-duplicates") {
		opts.AllowsDuplicates = f.duplicates
	}
	return opts, nil
}

func newIngestCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Create an array from a file",
	}
	cmd.AddCommand(newIngestDataFrameCommand(a))
	cmd.AddCommand(newIngestMatrixCommand(a))
	return cmd
}

func newIngestDataFrameCommand(a *app) *cobra.Command {
	var (
		create   createFlags
		format   string
		index    []string
		domains  []string
		appendTo bool
	)
	cmd := &cobra.Command{
		Use:   "dataframe <input> <uri>",
		Short: "Ingest a CSV, Arrow or Parquet table as a dataframe",
		Long: `Ingest a table as a dataframe. A joinid column numbering the rows is
added when the input has none.

Example:
  arraystore ingest dataframe obs.parquet experiment/obs --index cell_type,joinid`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := create.options(cmd.Flags(), a.cfg.Create)
			if err != nil {
				return err
			}
			rec, err := readInput(args[0], format)
			if err != nil {
				return err
			}
			defer rec.Release()
			a.logger.Info("read input",
				zap.String("path", args[0]),
				zap.Int64("rows", rec.NumRows()),
				zap.Int64("columns", rec.NumCols()))

			idx := ingest.Index{}
			if cmd.Flags().Changed("index") {
				idx.Columns = index
			}
			if idx.Domains, err = parseDomains(domains); err != nil {
				return err
			}

			return a.withIngester(ctx, func(st *store.Store, in *ingest.Ingester) error {
				var rep ingest.Report
				if appendTo {
					rep, err = appendTable(ctx, st, in, args[1], rec, opts)
				} else {
					rep, err = in.CreateDataFrame(ctx, args[1], source.TableFromRecord(rec), idx, opts)
				}
				a.printReport(rep)
				return err
			})
		},
	}
	create.register(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "", "Input format (csv, arrow, parquet); inferred from the extension when empty")
	cmd.Flags().StringSliceVar(&index, "index", nil, "Index columns in dimension order (default joinid)")
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "Domain of an integer index column as name=lo:hi")
	cmd.Flags().BoolVar(&appendTo, "append", false, "Append the rows to an existing dataframe")
	return cmd
}

func appendTable(ctx context.Context, st *store.Store, in *ingest.Ingester, uri string, rec arrow.Record,
	opts config.CreateOptions) (rep ingest.Report, err error) {
	arr, err := st.Open(ctx, uri, store.Write)
	if err != nil {
		return rep, err
	}
	defer func() { err = multierr.Append(err, arr.Close()) }()
	return in.WriteTable(ctx, arr, rec, opts)
}

func newIngestMatrixCommand(a *app) *cobra.Command {
	var (
		create         createFlags
		format, kind   string
		rowCol, colCol string
		valueCol       string
		rows, cols     int
	)
	cmd := &cobra.Command{
		Use:   "matrix <input> <uri>",
		Short: "Ingest a coordinate table as a sparse or dense 2-D array",
		Long: `Ingest a matrix stored as a coordinate table with one row per entry:
a row index, a column index and a value.

Example:
  arraystore ingest matrix X.csv experiment/X --kind sparse --shape-rows 2638 --shape-cols 1838`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := create.options(cmd.Flags(), a.cfg.Create)
			if err != nil {
				return err
			}
			objType, err := matrixKind(kind)
			if err != nil {
				return err
			}
			rec, err := readInput(args[0], format)
			if err != nil {
				return err
			}
			defer rec.Release()

			m, err := cooFromRecord(rec, rowCol, colCol, valueCol, rows, cols)
			if err != nil {
				return err
			}
			nr, nc := m.Shape()
			a.logger.Info("read coordinate table",
				zap.String("path", args[0]),
				zap.Int("entries", len(m.RowIdx)),
				zap.Int("rows", nr),
				zap.Int("cols", nc))
			return a.withIngester(ctx, func(_ *store.Store, in *ingest.Ingester) error {
				rep, err := in.CreateFromMatrix(ctx, args[1], objType, m, opts)
				a.printReport(rep)
				return err
			})
		},
	}
	create.register(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "", "Input format (csv, arrow, parquet); inferred from the extension when empty")
	cmd.Flags().StringVar(&kind, "kind", "sparse", "Array kind (sparse, dense)")
	cmd.Flags().StringVar(&rowCol, "row-column", "row", "Column holding row indices")
	cmd.Flags().StringVar(&colCol, "col-column", "col", "Column holding column indices")
	cmd.Flags().StringVar(&valueCol, "value-column", "value", "Column holding values")
	cmd.Flags().IntVar(&rows, "shape-rows", 0, "Number of rows (default max row index + 1)")
	cmd.Flags().IntVar(&cols, "shape-cols", 0, "Number of columns (default max column index + 1)")
	return cmd
}

func matrixKind(kind string) (store.ObjectType, error) {
	switch strings.ToLower(kind) {
	case "sparse", "sparsendarray":
		return store.SparseNDArray, nil
	case "dense", "densendarray":
		return store.DenseNDArray, nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown matrix kind %q", kind)
}

// withIngester opens the configured store for the duration of fn.
func (a *app) withIngester(ctx context.Context, fn func(*store.Store, *ingest.Ingester) error) (err error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()
	return fn(st, ingest.New(st, ingest.WithLogger(a.logger)))
}

func (a *app) printReport(rep ingest.Report) {
	fmt.Fprintf(a.stdout, "%s: %d rows in %d fragments (%d chunks, %d splits, %d bytes) in %s\n",
		rep.URI, rep.Rows, rep.Fragments, rep.Chunks, rep.Splits, rep.Bytes, rep.Duration.Round(time.Millisecond))
}

// readInput reads a whole file in the named or inferred format.
func readInput(path, format string) (arrow.Record, error) {
	f, err := resolveFormat(path, format)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").WithDetail("path", path)
	}
	defer file.Close()

	cfg := columnar.DefaultReaderConfig()
	cfg.Format = f
	r, err := columnar.NewReader(file, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read input").WithDetail("path", path)
	}
	defer r.Close()
	rec, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read input").WithDetail("path", path)
	}
	return rec, nil
}

func resolveFormat(path, format string) (columnar.Format, error) {
	var (
		f   columnar.Format
		err error
	)
	if format != "" {
		f, err = columnar.ParseFormat(format)
	} else {
		f, err = columnar.FromPath(path)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "unknown format")
	}
	return f, nil
}

// parseDomains parses name=lo:hi pairs.
func parseDomains(specs []string) (map[string][2]int64, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string][2]int64, len(specs))
	for _, s := range specs {
		name, rng, ok := strings.Cut(s, "=")
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "domain %q is not name=lo:hi", s)
		}
		lo, hi, err := parseRange(rng)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid domain").WithDetail("column", name)
		}
		out[name] = [2]int64{lo, hi}
	}
	return out, nil
}

// parseRange parses "lo:hi" or a single point "v".
func parseRange(s string) (lo, hi int64, err error) {
	a, b, isRange := strings.Cut(s, ":")
	if lo, err = strconv.ParseInt(strings.TrimSpace(a), 10, 64); err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	if hi, err = strconv.ParseInt(strings.TrimSpace(b), 10, 64); err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("empty range %d:%d", lo, hi)
	}
	return lo, hi, nil
}

// cooFromRecord builds a coordinate matrix from index and value columns.
// A zero shape is inferred from the largest index.
func cooFromRecord(rec arrow.Record, rowCol, colCol, valueCol string, rows, cols int) (*source.COO, error) {
	column := func(name string) (arrow.Array, error) {
		idx := rec.Schema().FieldIndices(name)
		if len(idx) == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "input has no column %q", name).WithDetail("column", name)
		}
		return rec.Column(idx[0]), nil
	}
	indices := func(name string) ([]int64, int64, error) {
		col, err := column(name)
		if err != nil {
			return nil, 0, err
		}
		out := make([]int64, col.Len())
		var top int64 = -1
		for i := range out {
			v, ok := arrowutil.Int64At(col, i)
			if !ok || col.IsNull(i) {
				return nil, 0, errors.Newf(errors.ErrorTypeValidation, "column %q must hold integer indices, got %s",
					name, col.DataType()).WithDetail("column", name)
			}
			out[i] = v
			top = max(top, v)
		}
		return out, top, nil
	}

	ri, maxRow, err := indices(rowCol)
	if err != nil {
		return nil, err
	}
	ci, maxCol, err := indices(colCol)
	if err != nil {
		return nil, err
	}
	values, err := column(valueCol)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		rows = int(maxRow + 1)
	}
	if cols == 0 {
		cols = int(maxCol + 1)
	}
	m, err := source.NewCOO(rows, cols, ri, ci, values)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid coordinate table")
	}
	return m, nil
}
