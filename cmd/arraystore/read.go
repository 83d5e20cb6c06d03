package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
	"github.com/ajitpratap0/arraystore/pkg/store"
)

func newReadCommand(a *app) *cobra.Command {
	var (
		format, output string
		resultOrder    string
		columns        []string
		coords         []string
	)
	cmd := &cobra.Command{
		Use:   "read <uri>",
		Short: "Export the cells of an array",
		Long: `Read an array and write its cells as CSV, JSON lines, Avro, Parquet or
Arrow IPC. Dimensions come before attributes.

Example:
  arraystore read experiment/X --coord dim_0=0:99 --order row-major --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			opts := store.ReadOptions{ColumnNames: columns, ResultOrder: resultOrder}
			if opts.Coords, err = parseCoords(coords); err != nil {
				return err
			}
			f, err := columnar.ParseFormat(format)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation, "unknown output format")
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, st.Close()) }()
			arr, err := st.Open(ctx, args[0], store.Read)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, arr.Close()) }()

			rec, err := arr.Read(ctx, opts)
			if err != nil {
				return err
			}
			defer rec.Release()

			out := a.stdout
			if output != "" {
				var file *os.File
				if file, err = os.Create(output); err != nil {
					return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").WithDetail("path", output)
				}
				defer func() { err = multierr.Append(err, file.Close()) }()
				out = file
			}
			bw := bufio.NewWriter(out)

			w, err := columnar.NewWriter(bw, &columnar.WriterConfig{
				Format:      f,
				Schema:      rec.Schema(),
				Compression: "snappy",
			})
			if err != nil {
				return err
			}
			if err := w.WriteRecord(rec); err != nil {
				return multierr.Append(err, w.Close())
			}
			if err := multierr.Append(w.Close(), bw.Flush()); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to write output")
			}
			a.logger.Info("exported array",
				zap.String("array_uri", args[0]),
				zap.String("format", string(f)),
				zap.Int64("rows", w.RecordsWritten()))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format (csv, json, avro, parquet, arrow)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&resultOrder, "order", "", "Result order (row-major, col-major, rowid-ordered, unordered)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to return (default all)")
	cmd.Flags().StringArrayVar(&coords, "coord", nil, "Constrain an integer dimension as name=v or name=lo:hi; repeat for more points or ranges")
	return cmd
}

// parseCoords turns name=v and name=lo:hi flags into constraints. Several
// flags for the same dimension are combined.
func parseCoords(specs []string) (map[string]store.Constraint, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]store.Constraint)
	for _, s := range specs {
		name, rng, ok := strings.Cut(s, "=")
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "coordinate %q is not name=v or name=lo:hi", s)
		}
		c := out[name]
		lo, hi, err := parseRange(rng)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid coordinate").WithDetail("column", name)
		}
		if strings.Contains(rng, ":") {
			c.Ranges = append(c.Ranges, [2]int64{lo, hi})
		} else {
			c.Points = append(c.Points, lo)
		}
		out[name] = c
	}
	return out, nil
}

