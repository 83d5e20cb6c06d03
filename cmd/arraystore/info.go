package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/ajitpratap0/arraystore/pkg/store"
)

// arrayInfo is the JSON document printed by the info command.
type arrayInfo struct {
	URI            string              `json:"uri"`
	ObjectType     store.ObjectType    `json:"object_type"`
	Schema         *store.Schema       `json:"schema"`
	Metadata       store.Metadata      `json:"metadata"`
	Fragments      int                 `json:"fragments"`
	Count          int64               `json:"count"`
	NNZ            int64               `json:"nnz"`
	NonEmptyDomain map[string][2]int64 `json:"non_empty_domain"`
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <uri>",
		Short: "Describe an array as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
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

			info := arrayInfo{
				URI:        arr.URI(),
				ObjectType: arr.ObjectType(),
				Schema:     arr.Schema(),
				Metadata:   arr.Metadata(),
			}
			frags, err := arr.Fragments(ctx)
			if err != nil {
				return err
			}
			info.Fragments = len(frags)
			if info.Count, err = arr.Count(ctx); err != nil {
				return err
			}
			if info.NNZ, err = arr.NNZ(ctx); err != nil {
				return err
			}
			if info.NonEmptyDomain, err = arr.NonEmptyDomain(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
