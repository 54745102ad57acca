package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect roadmap catalogs",
	}

	var path string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a catalog file (default: the embedded seed catalog)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Load(path)
			if err != nil {
				return err
			}
			graphs, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROADMAP\tTITLE\tNODES\tEDGES")
			for _, g := range graphs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", g.ID, g.Title, g.TotalNodes(), len(g.Edges))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog OK: %d roadmap(s)\n", len(graphs))
			return nil
		},
	}
	validate.Flags().StringVar(&path, "path", "", "catalog JSON file to check")

	cmd.AddCommand(validate)
	return cmd
}
