package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var categories []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSuite()
			if err != nil {
				return err
			}
			specs, err := cfg.Specs()
			if err != nil {
				return err
			}
			specs, err = filterSpecs(specs, nil, categories)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TAG\tCATEGORY\tCONFIG\tITER\tTIMEOUT\tTOL")
			for _, s := range specs {
				rel, err := filepath.Rel(cfg.DataRoot, s.Dir())
				if err != nil {
					rel = s.Dir()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%g\n",
					s.Tag(), s.Category(), filepath.Join(rel, s.ConfigFile()), s.Iterations(), s.Timeout(), s.Tolerance())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&categories, "category", nil, "list only these categories; a trailing * matches a prefix")
	return cmd
}
