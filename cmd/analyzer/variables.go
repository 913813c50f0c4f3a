package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
)

func newVariablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variables",
		Short: "List the variables of the configured catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // read-only command
			return listVariables(cmd.OutOrStdout(), a.analyzer.Variables())
		},
	}
}

func listVariables(w io.Writer, vars []pipeline.Variable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tCOLLECTION\tSCALE_M\tMETRICS")
	for _, v := range vars {
		keys := make([]string, 0, len(v.Metrics))
		for _, m := range v.Metrics {
			keys = append(keys, m.Key)
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", v.Name, v.Source.Collection, v.Source.ScaleMeters, strings.Join(keys, ","))
	}
	return tw.Flush()
}
