// Command analyzer serves and runs ecosystem change analyses.
//
// Usage:
//
//	analyzer serve
//	analyzer analyze --bbox -74.1,4.5,-74.0,4.6 --historic 2019-01-01/2020-01-01 --current 2024-01-01/2025-01-01
//	analyzer variables
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "analyzer",
		Short:         "Compare vegetation, temperature and precipitation between two time windows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env file is normal outside local development.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newVariablesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
