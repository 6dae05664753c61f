package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridbalance",
		Short: "Real-time grid balancing simulation",
	}

	rootCmd.AddCommand(levelsCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(playCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
