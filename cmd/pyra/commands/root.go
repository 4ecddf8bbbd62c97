// Package commands provides Pyra's CLI commands: dev, build, and start.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgDir string

var rootCmd = &cobra.Command{
	Use:   "pyra",
	Short: "Pyra - a file-system routed full-stack web runtime",
	Long: `Pyra scans a routes directory for page/route/layout/middleware
conventions and serves them through a single request pipeline, in
development with on-demand compilation or in production from a
prebuilt manifest.

  pyra dev      Start the development server
  pyra build    Produce a production build
  pyra start    Serve a production build`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", ".", "directory to read pyra.yaml from")
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(startCmd)
}
