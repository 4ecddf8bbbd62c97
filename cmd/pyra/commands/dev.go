package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pyra-dev/pyra/pkg/bundler/passthrough"
	"github.com/pyra-dev/pyra/pkg/devserver"
	"github.com/pyra-dev/pyra/pkg/noopruntime"
	"github.com/pyra-dev/pyra/pkg/pyra"
	"github.com/pyra-dev/pyra/pkg/templadapter"
	"github.com/spf13/cobra"
)

var (
	devPort int
	devHost string
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start the development server with live rescans",
	RunE:  runDev,
}

func init() {
	devCmd.Flags().IntVarP(&devPort, "port", "p", 0, "port to listen on (overrides pyra.yaml)")
	devCmd.Flags().StringVarP(&devHost, "host", "H", "", "host to bind to (overrides pyra.yaml)")
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := pyra.LoadConfig(cfgDir)
	if err != nil {
		return err
	}
	if devPort != 0 {
		cfg.Port = devPort
	}
	if devHost != "" {
		cfg.Host = devHost
	}

	adapter := templadapter.New("Pyra (dev)")
	runtime := noopruntime.New()
	bundler := passthrough.New()

	srv, err := devserver.New(cfg, adapter, runtime, bundler)
	if err != nil {
		return fmt.Errorf("dev: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.ListenAndServe(ctx)
}
