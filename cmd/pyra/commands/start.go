package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pyra-dev/pyra/pkg/noopruntime"
	"github.com/pyra-dev/pyra/pkg/prodserver"
	"github.com/pyra-dev/pyra/pkg/pyra"
	"github.com/pyra-dev/pyra/pkg/templadapter"
	"github.com/spf13/cobra"
)

var (
	startPort int
	startHost string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Serve a production build produced by `pyra build`",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().IntVarP(&startPort, "port", "p", 0, "port to listen on (overrides pyra.yaml)")
	startCmd.Flags().StringVarP(&startHost, "host", "H", "", "host to bind to (overrides pyra.yaml)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := pyra.LoadConfig(cfgDir)
	if err != nil {
		return err
	}
	if startPort != 0 {
		cfg.Port = startPort
	}
	if startHost != "" {
		cfg.Host = startHost
	}

	adapter := templadapter.New("Pyra")
	srv, err := prodserver.Load(cfg, cfg.OutDir, adapter, noopruntime.New())
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("pyra production server listening on http://%s\n", cfg.ListenAddress())
	return srv.ListenAndServe(ctx)
}
