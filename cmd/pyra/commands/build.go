package commands

import (
	"context"
	"fmt"

	pkgbuild "github.com/pyra-dev/pyra/pkg/build"
	"github.com/pyra-dev/pyra/pkg/bundler/passthrough"
	"github.com/pyra-dev/pyra/pkg/noopruntime"
	"github.com/pyra-dev/pyra/pkg/pyra"
	"github.com/pyra-dev/pyra/pkg/templadapter"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Produce a production build (manifest, client and server bundles)",
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := pyra.LoadConfig(cfgDir)
	if err != nil {
		return err
	}

	adapter := templadapter.New("Pyra")
	orchestrator := pkgbuild.New(pkgbuild.Options{
		RoutesDir:         cfg.RoutesDir,
		OutDir:            cfg.OutDir,
		PublicDir:         cfg.PublicDir,
		PageExtensions:    adapter.FileExtensions(),
		Adapter:           adapter,
		Bundler:           passthrough.New(),
		Runtime:           noopruntime.New(),
		DefaultRenderMode: cfg.DefaultRenderMode,
	})

	result, err := orchestrator.Run(context.Background())
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Printf("built %d route(s) into %s\n", len(result.Manifest.Entries), cfg.OutDir)
	return nil
}
