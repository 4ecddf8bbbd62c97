package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyra-dev/pyra/pkg/bundler/passthrough"
	"github.com/pyra-dev/pyra/pkg/noopruntime"
	"github.com/pyra-dev/pyra/pkg/pyra"
)

// stubAdapter renders a route id straight into the body, just
// enough to drive the orchestrator end-to-end in tests.
type stubAdapter struct{}

func (stubAdapter) Name() string             { return "stub" }
func (stubAdapter) FileExtensions() []string { return []string{"tsx"} }

func (stubAdapter) RenderToHTML(_ context.Context, req pyra.RenderContext) (*pyra.RenderResult, error) {
	return &pyra.RenderResult{HTML: "<p>" + req.RouteID + "</p>"}, nil
}

func (stubAdapter) GetDocumentShell(_ context.Context, req pyra.DocumentShellRequest) (string, error) {
	return "<html><body>" + req.BodyHTML + "</body></html>", nil
}

func (stubAdapter) GetHydrationScript(_ any) (string, error) {
	return "null", nil
}

func writeRoute(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOrchestrator_Run_WritesManifestAndPrerenders(t *testing.T) {
	routesDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "dist")
	publicDir := t.TempDir()

	writeRoute(t, filepath.Join(routesDir, "page.tsx"), "export default function Home() {}")
	writeRoute(t, filepath.Join(routesDir, "about", "page.tsx"), "export const prerender = true\nexport default function About() {}")
	writeRoute(t, filepath.Join(routesDir, "api", "ping", "route.ts"), "export function GET(req) { return new Response('ok') }")

	if err := os.WriteFile(filepath.Join(publicDir, "favicon.ico"), []byte("icon"), 0o644); err != nil {
		t.Fatal(err)
	}

	orch := New(Options{
		RoutesDir:         routesDir,
		OutDir:            outDir,
		PublicDir:         publicDir,
		PageExtensions:    []string{"tsx"},
		Adapter:           stubAdapter{},
		Bundler:           passthrough.New(),
		Runtime:           noopruntime.New(),
		DefaultRenderMode: pyra.RenderSSR,
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Manifest.Entries) != 3 {
		t.Fatalf("expected 3 manifest entries, got %d: %+v", len(result.Manifest.Entries), result.Manifest.Entries)
	}

	var apiEntry, ssgEntry, ssrEntry *pyra.RouteEntry
	for i := range result.Manifest.Entries {
		e := &result.Manifest.Entries[i]
		switch e.RouteID {
		case "/api/ping":
			apiEntry = e
		case "/about":
			ssgEntry = e
		case "/":
			ssrEntry = e
		}
	}

	if apiEntry == nil || apiEntry.Kind != pyra.EntryKindAPI {
		t.Fatalf("expected an api entry for /api/ping, got %+v", apiEntry)
	}
	if ssrEntry == nil || ssrEntry.Kind != pyra.EntryKindSSR {
		t.Fatalf("expected an ssr entry for /, got %+v", ssrEntry)
	}
	if ssgEntry == nil || ssgEntry.Kind != pyra.EntryKindSSG {
		t.Fatalf("expected an ssg entry for /about, got %+v", ssgEntry)
	}
	if len(ssgEntry.SSG.Pages) != 1 {
		t.Fatalf("expected 1 prerendered page, got %d", len(ssgEntry.SSG.Pages))
	}

	prerenderedPath := filepath.Join(outDir, "client", ssgEntry.SSG.Pages[0].OutputPath)
	body, err := os.ReadFile(prerenderedPath)
	if err != nil {
		t.Fatalf("expected prerendered file at %s: %v", prerenderedPath, err)
	}
	if string(body) != "<html><body><p>/about</p></body></html>" {
		t.Errorf("unexpected prerendered body: %s", body)
	}

	if _, err := os.Stat(filepath.Join(outDir, "client", "favicon.ico")); err != nil {
		t.Error("expected public dir to be copied into the client output")
	}

	manifestPath := filepath.Join(outDir, "manifest.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("expected manifest.json to be written: %v", err)
	}
	var onDisk pyra.Manifest
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("expected manifest.json to be valid json: %v", err)
	}
	if onDisk.Version != 1 {
		t.Errorf("expected manifest version 1, got %d", onDisk.Version)
	}
}

func TestOrchestrator_Run_MissingRoutesDirStillSucceeds(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "dist")
	orch := New(Options{
		RoutesDir:         filepath.Join(t.TempDir(), "does-not-exist"),
		OutDir:            outDir,
		Adapter:           stubAdapter{},
		Bundler:           passthrough.New(),
		Runtime:           noopruntime.New(),
		DefaultRenderMode: pyra.RenderSSR,
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Manifest.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(result.Manifest.Entries))
	}
	if _, err := os.Stat(filepath.Join(outDir, "client", "__spa.html")); err != nil {
		t.Error("expected an SPA fallback shell to still be written")
	}
}

func TestOrchestrator_Run_SPAShellOnlyWrittenWhenASPARouteExists(t *testing.T) {
	routesDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "dist")

	writeRoute(t, filepath.Join(routesDir, "page.tsx"), "export default function Home() {}")

	orch := New(Options{
		RoutesDir:         routesDir,
		OutDir:            outDir,
		PageExtensions:    []string{"tsx"},
		Adapter:           stubAdapter{},
		Bundler:           passthrough.New(),
		Runtime:           noopruntime.New(),
		DefaultRenderMode: pyra.RenderSSR,
	})

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "client", "__spa.html")); err == nil {
		t.Error("expected no SPA shell when every route resolved to ssr")
	}
}

func TestOrchestrator_Run_BuildsLayoutAndMiddlewareManifestEntries(t *testing.T) {
	routesDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "dist")

	writeRoute(t, filepath.Join(routesDir, "layout.tsx"), "export default function RootLayout() {}")
	writeRoute(t, filepath.Join(routesDir, "middleware.ts"), "export default function mw(req) {}")
	writeRoute(t, filepath.Join(routesDir, "error.tsx"), "export default function ErrorPage() {}")
	writeRoute(t, filepath.Join(routesDir, "404.tsx"), "export default function NotFound() {}")
	writeRoute(t, filepath.Join(routesDir, "page.tsx"), "export default function Home() {}")

	orch := New(Options{
		RoutesDir:         routesDir,
		OutDir:            outDir,
		PageExtensions:    []string{"tsx"},
		Adapter:           stubAdapter{},
		Bundler:           passthrough.New(),
		Runtime:           noopruntime.New(),
		DefaultRenderMode: pyra.RenderSSR,
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Manifest.Layouts) != 1 || result.Manifest.Layouts[0].ServerBundle == "" {
		t.Fatalf("expected a bundled root layout, got %+v", result.Manifest.Layouts)
	}
	if len(result.Manifest.Middlewares) != 1 || result.Manifest.Middlewares[0].ServerBundle == "" {
		t.Fatalf("expected a bundled root middleware, got %+v", result.Manifest.Middlewares)
	}
	if len(result.Manifest.ErrorBoundaries) != 1 || result.Manifest.ErrorBoundaries[0].ServerBundle == "" {
		t.Fatalf("expected a bundled root error boundary, got %+v", result.Manifest.ErrorBoundaries)
	}
	if result.Manifest.NotFoundPage == nil || result.Manifest.NotFoundPage.SSR.ServerBundle == "" {
		t.Fatalf("expected a bundled 404 page, got %+v", result.Manifest.NotFoundPage)
	}

	home, ok := result.Manifest.FindEntry("/")
	if !ok {
		t.Fatal("expected a manifest entry for /")
	}
	if len(home.LayoutChain) != 1 || home.LayoutChain[0] != "/" {
		t.Errorf("expected / to inherit the root layout, got %+v", home.LayoutChain)
	}
	if len(home.MiddlewareChain) != 1 || home.MiddlewareChain[0] != "/" {
		t.Errorf("expected / to inherit the root middleware, got %+v", home.MiddlewareChain)
	}
	if home.ErrorBoundaryID != "/" {
		t.Errorf("expected / to inherit the root error boundary, got %q", home.ErrorBoundaryID)
	}
}

func TestOrchestrator_Run_InvokesPluginHooksInOrder(t *testing.T) {
	routesDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "dist")
	writeRoute(t, filepath.Join(routesDir, "page.tsx"), "export default function Home() {}")

	var calls []string
	plugin := Plugin{
		Name: "tracker",
		Config: func(opts *Options) error {
			calls = append(calls, "config")
			return nil
		},
		Setup: func(ctx context.Context) error {
			calls = append(calls, "setup")
			return nil
		},
		BuildStart: func(ctx context.Context, scan *pyra.ScanResult) error {
			calls = append(calls, "buildStart")
			return nil
		},
		BuildEnd: func(ctx context.Context, manifest *pyra.Manifest) error {
			calls = append(calls, "buildEnd")
			return nil
		},
	}

	orch := New(Options{
		RoutesDir:         routesDir,
		OutDir:            outDir,
		PageExtensions:    []string{"tsx"},
		Adapter:           stubAdapter{},
		Bundler:           passthrough.New(),
		Runtime:           noopruntime.New(),
		DefaultRenderMode: pyra.RenderSSR,
		Plugins:           []Plugin{plugin},
	})

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"config", "setup", "buildStart", "buildEnd"}
	if len(calls) != len(want) {
		t.Fatalf("expected hooks %v, got %v", want, calls)
	}
	for i, name := range want {
		if calls[i] != name {
			t.Errorf("expected hook %d to be %q, got %q", i, name, calls[i])
		}
	}
}
