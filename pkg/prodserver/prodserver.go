// Package prodserver implements Pyra's production server: it loads a
// prebuilt manifest.json, reconstructs a route graph and the ancestry
// metadata a request pipeline needs from it, and drives every request
// through the same pyra.Pipeline the dev server uses — so middleware,
// cookie flushing, error-boundary rendering and custom-404 pages behave
// identically in both modes. It is a read-only, manifest-driven server
// with no live scanning, using graceful signal-driven shutdown.
package prodserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pyra-dev/pyra/pkg/pyra"
)

// Server serves a build output directory produced by pkg/build.
type Server struct {
	cfg       *pyra.Config
	manifest  *pyra.Manifest
	pipeline  *pyra.Pipeline
	clientDir string

	httpSrv *http.Server
}

// Load reads manifest.json from outDir, reconstructs the route graph and
// ancestry metadata a pyra.Pipeline needs, and prepares a Server to serve
// it.
func Load(cfg *pyra.Config, outDir string, adapter pyra.Adapter, runtime pyra.ModuleRuntime) (*Server, error) {
	data, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("prodserver: read manifest: %w", err)
	}
	manifest := &pyra.Manifest{}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("prodserver: parse manifest: %w", err)
	}

	clientDir := filepath.Join(outDir, "client")

	graph, scan, err := rebuildGraphAndScan(manifest)
	if err != nil {
		return nil, err
	}

	pipeline := pyra.NewPipeline(graph, scan, adapter, runtime, cfg, pyra.ModeProduction,
		pyra.Recover(), pyra.Logger(), pyra.RequestID(defaultRequestID))
	pipeline.StaticPage = staticPageLookup(manifest, clientDir)

	return &Server{
		cfg:       cfg,
		manifest:  manifest,
		pipeline:  pipeline,
		clientDir: clientDir,
	}, nil
}

// rebuildGraphAndScan reconstructs the pyra.Route graph and the
// ScanResult-shaped ancestry data a Pipeline needs to serve requests,
// entirely from the manifest — no filesystem scan happens in production.
func rebuildGraphAndScan(manifest *pyra.Manifest) (*pyra.RouteGraph, *pyra.ScanResult, error) {
	mwBundleByID := make(map[string]string, len(manifest.Middlewares))
	for _, mw := range manifest.Middlewares {
		mwBundleByID[mw.ID] = mw.ServerBundle
	}

	scan := &pyra.ScanResult{
		Layouts:         make(map[string]*pyra.Layout, len(manifest.Layouts)),
		Middlewares:     make(map[string]*pyra.Middleware, len(manifest.Middlewares)),
		ErrorBoundaries: make(map[string]*pyra.ErrorBoundary, len(manifest.ErrorBoundaries)),
	}
	for _, l := range manifest.Layouts {
		scan.Layouts[l.ID] = &pyra.Layout{ID: l.ID, FilePath: l.ServerBundle}
	}
	for _, mw := range manifest.Middlewares {
		scan.Middlewares[mw.ID] = &pyra.Middleware{ID: mw.ID, FilePath: mw.ServerBundle}
	}
	for _, eb := range manifest.ErrorBoundaries {
		scan.ErrorBoundaries[eb.ID] = &pyra.ErrorBoundary{ID: eb.ID, FilePath: eb.ServerBundle}
	}

	graph := pyra.NewRouteGraph()
	for i := range manifest.Entries {
		e := &manifest.Entries[i]
		route := routeFromEntry(e, mwBundleByID)
		if err := graph.Insert(route); err != nil {
			return nil, nil, fmt.Errorf("prodserver: rebuild route graph: %w", err)
		}
		scan.Routes = append(scan.Routes, route)
	}

	if manifest.NotFoundPage != nil {
		scan.NotFoundPage = &pyra.Route{
			ID:      manifest.NotFoundPage.RouteID,
			Pattern: manifest.NotFoundPage.Pattern,
			Type:    pyra.RouteTypePage,
		}
	}

	return graph, scan, nil
}

// routeFromEntry reconstructs the Route a pyra.Pipeline needs to dispatch
// one manifest entry. Exports.HasRender/RenderValue are synthesized from
// the entry's already-resolved Kind so ResolveRenderMode reproduces the
// exact mode the build chose, without re-running render-mode resolution
// against exports the manifest does not carry in full.
func routeFromEntry(e *pyra.RouteEntry, mwBundleByID map[string]string) *pyra.Route {
	route := &pyra.Route{
		ID:              e.RouteID,
		Pattern:         e.Pattern,
		LayoutChain:     e.LayoutChain,
		ErrorBoundaryID: e.ErrorBoundaryID,
		Exports:         pyra.RouteExports{HasCache: e.HasCache},
	}
	for _, id := range e.MiddlewareChain {
		if bundle, ok := mwBundleByID[id]; ok {
			route.MiddlewareChain = append(route.MiddlewareChain, bundle)
		}
	}

	if e.Kind == pyra.EntryKindAPI {
		route.Type = pyra.RouteTypeAPI
		if e.API != nil {
			route.Exports.Methods = e.API.Methods
		}
		return route
	}

	route.Type = pyra.RouteTypePage
	route.Exports.HasLoad = true
	route.Exports.HasRender = true
	switch e.Kind {
	case pyra.EntryKindSSG:
		route.Exports.RenderValue = string(pyra.RenderSSG)
	case pyra.EntryKindSPA:
		route.Exports.RenderValue = string(pyra.RenderSPA)
	default:
		route.Exports.RenderValue = string(pyra.RenderSSR)
	}
	return route
}

// staticPageLookup builds the Pipeline.StaticPage hook: it serves a
// prebuilt ssg page's bytes straight off disk when the requested params
// match one the build prerendered, and reports a miss otherwise so the
// pipeline falls back to rendering the route dynamically (a param
// combination the build never saw, e.g. one added after the last build).
func staticPageLookup(manifest *pyra.Manifest, clientDir string) func(route *pyra.Route, params map[string]string) ([]byte, bool) {
	return func(route *pyra.Route, params map[string]string) ([]byte, bool) {
		entry, ok := manifest.FindEntry(route.ID)
		if !ok || entry.SSG == nil {
			return nil, false
		}
		for _, page := range entry.SSG.Pages {
			if paramsEqual(page.Params, params) {
				data, err := os.ReadFile(filepath.Join(clientDir, page.OutputPath))
				if err != nil {
					return nil, false
				}
				return data, true
			}
		}
		return nil, false
	}
}

func paramsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func defaultRequestID() string {
	return fmt.Sprintf("prod-%d", time.Now().UnixNano())
}

// closed MIME table — only types the reference toolchain is expected to
// emit get served; everything else is sent as application/octet-stream
// rather than guessed.
var mimeTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".txt":   "text/plain; charset=utf-8",
	".map":   "application/json; charset=utf-8",
}

// ServeHTTP serves a static asset straight off the client output
// directory when the request path resolves to one, otherwise hands the
// request to the shared pipeline: a matched route dispatches through the
// full middleware/render/error-boundary chain, and anything unmatched
// gets the pipeline's 404 handling (the project's custom 404 page if one
// was scanned, a plain 404 otherwise) rather than an implicit 200.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.serveStatic(w, r) {
		return
	}
	s.pipeline.ServeHTTP(w, r)
}

// serveStatic serves a file directly from the client output directory,
// applying the hashed-asset caching convention: filenames carrying a
// content hash get a long-lived immutable Cache-Control; everything else
// gets no-cache so edits are picked up.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) bool {
	rel := strings.TrimPrefix(r.URL.Path, "/")
	path := filepath.Join(s.clientDir, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	s.serveFile(w, path)
	return true
}

func (s *Server) serveFile(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeTypes[ext]; ok {
		w.Header().Set("Content-Type", mime)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if pyra.IsHashedAssetPath(filepath.Base(path)) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Write(data)
}

// ListenAndServe starts the HTTP server, blocking until ctx is canceled,
// then shuts down gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.ListenAddress(),
		Handler: s,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("prodserver: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}
