// Package build implements the Build Orchestrator: the offline step that
// turns a scanned route tree into a manifest plus client/server bundles,
// prerendering every ssg route and copying static assets. It drives a
// pluggable Bundler and Adapter through a multi-stage offline pipeline.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pyra-dev/pyra/pkg/pyra"
)

// PrerenderFunc resolves the concrete parameter sets an ssg route's
// `prerender` export declares (e.g. `prerender.paths()`), since the
// scanner never executes route modules and can only record that a
// prerender export exists.
type PrerenderFunc func(ctx context.Context, route *pyra.Route) ([]map[string]string, error)

// Plugin hooks into the build orchestrator's lifecycle, mirroring the
// config/setup/buildStart/buildEnd hook names a JS bundler plugin object
// exposes. Every hook is optional; a nil func is simply skipped.
type Plugin struct {
	Name string

	// Config can mutate Options before the route scan starts.
	Config func(opts *Options) error
	// Setup runs once, after Config, before scanning.
	Setup func(ctx context.Context) error
	// BuildStart runs right after the route scan, before any bundling.
	BuildStart func(ctx context.Context, scan *pyra.ScanResult) error
	// BuildEnd runs after manifest.json has been written.
	BuildEnd func(ctx context.Context, manifest *pyra.Manifest) error
}

// Options configures one orchestrator run.
type Options struct {
	RoutesDir      string
	OutDir         string
	PublicDir      string
	PageExtensions []string

	Adapter   pyra.Adapter
	Bundler   pyra.Bundler
	Runtime   pyra.ModuleRuntime
	Prerender PrerenderFunc

	DefaultRenderMode pyra.RenderMode

	Plugins []Plugin
}

// Result is what a successful build produced.
type Result struct {
	Manifest   *pyra.Manifest
	ScanResult *pyra.ScanResult
}

// Orchestrator runs the multi-step production build.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// Run executes the full build: plugin config/setup, clean, scan,
// buildStart, synthesize entries, bundle client and server, correlate
// metadata, prerender, write the SPA fallback shell, copy public assets,
// emit manifest.json, and plugin buildEnd.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	for _, p := range o.opts.Plugins {
		if p.Config == nil {
			continue
		}
		if err := p.Config(&o.opts); err != nil {
			return nil, fmt.Errorf("build: plugin %s config: %w", p.Name, err)
		}
	}
	for _, p := range o.opts.Plugins {
		if p.Setup == nil {
			continue
		}
		if err := p.Setup(ctx); err != nil {
			return nil, fmt.Errorf("build: plugin %s setup: %w", p.Name, err)
		}
	}

	// Step 1: clean the output directory.
	if err := os.RemoveAll(o.opts.OutDir); err != nil {
		return nil, fmt.Errorf("build: clean %s: %w", o.opts.OutDir, err)
	}
	if err := os.MkdirAll(o.opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("build: mkdir %s: %w", o.opts.OutDir, err)
	}

	// Step 2: scan routes. A missing routes directory is not an error —
	// the build falls back to serving only the public dir as a static SPA.
	scanner := pyra.NewScanner(o.opts.RoutesDir, o.opts.PageExtensions)
	scan, err := scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("build: scan: %w", err)
	}
	if _, err := pyra.BuildGraph(scan.Routes); err != nil {
		return nil, fmt.Errorf("build: route graph: %w", err)
	}

	for _, p := range o.opts.Plugins {
		if p.BuildStart == nil {
			continue
		}
		if err := p.BuildStart(ctx, scan); err != nil {
			return nil, fmt.Errorf("build: plugin %s buildStart: %w", p.Name, err)
		}
	}

	manifest := pyra.NewManifest()
	manifest.DefaultRenderMode = o.opts.DefaultRenderMode
	if o.opts.Adapter != nil {
		manifest.Adapter = o.opts.Adapter.Name()
	}

	mwIDByPath := make(map[string]string, len(scan.Middlewares))
	for id, mw := range scan.Middlewares {
		mwIDByPath[mw.FilePath] = id
	}

	// Step 3: synthesize one bundler entry per route, layout, error
	// overlay and the custom 404 page for both passes; middleware files
	// get server-pass entries only.
	clientEntries := make(map[string]string)
	serverEntries := make(map[string]string)
	for _, route := range scan.Routes {
		clientEntries[route.ID] = route.FilePath
		serverEntries[route.ID] = route.FilePath
	}
	for id, layout := range scan.Layouts {
		clientEntries[layoutEntryName(id)] = layout.FilePath
		serverEntries[layoutEntryName(id)] = layout.FilePath
	}
	for id, boundary := range scan.ErrorBoundaries {
		clientEntries[errorEntryName(id)] = boundary.FilePath
		serverEntries[errorEntryName(id)] = boundary.FilePath
	}
	if scan.NotFoundPage != nil {
		clientEntries[notFoundEntryName] = scan.NotFoundPage.FilePath
		serverEntries[notFoundEntryName] = scan.NotFoundPage.FilePath
	}
	for id, mw := range scan.Middlewares {
		serverEntries[middlewareEntryName(id)] = mw.FilePath
	}

	// Steps 4-5: client and server bundle passes.
	clientMeta, err := o.opts.Bundler.Build(ctx, pyra.BuildOptions{
		Entries: clientEntries,
		OutDir:  filepath.Join(o.opts.OutDir, "client"),
		Target:  "client",
	})
	if err != nil {
		return nil, fmt.Errorf("build: client bundle: %w", err)
	}
	serverMeta, err := o.opts.Bundler.Build(ctx, pyra.BuildOptions{
		Entries: serverEntries,
		OutDir:  filepath.Join(o.opts.OutDir, "server"),
		Target:  "server",
	})
	if err != nil {
		return nil, fmt.Errorf("build: server bundle: %w", err)
	}

	clientByEntry := indexOutputs(clientMeta)
	serverByEntry := indexOutputs(serverMeta)

	hasSPARoute := false

	// Steps 6-7: resolve each route's render mode (export detection
	// already ran at scan time) and correlate client/server bundle output
	// paths, plus the ancestry/cache metadata the production server needs
	// to reconstruct a working request pipeline without rescanning.
	for _, route := range scan.Routes {
		route.RenderMode = pyra.ResolveRenderMode(route.Exports, o.opts.DefaultRenderMode)

		entry := pyra.RouteEntry{
			RouteID:         route.ID,
			Pattern:         route.Pattern,
			LayoutChain:     route.LayoutChain,
			ErrorBoundaryID: route.ErrorBoundaryID,
			HasCache:        route.Exports.HasCache,
		}
		for _, mwPath := range route.MiddlewareChain {
			if id, ok := mwIDByPath[mwPath]; ok {
				entry.MiddlewareChain = append(entry.MiddlewareChain, id)
			}
		}

		switch {
		case route.Type == pyra.RouteTypeAPI:
			entry.Kind = pyra.EntryKindAPI
			entry.API = &pyra.APIEntry{
				ServerBundle: serverByEntry[route.ID].Main,
				Methods:      route.Exports.Methods,
			}

		case route.RenderMode == pyra.RenderSPA:
			hasSPARoute = true
			entry.Kind = pyra.EntryKindSPA
			entry.SPA = &pyra.SPAEntry{AssetRefs: assetRefsFor(clientByEntry, "", route.ID)}

		case route.RenderMode == pyra.RenderSSG:
			pages, err := o.prerenderRoute(ctx, route)
			if err != nil {
				return nil, fmt.Errorf("build: prerender %s: %w", route.ID, err)
			}
			entry.Kind = pyra.EntryKindSSG
			entry.SSG = &pyra.SSGEntry{Pages: pages}

		default: // ssr
			entry.Kind = pyra.EntryKindSSR
			entry.SSR = &pyra.SSREntry{AssetRefs: assetRefsFor(clientByEntry, serverByEntry[route.ID].Main, route.ID)}
		}

		manifest.Entries = append(manifest.Entries, entry)
	}

	manifest.Layouts = buildLayoutEntries(scan.Layouts, clientByEntry, serverByEntry)
	manifest.Middlewares = buildMiddlewareEntries(scan.Middlewares, serverByEntry)
	manifest.ErrorBoundaries = buildErrorBoundaryEntries(scan.ErrorBoundaries, clientByEntry, serverByEntry)

	if scan.NotFoundPage != nil {
		manifest.NotFoundPage = &pyra.RouteEntry{
			RouteID: scan.NotFoundPage.ID,
			Pattern: scan.NotFoundPage.Pattern,
			Kind:    pyra.EntryKindSSR,
			SSR:     &pyra.SSREntry{AssetRefs: assetRefsFor(clientByEntry, serverByEntry[notFoundEntryName].Main, notFoundEntryName)},
		}
	}

	// Step 9: SPA fallback shell. Written only when the app actually has
	// a client-only route (or no routes at all, the bare-SPA case the
	// scanner itself falls back to for a missing routes dir), and to
	// __spa.html rather than index.html so it never clobbers a root "/"
	// ssg route's own prerendered index page.
	if o.opts.Adapter != nil && (hasSPARoute || len(scan.Routes) == 0) {
		shell, err := o.opts.Adapter.GetDocumentShell(ctx, pyra.DocumentShellRequest{})
		if err == nil {
			shellPath := filepath.Join(o.opts.OutDir, "client", "__spa.html")
			_ = os.WriteFile(shellPath, []byte(shell), 0o644)
		}
	}

	// Step 10: copy the public directory verbatim into the client output.
	if o.opts.PublicDir != "" {
		if _, err := os.Stat(o.opts.PublicDir); err == nil {
			if err := copyTree(o.opts.PublicDir, filepath.Join(o.opts.OutDir, "client")); err != nil {
				return nil, fmt.Errorf("build: copy public dir: %w", err)
			}
		}
	}

	manifest.StaticAssets = collectStaticAssets(filepath.Join(o.opts.OutDir, "client"))

	// Step 11: write manifest.json.
	if err := writeManifest(manifest, filepath.Join(o.opts.OutDir, "manifest.json")); err != nil {
		return nil, fmt.Errorf("build: write manifest: %w", err)
	}

	for _, p := range o.opts.Plugins {
		if p.BuildEnd == nil {
			continue
		}
		if err := p.BuildEnd(ctx, manifest); err != nil {
			return nil, fmt.Errorf("build: plugin %s buildEnd: %w", p.Name, err)
		}
	}

	return &Result{Manifest: manifest, ScanResult: scan}, nil
}

// prerenderRoute resolves every concrete param set for an ssg route and
// renders each one to a static HTML file under the client output dir.
func (o *Orchestrator) prerenderRoute(ctx context.Context, route *pyra.Route) ([]pyra.PrerenderedPage, error) {
	paramSets := []map[string]string{{}}
	if o.opts.Prerender != nil && len(route.Params) > 0 {
		sets, err := o.opts.Prerender(ctx, route)
		if err != nil {
			return nil, err
		}
		paramSets = sets
	}

	var pages []pyra.PrerenderedPage
	for _, params := range paramSets {
		var props any
		if route.Exports.HasLoad && o.opts.Runtime != nil {
			prerenderPath := pyra.SubstituteParams(route.Pattern, params)
			fakeReq, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, prerenderPath, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			reqCtx := pyra.NewContext(fakeReq, route.ID, params, pyra.ModeProduction, "")
			loaded, err := o.opts.Runtime.LoadProps(ctx, route, reqCtx)
			if err != nil {
				return nil, err
			}
			props = loaded
		}

		result, err := o.opts.Adapter.RenderToHTML(ctx, pyra.RenderContext{
			RouteID:     route.ID,
			Path:        pyra.SubstituteParams(route.Pattern, params),
			Params:      params,
			Props:       props,
			LayoutChain: route.LayoutChain,
			Mode:        pyra.ModeProduction,
		})
		if err != nil {
			return nil, err
		}
		shell, err := o.opts.Adapter.GetDocumentShell(ctx, pyra.DocumentShellRequest{BodyHTML: result.HTML})
		if err != nil {
			return nil, err
		}

		outPath := outputPathFor(pyra.SubstituteParams(route.Pattern, params))
		fullPath := filepath.Join(o.opts.OutDir, "client", outPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(fullPath, []byte(shell), 0o644); err != nil {
			return nil, err
		}

		pages = append(pages, pyra.PrerenderedPage{Params: params, OutputPath: outPath})
	}
	return pages, nil
}

func outputPathFor(urlPath string) string {
	if urlPath == "/" || urlPath == "" {
		return "index.html"
	}
	return filepath.ToSlash(filepath.Join(urlPath[1:], "index.html"))
}

// ---------- entry naming ----------
//
// Layouts, error boundaries, middleware and the 404 page share the
// bundler's single flat entry namespace with routes, so each overlay kind
// gets a disjoint prefix to avoid colliding with a route id (a root
// layout and a root route can both resolve to id "/").

func layoutEntryName(id string) string     { return "layout:" + id }
func middlewareEntryName(id string) string { return "middleware:" + id }
func errorEntryName(id string) string      { return "error:" + id }

const notFoundEntryName = "__404"

// ---------- bundle output correlation ----------

// bundledAsset is one entry's bundler output: its main script plus any
// CSS chunks split out alongside it.
type bundledAsset struct {
	Main string
	CSS  []string
}

func indexOutputs(meta *pyra.BuildMetadata) map[string]bundledAsset {
	out := make(map[string]bundledAsset)
	if meta == nil {
		return out
	}
	for _, o := range meta.Outputs {
		asset := out[o.EntryName]
		if strings.HasSuffix(o.Path, ".css") {
			asset.CSS = append(asset.CSS, o.Path)
		} else if asset.Main == "" {
			asset.Main = o.Path
		}
		out[o.EntryName] = asset
	}
	return out
}

// assetRefsFor builds an AssetRefs for a client-entry id, paired with a
// server bundle path the caller looks up itself (SPA entries pass "").
func assetRefsFor(clientByEntry map[string]bundledAsset, serverBundle, clientEntryID string) pyra.AssetRefs {
	client := clientByEntry[clientEntryID]
	return pyra.AssetRefs{ServerBundle: serverBundle, ClientBundle: client.Main, CSS: client.CSS}
}

func buildLayoutEntries(layouts map[string]*pyra.Layout, clientByEntry, serverByEntry map[string]bundledAsset) []pyra.LayoutEntry {
	ids := sortedKeys(layouts)
	entries := make([]pyra.LayoutEntry, 0, len(ids))
	for _, id := range ids {
		name := layoutEntryName(id)
		entries = append(entries, pyra.LayoutEntry{
			ID:        id,
			AssetRefs: assetRefsFor(clientByEntry, serverByEntry[name].Main, name),
		})
	}
	return entries
}

func buildErrorBoundaryEntries(boundaries map[string]*pyra.ErrorBoundary, clientByEntry, serverByEntry map[string]bundledAsset) []pyra.ErrorBoundaryEntry {
	ids := sortedKeys(boundaries)
	entries := make([]pyra.ErrorBoundaryEntry, 0, len(ids))
	for _, id := range ids {
		name := errorEntryName(id)
		entries = append(entries, pyra.ErrorBoundaryEntry{
			ID:        id,
			AssetRefs: assetRefsFor(clientByEntry, serverByEntry[name].Main, name),
		})
	}
	return entries
}

func buildMiddlewareEntries(middlewares map[string]*pyra.Middleware, serverByEntry map[string]bundledAsset) []pyra.MiddlewareEntry {
	ids := sortedKeys(middlewares)
	entries := make([]pyra.MiddlewareEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, pyra.MiddlewareEntry{
			ID:           id,
			ServerBundle: serverByEntry[middlewareEntryName(id)].Main,
		})
	}
	return entries
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func collectStaticAssets(root string) []pyra.StaticAsset {
	var assets []pyra.StaticAsset
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		asset := pyra.StaticAsset{Path: rel, Size: info.Size(), MIME: mimeForPath(rel)}
		if pyra.IsHashedAssetPath(rel) {
			if hash, ok := hashFromPath(rel); ok {
				asset.Hash = hash
			}
		}
		assets = append(assets, asset)
		return nil
	})
	return assets
}

// hashFromPath extracts the content hash embedded in a hashed asset's
// filename, e.g. "app-a1b2c3d4.js" -> "a1b2c3d4".
func hashFromPath(rel string) (string, bool) {
	base := filepath.Base(rel)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	idx := strings.LastIndex(stem, "-")
	if idx < 0 {
		return "", false
	}
	return stem[idx+1:], true
}

var staticMIMETypes = map[string]string{
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

func mimeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := staticMIMETypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

func writeManifest(m *pyra.Manifest, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
