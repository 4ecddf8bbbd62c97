package pyra

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Scanner walks a routes directory and classifies files by sentinel name:
// page/api/layout/middleware/error files, plus Next.js-style bracket
// segments for dynamic and catch-all params.
type Scanner struct {
	routesDir      string
	pageExtensions []string
}

// NewScanner creates a Scanner rooted at routesDir. pageExtensions are the
// adapter-advertised extensions for page.<ext>/layout.<ext>/error.<ext>.
func NewScanner(routesDir string, pageExtensions []string) *Scanner {
	if len(pageExtensions) == 0 {
		pageExtensions = []string{"tsx", "jsx", "ts", "js"}
	}
	return &Scanner{routesDir: routesDir, pageExtensions: pageExtensions}
}

var (
	dynamicSegmentRe = regexp.MustCompile(`^\[([^.\]]+)\]$`)
	catchAllSegmentRe = regexp.MustCompile(`^\[\.\.\.([^\]]+)\]$`)
	groupSegmentRe    = regexp.MustCompile(`^\([^)]+\)$`)
	privateFolderRe   = regexp.MustCompile(`^_`)
)

type segmentKind int

const (
	segStatic segmentKind = iota
	segDynamic
	segCatchAll
	segGroup
)

func classifySegment(name string) (segmentKind, string) {
	if m := catchAllSegmentRe.FindStringSubmatch(name); len(m) > 1 {
		return segCatchAll, m[1]
	}
	if m := dynamicSegmentRe.FindStringSubmatch(name); len(m) > 1 {
		return segDynamic, m[1]
	}
	if groupSegmentRe.MatchString(name) {
		return segGroup, ""
	}
	return segStatic, name
}

// dirRecord accumulates the sentinel files found directly inside one
// routes-relative directory.
type dirRecord struct {
	segments []string // raw directory names, routesDir-relative, root = nil
	page     string
	api      string
	layout   string
	mw       string
	errFile  string
}

func (d *dirRecord) routeID() string {
	var parts []string
	for _, seg := range d.segments {
		kind, name := classifySegment(seg)
		switch kind {
		case segGroup:
			continue
		case segDynamic:
			parts = append(parts, "["+name+"]")
		case segCatchAll:
			parts = append(parts, "[..."+name+"]")
		default:
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

func (d *dirRecord) pattern() (string, []string) {
	var parts []string
	var params []string
	for _, seg := range d.segments {
		kind, name := classifySegment(seg)
		switch kind {
		case segGroup:
			continue
		case segDynamic:
			parts = append(parts, ":"+name)
			params = append(params, name)
		case segCatchAll:
			parts = append(parts, "*"+name)
			params = append(params, name)
		default:
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "/", params
	}
	return "/" + strings.Join(parts, "/"), params
}

func dirKey(segments []string) string {
	return strings.Join(segments, "/")
}

// Scan walks the routes directory and returns every discovered route and
// overlay. A missing routes directory is not an error: the caller falls
// back to the SPA build path.
func (s *Scanner) Scan() (*ScanResult, error) {
	result := &ScanResult{
		Layouts:         make(map[string]*Layout),
		Middlewares:     make(map[string]*Middleware),
		ErrorBoundaries: make(map[string]*ErrorBoundary),
	}

	if _, err := os.Stat(s.routesDir); os.IsNotExist(err) {
		return result, nil
	}

	dirs := make(map[string]*dirRecord)
	dirs[""] = &dirRecord{}

	var notFoundFile string

	walkErr := filepath.Walk(s.routesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == s.routesDir {
			return nil
		}

		rel, relErr := filepath.Rel(s.routesDir, path)
		if relErr != nil {
			return relErr
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")

		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") || privateFolderRe.MatchString(name) {
				return filepath.SkipDir
			}
			dirs[dirKey(segments)] = &dirRecord{segments: segments}
			return nil
		}

		parentSegments := segments[:len(segments)-1]
		parentKey := dirKey(parentSegments)
		rec, ok := dirs[parentKey]
		if !ok {
			rec = &dirRecord{segments: parentSegments}
			dirs[parentKey] = rec
		}

		name := info.Name()
		switch {
		case matchSentinel(name, "page", s.pageExtensions):
			rec.page = path
		case name == "route.ts" || name == "route.js":
			rec.api = path
		case matchSentinel(name, "layout", s.pageExtensions):
			rec.layout = path
		case name == "middleware.ts" || name == "middleware.js":
			rec.mw = path
		case matchSentinel(name, "error", s.pageExtensions):
			rec.errFile = path
		case len(parentSegments) == 0 && matchSentinel(name, "404", s.pageExtensions):
			notFoundFile = path
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	// Deterministic order: sort directory keys so route discovery order
	// (and therefore any ties broken by first-registration) is stable.
	keys := make([]string, 0, len(dirs))
	for k := range dirs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rec := dirs[k]

		if rec.layout != "" {
			result.Layouts[rec.routeID()] = &Layout{ID: rec.routeID(), FilePath: rec.layout}
		}
		if rec.mw != "" {
			src, _ := os.ReadFile(rec.mw)
			result.Middlewares[rec.routeID()] = &Middleware{
				ID:       rec.routeID(),
				FilePath: rec.mw,
				Exports:  detectExports(src),
			}
		}
		if rec.errFile != "" {
			result.ErrorBoundaries[rec.routeID()] = &ErrorBoundary{ID: rec.routeID(), FilePath: rec.errFile}
		}

		if rec.page != "" && rec.api != "" {
			return nil, &ScanError{
				Dir:     filepath.Join(s.routesDir, k),
				Message: "directory declares both a page file and an API file",
			}
		}

		if rec.page == "" && rec.api == "" {
			continue
		}

		id := rec.routeID()
		pattern, params := rec.pattern()

		route := &Route{
			ID:      id,
			Pattern: pattern,
			Params:  params,
			scope:   k,
		}

		if rec.page != "" {
			route.Type = RouteTypePage
			route.FilePath = rec.page
			src, _ := os.ReadFile(rec.page)
			route.Exports = detectExports(src)
		} else {
			route.Type = RouteTypeAPI
			route.FilePath = rec.api
			src, _ := os.ReadFile(rec.api)
			route.Exports = detectExports(src)
		}

		result.Routes = append(result.Routes, route)
	}

	resolveAncestry(result, dirs, keys)

	if notFoundFile != "" {
		src, _ := os.ReadFile(notFoundFile)
		result.NotFoundPage = &Route{
			ID:       "/404",
			Pattern:  "/404",
			Type:     RouteTypePage,
			FilePath: notFoundFile,
			Exports:  detectExports(src),
		}
	}

	return result, nil
}

// resolveAncestry computes each route's layoutChain, middlewareChain and
// errorBoundaryId by walking from the routes root down to the route's own
// directory.
func resolveAncestry(result *ScanResult, dirs map[string]*dirRecord, sortedKeys []string) {
	for _, route := range result.Routes {
		segments := strings.Split(route.scope, "/")
		if route.scope == "" {
			segments = nil
		}

		var layoutChain []string
		var mwChain []string
		errBoundary := ""

		for i := 0; i <= len(segments); i++ {
			prefix := segments[:i]
			key := dirKey(prefix)
			rec, ok := dirs[key]
			if !ok {
				continue
			}
			id := rec.routeID()
			if rec.layout != "" {
				layoutChain = append(layoutChain, id)
			}
			if rec.mw != "" {
				mwChain = append(mwChain, rec.mw)
			}
			if rec.errFile != "" {
				errBoundary = id
			}
		}

		route.LayoutChain = layoutChain
		route.MiddlewareChain = mwChain
		route.ErrorBoundaryID = errBoundary
	}
}

func matchSentinel(name, base string, exts []string) bool {
	for _, ext := range exts {
		if name == base+"."+ext {
			return true
		}
	}
	return false
}

// ---------- Export detection ----------
//
// Route modules are source files in whatever language the adapter/bundler
// compiles (TypeScript/JavaScript in the reference toolchain) — they are
// never Go, so they cannot be parsed with go/parser. The scanner instead
// runs a small lexer-level regex pass over top-level export statements.

var (
	exportConstRe = regexp.MustCompile(`(?m)^\s*export\s+const\s+(\w+)\s*=\s*([^\n]*)`)
	exportFuncRe  = regexp.MustCompile(`(?m)^\s*export\s+(?:async\s+)?function\s+(\w+)\s*\(`)
	exportLetRe   = regexp.MustCompile(`(?m)^\s*export\s+(?:let|var)\s+(\w+)\s*=\s*([^\n]*)`)
	quotedValueRe = regexp.MustCompile(`^["']([a-z]+)["']`)
)

var httpMethodNames = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

func detectExports(src []byte) RouteExports {
	var out RouteExports
	text := string(src)

	for _, m := range exportFuncRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "load" {
			out.HasLoad = true
		}
		if httpMethodNames[name] {
			out.Methods = append(out.Methods, name)
		}
	}

	handleValue := func(name, value string) {
		value = strings.TrimSpace(value)
		switch name {
		case "load":
			out.HasLoad = true
		case "render":
			out.HasRender = true
			if m := quotedValueRe.FindStringSubmatch(value); len(m) > 1 {
				out.RenderValue = m[1]
			}
		case "prerender":
			out.HasPrerender = true
			out.PrerenderLiteralTrue = strings.HasPrefix(value, "true")
		case "cache":
			out.HasCache = true
		default:
			if httpMethodNames[name] {
				out.Methods = append(out.Methods, name)
			}
		}
	}

	for _, m := range exportConstRe.FindAllStringSubmatch(text, -1) {
		handleValue(m[1], m[2])
	}
	for _, m := range exportLetRe.FindAllStringSubmatch(text, -1) {
		handleValue(m[1], m[2])
	}

	return out
}
