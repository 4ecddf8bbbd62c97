package pyra

// RouteType distinguishes page routes (server-rendered UI) from API
// routes (JSON/arbitrary-response handlers).
type RouteType string

const (
	RouteTypePage RouteType = "page"
	RouteTypeAPI  RouteType = "api"
)

// CacheDirectives mirrors a route module's optional `cache` export. Nil
// fields are omitted from the assembled Cache-Control header.
type CacheDirectives struct {
	MaxAge              *int
	SMaxAge             *int
	StaleWhileRevalidate *int
}

// RouteExports captures what the scanner's lexer-level pass detected in
// a route module's top-level export declarations, without importing or
// executing the module.
type RouteExports struct {
	HasLoad      bool
	HasRender    bool
	RenderValue  string // one of "spa"|"ssr"|"ssg" when HasRender and a literal was found
	HasPrerender bool
	// PrerenderLiteralTrue is true when `prerender` is the literal `true`,
	// distinguishing it from `prerender = { paths() {...} }` (multi-variant).
	PrerenderLiteralTrue bool
	HasCache             bool
	Methods              []string // uppercase HTTP method names exported (API routes)
}

// Route is a single matchable endpoint, built by the scanner and indexed
// by the route graph.
type Route struct {
	ID       string
	Pattern  string
	Type     RouteType
	FilePath string
	Params   []string

	// LayoutChain is ordered outermost ancestor -> innermost.
	LayoutChain []string

	// MiddlewareChain is ordered outermost -> innermost.
	MiddlewareChain []string

	// ErrorBoundaryID is the nearest ancestor (including self) with an
	// error overlay, or "" if none exists.
	ErrorBoundaryID string

	// RenderMode is resolved by the build orchestrator; the scanner leaves
	// it zero, meaning "not yet resolved" (resolution needs the global
	// default).
	RenderMode RenderMode

	Exports RouteExports

	// scope is the raw directory path (including route-group parens),
	// used to resolve middleware/layout ancestry independent of the
	// URL-facing id.
	scope string
}

// Layout, Middleware and ErrorBoundary are "overlay" files keyed by the
// directory they live in.
type Layout struct {
	ID       string // directory id this layout is attached to
	FilePath string
}

type Middleware struct {
	ID       string
	FilePath string
	Exports  RouteExports
}

type ErrorBoundary struct {
	ID       string
	FilePath string
}

// ScanResult is everything the Route Scanner discovers in one pass.
type ScanResult struct {
	Routes          []*Route
	Layouts         map[string]*Layout
	Middlewares     map[string]*Middleware
	ErrorBoundaries map[string]*ErrorBoundary
	NotFoundPage    *Route // custom 404.<ext> at the routes root, if any
}

// childOf reports whether b is a direct child of a in the tree built from
// route ids: a is a proper prefix of b and no other route sits strictly
// between them. This is computed on demand by tooling, not stored, since
// it is O(routes) and only used for display.
func childOf(a, b *Route, all []*Route) bool {
	if a.ID == b.ID {
		return false
	}
	if !isProperPrefix(a.ID, b.ID) {
		return false
	}
	for _, mid := range all {
		if mid.ID == a.ID || mid.ID == b.ID {
			continue
		}
		if isProperPrefix(a.ID, mid.ID) && isProperPrefix(mid.ID, b.ID) {
			return false
		}
	}
	return true
}

func isProperPrefix(prefix, id string) bool {
	if prefix == id {
		return false
	}
	if prefix == "/" {
		return true
	}
	return len(id) > len(prefix) && id[:len(prefix)] == prefix && id[len(prefix)] == '/'
}
