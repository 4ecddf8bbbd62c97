package pyra

// RouteEntryKind tags which payload a RouteEntry carries. The manifest is
// deliberately a tagged union rather than one struct with a field per
// possible render mode left nil when unused: a reader (or the prod
// server) can switch on Kind and trust the matching pointer is non-nil,
// instead of checking four optional fields by convention.
type RouteEntryKind string

const (
	EntryKindSSR RouteEntryKind = "ssr"
	EntryKindSSG RouteEntryKind = "ssg"
	EntryKindSPA RouteEntryKind = "spa"
	EntryKindAPI RouteEntryKind = "api"
)

// AssetRefs is the bundler output a route, layout or error boundary can
// carry: a server bundle for per-request execution, a client bundle for
// hydration, and whatever CSS chunks the bundler split out for it.
type AssetRefs struct {
	ServerBundle string   `json:"serverBundle,omitempty"`
	ClientBundle string   `json:"clientBundle,omitempty"`
	CSS          []string `json:"css,omitempty"`
}

// SSREntry is the payload for a server-rendered-per-request route.
type SSREntry struct {
	AssetRefs
}

// PrerenderedPage is one concrete URL produced for an ssg route, with the
// param values that produced it.
type PrerenderedPage struct {
	Params     map[string]string `json:"params,omitempty"`
	OutputPath string            `json:"outputPath"`
}

// SSGEntry is the payload for a statically-prerendered route: every
// concrete page the build produced for its dynamic segments.
type SSGEntry struct {
	Pages []PrerenderedPage `json:"pages"`
}

// SPAEntry is the payload for a client-only shell route.
type SPAEntry struct {
	AssetRefs
	ShellPath string `json:"shellPath"`
}

// APIEntry is the payload for a route.ts/route.js handler.
type APIEntry struct {
	ServerBundle string   `json:"serverBundle"`
	Methods      []string `json:"methods"`
}

// RouteEntry is one route's manifest record. Exactly one of SSR/SSG/SPA/
// API is non-nil, selected by Kind. LayoutChain, MiddlewareChain and
// ErrorBoundaryID mirror the scanner's ancestry resolution, carried
// forward into the build output so a manifest-only production server can
// reconstruct a full Route without rescanning the filesystem.
type RouteEntry struct {
	RouteID string         `json:"routeId"`
	Pattern string         `json:"pattern"`
	Kind    RouteEntryKind `json:"kind"`

	LayoutChain     []string `json:"layoutChain,omitempty"`
	MiddlewareChain []string `json:"middlewareChain,omitempty"`
	ErrorBoundaryID string   `json:"errorBoundaryId,omitempty"`
	HasCache        bool     `json:"hasCache,omitempty"`

	SSR *SSREntry `json:"ssr,omitempty"`
	SSG *SSGEntry `json:"ssg,omitempty"`
	SPA *SPAEntry `json:"spa,omitempty"`
	API *APIEntry `json:"api,omitempty"`
}

// LayoutEntry is a bundled layout.<ext> file, keyed by the directory id
// it is attached to (matching pyra.Layout.ID).
type LayoutEntry struct {
	ID string `json:"id"`
	AssetRefs
}

// MiddlewareEntry is a bundled middleware.ts/.js file, keyed by the
// directory id it is attached to (matching pyra.Middleware.ID).
type MiddlewareEntry struct {
	ID           string `json:"id"`
	ServerBundle string `json:"serverBundle"`
}

// ErrorBoundaryEntry is a bundled error.<ext> file, keyed by the directory
// id it is attached to (matching pyra.ErrorBoundary.ID).
type ErrorBoundaryEntry struct {
	ID string `json:"id"`
	AssetRefs
}

// StaticAsset records one file copied or emitted into the client output
// directory: its size, content hash (when the filename carries one) and
// MIME type. The production server does not read these records; it stats
// each requested file and picks its MIME type from the extension.
type StaticAsset struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Hash string `json:"hash,omitempty"`
	MIME string `json:"mime,omitempty"`
}

// Manifest is the build orchestrator's sole output contract to the
// production server.
type Manifest struct {
	Version           int        `json:"version"`
	Adapter           string     `json:"adapter,omitempty"`
	Base              string     `json:"base,omitempty"`
	BuiltAt           string     `json:"builtAt,omitempty"`
	DefaultRenderMode RenderMode `json:"defaultRenderMode,omitempty"`

	Entries         []RouteEntry         `json:"entries"`
	Layouts         []LayoutEntry        `json:"layouts,omitempty"`
	Middlewares     []MiddlewareEntry    `json:"middlewares,omitempty"`
	ErrorBoundaries []ErrorBoundaryEntry `json:"errorBoundaries,omitempty"`
	NotFoundPage    *RouteEntry          `json:"notFoundPage,omitempty"`
	StaticAssets    []StaticAsset        `json:"staticAssets,omitempty"`
}

// NewManifest returns an empty, current-version manifest.
func NewManifest() *Manifest {
	return &Manifest{Version: 1, DefaultRenderMode: RenderSSR}
}

// FindEntry looks up a route's manifest entry by id.
func (m *Manifest) FindEntry(routeID string) (*RouteEntry, bool) {
	for i := range m.Entries {
		if m.Entries[i].RouteID == routeID {
			return &m.Entries[i], true
		}
	}
	return nil, false
}

// FindLayout looks up a bundled layout by its directory id.
func (m *Manifest) FindLayout(id string) (*LayoutEntry, bool) {
	for i := range m.Layouts {
		if m.Layouts[i].ID == id {
			return &m.Layouts[i], true
		}
	}
	return nil, false
}

// FindMiddleware looks up a bundled middleware file by its directory id.
func (m *Manifest) FindMiddleware(id string) (*MiddlewareEntry, bool) {
	for i := range m.Middlewares {
		if m.Middlewares[i].ID == id {
			return &m.Middlewares[i], true
		}
	}
	return nil, false
}

// FindErrorBoundary looks up a bundled error boundary by its directory id.
func (m *Manifest) FindErrorBoundary(id string) (*ErrorBoundaryEntry, bool) {
	for i := range m.ErrorBoundaries {
		if m.ErrorBoundaries[i].ID == id {
			return &m.ErrorBoundaries[i], true
		}
	}
	return nil, false
}
