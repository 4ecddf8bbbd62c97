package pyra

import "context"

// RenderContext is what the core passes a UI Adapter to render one page.
// The adapter never sees *http.Request or *Context directly — only the
// values it needs — so the core can swap adapters without the adapter
// depending on pyra's request plumbing.
type RenderContext struct {
	RouteID string
	Path    string
	Params  map[string]string

	// Props is whatever the route's load() export returned, passed through
	// unmodified.
	Props any

	// LayoutChain is outermost-first, matching Route.LayoutChain.
	LayoutChain []string

	Mode Mode
}

// RenderResult is the HTML fragment and any adapter-supplied hints the
// pipeline needs to finish assembling a response.
type RenderResult struct {
	HTML string

	// StatusOverride lets an adapter force a status (rare; e.g. a page that
	// renders its own "not found" body). Zero means "use the pipeline's
	// normal status".
	StatusOverride int
}

// DocumentShellRequest is what getDocumentShell needs to wrap a rendered
// page body in a full HTML document.
type DocumentShellRequest struct {
	BodyHTML         string
	HydrationScript  string
	Title            string
	HeadExtra        string
}

// Adapter is the framework-agnostic contract the core renders pages
// through: render one route, produce a document shell, and produce a
// hydration script. These three operations are all the core needs, so
// it never imports a concrete UI library directly.
type Adapter interface {
	// Name identifies the adapter for diagnostics and manifest metadata.
	Name() string

	// FileExtensions lists the page/layout/error source extensions this
	// adapter recognizes, feeding the scanner's pageExtensions.
	FileExtensions() []string

	// RenderToHTML renders one route (with its layout chain already
	// composed by the caller, or composed internally — the contract does
	// not mandate which) into an HTML fragment.
	RenderToHTML(ctx context.Context, req RenderContext) (*RenderResult, error)

	// GetDocumentShell wraps a rendered body in the full HTML document
	// (doctype, head, hydration script tag, body).
	GetDocumentShell(ctx context.Context, req DocumentShellRequest) (string, error)

	// GetHydrationScript serializes props into the inline script body the
	// client runtime reads to hydrate without a second fetch. Callers
	// must run EscapeForInlineScript on any user-controlled string before
	// this is embedded in a <script> tag.
	GetHydrationScript(props any) (string, error)
}

// EscapeForInlineScript makes a JSON-encoded payload safe to place inside
// a literal <script> element by escaping the three characters that could
// otherwise close the tag or inject markup.
func EscapeForInlineScript(jsonPayload string) string {
	var b []byte
	for _, r := range jsonPayload {
		switch r {
		case '<':
			b = append(b, '\\', 'u', '0', '0', '3', 'c')
		case '>':
			b = append(b, '\\', 'u', '0', '0', '3', 'e')
		case '&':
			b = append(b, '\\', 'u', '0', '0', '2', '6')
		default:
			b = append(b, string(r)...)
		}
	}
	return string(b)
}
