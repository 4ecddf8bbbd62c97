package pyra

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ModuleRuntime is the bridge between the core and whatever executes a
// compiled route module (load/HTTP-method/middleware exports, error
// overlays). Like Adapter and Bundler it is an opaque contract: the core
// never assumes a concrete JS/TS execution strategy, only that something
// on the other side of this interface can run a compiled module's export
// and hand back a Go value — the same "no concrete tool coupling"
// principle Adapter and Bundler apply, extended to module execution
// itself.
type ModuleRuntime interface {
	// LoadProps invokes a page route's `load` export, if it has one.
	LoadProps(ctx context.Context, route *Route, reqCtx *Context) (any, error)

	// HandleAPI invokes the exported HTTP-method handler matching the
	// request's method on an API route.
	HandleAPI(ctx context.Context, route *Route, reqCtx *Context) (*Response, error)

	// RunMiddleware invokes one middleware.ts/.js file's default export.
	RunMiddleware(ctx context.Context, mwFilePath string, reqCtx *Context, next Next) (*Response, error)

	// RenderErrorBoundary invokes an error.<ext> file's render export with
	// the triggering HTTPError, producing the fragment the pipeline wraps
	// in the document shell.
	RenderErrorBoundary(ctx context.Context, boundaryFilePath string, httpErr *HTTPError, reqCtx *Context) (*RenderResult, error)

	// ResolveCache invokes a route's `cache` export, if it has one,
	// returning the concrete directives to assemble into a Cache-Control
	// header. The pipeline only calls this when RouteExports.HasCache is
	// set; a nil result (or error) leaves the response's Cache-Control
	// header untouched.
	ResolveCache(ctx context.Context, route *Route, reqCtx *Context) (*CacheDirectives, error)
}

// Pipeline wires the route graph, adapter, module runtime and built-in
// behavior into one http.Handler: match -> context -> middleware chain ->
// terminal -> error boundary -> finalize.
type Pipeline struct {
	Graph      *RouteGraph
	ScanResult *ScanResult
	Adapter    Adapter
	Runtime    ModuleRuntime
	Config     *Config
	Mode       Mode
	Global     []MiddlewareFunc

	// StaticPage resolves a prebuilt ssg page's bytes for a route and its
	// bound params, letting a production server serve prerendered HTML
	// straight off disk instead of re-rendering it on every request. A dev
	// server leaves this nil, so ssg routes render dynamically the same
	// way ssr routes do until a build actually exists.
	StaticPage func(route *Route, params map[string]string) ([]byte, bool)
}

// NewPipeline builds a Pipeline ready to serve requests.
func NewPipeline(graph *RouteGraph, scan *ScanResult, adapter Adapter, runtime ModuleRuntime, cfg *Config, mode Mode, global ...MiddlewareFunc) *Pipeline {
	return &Pipeline{
		Graph:      graph,
		ScanResult: scan,
		Adapter:    adapter,
		Runtime:    runtime,
		Config:     cfg,
		Mode:       mode,
		Global:     global,
	}
}

// ServeHTTP implements http.Handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, params, ok := p.Graph.Match(r.URL.Path)
	if !ok {
		p.serveNotFound(w, r)
		return
	}

	reqCtx := NewContext(r, route.ID, params, p.Mode, p.Config.EnvPrefix)

	middlewares := append([]MiddlewareFunc{}, p.Global...)
	for _, mwPath := range route.MiddlewareChain {
		middlewares = append(middlewares, p.adaptFileMiddleware(mwPath))
	}

	chain := Compose(reqCtx, p.terminal(route), middlewares)
	resp, err := chain()

	stdctx := r.Context()
	if err != nil {
		resp = p.renderError(stdctx, reqCtx, route, err)
	}
	if resp == nil {
		resp = NewResponse(http.StatusNoContent)
	}

	for _, h := range reqCtx.Cookies.PendingHeaders() {
		resp.Header.Add("Set-Cookie", h)
	}

	_ = resp.Write(w)
}

func (p *Pipeline) adaptFileMiddleware(mwPath string) MiddlewareFunc {
	return func(ctx *Context, next Next) (*Response, error) {
		return p.Runtime.RunMiddleware(ctx.Request.Context(), mwPath, ctx, next)
	}
}

// terminal returns the innermost handler for a route, dispatching on
// route type and resolved render mode.
func (p *Pipeline) terminal(route *Route) HandlerFunc {
	if route.Type == RouteTypeAPI {
		return func(ctx *Context) (*Response, error) {
			if !methodAllowed(route.Exports.Methods, ctx.Method()) {
				resp := ctx.Text(http.StatusMethodNotAllowed, "Method Not Allowed")
				resp.Header.Set("Allow", strings.Join(route.Exports.Methods, ", "))
				return resp, nil
			}
			resp, err := p.Runtime.HandleAPI(ctx.Request.Context(), route, ctx)
			if err != nil {
				return nil, err
			}
			return p.applyCacheControl(ctx.Request.Context(), ctx, route, resp), nil
		}
	}

	mode := ResolveRenderMode(route.Exports, p.Config.DefaultRenderMode)

	return func(ctx *Context) (*Response, error) {
		stdctx := ctx.Request.Context()

		if mode == RenderSSG && p.StaticPage != nil {
			if body, ok := p.StaticPage(route, ctx.Params); ok {
				resp := ctx.HTML(http.StatusOK, string(body))
				return p.applyCacheControl(stdctx, ctx, route, resp), nil
			}
		}

		var props any
		if route.Exports.HasLoad {
			loaded, err := p.Runtime.LoadProps(stdctx, route, ctx)
			if err != nil {
				return nil, err
			}
			props = loaded
		}

		if mode == RenderSPA {
			resp, err := p.serveSPAShell(stdctx, ctx, route, props)
			if err != nil {
				return nil, err
			}
			return p.applyCacheControl(stdctx, ctx, route, resp), nil
		}

		result, err := p.Adapter.RenderToHTML(stdctx, RenderContext{
			RouteID:     route.ID,
			Path:        ctx.Path(),
			Params:      ctx.Params,
			Props:       props,
			LayoutChain: route.LayoutChain,
			Mode:        ctx.Mode,
		})
		if err != nil {
			return nil, err
		}

		hydration, err := p.Adapter.GetHydrationScript(props)
		if err != nil {
			return nil, err
		}

		shell, err := p.Adapter.GetDocumentShell(stdctx, DocumentShellRequest{
			BodyHTML:        result.HTML,
			HydrationScript: EscapeForInlineScript(hydration),
		})
		if err != nil {
			return nil, err
		}

		status := http.StatusOK
		if result.StatusOverride != 0 {
			status = result.StatusOverride
		}
		resp := ctx.HTML(status, shell)
		return p.applyCacheControl(stdctx, ctx, route, resp), nil
	}
}

// methodAllowed reports whether method is among a route's exported HTTP
// methods. A route that exports none is treated as open to any method —
// the scanner only records methods it can see as named exports, and an
// API route built some other way (a single default-export handler) should
// not get spuriously 405'd.
func methodAllowed(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// applyCacheControl assembles and sets the Cache-Control header for
// routes that export `cache`, using whatever directives the module
// runtime resolves for this request. Routes without a cache export, or a
// runtime that resolves nothing, leave resp untouched.
func (p *Pipeline) applyCacheControl(stdctx context.Context, reqCtx *Context, route *Route, resp *Response) *Response {
	if resp == nil || !route.Exports.HasCache || p.Runtime == nil {
		return resp
	}
	directives, err := p.Runtime.ResolveCache(stdctx, route, reqCtx)
	if err != nil || directives == nil {
		return resp
	}
	if cc := CacheControlFromDirectives(*directives); cc != "" {
		resp.Header.Set("Cache-Control", cc)
	}
	return resp
}

func (p *Pipeline) serveSPAShell(stdctx context.Context, ctx *Context, route *Route, props any) (*Response, error) {
	hydration, err := p.Adapter.GetHydrationScript(props)
	if err != nil {
		return nil, err
	}
	shell, err := p.Adapter.GetDocumentShell(stdctx, DocumentShellRequest{
		HydrationScript: EscapeForInlineScript(hydration),
	})
	if err != nil {
		return nil, err
	}
	return ctx.HTML(http.StatusOK, shell), nil
}

// serveNotFound serves the project's custom 404 page if the scanner found
// one at the routes root, else a minimal plain-text fallback.
func (p *Pipeline) serveNotFound(w http.ResponseWriter, r *http.Request) {
	notFound := p.ScanResult.NotFoundPage
	if notFound == nil || p.Adapter == nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}

	reqCtx := NewContext(r, notFound.ID, nil, p.Mode, p.Config.EnvPrefix)
	result, err := p.Adapter.RenderToHTML(r.Context(), RenderContext{
		RouteID: notFound.ID,
		Path:    r.URL.Path,
		Mode:    reqCtx.Mode,
	})
	if err != nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	shell, err := p.Adapter.GetDocumentShell(r.Context(), DocumentShellRequest{BodyHTML: result.HTML})
	if err != nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	resp := reqCtx.HTML(http.StatusNotFound, shell)
	_ = resp.Write(w)
}

// renderError implements the error-boundary fallback chain: render the
// nearest ancestor error boundary if one exists, falling back to a
// generic body if rendering it also fails or none was declared. API
// routes always get a JSON body.
func (p *Pipeline) renderError(stdctx context.Context, reqCtx *Context, route *Route, err error) *Response {
	status := statusFromError(err)
	public := isPublicError(err) || reqCtx.Mode == ModeDevelopment
	message := "Internal Server Error"
	if public {
		message = err.Error()
	}

	if route.Type == RouteTypeAPI {
		body := map[string]any{"error": message}
		if reqCtx.Mode == ModeDevelopment {
			body["stack"] = fmt.Sprintf("%+v", err)
		}
		resp, marshalErr := reqCtx.JSON(status, body)
		if marshalErr == nil {
			return resp
		}
		return reqCtx.Text(status, message)
	}

	if route.ErrorBoundaryID != "" && p.Adapter != nil && p.Runtime != nil {
		if boundary, ok := p.ScanResult.ErrorBoundaries[route.ErrorBoundaryID]; ok {
			httpErr, isHTTP := IsHTTPError(err)
			if !isHTTP || !public {
				httpErr = NewHTTPError(status, message)
			}
			result, rerr := p.Runtime.RenderErrorBoundary(stdctx, boundary.FilePath, httpErr, reqCtx)
			if rerr == nil {
				shell, serr := p.Adapter.GetDocumentShell(stdctx, DocumentShellRequest{BodyHTML: result.HTML, Title: "Error"})
				if serr == nil {
					return reqCtx.HTML(status, shell)
				}
			}
		}
	}

	return reqCtx.Text(status, message)
}

// ---------- Cache-Control ----------
//
// The scanner's lexer-level pass only records *that* a route exports
// `cache` — it never executes the module, so it cannot read the
// object's field values at scan time. HasCache only tells the pipeline
// it's worth asking; ModuleRuntime.ResolveCache is what actually loads
// the module and resolves the concrete directives, which
// applyCacheControl then renders onto the response.

// CacheControlFromDirectives renders parsed cache directives into a
// Cache-Control header value, for runtimes that have resolved a route's
// `cache` export and want the standard assembly.
func CacheControlFromDirectives(d CacheDirectives) string {
	var parts []string
	if d.MaxAge != nil {
		parts = append(parts, "max-age="+strconv.Itoa(*d.MaxAge))
	}
	if d.SMaxAge != nil {
		parts = append(parts, "s-maxage="+strconv.Itoa(*d.SMaxAge))
	}
	if d.StaleWhileRevalidate != nil {
		parts = append(parts, "stale-while-revalidate="+strconv.Itoa(*d.StaleWhileRevalidate))
	}
	return strings.Join(parts, ", ")
}

var hashedAssetRe = regexp.MustCompile(`-[a-zA-Z0-9]{6,}\.[a-zA-Z0-9.]+$`)

// IsHashedAssetPath reports whether a static asset path carries a content
// hash in its filename. Hashed assets get an immutable, far-future
// Cache-Control; everything else gets no-cache.
func IsHashedAssetPath(path string) bool {
	return hashedAssetRe.MatchString(path)
}
