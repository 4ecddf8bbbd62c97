package pyra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeAdapter renders the route id as a plain string body, enough to exercise
// the pipeline without a real UI library.
type fakeAdapter struct{}

func (fakeAdapter) Name() string             { return "fake" }
func (fakeAdapter) FileExtensions() []string { return []string{"tsx"} }

func (fakeAdapter) RenderToHTML(_ context.Context, req RenderContext) (*RenderResult, error) {
	return &RenderResult{HTML: "<p>" + req.RouteID + "</p>"}, nil
}

func (fakeAdapter) GetDocumentShell(_ context.Context, req DocumentShellRequest) (string, error) {
	return "<html><body>" + req.BodyHTML + "</body></html>", nil
}

func (fakeAdapter) GetHydrationScript(props any) (string, error) {
	return "{}", nil
}

// fakeRuntime drives the pipeline's dispatch for tests without a real
// module execution bridge.
type fakeRuntime struct {
	apiErr   error
	cache    *CacheDirectives
	cacheErr error
}

func (r fakeRuntime) LoadProps(_ context.Context, route *Route, _ *Context) (any, error) {
	return map[string]string{"routeId": route.ID}, nil
}

func (r fakeRuntime) HandleAPI(_ context.Context, route *Route, ctx *Context) (*Response, error) {
	if r.apiErr != nil {
		return nil, r.apiErr
	}
	return ctx.JSON(200, map[string]string{"ok": "true"})
}

func (r fakeRuntime) RunMiddleware(_ context.Context, _ string, ctx *Context, next Next) (*Response, error) {
	return next()
}

func (r fakeRuntime) RenderErrorBoundary(_ context.Context, _ string, httpErr *HTTPError, _ *Context) (*RenderResult, error) {
	return &RenderResult{HTML: "<p>error: " + httpErr.Message + "</p>"}, nil
}

func (r fakeRuntime) ResolveCache(_ context.Context, _ *Route, _ *Context) (*CacheDirectives, error) {
	return r.cache, r.cacheErr
}

func buildTestPipeline(t *testing.T, routes []*Route, scan *ScanResult, mode Mode) *Pipeline {
	t.Helper()
	graph, err := BuildGraph(routes)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	return NewPipeline(graph, scan, fakeAdapter{}, fakeRuntime{}, cfg, mode)
}

func TestPipeline_ServesSSRPage(t *testing.T) {
	route := &Route{ID: "/", Pattern: "/", Type: RouteTypePage, Exports: RouteExports{HasLoad: true}}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	p := buildTestPipeline(t, scan.Routes, scan, ModeProduction)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "<html><body><p>/</p></body></html>" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestPipeline_ServesAPIRoute(t *testing.T) {
	route := &Route{ID: "/api/ping", Pattern: "/api/ping", Type: RouteTypeAPI, Exports: RouteExports{Methods: []string{"GET"}}}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	p := buildTestPipeline(t, scan.Routes, scan, ModeProduction)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
}

func TestPipeline_404FallsBackWhenNoCustomPage(t *testing.T) {
	scan := &ScanResult{Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	p := buildTestPipeline(t, nil, scan, ModeProduction)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPipeline_APIErrorUsesThrownStatus(t *testing.T) {
	route := &Route{ID: "/api/boom", Pattern: "/api/boom", Type: RouteTypeAPI}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	graph, err := BuildGraph(scan.Routes)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	p := NewPipeline(graph, scan, fakeAdapter{}, fakeRuntime{apiErr: NewHTTPError(400, "bad input")}, cfg, ModeProduction)

	req := httptest.NewRequest(http.MethodGet, "/api/boom", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPipeline_ErrorBoundaryRendersOnPageError(t *testing.T) {
	boundary := &ErrorBoundary{ID: "/", FilePath: "app/error.tsx"}
	route := &Route{ID: "/broken", Pattern: "/broken", Type: RouteTypePage, ErrorBoundaryID: "/"}
	scan := &ScanResult{
		Routes:          []*Route{route},
		Layouts:         map[string]*Layout{},
		Middlewares:     map[string]*Middleware{},
		ErrorBoundaries: map[string]*ErrorBoundary{"/": boundary},
	}
	graph, err := BuildGraph(scan.Routes)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()

	failingMW := func(ctx *Context, next Next) (*Response, error) {
		return nil, NewHTTPError(500, "middleware exploded")
	}
	p := NewPipeline(graph, scan, fakeAdapter{}, fakeRuntime{}, cfg, ModeProduction, failingMW)

	req := httptest.NewRequest(http.MethodGet, "/broken", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != 500 {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if w.Body.String() == "" {
		t.Error("expected the error boundary's rendered body")
	}
}

func TestPipeline_SetCookieFlushedOnResponse(t *testing.T) {
	route := &Route{ID: "/login", Pattern: "/login", Type: RouteTypeAPI}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	graph, err := BuildGraph(scan.Routes)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()

	setsCookie := func(ctx *Context, next Next) (*Response, error) {
		ctx.Cookies.Set("session", "abc", CookieOptions{HttpOnly: true})
		return next()
	}
	p := NewPipeline(graph, scan, fakeAdapter{}, fakeRuntime{}, cfg, ModeProduction, setsCookie)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if got := w.Header().Get("Set-Cookie"); got == "" {
		t.Error("expected a Set-Cookie header to be flushed onto the response")
	}
}

func TestPipeline_MethodMissReturns405WithAllowHeader(t *testing.T) {
	route := &Route{ID: "/api/users/[id]", Pattern: "/api/users/:id", Type: RouteTypeAPI, Exports: RouteExports{Methods: []string{"GET", "DELETE"}}}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	p := buildTestPipeline(t, scan.Routes, scan, ModeProduction)

	req := httptest.NewRequest(http.MethodPost, "/api/users/7", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if got := w.Header().Get("Allow"); got != "GET, DELETE" {
		t.Errorf("unexpected Allow header: %q", got)
	}
}

func TestPipeline_MethodInExportsPassesThrough(t *testing.T) {
	route := &Route{ID: "/api/users/[id]", Pattern: "/api/users/:id", Type: RouteTypeAPI, Exports: RouteExports{Methods: []string{"GET", "DELETE"}}}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	p := buildTestPipeline(t, scan.Routes, scan, ModeProduction)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/7", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an allowed method, got %d", w.Code)
	}
}

func TestPipeline_CacheControlAppliedFromResolvedDirectives(t *testing.T) {
	route := &Route{ID: "/", Pattern: "/", Type: RouteTypePage, Exports: RouteExports{HasCache: true}}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	graph, err := BuildGraph(scan.Routes)
	if err != nil {
		t.Fatal(err)
	}
	maxAge := 60
	cfg := DefaultConfig()
	p := NewPipeline(graph, scan, fakeAdapter{}, fakeRuntime{cache: &CacheDirectives{MaxAge: &maxAge}}, cfg, ModeProduction)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if got := w.Header().Get("Cache-Control"); got != "max-age=60" {
		t.Errorf("unexpected cache-control %q", got)
	}
}

func TestPipeline_NoCacheExportLeavesCacheControlUnset(t *testing.T) {
	route := &Route{ID: "/", Pattern: "/", Type: RouteTypePage}
	scan := &ScanResult{Routes: []*Route{route}, Layouts: map[string]*Layout{}, Middlewares: map[string]*Middleware{}, ErrorBoundaries: map[string]*ErrorBoundary{}}
	p := buildTestPipeline(t, scan.Routes, scan, ModeProduction)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("expected no cache-control header, got %q", got)
	}
}
