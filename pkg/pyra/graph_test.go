package pyra

import "testing"

func mustInsert(t *testing.T, g *RouteGraph, id, pattern string) {
	t.Helper()
	if err := g.Insert(&Route{ID: id, Pattern: pattern}); err != nil {
		t.Fatalf("insert %s: %v", pattern, err)
	}
}

func TestRouteGraph_StaticBeatsDynamic(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/blog/[slug]", "/blog/:slug")
	mustInsert(t, g, "/blog/new", "/blog/new")

	route, params, ok := g.Match("/blog/new")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.ID != "/blog/new" {
		t.Errorf("expected static route to win, got %s", route.ID)
	}
	if len(params) != 0 {
		t.Errorf("expected no params bound for the static match, got %v", params)
	}
}

func TestRouteGraph_DynamicBeatsCatchAll(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/docs/[...path]", "/docs/*path")
	mustInsert(t, g, "/docs/[page]", "/docs/:page")

	route, params, ok := g.Match("/docs/intro")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.ID != "/docs/[page]" {
		t.Errorf("expected dynamic segment to win over catch-all, got %s", route.ID)
	}
	if params["page"] != "intro" {
		t.Errorf("expected page=intro, got %v", params)
	}
}

func TestRouteGraph_CatchAllJoinsRemainder(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/docs/[...path]", "/docs/*path")

	route, params, ok := g.Match("/docs/a/b/c")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.ID != "/docs/[...path]" {
		t.Errorf("expected catch-all route, got %s", route.ID)
	}
	if params["path"] != "a/b/c" {
		t.Errorf("expected path=a/b/c, got %q", params["path"])
	}
}

func TestRouteGraph_NoMatch(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/about", "/about")

	if _, _, ok := g.Match("/missing"); ok {
		t.Error("expected no match for an unregistered path")
	}
}

func TestRouteGraph_TrailingSlashNormalized(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/about", "/about")

	route, _, ok := g.Match("/about/")
	if !ok || route.ID != "/about" {
		t.Errorf("expected trailing slash to normalize to /about, got %v ok=%v", route, ok)
	}
}

func TestRouteGraph_ConflictingDynamicParamName(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/users/[id]", "/users/:id")

	err := g.Insert(&Route{ID: "/users/[name]", Pattern: "/users/:name"})
	if err == nil {
		t.Fatal("expected a conflict error for a different dynamic param name at the same position")
	}
}

func TestRouteGraph_DuplicatePatternRejected(t *testing.T) {
	g := NewRouteGraph()
	mustInsert(t, g, "/about", "/about")

	err := g.Insert(&Route{ID: "/about-2", Pattern: "/about"})
	if err == nil {
		t.Fatal("expected duplicate pattern registration to fail")
	}
}

func TestSubstituteParams(t *testing.T) {
	got := SubstituteParams("/blog/:slug", map[string]string{"slug": "hello-world"})
	if got != "/blog/hello-world" {
		t.Errorf("got %q", got)
	}

	got = SubstituteParams("/docs/*path", map[string]string{"path": "a/b"})
	if got != "/docs/a/b" {
		t.Errorf("got %q", got)
	}

	if got := SubstituteParams("/", nil); got != "/" {
		t.Errorf("expected root pattern to substitute to /, got %q", got)
	}
}
