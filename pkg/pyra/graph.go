package pyra

import "strings"

// node is one trie level of the Route Graph. Each node has: a map of
// literal-segment children, at most one dynamic child, and at most one
// catch-all child — three distinct slots, not a sorted candidate list, so
// that static-before-dynamic-before-catch-all is structural rather than a
// post-sort.
type node struct {
	static map[string]*node

	dynamic      *node
	dynamicParam string

	catchAll      *node
	catchAllParam string

	route *Route
}

func newNode() *node {
	return &node{static: make(map[string]*node)}
}

// RouteGraph holds the classified routes and exposes lookup by id and by
// URL path via the trie matcher.
type RouteGraph struct {
	root *node
	byID map[string]*Route
}

// NewRouteGraph creates an empty graph.
func NewRouteGraph() *RouteGraph {
	return &RouteGraph{root: newNode(), byID: make(map[string]*Route)}
}

// Insert adds a route's pattern to the trie. Two routes collapsing to the
// same terminal is a construction-time error.
func (g *RouteGraph) Insert(route *Route) error {
	segments := splitSegments(route.Pattern)

	n := g.root
	for i, seg := range segments {
		switch {
		case strings.HasPrefix(seg, "*"):
			param := seg[1:]
			if n.catchAll == nil {
				n.catchAll = newNode()
				n.catchAllParam = param
			} else if n.catchAllParam != param {
				return &GraphError{Pattern: route.Pattern, Message: "conflicting catch-all parameter name at this position"}
			}
			n = n.catchAll
			// Catch-all terminates insertion at the current node even if
			// more segments were somehow present after it.
			_ = i
			goto terminal

		case strings.HasPrefix(seg, ":"):
			param := seg[1:]
			if n.dynamic == nil {
				n.dynamic = newNode()
				n.dynamicParam = param
			} else if n.dynamicParam != param {
				return &GraphError{Pattern: route.Pattern, Message: "conflicting dynamic parameter name at this position"}
			}
			n = n.dynamic

		default:
			child, ok := n.static[seg]
			if !ok {
				child = newNode()
				n.static[seg] = child
			}
			n = child
		}
	}

terminal:
	if n.route != nil {
		return &GraphError{Pattern: route.Pattern, Message: "route already registered for this pattern"}
	}
	n.route = route
	g.byID[route.ID] = route
	return nil
}

// ByID looks up a route by its scanner-assigned id.
func (g *RouteGraph) ByID(id string) (*Route, bool) {
	r, ok := g.byID[id]
	return r, ok
}

// Match resolves a URL path to a route and its bound parameters, after
// path normalization. Matching is case-sensitive.
func (g *RouteGraph) Match(path string) (*Route, map[string]string, bool) {
	path = normalizePath(path)
	segments := splitSegments(path)
	params := make(map[string]string)

	route, ok := g.root.match(segments, 0, params)
	if !ok {
		return nil, nil, false
	}
	return route, params, true
}

func (n *node) match(segments []string, idx int, params map[string]string) (*Route, bool) {
	if idx == len(segments) {
		if n.route != nil {
			return n.route, true
		}
		return nil, false
	}

	seg := segments[idx]

	if child, ok := n.static[seg]; ok {
		if route, ok := child.match(segments, idx+1, params); ok {
			return route, true
		}
	}

	if n.dynamic != nil {
		params[n.dynamicParam] = seg
		if route, ok := n.dynamic.match(segments, idx+1, params); ok {
			return route, true
		}
		delete(params, n.dynamicParam)
	}

	if n.catchAll != nil {
		rest := strings.Join(segments[idx:], "/")
		if n.catchAll.route != nil {
			params[n.catchAllParam] = rest
			return n.catchAll.route, true
		}
	}

	return nil, false
}

func normalizePath(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	if strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// BuildGraph constructs a RouteGraph from a scan result, failing on the
// first construction-time conflict.
func BuildGraph(routes []*Route) (*RouteGraph, error) {
	g := NewRouteGraph()
	for _, r := range routes {
		if err := g.Insert(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// SubstituteParams fills a route pattern's placeholders with concrete
// values, used by SSG prerendering to derive the output URL for a param
// set.
func SubstituteParams(pattern string, params map[string]string) string {
	segments := splitSegments(pattern)
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			out = append(out, params[seg[1:]])
		case strings.HasPrefix(seg, "*"):
			out = append(out, params[seg[1:]])
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}
