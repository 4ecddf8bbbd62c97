// Package templadapter is a concrete pyra.Adapter built on
// github.com/a-h/templ, for projects that write pages as templ
// components instead of compiling a separate TS/JS toolchain. It renders
// a single templ.Component into a buffer and returns the HTML string,
// through the three-operation contract pyra's core renders any UI
// library through.
package templadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/a-h/templ"
	"github.com/pyra-dev/pyra/pkg/pyra"
)

// ComponentFunc builds a templ.Component for one route from the props its
// load() export produced.
type ComponentFunc func(props any) templ.Component

// Adapter implements pyra.Adapter by looking up a route's registered
// ComponentFunc and rendering it with templ's buffer-based Render.
type Adapter struct {
	mu         sync.RWMutex
	components map[string]ComponentFunc
	docTitle   string
}

// New creates an empty templ Adapter. docTitle is used as the default
// <title> when a DocumentShellRequest does not override it.
func New(docTitle string) *Adapter {
	if docTitle == "" {
		docTitle = "Pyra"
	}
	return &Adapter{components: make(map[string]ComponentFunc), docTitle: docTitle}
}

// Register binds a route id to the templ component that renders it. Called
// at startup, once per page route that opts into this adapter.
func (a *Adapter) Register(routeID string, fn ComponentFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components[routeID] = fn
}

func (a *Adapter) Name() string { return "templ" }

func (a *Adapter) FileExtensions() []string { return []string{"templ"} }

// RenderToHTML implements pyra.Adapter.
func (a *Adapter) RenderToHTML(ctx context.Context, req pyra.RenderContext) (*pyra.RenderResult, error) {
	a.mu.RLock()
	fn, ok := a.components[req.RouteID]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("templadapter: no component registered for route %q", req.RouteID)
	}

	var buf bytes.Buffer
	if err := fn(req.Props).Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("templadapter: render %s: %w", req.RouteID, err)
	}
	return &pyra.RenderResult{HTML: buf.String()}, nil
}

// GetDocumentShell implements pyra.Adapter.
func (a *Adapter) GetDocumentShell(_ context.Context, req pyra.DocumentShellRequest) (string, error) {
	title := req.Title
	if title == "" {
		title = a.docTitle
	}
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(title)
	b.WriteString("</title>\n")
	b.WriteString(req.HeadExtra)
	b.WriteString("\n</head>\n<body>\n<div id=\"pyra-root\">")
	b.WriteString(req.BodyHTML)
	b.WriteString("</div>\n")
	if req.HydrationScript != "" {
		b.WriteString("<script id=\"pyra-props\" type=\"application/json\">")
		b.WriteString(req.HydrationScript)
		b.WriteString("</script>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// GetHydrationScript implements pyra.Adapter by JSON-encoding props for a
// client runtime to pick up from the #pyra-props script tag. The caller
// (pyra's pipeline) is responsible for running pyra.EscapeForInlineScript
// over the result before embedding it.
func (a *Adapter) GetHydrationScript(props any) (string, error) {
	if props == nil {
		return "null", nil
	}
	out, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("templadapter: marshal props: %w", err)
	}
	return string(out), nil
}

var _ pyra.Adapter = (*Adapter)(nil)
