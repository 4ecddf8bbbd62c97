// Package noopruntime is the default pyra.ModuleRuntime: it never
// actually executes a compiled route module, since Pyra ships no
// embedded JS engine. It exists so the CLI, dev server, and tests have a
// ModuleRuntime to wire in before a real execution bridge (a node
// subprocess, goja, a V8 isolate pool — whatever a deployment chooses)
// is plugged in.
package noopruntime

import (
	"context"
	"fmt"

	"github.com/pyra-dev/pyra/pkg/pyra"
)

// Runtime satisfies pyra.ModuleRuntime with empty props, a 501 on every
// API call, and an error-boundary fragment that is the error text in a
// <pre> element.
type Runtime struct{}

// New creates a no-op Runtime.
func New() *Runtime {
	return &Runtime{}
}

func (Runtime) LoadProps(_ context.Context, _ *pyra.Route, _ *pyra.Context) (any, error) {
	return nil, nil
}

func (Runtime) HandleAPI(_ context.Context, route *pyra.Route, _ *pyra.Context) (*pyra.Response, error) {
	return nil, pyra.NewHTTPError(501, fmt.Sprintf("no module runtime configured to execute %s", route.FilePath))
}

func (Runtime) RunMiddleware(_ context.Context, _ string, _ *pyra.Context, next pyra.Next) (*pyra.Response, error) {
	return next()
}

func (Runtime) RenderErrorBoundary(_ context.Context, _ string, httpErr *pyra.HTTPError, _ *pyra.Context) (*pyra.RenderResult, error) {
	return &pyra.RenderResult{HTML: "<pre>" + httpErr.Error() + "</pre>"}, nil
}

func (Runtime) ResolveCache(_ context.Context, _ *pyra.Route, _ *pyra.Context) (*pyra.CacheDirectives, error) {
	return nil, nil
}

var _ pyra.ModuleRuntime = Runtime{}
