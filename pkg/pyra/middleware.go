package pyra

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Compose builds the Next that begins a middleware chain for one request.
// Middleware run outermost-to-innermost; a middleware that returns without
// calling next short-circuits everything inside it.
func Compose(ctx *Context, handler HandlerFunc, middlewares []MiddlewareFunc) Next {
	terminal := func() (*Response, error) {
		return handler(ctx)
	}
	chained := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw := middlewares[i]
		inner := chained
		chained = func() (*Response, error) {
			return mw(ctx, inner)
		}
	}
	return chained
}

// ---------- Built-in middleware ----------
//
// A small stack of logger/recover/cors/security-header middleware built
// directly against pyra.Context.

// Logger writes one line per request to stdout, colorized by status class.
// Color is suppressed when stdout isn't a terminal (piped to a file,
// captured by CI), detected via go-isatty.
func Logger() MiddlewareFunc {
	color.NoColor = !(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	return func(ctx *Context, next Next) (*Response, error) {
		start := ctx.Request.Context().Value(requestStartKey{})
		resp, err := next()
		status := 0
		if resp != nil {
			status = resp.Status
		}
		statusColor := color.New(color.FgGreen)
		switch {
		case status >= 500:
			statusColor = color.New(color.FgRed)
		case status >= 400:
			statusColor = color.New(color.FgYellow)
		}
		var since time.Duration
		if t, ok := start.(time.Time); ok {
			since = time.Since(t)
		}
		fmt.Printf("%s %s %s %s\n",
			ctx.Method(), ctx.Path(), statusColor.Sprintf("%d", status), since)
		return resp, err
	}
}

type requestStartKey struct{}

// Recover converts a panic in the inner chain into a 500 HTTPError rather
// than crashing the server.
func Recover() MiddlewareFunc {
	return func(ctx *Context, next Next) (resp *Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = NewHTTPError(500, fmt.Sprintf("panic: %v", r))
				resp = nil
			}
		}()
		return next()
	}
}

// RequestID stamps a request id into the context store under "requestId"
// if one was not already supplied via the X-Request-Id header.
func RequestID(generate func() string) MiddlewareFunc {
	return func(ctx *Context, next Next) (*Response, error) {
		id := ctx.Request.Header.Get("X-Request-Id")
		if id == "" {
			id = generate()
		}
		ctx.Set("requestId", id)
		resp, err := next()
		if resp != nil {
			resp.Header.Set("X-Request-Id", id)
		}
		return resp, err
	}
}

// CORSOptions configures the CORS middleware.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
}

// CORS adds access-control headers, defaulting to the common GET/POST/PUT/
// DELETE/OPTIONS method set.
func CORS(opts CORSOptions) MiddlewareFunc {
	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = true
	}
	return func(ctx *Context, next Next) (*Response, error) {
		resp, err := next()
		if resp == nil {
			resp = NewResponse(200)
		}
		origin := ctx.Request.Header.Get("Origin")
		if allowed["*"] || allowed[origin] {
			resp.Header.Set("Access-Control-Allow-Origin", origin)
		}
		resp.Header.Set("Access-Control-Allow-Methods", joinComma(methods))
		return resp, err
	}
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// SecureHeaders sets a conservative baseline of security headers for
// production responses.
func SecureHeaders() MiddlewareFunc {
	return func(ctx *Context, next Next) (*Response, error) {
		resp, err := next()
		if resp == nil {
			return resp, err
		}
		resp.Header.Set("X-Content-Type-Options", "nosniff")
		resp.Header.Set("X-Frame-Options", "DENY")
		resp.Header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return resp, err
	}
}
