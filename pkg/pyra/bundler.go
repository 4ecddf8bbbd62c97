package pyra

import "context"

// Import is one module specifier a compiled file depends on, as reported
// by the bundler.
type Import struct {
	Specifier string
	External  bool
}

// OutputFile is one emitted artifact and its source mapping back to a
// route or layout, used to correlate client and server builds by entry
// name.
type OutputFile struct {
	EntryName string
	Path      string // output-relative path, e.g. "assets/page-a1b2c3.js"
	Imports   []Import
}

// BuildMetadata is everything the orchestrator needs out of one bundler
// pass to assemble the manifest.
type BuildMetadata struct {
	Outputs []OutputFile
}

// BuildOptions configures a multi-entry production build.
type BuildOptions struct {
	// Entries maps an entry name (typically a route id) to its source
	// file path.
	Entries map[string]string

	OutDir string

	// Target distinguishes the client bundle pass from the server bundle
	// pass; the contract does not prescribe its values beyond "opaque
	// string the bundler understands".
	Target string

	Mode Mode
}

// CompileResult is what a dev-mode single-file compile returns.
type CompileResult struct {
	Code string
	// Map is an optional sourcemap, serialized however the bundler likes.
	Map string
}

// Bundler is the opaque pluggable contract the core drives a JS/TS build
// tool through: the core knows nothing about esbuild, webpack, or any
// other concrete tool, only this interface. No filesystem, child-process,
// or build-tool coupling lives inside the core itself.
type Bundler interface {
	// CompileFile compiles a single source file on demand, for the dev
	// server's request-time compilation path.
	CompileFile(ctx context.Context, path string) (*CompileResult, error)

	// Build runs a full multi-entry production build and returns the
	// metadata needed to correlate outputs with routes.
	Build(ctx context.Context, opts BuildOptions) (*BuildMetadata, error)
}
