package pyra

// ResolveRenderMode applies render-mode precedence: an exported `render`
// literal wins outright; otherwise a truthy `prerender` export is
// treated as ssg; otherwise the route falls back to the global default
// (itself defaulting to ssr).
func ResolveRenderMode(exports RouteExports, globalDefault RenderMode) RenderMode {
	if exports.HasRender && exports.RenderValue != "" {
		switch RenderMode(exports.RenderValue) {
		case RenderSSR, RenderSSG, RenderSPA:
			return RenderMode(exports.RenderValue)
		}
	}
	if exports.HasPrerender {
		return RenderSSG
	}
	if globalDefault != "" {
		return globalDefault
	}
	return RenderSSR
}
