// Command pyra is Pyra's minimal CLI entry point: dev, build, and start.
// It does not generate projects, manage cloud deployments, or spawn a
// child go-build process — Pyra's runtime has no Go compilation step to
// hot-reload, only route modules a bundler compiles, so the dev server
// reloads in-process.
package main

import "github.com/pyra-dev/pyra/cmd/pyra/commands"

func main() {
	commands.Execute()
}
