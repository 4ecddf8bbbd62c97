// Package passthrough is a reference pyra.Bundler that reads source
// files verbatim instead of invoking a real JS/TS toolchain. It exists so
// the core's request pipeline and build orchestrator can be exercised
// end-to-end in tests without a node/esbuild dependency.
package passthrough

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pyra-dev/pyra/pkg/pyra"
	"golang.org/x/sync/singleflight"
)

// Bundler implements pyra.Bundler by copying each entry's source verbatim
// to the output directory under a content-hashed name, and serving
// CompileFile results straight from disk.
type Bundler struct {
	group singleflight.Group
}

// New creates a passthrough Bundler.
func New() *Bundler {
	return &Bundler{}
}

// CompileFile implements pyra.Bundler. At most one compile runs per path
// at a time; concurrent dev-server requests for the same file share the
// result instead of re-reading it.
func (b *Bundler) CompileFile(_ context.Context, path string) (*pyra.CompileResult, error) {
	v, err, _ := b.group.Do(path, func() (any, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("passthrough: read %s: %w", path, err)
		}
		return &pyra.CompileResult{Code: string(src)}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pyra.CompileResult), nil
}

// Build implements pyra.Bundler. Each entry is copied to
// OutDir/assets/<entryName>-<hash>.js so the output still exercises the
// manifest's hashed-asset caching convention even without a real
// bundler.
func (b *Bundler) Build(_ context.Context, opts pyra.BuildOptions) (*pyra.BuildMetadata, error) {
	assetsDir := filepath.Join(opts.OutDir, "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("passthrough: mkdir %s: %w", assetsDir, err)
	}

	meta := &pyra.BuildMetadata{}
	for name, srcPath := range opts.Entries {
		src, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, fmt.Errorf("passthrough: read entry %s (%s): %w", name, srcPath, err)
		}

		hash := contentHash(src)
		outName := fmt.Sprintf("%s-%s.js", sanitizeName(name), hash)
		outPath := filepath.Join(assetsDir, outName)
		if err := os.WriteFile(outPath, src, 0o644); err != nil {
			return nil, fmt.Errorf("passthrough: write %s: %w", outPath, err)
		}

		rel, err := filepath.Rel(opts.OutDir, outPath)
		if err != nil {
			rel = outPath
		}
		meta.Outputs = append(meta.Outputs, pyra.OutputFile{
			EntryName: name,
			Path:      filepath.ToSlash(rel),
		})
	}
	return meta, nil
}

func contentHash(src []byte) string {
	sum := sha1.Sum(src)
	return hex.EncodeToString(sum[:])[:8]
}

func sanitizeName(name string) string {
	out := make([]byte, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, byte(r))
		default:
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "entry"
	}
	return string(out)
}

var _ pyra.Bundler = (*Bundler)(nil)
