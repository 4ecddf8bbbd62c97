// Package devserver implements Pyra's development server: it rescans
// routes on filesystem change and serves every request straight through
// the same request pipeline the production server uses. The Bundler
// passed to New is held on the Server but never called: route modules
// are executed only through the ModuleRuntime, with no per-request
// compile step and no compile cache. Graceful signal-driven
// shutdown is combined with fsnotify-driven rebuilds, the pattern
// dev-mode watchers commonly use.
package devserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pyra-dev/pyra/pkg/pyra"
)

// Server is Pyra's dev-mode HTTP server: fsnotify watch + live rescan,
// in front of a pyra.Pipeline.
type Server struct {
	cfg     *pyra.Config
	adapter pyra.Adapter
	runtime pyra.ModuleRuntime
	bundler pyra.Bundler

	mu       sync.RWMutex
	pipeline *pyra.Pipeline

	watcher *fsnotify.Watcher
	httpSrv *http.Server
}

// New creates a dev Server. The initial scan runs immediately so the
// first request does not race the watcher's startup.
func New(cfg *pyra.Config, adapter pyra.Adapter, runtime pyra.ModuleRuntime, bundler pyra.Bundler) (*Server, error) {
	s := &Server{cfg: cfg, adapter: adapter, runtime: runtime, bundler: bundler}
	if err := s.rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// rescan rebuilds the route graph from disk and swaps it in atomically,
// so in-flight requests keep using the previous graph until this one is
// fully built.
func (s *Server) rescan() error {
	scanner := pyra.NewScanner(s.cfg.RoutesDir, s.adapterExtensions())
	scan, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("devserver: scan: %w", err)
	}
	graph, err := pyra.BuildGraph(scan.Routes)
	if err != nil {
		return fmt.Errorf("devserver: route graph: %w", err)
	}

	pipeline := pyra.NewPipeline(graph, scan, s.adapter, s.runtime, s.cfg, pyra.ModeDevelopment,
		pyra.Recover(), pyra.Logger(), pyra.RequestID(defaultRequestID))

	s.mu.Lock()
	s.pipeline = pipeline
	s.mu.Unlock()
	return nil
}

func (s *Server) adapterExtensions() []string {
	if s.adapter == nil {
		return nil
	}
	return s.adapter.FileExtensions()
}

// ServeHTTP dispatches to the currently active pipeline.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p := s.pipeline
	s.mu.RUnlock()
	p.ServeHTTP(w, r)
}

// watch starts an fsnotify watcher over the routes directory and
// triggers a rescan on any write/create/remove/rename event, debounced
// slightly so a batch of editor saves only causes one rescan.
func (s *Server) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("devserver: create watcher: %w", err)
	}
	s.watcher = watcher

	if err := addRecursive(watcher, s.cfg.RoutesDir); err != nil {
		return err
	}

	go func() {
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(100*time.Millisecond, func() {
					if err := s.rescan(); err != nil {
						log.Printf("devserver: rescan failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("devserver: watcher error: %v", err)
			}
		}
	}()

	return nil
}

// ListenAndServe starts the watcher and the HTTP server, blocking until
// a shutdown signal triggers graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.watch(); err != nil {
		return err
	}
	defer s.watcher.Close()

	s.httpSrv = &http.Server{
		Addr:    s.cfg.ListenAddress(),
		Handler: s,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("pyra dev server listening on http://%s\n", s.cfg.ListenAddress())
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("devserver: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// addRecursive walks dir and adds every subdirectory to the watcher,
// since fsnotify only watches one directory level at a time.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func defaultRequestID() string {
	return fmt.Sprintf("dev-%d", time.Now().UnixNano())
}
