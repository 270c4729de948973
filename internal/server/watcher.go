// Package server watches the configuration file and hot-registers groups
// added to the catalog while the server is running.
package server

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// CatalogWatcher reloads the group catalog when the config file changes.
// Groups may only be added at runtime; removals in the file are ignored
// because groups live for the process lifetime.
type CatalogWatcher struct {
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	path     string
	hub      *Hub
}

// NewCatalogWatcher starts watching the directory containing path. The
// directory rather than the file is watched so editors that replace the
// file on save keep triggering events.
func NewCatalogWatcher(path string, hub *Hub) (*CatalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	cw := &CatalogWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
		path:    filepath.Clean(path),
		hub:     hub,
	}
	go cw.watchLoop()
	log.Printf("Watching %s for group catalog changes", cw.path)
	return cw, nil
}

// Stop stops the watcher. Safe to call more than once.
func (cw *CatalogWatcher) Stop() {
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.watcher.Close()
	})
}

func (cw *CatalogWatcher) watchLoop() {
	// Debounce so rapid successive writes trigger a single reload.
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, cw.reload)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Catalog watcher error: %v", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *CatalogWatcher) reload() {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		log.Printf("Catalog reload failed: %v", err)
		return
	}
	for _, name := range cfg.Groups {
		if info, added := cw.hub.Registry().AddGroup(name); added {
			log.Printf("Catalog reload: added group %q (ID %d)", info.Name, info.ID)
		}
	}
}
