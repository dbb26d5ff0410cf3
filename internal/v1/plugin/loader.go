package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Module is the symbol every plugin .so must export: `var Module plugin.Module`.
// Register is called once, right after (re)load, with the Bus the module
// should subscribe against.
type Module interface {
	Name() string
	Register(b *Bus) error
}

// loadedModule tracks a module's file mtime so Loader can detect a rebuild.
type loadedModule struct {
	path    string
	modTime time.Time
	module  Module
}

// Loader watches a directory of .so files and (re)loads a module whenever
// its mtime changes — the original text-file-polling idiom of the legacy
// monitor loader, applied here to plugin binaries instead of file-watching
// (§9: hot-reload stays mtime-polled rather than adopting fsnotify).
type Loader struct {
	mu      sync.Mutex
	dir     string
	bus     *Bus
	log     *zap.Logger
	loaded  map[string]*loadedModule
	stop    chan struct{}
	stopped bool
}

// NewLoader returns a Loader that will load .so files from dir into bus.
func NewLoader(dir string, bus *Bus, log *zap.Logger) *Loader {
	return &Loader{
		dir:    dir,
		bus:    bus,
		log:    log,
		loaded: make(map[string]*loadedModule),
		stop:   make(chan struct{}),
	}
}

// PollOnce scans dir once, loading any new .so file and reloading any whose
// mtime has advanced since it was last loaded.
func (l *Loader) PollOnce() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("plugin: reading %s: %w", l.dir, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".so" {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			l.log.Warn("plugin: stat failed", zap.String("path", path), zap.Error(err))
			continue
		}
		existing, ok := l.loaded[path]
		if ok && !info.ModTime().After(existing.modTime) {
			continue
		}
		mod, err := l.load(path)
		if err != nil {
			l.log.Error("plugin: load failed", zap.String("path", path), zap.Error(err))
			continue
		}
		l.loaded[path] = &loadedModule{path: path, modTime: info.ModTime(), module: mod}
		l.log.Info("plugin: loaded module", zap.String("name", mod.Name()), zap.String("path", path))
	}
	return nil
}

func (l *Loader) load(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: opening %s: %w", path, err)
	}
	sym, err := p.Lookup("Module")
	if err != nil {
		return nil, fmt.Errorf("plugin: %s missing Module symbol: %w", path, err)
	}
	// Lookup yields a *Module for an exported `var Module plugin.Module`.
	var mod Module
	switch s := sym.(type) {
	case *Module:
		mod = *s
	case Module:
		mod = s
	}
	if mod == nil {
		return nil, fmt.Errorf("plugin: %s's Module symbol does not implement plugin.Module", path)
	}
	if err := mod.Register(l.bus); err != nil {
		return nil, fmt.Errorf("plugin: %s Register failed: %w", path, err)
	}
	return mod, nil
}

// Run polls dir every interval until Stop is called.
func (l *Loader) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := l.PollOnce(); err != nil {
				l.log.Warn("plugin: poll failed", zap.Error(err))
			}
		case <-l.stop:
			return
		}
	}
}

// Stop ends a running Run loop. Idempotent.
func (l *Loader) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.stop)
}
