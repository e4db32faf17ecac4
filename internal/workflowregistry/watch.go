package workflowregistry

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
)

// DefaultDebounce matches the manifest-reload debounce the pack's skills
// manager uses for its own fsnotify-driven hot reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher refreshes a Registry's manifests whenever dir changes, without
// requiring a process restart (spec §4.8, domain-stack dependency table:
// fsnotify "watches the configured workflow-graph directories and
// refreshes the registry when industry graph definitions are added/
// changed"). Grounded on the pack's skills.Manager debounced watch loop.
type Watcher struct {
	registry *Registry
	dir      string
	debounce time.Duration
	logger   telemetry.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher builds a Watcher for registry over dir. A zero debounce
// defaults to DefaultDebounce, and a nil logger defaults to noop.
func NewWatcher(registry *Registry, dir string, debounce time.Duration, logger telemetry.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Watcher{registry: registry, dir: dir, debounce: debounce, logger: logger}
}

// Start begins watching dir in a background goroutine. It is a no-op if
// already started.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Stop stops watching and waits for the background goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fw != nil {
		_ = fw.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if skipped, err := w.registry.LoadManifests(w.dir); err != nil {
				w.logger.Warn(context.Background(), "workflowregistry: manifest reload failed", "error", err.Error())
			} else if len(skipped) > 0 {
				w.logger.Warn(context.Background(), "workflowregistry: manifests with no registered factory", "names", skipped)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(context.Background(), "workflowregistry: watch error", "error", err.Error())
		}
	}
}
