package rulepack

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events editors emit on save
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a rule file into a Store when it changes on disk.
// It watches the parent directory so atomic rename-over saves are seen.
// A file that fails to parse is logged and the serving set is kept
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	onReload func(rs *RuleSet, err error)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
}

// WatchOption configures a Watcher
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a reload
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook runs fn after every reload attempt
func WithReloadHook(fn func(rs *RuleSet, err error)) WatchOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher prepares a watcher for path; call Start to begin
func NewWatcher(store *Store, path string, opts ...WatchOption) (*Watcher, error) {
	if store == nil || path == "" {
		return nil, perr.InvalidArgf("rulepack: watcher needs a store and a path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "rulepack: watch path")
	}
	w := &Watcher{
		store:    store,
		path:     abs,
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Start begins watching; non-blocking. A stopped watcher may be started again
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "rulepack: fsnotify")
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "rulepack: watch %s", filepath.Dir(w.path))
	}
	w.fsw = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx, fsw, w.stopCh, w.doneCh)
	logger.Named("rulepack").Info().Str("path", w.path).Msg("watching rule file")
	return nil
}

// Stop ends the watch loop and waits for it; safe to call more than once
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fsw, stop, done := w.fsw, w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stop)
	<-done
	_ = fsw.Close()
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := logger.Named("rulepack")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("rule file event")
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("rule watcher error")
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	log := logger.Named("rulepack")
	prev, _ := w.store.Load()
	rs, err := w.store.ReloadFile(w.path)
	switch {
	case err != nil:
		ev := log.Error().Err(err).Str("path", w.path)
		if prev != nil {
			ev = ev.Str("serving", prev.Version)
		}
		ev.Msg("rule reload rejected, keeping serving set")
	default:
		log.Info().Str("path", w.path).Str("rule_set", rs.Version).Int("disabled", len(rs.Failures)).Msg("rule set reloaded")
	}
	if w.onReload != nil {
		w.onReload(rs, err)
	}
}
