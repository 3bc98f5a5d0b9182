// Package reload implements the generic poll-and-swap loop of §4.7: one
// goroutine per watched artifact that checks a modification timestamp at
// a configured interval, reloads and validates on change, and swaps the
// active state only on success. It generalizes the teacher's
// ruleRefreshRoutine/cacheCleanupRoutine ticker-and-select pattern
// (internal/engine/rule_engine.go in the source tree) from two hardcoded
// routines into one reusable type. config.Store.Reload, rules.Engine.LoadRules
// and pattern.Matcher.LoadFiles fit its LoadFunc shape; no package in this
// module starts a Watcher itself, so wiring one up is left to the caller.
package reload

import (
	"log/slog"
	"sync"
	"time"
)

// CheckFunc reports the artifact's current modification time.
type CheckFunc func() (time.Time, error)

// LoadFunc performs the reload-and-validate-and-swap step. It is
// responsible for its own atomicity; Watcher only decides when to call it.
type LoadFunc func() error

// Observer is notified after every successful reload.
type Observer func()

// Watcher runs a single poll loop for one artifact (§4.7). Disabled by
// default; Start/Stop are idempotent and concurrency-safe.
type Watcher struct {
	name     string
	check    CheckFunc
	load     LoadFunc
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	lastMod time.Time
}

// New constructs a disabled Watcher for one artifact.
func New(name string, check CheckFunc, load LoadFunc, observer Observer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{name: name, check: check, load: load, observer: observer, logger: logger}
}

// Start begins polling at interval. Calling Start while already running is
// a no-op (idempotent enable, §4.7).
func (w *Watcher) Start(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	if mt, err := w.check(); err == nil {
		w.lastMod = mt
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.loop(interval, w.stopCh, w.doneCh)
}

// Stop halts the loop and blocks until it has exited, guaranteeing the
// loop stops within one poll interval (§4.7). Calling Stop while already
// stopped is a no-op (idempotent disable).
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (w *Watcher) loop(interval time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	mt, err := w.check()
	if err != nil {
		w.logger.Warn("reload watcher failed to stat artifact", "artifact", w.name, "error", err)
		return
	}
	if !mt.After(w.lastMod) {
		return
	}

	if err := w.load(); err != nil {
		w.logger.Warn("reload failed, retaining previous version", "artifact", w.name, "error", err)
		return
	}

	w.lastMod = mt
	w.logger.Info("reloaded artifact", "artifact", w.name)
	if w.observer != nil {
		w.observer()
	}
}
