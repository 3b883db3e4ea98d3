// Package liveness detects loss of a database connection pool and notifies
// registered listeners exactly once.
package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/gaborage/go-rowkit/logger"
)

const defaultPingTimeout = 5 * time.Second

// PingFunc checks that the pool can still reach the server.
type PingFunc func(ctx context.Context) error

// FatalFunc classifies an error as connection-fatal.
type FatalFunc func(err error) bool

// Watcher tracks whether a pool is still usable. The first fatal error, either
// reported by a failing query or observed by the periodic ping, marks the pool
// as lost and fires every registered callback once.
type Watcher struct {
	logger   logger.Logger
	ping     PingFunc
	isFatal  FatalFunc
	interval time.Duration

	mu        sync.Mutex
	callbacks []func(error)
	lost      error
	stopped   bool

	loopMu sync.Mutex
	stopCh chan struct{}
}

// New creates a watcher. A zero interval disables periodic pinging; a nil
// isFatal treats every reported error as fatal.
func New(log logger.Logger, ping PingFunc, isFatal FatalFunc, interval time.Duration) *Watcher {
	if isFatal == nil {
		isFatal = func(err error) bool { return err != nil }
	}
	return &Watcher{
		logger:   log,
		ping:     ping,
		isFatal:  isFatal,
		interval: interval,
	}
}

// RegisterOnClose adds fn to the callbacks fired on connection loss.
// If the loss already happened fn runs immediately with the loss error.
// Registrations after Stop are ignored.
func (w *Watcher) RegisterOnClose(fn func(error)) {
	if fn == nil {
		return
	}

	w.mu.Lock()
	if w.lost != nil {
		lost := w.lost
		w.mu.Unlock()
		fn(lost)
		return
	}
	if !w.stopped {
		w.callbacks = append(w.callbacks, fn)
	}
	w.mu.Unlock()
}

// Report inspects err and marks the pool lost if it is fatal.
// It returns true when err was fatal.
func (w *Watcher) Report(err error) bool {
	if err == nil || !w.isFatal(err) {
		return false
	}
	w.fire(err)
	return true
}

// Err returns the error that caused the loss, or nil while the pool is usable.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lost
}

func (w *Watcher) fire(err error) {
	w.mu.Lock()
	if w.lost != nil || w.stopped {
		w.mu.Unlock()
		return
	}
	w.lost = err
	callbacks := w.callbacks
	w.callbacks = nil
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Error().Err(err).Msg("Database connection lost")
	}
	for _, fn := range callbacks {
		fn(err)
	}
}

// Start launches the ping loop. It is a no-op without a ping function or interval,
// or when the loop is already running.
func (w *Watcher) Start() {
	if w.ping == nil || w.interval <= 0 {
		return
	}

	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	w.loopMu.Lock()
	defer w.loopMu.Unlock()
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})

	go w.loop(w.interval, w.stopCh)
}

func (w *Watcher) loop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.check(stop) {
				return
			}
		case <-stop:
			return
		}
	}
}

// check pings once and reports whether the loop should end.
func (w *Watcher) check(stop <-chan struct{}) bool {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := w.ping(ctx)
	if err == nil {
		return false
	}

	select {
	case <-stop:
		return true
	default:
	}

	// an unreachable server during a ping counts as lost even when the
	// error itself is not classified as fatal
	w.fire(err)
	return true
}

// Stop ends the ping loop and disables callbacks without firing them.
// It does not wait for an in-flight ping, so callbacks may call Stop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.callbacks = nil
	w.mu.Unlock()

	w.loopMu.Lock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	w.loopMu.Unlock()
}
