// Package config implements the process-wide hot-reloadable configuration
// store: an atomically-swappable snapshot fed either by a
// single polled file or a polled fragment directory.
package config

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrUnreadable is wrapped around the underlying cause when a reload
// attempt fails; the previous snapshot is kept in that case.
var ErrUnreadable = errors.New("config: unable to read configuration")

// Store holds a live, atomically-swappable snapshot of T and fans out a
// "changed" notification after every successful reload.
type Store[T any] struct {
	ptr atomic.Pointer[T]

	mu      sync.Mutex
	watchCh chan struct{}
}

// NewStore creates a store pre-seeded with initial.
func NewStore[T any](initial *T) *Store[T] {
	s := &Store[T]{watchCh: make(chan struct{})}
	s.ptr.Store(initial)
	return s
}

// Load returns the current snapshot. The returned pointer is never mutated
// in place; callers may keep it across subsequent reloads.
func (s *Store[T]) Load() *T {
	return s.ptr.Load()
}

// Watch returns a channel that is closed the next time a reload succeeds.
// Callers re-invoke Watch after it fires to keep observing future
// reloads - the same idiom as a single-shot context.Done().
func (s *Store[T]) Watch() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchCh
}

// swap installs v as the current snapshot and notifies any Watch callers.
func (s *Store[T]) swap(v *T) {
	s.ptr.Store(v)
	s.mu.Lock()
	closed := s.watchCh
	s.watchCh = make(chan struct{})
	s.mu.Unlock()
	close(closed)
}

// FileReloadInterval is how often a single config file's mtime is polled.
const FileReloadInterval = 10 * time.Second

// WatchFile polls path's mtime every interval (FileReloadInterval in
// production) and reparses its contents with parse whenever the mtime
// changes, swapping the result into store. Parse failures are logged and
// leave the previous snapshot in place. WatchFile blocks until ctx is
// canceled; call it in its own goroutine.
func WatchFile[T any](ctx context.Context, path string, parse func([]byte) (*T, error), store *Store[T], interval time.Duration, log *logrus.Entry) error {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("config_path", path)

	var lastMod time.Time
	reload := func() {
		info, err := os.Stat(path)
		if err != nil {
			log.WithError(err).Error("unable to stat configuration file")
			return
		}
		if !info.ModTime().After(lastMod) {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(errors.Wrap(err, "read config file")).Error("unable to read configuration file")
			return
		}
		cfg, err := parse(data)
		if err != nil {
			log.WithError(errors.Wrap(err, "parse config file")).Error("unable to parse configuration file")
			return
		}
		lastMod = info.ModTime()
		store.swap(cfg)
		log.Debug("reloaded configuration")
	}

	reload()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reload()
		}
	}
}
