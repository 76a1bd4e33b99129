// Package shutdown implements the single cancellation-token coordinator:
// SIGINT/SIGTERM fires the root context once, and a repeated signal
// force-exits rather than waiting on a stuck drain.
// Grounded on moby/moby's cmd/dockerd/trap package (its behavior is pinned
// by cmd/dockerd/trap/trap_linux_test.go: a second signal exits with code
// 128+signal).
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Root returns a context canceled on SIGINT/SIGTERM, and a cleanup func the
// caller must invoke once the first shutdown signal has been handled (it
// stops listening for further signals). If a second signal arrives before
// the process exits on its own, Root force-exits with code 128+signal,
// matching trap.Trap's "don't hang on a stuck drain" behavior.
func Root(log *logrus.Entry) (ctx context.Context, stop func()) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	var once sync.Once
	go func() {
		sig, ok := <-ch
		if !ok {
			return
		}
		log.WithField("signal", sig).Info("shutdown signal received, draining in-flight records")
		cancel()

		sig2, ok := <-ch
		if !ok {
			return
		}
		log.WithField("signal", sig2).Warn("second shutdown signal received, forcing exit")
		if n, ok := sig2.(syscall.Signal); ok {
			os.Exit(128 + int(n))
		}
		os.Exit(1)
	}()

	stop = func() {
		once.Do(func() {
			signal.Stop(ch)
			close(ch)
		})
		cancel()
	}
	return ctx, stop
}
