// Package lifecycle coordinates orderly startup and shutdown of the
// server's long-running pieces, mirroring Signals::sigintHandler's
// close-dispatcher-redis-connections sequence triggered on SIGINT.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bravecorp/pwo-login-server/internal/logging"
)

// Acceptor is the subset of netsrv.Acceptor the shutdown sequence drives.
type Acceptor interface {
	Close() error
}

// Dispatcher is the subset of tasks.Dispatcher the shutdown sequence
// drives.
type Dispatcher interface {
	Shutdown()
}

// Subscriber is the subset of bus.Subscriber the shutdown sequence
// drives.
type Subscriber interface {
	Close() error
}

// Registry is the subset of netsrv.Registry the shutdown sequence drives.
type Registry interface {
	CloseAll()
}

// Supervisor owns the set of components a graceful shutdown must tear
// down in order: stop accepting new connections first, then drain the
// task dispatcher, then the bus subscriber, and only then force-close
// whatever connections are still open. Fields left nil are skipped,
// so callers can build a Supervisor before every dependency exists yet.
type Supervisor struct {
	Acceptor   Acceptor
	Dispatcher Dispatcher
	// DispatcherDone is closed by whatever goroutine runs the
	// dispatcher once its Run call returns, so Shutdown can wait for
	// the queue to finish draining before moving on — mirroring
	// g_dispatcher.join().
	DispatcherDone <-chan struct{}
	Subscriber     Subscriber
	Registry       Registry

	Log logging.Logger

	once sync.Once
}

// New returns an empty Supervisor; callers set its fields as each
// component comes up during startup.
func New(log logging.Logger) *Supervisor {
	if log == nil {
		log = logging.Nop()
	}
	return &Supervisor{Log: log}
}

// WaitForSignal blocks until ctx is cancelled or SIGINT/SIGTERM arrives,
// then runs Shutdown exactly once. Mirrors Signals' async_wait on SIGINT,
// extended to SIGTERM since that's the idiomatic Go equivalent for
// container/orchestrator shutdowns.
func (s *Supervisor) WaitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		s.Log.Log(logging.LevelInfo, "received signal, shutting down", "signal", sig.String())
	}
	s.Shutdown()
}

// Shutdown runs the teardown sequence once, safe to call more than once
// or concurrently with WaitForSignal.
func (s *Supervisor) Shutdown() {
	s.once.Do(s.shutdown)
}

func (s *Supervisor) shutdown() {
	s.Log.Log(logging.LevelInfo, "gracefully stopping...")

	if s.Acceptor != nil {
		if err := s.Acceptor.Close(); err != nil {
			s.Log.Log(logging.LevelWarn, "error closing acceptor", "err", err)
		}
	}

	if s.Dispatcher != nil {
		s.Dispatcher.Shutdown()
		if s.DispatcherDone != nil {
			<-s.DispatcherDone
		}
	}

	if s.Subscriber != nil {
		if err := s.Subscriber.Close(); err != nil {
			s.Log.Log(logging.LevelWarn, "error closing bus subscriber", "err", err)
		}
	}

	if s.Registry != nil {
		s.Registry.CloseAll()
	}
}
