package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/bravecorp/pwo-login-server/internal/logging"
)

type recordingAcceptor struct{ closed bool }

func (a *recordingAcceptor) Close() error { a.closed = true; return nil }

type recordingDispatcher struct{ shutdown bool }

func (d *recordingDispatcher) Shutdown() { d.shutdown = true }

type recordingSubscriber struct{ closed bool }

func (s *recordingSubscriber) Close() error { s.closed = true; return nil }

type recordingRegistry struct{ closedAll bool }

func (r *recordingRegistry) CloseAll() { r.closedAll = true }

func TestShutdownTearsDownEveryComponentOnce(t *testing.T) {
	acceptor := &recordingAcceptor{}
	dispatcher := &recordingDispatcher{}
	subscriber := &recordingSubscriber{}
	registry := &recordingRegistry{}
	done := make(chan struct{})
	close(done)

	s := New(logging.Nop())
	s.Acceptor = acceptor
	s.Dispatcher = dispatcher
	s.DispatcherDone = done
	s.Subscriber = subscriber
	s.Registry = registry

	s.Shutdown()
	s.Shutdown() // second call must be a no-op, not a double-close

	if !acceptor.closed || !dispatcher.shutdown || !subscriber.closed || !registry.closedAll {
		t.Fatalf("not every component was torn down: %+v %+v %+v %+v", acceptor, dispatcher, subscriber, registry)
	}
}

func TestShutdownSkipsNilComponents(t *testing.T) {
	s := New(logging.Nop())
	s.Shutdown() // must not panic with every field left nil
}

func TestWaitForSignalReturnsOnContextCancel(t *testing.T) {
	acceptor := &recordingAcceptor{}
	s := New(logging.Nop())
	s.Acceptor = acceptor

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		s.WaitForSignal(ctx)
		close(doneCh)
	}()

	cancel()

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitForSignal did not return after context cancellation")
	}

	if !acceptor.closed {
		t.Fatalf("expected Shutdown to run after context cancellation")
	}
}
