package bus

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bravecorp/pwo-login-server/internal/events"
	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/script"
	"github.com/bravecorp/pwo-login-server/internal/script/fakeengine"
	"github.com/bravecorp/pwo-login-server/internal/tasks"
)

func newTestSubscriber(registry *events.Registry, dispatcher *tasks.Dispatcher) *Subscriber {
	return &Subscriber{dispatcher: dispatcher, registry: registry, log: logging.Nop()}
}

func TestHandleMessageEmitsOnRedisMessage(t *testing.T) {
	engine := fakeengine.New()
	registry := events.NewRegistry(engine)
	dispatcher := tasks.NewDispatcher()

	m := registry.NewModule("session-bridge", "/modules/session-bridge")
	if err := registry.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}

	gotCh := make(chan []any, 1)
	cb := engine.Register(func(env script.SandboxEnv, args ...any) {
		gotCh <- args
	})
	m.Connect("onRedisMessage", cb, "")

	go dispatcher.Run()
	defer dispatcher.Shutdown()

	s := newTestSubscriber(registry, dispatcher)
	s.handleMessage(&redis.Message{Channel: "account-42", Payload: "hello"})

	select {
	case got := <-gotCh:
		if len(got) != 3 || got[0] != "account-42" || got[1] != "message" || got[2] != "hello" {
			t.Fatalf("got args = %v, want [\"account-42\" \"message\" \"hello\"]", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("onRedisMessage was not emitted within timeout")
	}
}

func TestHandleMessageIgnoresEmptyChannelOrPayload(t *testing.T) {
	engine := fakeengine.New()
	registry := events.NewRegistry(engine)
	dispatcher := tasks.NewDispatcher()

	go dispatcher.Run()
	defer dispatcher.Shutdown()

	s := newTestSubscriber(registry, dispatcher)
	s.handleMessage(&redis.Message{Channel: "", Payload: "x"})
	s.handleMessage(&redis.Message{Channel: "x", Payload: ""})

	if calls := engine.Calls(); len(calls) != 0 {
		t.Fatalf("expected no callback invocations, got %d", len(calls))
	}
}
