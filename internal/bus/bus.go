// Package bus is the out-of-band message bus bridging Redis pub/sub to
// the dispatcher: Publisher sends messages other services will receive,
// and Subscriber turns incoming "message" frames into dispatcher tasks
// that emit onRedisMessage, the same shape RedisSubscriber::threadMain
// hands off to g_dispatcher.addTask.
package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bravecorp/pwo-login-server/internal/events"
	"github.com/bravecorp/pwo-login-server/internal/logging"
	"github.com/bravecorp/pwo-login-server/internal/tasks"
)

// Publisher sends messages to a channel other services subscribe to.
// go-redis/v9 replaces hiredis's redisContext + redisCommand("PUBLISH
// ...") pair with a single client call.
type Publisher struct {
	client *redis.Client
}

// NewPublisher wraps an already-dialed client.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends data on channel, mirroring RedisPublisher::publish.
func (p *Publisher) Publish(ctx context.Context, channel, data string) error {
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", channel, err)
	}
	return nil
}

// Subscriber reads messages off one or more channels and turns each into
// a dispatcher task that emits onRedisMessage to every positional
// subscriber, with the channel name as the first argument followed by the
// ("message", payload) pair.
type Subscriber struct {
	client     *redis.Client
	dispatcher *tasks.Dispatcher
	registry   *events.Registry
	log        logging.Logger

	pubsub *redis.PubSub
}

// NewSubscriber wraps an already-dialed client, ready to Subscribe and
// then Run.
func NewSubscriber(client *redis.Client, dispatcher *tasks.Dispatcher, registry *events.Registry, log logging.Logger) *Subscriber {
	if log == nil {
		log = logging.Nop()
	}
	return &Subscriber{client: client, dispatcher: dispatcher, registry: registry, log: log}
}

// Subscribe opens the subscription to the given channels. Call it once
// before Run.
func (s *Subscriber) Subscribe(ctx context.Context, channels ...string) error {
	s.pubsub = s.client.Subscribe(ctx, channels...)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("bus: subscribe: %w", err)
	}
	return nil
}

// Run reads messages until ctx is cancelled, enqueueing an
// onRedisMessage dispatcher task per message. Intended to run on its own
// goroutine, the Go equivalent of RedisSubscriber's dedicated thread.
func (s *Subscriber) Run(ctx context.Context) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(msg)
		}
	}
}

func (s *Subscriber) handleMessage(msg *redis.Message) {
	if msg.Channel == "" {
		s.log.Log(logging.LevelError, "bus message missing channel")
		return
	}
	if msg.Payload == "" {
		s.log.Log(logging.LevelError, "bus message missing payload", "channel", msg.Channel)
		return
	}

	channel, payload := msg.Channel, msg.Payload
	s.dispatcher.Add(tasks.New(func() {
		s.registry.EmitNoRet("onRedisMessage", "", channel, "message", payload)
	}))
}

// Close releases the subscription.
func (s *Subscriber) Close() error {
	if s.pubsub == nil {
		return nil
	}
	return s.pubsub.Close()
}
