package redisbus

import (
	"context"
	"fmt"
	"sync"

	"hailo/internal/domain/ride"
	"hailo/internal/general/config"
	"hailo/internal/general/contracts"
	"hailo/internal/general/logger"
	"hailo/internal/ports"

	"github.com/redis/go-redis/v9"
)

// Connect parses cfg.Redis.URL, builds a client and verifies it with PING.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ride.NewTransportError("redis ping", err)
	}

	log.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{"addr": opt.Addr, "db": opt.DB})
	return client, nil
}

// Notifier is a ports.Notifier over Redis pub/sub. Each topic is one channel.
type Notifier struct {
	client redis.UniversalClient
	log    *logger.Logger
	buffer int
}

// NewNotifier constructs a Notifier over client.
func NewNotifier(client redis.UniversalClient, log *logger.Logger) *Notifier {
	return &Notifier{client: client, log: log, buffer: 16}
}

var _ ports.Notifier = (*Notifier)(nil)

// Channel returns the Redis channel name for topic.
func Channel(topic string) string {
	return contracts.RedisChannelPrefix + topic
}

// Publish sends update to every channel of its topics.
func (n *Notifier) Publish(ctx context.Context, update ride.Update) error {
	body, err := contracts.EncodeRideUpdate(update, logger.RequestID(ctx))
	if err != nil {
		return err
	}
	for _, topic := range update.Topics() {
		if err := n.client.Publish(ctx, Channel(topic), body).Err(); err != nil {
			return ride.NewTransportError("redis publish "+topic, err)
		}
	}
	return nil
}

// Subscribe opens a pub/sub subscription on topic. go-redis re-subscribes on reconnect.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	ps := n.client.Subscribe(ctx, Channel(topic))

	// wait for the subscribe confirmation so failures surface here
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, ride.NewTransportError("redis subscribe "+topic, err)
	}

	sub := &subscription{
		ps:   ps,
		out:  make(chan ride.Update, n.buffer),
		done: make(chan struct{}),
	}
	go sub.forward(context.WithoutCancel(ctx), n.log, topic)

	n.log.Debug(ctx, "notify_subscribed", "Subscribed to ride topic", map[string]any{"topic": topic})
	return sub, nil
}

type subscription struct {
	ps   *redis.PubSub
	out  chan ride.Update
	once sync.Once
	done chan struct{}
}

func (s *subscription) Updates() <-chan ride.Update {
	return s.out
}

// Close unsubscribes and waits for the forwarder to exit.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	<-s.done
	return err
}

func (s *subscription) forward(logCtx context.Context, log *logger.Logger, topic string) {
	defer close(s.done)
	defer close(s.out)

	for msg := range s.ps.Channel() {
		decoded, err := contracts.DecodeRideUpdate([]byte(msg.Payload))
		if err != nil {
			log.Error(logCtx, "notify_decode_failed", "Dropping malformed ride update", err, map[string]any{"topic": topic})
			continue
		}
		select {
		case s.out <- decoded.Update:
		default:
			log.Debug(logCtx, "notify_dropped", "subscriber buffer full, update dropped", map[string]any{
				"topic":   topic,
				"ride_id": decoded.RideID,
			})
		}
	}
}
