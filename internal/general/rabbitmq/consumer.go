package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/general/contracts"
	"hailo/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// newConsumerChannel returns a fresh channel with prefetch (QoS) applied.
func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	conn, err := client.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
		}
	}

	return ch, nil
}

// Subscribe binds a private queue to topic and forwards decoded updates. If the channel
// drops, the subscription re-binds after the client reconnects; updates published in
// between are lost, which subscribers already tolerate.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	sub := &subscription{
		notifier: n,
		topic:    topic,
		out:      make(chan ride.Update, n.buffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	ch, deliveries, err := sub.open()
	if err != nil {
		return nil, ride.NewTransportError("subscribe "+topic, err)
	}

	n.log.Debug(ctx, "notify_subscribed", "Subscribed to ride topic", map[string]any{"topic": topic})

	go sub.run(ch, deliveries)
	return sub, nil
}

type subscription struct {
	notifier *Notifier
	topic    string
	out      chan ride.Update

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (s *subscription) Updates() <-chan ride.Update {
	return s.out
}

// Close cancels the consumer and waits for the forwarder to exit.
func (s *subscription) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *subscription) open() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := s.notifier.client.newConsumerChannel(s.notifier.buffer)
	if err != nil {
		return nil, nil, err
	}

	queue, err := declareSubscriptionQueue(ch, s.topic)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // server-generated consumer tag
		true,  // autoAck
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}
	return ch, deliveries, nil
}

func (s *subscription) run(ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	defer close(s.done)
	defer close(s.out)

	log := s.notifier.log
	logCtx := s.notifier.client.logCtx
	backoff := 500 * time.Millisecond

	for {
		if stopped := s.forward(deliveries); stopped {
			_ = ch.Close()
			return
		}
		_ = ch.Close()

		log.Info(logCtx, "notify_subscription_lost", "Subscription channel closed, re-binding", map[string]any{"topic": s.topic})

		for {
			select {
			case <-s.stop:
				return
			case <-s.notifier.client.Done():
				return
			case <-time.After(backoff):
			}

			var err error
			ch, deliveries, err = s.open()
			if err == nil {
				backoff = 500 * time.Millisecond
				break
			}
			log.Error(logCtx, "notify_resubscribe_failed", "Failed to re-bind subscription", err, map[string]any{"topic": s.topic})
			backoff = min(backoff*2, 10*time.Second)
		}
	}
}

// forward relays deliveries until stop (returns true) or the stream ends (returns false).
func (s *subscription) forward(deliveries <-chan amqp.Delivery) bool {
	log := s.notifier.log
	logCtx := s.notifier.client.logCtx

	for {
		select {
		case <-s.stop:
			return true

		case d, ok := <-deliveries:
			if !ok {
				return false
			}

			msg, err := contracts.DecodeRideUpdate(d.Body)
			if err != nil {
				log.Error(logCtx, "notify_decode_failed", "Dropping malformed ride update", err, map[string]any{"topic": s.topic})
				continue
			}

			select {
			case s.out <- msg.Update:
			default:
				log.Debug(logCtx, "notify_dropped", "subscriber buffer full, update dropped", map[string]any{
					"topic":   s.topic,
					"ride_id": msg.RideID,
				})
			}
		}
	}
}
