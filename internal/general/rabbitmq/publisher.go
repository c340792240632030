package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/general/contracts"
	"hailo/internal/general/logger"
	"hailo/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Notifier is the RabbitMQ-backed ports.Notifier. Topics map one-to-one onto routing keys
// of the ride_topic exchange.
type Notifier struct {
	client *Client
	log    *logger.Logger
	buffer int
}

// NewNotifier constructs a Notifier over client.
func NewNotifier(client *Client, log *logger.Logger) *Notifier {
	return &Notifier{client: client, log: log, buffer: 16}
}

var _ ports.Notifier = (*Notifier)(nil)

// Publish sends update on each of its topics and waits for broker confirms.
func (n *Notifier) Publish(ctx context.Context, update ride.Update) error {
	body, err := contracts.EncodeRideUpdate(update, logger.RequestID(ctx))
	if err != nil {
		return err
	}
	for _, topic := range update.Topics() {
		if err := n.client.PublishMessage(ctx, contracts.ExchangeRideTopic, topic, body); err != nil {
			return ride.NewTransportError("publish "+topic, err)
		}
	}
	return nil
}

// PublishMessage publishes a transient JSON message and waits for its confirm.
func (client *Client) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errNotConnected
	}
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("rabbitmq: publish channel is not open")
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// not mandatory: a topic without subscribers is normal
	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Transient,
			ContentType:  "application/json",
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return fmt.Errorf("rabbitmq: confirm stream closed")
		}
		if !c.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
	case <-ctx.Done():
		// drain the pending confirm so the next publish reads its own
		select {
		case <-confirms:
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}

	return nil
}
