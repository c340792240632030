package rabbitmq

import (
	"fmt"

	"hailo/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology declares the ride topic exchange. Subscription queues are per-subscriber
// and declared on Subscribe.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.ExchangeRideTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeRideTopic, err)
	}
	return nil
}

// declareSubscriptionQueue declares a server-named, exclusive, auto-delete queue bound to
// routingKey on the ride exchange.
func declareSubscriptionQueue(ch *amqp.Channel, routingKey string) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare subscription queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, contracts.ExchangeRideTopic, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, routingKey, err)
	}
	return q.Name, nil
}
