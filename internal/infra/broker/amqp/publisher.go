package amqp

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends outbox events to a topic exchange, routed by event name.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish routes by the event-name header; topic is only a fallback.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	routingKey := headers["event-name"]
	if routingKey == "" {
		routingKey = strings.TrimSuffix(topic, ".v1")
	}
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  headers["content-type"],
		DeliveryMode: amqp.Persistent,
		CorrelationId: key,
		Headers:      table,
		Body:         payload,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
