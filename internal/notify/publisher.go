package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes events onto RabbitMQ. Every publish dials a fresh
// connection so a broker restart between webhooks never leaves the engine
// holding a dead channel; webhook volume does not justify pooling.
type Publisher struct {
	url string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PublishPaymentConfirmed is best-effort. Errors are returned so callers can
// log them, but callers must never fail a webhook acknowledgment over one.
func (p *Publisher) PublishPaymentConfirmed(ctx context.Context, event PaymentConfirmedEvent) error {
	if p == nil || p.url == "" {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("notify: dial broker failed: %v", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notify: channel open failed: %v", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(PaymentConfirmedQueue, true, false, false, false, nil); err != nil {
		log.Printf("notify: queue declare failed: %v", err)
		return fmt.Errorf("declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", PaymentConfirmedQueue, false, false, pub); err != nil {
		log.Printf("notify: publish failed: %v", err)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
