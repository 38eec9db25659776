package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Channel is the part of an AMQP channel the publisher uses
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher publishes JSON messages to an exchange
type Publisher struct {
	channel func() Channel
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewPublisher creates a publisher on the client's current channel
func NewPublisher(client *Client, timeout time.Duration, logger *zap.Logger) *Publisher {
	return newPublisher(func() Channel { return client.Channel() }, timeout, logger)
}

func newPublisher(channel func() Channel, timeout time.Duration, logger *zap.Logger) *Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{
		channel: channel,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish publishes a message to an exchange with a routing key
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err = p.channel().PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to exchange '%s' with routing key '%s': %w", exchange, routingKey, err)
	}

	p.logger.Debug("Message published",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey))

	return nil
}
