// Package notify publishes verdict events to RabbitMQ so downstream
// consumers can react to suspicious and malicious mail.
package notify

import (
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Client manages the RabbitMQ connection and channel
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex
	url     string
	logger  *zap.Logger
}

// NewClient creates a new AMQP client
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	client := &Client{
		url:    url,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create AMQP client: %w", err)
	}

	return client, nil
}

// connect establishes connection and channel
func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch

	go c.handleConnectionClose(conn)

	c.logger.Info("AMQP client connected")
	return nil
}

// handleConnectionClose logs unexpected connection loss
func (c *Client) handleConnectionClose(conn *amqp.Connection) {
	closeErr := conn.NotifyClose(make(chan *amqp.Error, 1))

	if err := <-closeErr; err != nil {
		c.logger.Error("AMQP connection closed", zap.Error(err))
	}
}

// Channel returns the current channel
func (c *Client) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// DeclareExchange declares a durable topic exchange
func (c *Client) DeclareExchange(name string) error {
	err := c.Channel().ExchangeDeclare(
		name,
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", name, err)
	}

	c.logger.Debug("Exchange declared", zap.String("exchange", name))
	return nil
}

// Close closes the channel and connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.logger.Info("AMQP client closed")
	return nil
}
