package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
)

// DefaultExchange is the topic exchange verdict events are published to
const DefaultExchange = "phishing"

// messagePublisher is satisfied by *Publisher
type messagePublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, message interface{}) error
}

// VerdictNotifier implements core.VerdictNotifier over AMQP
type VerdictNotifier struct {
	publisher messagePublisher
	exchange  string
	conn      io.Closer
}

// Connect dials the broker, declares the exchange and returns a notifier
// that owns the connection
func Connect(url, exchange string, timeout time.Duration, logger *zap.Logger) (*VerdictNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	client, err := NewClient(url, logger)
	if err != nil {
		return nil, err
	}

	if err := client.DeclareExchange(exchange); err != nil {
		client.Close()
		return nil, err
	}

	n := NewVerdictNotifier(NewPublisher(client, timeout, logger), exchange)
	n.conn = client
	return n, nil
}

// NewVerdictNotifier creates a notifier publishing to exchange
func NewVerdictNotifier(publisher *Publisher, exchange string) *VerdictNotifier {
	return newVerdictNotifier(publisher, exchange)
}

func newVerdictNotifier(publisher messagePublisher, exchange string) *VerdictNotifier {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &VerdictNotifier{
		publisher: publisher,
		exchange:  exchange,
	}
}

// RoutingKey returns the routing key for a verdict level
func RoutingKey(level core.ThreatLevel) string {
	return "verdict." + string(level)
}

// NotifyVerdict publishes the event under verdict.<level>
func (n *VerdictNotifier) NotifyVerdict(ctx context.Context, event *core.VerdictEvent) error {
	if event == nil {
		return fmt.Errorf("nil verdict event")
	}
	return n.publisher.Publish(ctx, n.exchange, RoutingKey(event.Level), event)
}

// Close closes the broker connection when the notifier owns one
func (n *VerdictNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
