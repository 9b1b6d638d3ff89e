package messaging

import (
	"context"
	"io"
)

// Topics carrying order events.
const (
	TopicOrderPlaced        = "orders.placed"
	TopicOrderStatusChanged = "orders.status_changed"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
// Consume blocks until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// Broker is a transport that both publishes and consumes, and owns its connections.
type Broker interface {
	Publisher
	Subscriber
	io.Closer
}

type nopBroker struct{}

// NewNopBroker returns a broker that drops every event, for deployments without one.
func NewNopBroker() Broker {
	return nopBroker{}
}

func (nopBroker) PublishEvent(context.Context, string, string, any) error { return nil }

func (nopBroker) Consume(ctx context.Context, _ string, _ string, _ func(context.Context, []byte) error) {
	<-ctx.Done()
}

func (nopBroker) Close() error { return nil }
