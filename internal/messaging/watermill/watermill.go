// Package watermill adapts Watermill publishers and subscribers to the
// messaging interfaces. It backs both the in-process bus and the Sarama based
// Kafka transport.
package watermill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// partitionKeyHeader carries the message key through Watermill metadata.
const partitionKeyHeader = "partition_key"

// Broker implements messaging.Publisher and messaging.Subscriber.
type Broker struct {
	publisher     message.Publisher
	newSubscriber func(groupID string) (message.Subscriber, error)

	mu     sync.Mutex
	closer []func() error
}

// NewGoChannelBroker runs the bus in process. Nothing is retained: a message
// published while a topic has no subscriber is dropped, so start consumers first.
func NewGoChannelBroker(logger *slog.Logger) *Broker {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger))

	return &Broker{
		publisher:     pubSub,
		newSubscriber: func(string) (message.Subscriber, error) { return pubSub, nil },
		closer:        []func() error{pubSub.Close},
	}
}

// NewKafkaBroker publishes through Sarama with all in-sync replicas acknowledging.
func NewKafkaBroker(brokers []string, logger *slog.Logger) (*Broker, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	publisherConfig := kafka.DefaultSaramaSyncPublisherConfig()
	publisherConfig.Producer.RequiredAcks = sarama.WaitForAll

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers: brokers,
		Marshaler: kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
			return msg.Metadata.Get(partitionKeyHeader), nil
		}),
		OverwriteSaramaConfig: publisherConfig,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	b := &Broker{publisher: publisher, closer: []func() error{publisher.Close}}
	b.newSubscriber = func(groupID string) (message.Subscriber, error) {
		subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
		subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

		sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         groupID,
		}, wmLogger)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.closer = append(b.closer, sub.Close)
		b.mu.Unlock()
		return sub, nil
	}
	return b, nil
}

func (b *Broker) PublishEvent(_ context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(partitionKeyHeader, key)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Consume acks every message after the handler runs; handler errors are logged, not redelivered.
func (b *Broker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	sub, err := b.newSubscriber(groupID)
	if err != nil {
		slog.Error("Failed to create subscriber", "topic", topic, "group", groupID, "err", err)
		return
	}

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		slog.Error("Failed to subscribe", "topic", topic, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer shutting down", "topic", topic)
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := handler(msg.Context(), msg.Payload); err != nil {
				slog.Error("Error handling message", "topic", topic, "message_uuid", msg.UUID, "err", err)
			}
			msg.Ack()
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, closeFn := range b.closer {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closer = nil
	return errors.Join(errs...)
}
