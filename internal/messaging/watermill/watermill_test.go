package watermill

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/messaging"
)

var _ messaging.Broker = (*Broker)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// publishUntil republishes until the consumer has subscribed and seen a message.
func publishUntil[T any](t *testing.T, broker *Broker, topic, key string, event any, received <-chan T) T {
	t.Helper()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		require.NoError(t, broker.PublishEvent(context.Background(), topic, key, event))
		select {
		case v := <-received:
			return v
		case <-timeout:
			t.Fatal("event not delivered")
		case <-ticker.C:
		}
	}
}

func TestGoChannelDeliversPublishedEvents(t *testing.T) {
	broker := NewGoChannelBroker(discardLogger())
	t.Cleanup(func() { _ = broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan entity.OrderStatusChanged, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		broker.Consume(ctx, messaging.TopicOrderStatusChanged, "test", func(_ context.Context, payload []byte) error {
			var evt entity.OrderStatusChanged
			if err := json.Unmarshal(payload, &evt); err != nil {
				return err
			}
			select {
			case received <- evt:
			default:
			}
			return nil
		})
	}()

	evt := publishUntil(t, broker, messaging.TopicOrderStatusChanged, "o1", entity.OrderStatusChanged{
		OrderID: "o1", From: entity.StatusPending, To: entity.StatusProcessing, OperatorID: "staff-1",
	}, received)
	assert.Equal(t, "o1", evt.OrderID)
	assert.Equal(t, entity.StatusProcessing, evt.To)
	assert.Equal(t, "staff-1", evt.OperatorID)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestGoChannelDropsMessagesWithoutSubscribers(t *testing.T) {
	broker := NewGoChannelBroker(discardLogger())
	t.Cleanup(func() { _ = broker.Close() })

	for _i := 0; _i < 100; _i++ {
		require.NoError(t, broker.PublishEvent(context.Background(), messaging.TopicOrderPlaced, "o1", entity.OrderPlaced{OrderID: "o1"}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 128)
	done := make(chan struct{})
	go func() {
		defer close(done)
		broker.Consume(ctx, messaging.TopicOrderPlaced, "late", func(_ context.Context, payload []byte) error {
			var evt entity.OrderPlaced
			_ = json.Unmarshal(payload, &evt)
			received <- evt.OrderID
			return nil
		})
	}()

	// The first message seen is a fresh one; none of the earlier publishes were kept.
	got := publishUntil(t, broker, messaging.TopicOrderPlaced, "o2", entity.OrderPlaced{OrderID: "o2"}, received)
	assert.Equal(t, "o2", got)

	cancel()
	<-done
}

func TestHandlerErrorDoesNotStopConsumer(t *testing.T) {
	broker := NewGoChannelBroker(discardLogger())
	t.Cleanup(func() { _ = broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		broker.Consume(ctx, messaging.TopicOrderPlaced, "test", func(_ context.Context, payload []byte) error {
			var evt entity.OrderPlaced
			_ = json.Unmarshal(payload, &evt)
			seen <- evt.OrderID
			return errors.New("boom")
		})
	}()

	// Once the first message fails, the next one still arrives.
	assert.Equal(t, "a", publishUntil(t, broker, messaging.TopicOrderPlaced, "a", entity.OrderPlaced{OrderID: "a"}, seen))
	require.NoError(t, broker.PublishEvent(ctx, messaging.TopicOrderPlaced, "b", entity.OrderPlaced{OrderID: "b"}))
	for {
		select {
		case got := <-seen:
			if got == "b" {
				cancel()
				<-done
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("event b not delivered")
		}
	}
}

func TestPublishRejectsUnmarshalableEvent(t *testing.T) {
	broker := NewGoChannelBroker(discardLogger())
	t.Cleanup(func() { _ = broker.Close() })

	err := broker.PublishEvent(context.Background(), "x", "k", func() {})
	assert.Error(t, err)
}
