package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventStoreRecord represents an event stored in an order stream.
type EventStoreRecord struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	StreamType string    `json:"stream_type"`
	Version    int       `json:"version"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event represents a domain event.
type Event interface {
	EventType() string
}

// Aggregate represents a domain aggregate root rebuilt from its stream.
type Aggregate interface {
	GetAggregateID() string
	GetVersion() int
	ApplyEvent(event Event) error
}

// AggregateBase provides the id and version bookkeeping for an aggregate.
type AggregateBase struct {
	ID      string
	Version int
}

func (a *AggregateBase) GetAggregateID() string {
	return a.ID
}

func (a *AggregateBase) GetVersion() int {
	return a.Version
}

// DecodeEvent turns a stored record back into its typed event.
func DecodeEvent(rec EventStoreRecord) (Event, error) {
	var (
		e   Event
		err error
	)
	switch rec.EventType {
	case OrderPlaced{}.EventType():
		var placed OrderPlaced
		err = json.Unmarshal(rec.Payload, &placed)
		e = placed
	case OrderStatusChanged{}.EventType():
		var changed OrderStatusChanged
		err = json.Unmarshal(rec.Payload, &changed)
		e = changed
	default:
		return nil, fmt.Errorf("unknown event type in stream %s: %s", rec.StreamID, rec.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", rec.EventType, err)
	}
	return e, nil
}

// Rehydrate replays records onto agg in stream order.
func Rehydrate(agg Aggregate, records []EventStoreRecord) error {
	for _, rec := range records {
		e, err := DecodeEvent(rec)
		if err != nil {
			return err
		}
		if err := agg.ApplyEvent(e); err != nil {
			return fmt.Errorf("failed to apply event from stream: %w", err)
		}
	}
	return nil
}
