package entity

import (
	"fmt"
	"time"
)

// StatusChange is one step in an order's fulfillment history.
type StatusChange struct {
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to"`
	OperatorID string    `json:"operator_id"`
	At         time.Time `json:"at"`
}

// OrderAggregate rebuilds an order's status history by replaying its stream.
type OrderAggregate struct {
	AggregateBase
	Status   Status
	PlacedAt time.Time
	History  []StatusChange
}

// NewOrderAggregate creates an empty aggregate for the given order id.
func NewOrderAggregate(id string) *OrderAggregate {
	return &OrderAggregate{
		AggregateBase: AggregateBase{ID: id, Version: 0},
	}
}

// ApplyEvent mutates the aggregate state based on the event.
func (a *OrderAggregate) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case OrderPlaced:
		if a.Version != 0 {
			return fmt.Errorf("order %s placed twice", a.ID)
		}
		a.Status = StatusPending
		a.PlacedAt = e.PlacedAt
		a.History = append(a.History, StatusChange{To: StatusPending, OperatorID: e.OperatorID, At: e.PlacedAt})
	case OrderStatusChanged:
		if a.Status != e.From {
			return fmt.Errorf("order %s: stream says %s -> %s but aggregate is %s", a.ID, e.From, e.To, a.Status)
		}
		a.Status = e.To
		a.History = append(a.History, StatusChange{From: e.From, To: e.To, OperatorID: e.OperatorID, At: e.ChangedAt})
	default:
		return fmt.Errorf("unknown event type for OrderAggregate: %s", e.EventType())
	}
	a.Version++
	return nil
}
