// Package fulfillment owns the order status lifecycle.
package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/Namsummo/Lego-store/internal/entity"
)

// transitions maps each status to the statuses it may move to. A status with
// no entry is terminal.
var transitions = map[entity.Status][]entity.Status{
	entity.StatusPending:    {entity.StatusProcessing, entity.StatusCancelled},
	entity.StatusProcessing: {entity.StatusShipped},
	entity.StatusShipped:    {entity.StatusDelivered},
}

// Allowed returns the statuses reachable from current in one step.
func Allowed(current entity.Status) []entity.Status {
	return slices.Clone(transitions[current])
}

func IsTerminal(s entity.Status) bool {
	return s.Valid() && len(transitions[s]) == 0
}

func CanTransition(current, next entity.Status) bool {
	return slices.Contains(transitions[current], next)
}

// Validate rejects any pair not in the table, including current == next.
func Validate(current, next entity.Status) error {
	if !CanTransition(current, next) {
		return &entity.InvalidTransitionError{From: current, To: next}
	}
	return nil
}

// Store persists a status change only if the stored status still equals expected.
type Store interface {
	UpdateStatus(ctx context.Context, id string, next entity.Status, operatorID string, expected entity.Status) (*entity.Order, error)
}

type Machine struct {
	store Store
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// Transition moves the order from the status the caller last observed to next.
// Nothing is written when the pair is illegal. A stale observation fails with
// a ConflictError and the caller must refetch.
func (m *Machine) Transition(ctx context.Context, observed entity.Order, next entity.Status, operatorID string) (*entity.Order, error) {
	if err := Validate(observed.Status, next); err != nil {
		return nil, err
	}

	updated, err := m.store.UpdateStatus(ctx, observed.ID, next, operatorID, observed.Status)
	if err != nil {
		if errors.Is(err, entity.ErrConflict) || errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrInvalidTransition) {
			return nil, err
		}
		return nil, &entity.RemoteFailureError{Op: "update order status", Err: err}
	}

	slog.Info("Order status changed", "order_id", observed.ID, "from", observed.Status, "to", next, "operator_id", operatorID)
	return updated, nil
}
