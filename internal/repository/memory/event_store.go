package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Namsummo/Lego-store/internal/entity"
	"github.com/Namsummo/Lego-store/internal/repository"
)

type eventStore struct {
	mu      sync.Mutex
	streams map[string][]entity.EventStoreRecord
}

// NewEventStore creates an EventStore with the same versioning rules as the Postgres one.
func NewEventStore() repository.EventStore {
	return &eventStore{streams: make(map[string][]entity.EventStoreRecord)}
}

func (s *eventStore) SaveEvents(_ context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	currentVersion := len(stream)
	if expectedVersion < 0 {
		expectedVersion = currentVersion
	}
	if currentVersion != expectedVersion {
		return fmt.Errorf("stream %s: expected version %d, got %d: %w", streamID, expectedVersion, currentVersion, entity.ErrConflict)
	}

	now := time.Now()
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		stream = append(stream, entity.EventStoreRecord{
			ID:         uuid.NewString(),
			StreamID:   streamID,
			StreamType: streamType,
			Version:    expectedVersion + i + 1,
			EventType:  event.EventType(),
			Payload:    payload,
			CreatedAt:  now,
		})
	}
	s.streams[streamID] = stream
	return nil
}

func (s *eventStore) LoadEvents(_ context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.streams[streamID]), nil
}
