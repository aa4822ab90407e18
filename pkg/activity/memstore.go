package activity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory activity store.
type MemStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func (s *MemStore) Append(ctx context.Context, entryType, actorID, subject string, content map[string]any) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if content == nil {
		content = map[string]any{}
	}
	e := Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      entryType,
		ActorID:   actorID,
		Subject:   subject,
		Content:   content,
		Timestamp: time.Now(),
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return &e, nil
}

func (s *MemStore) Count(ctx context.Context, actorID, entryType string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.entries {
		if s.entries[i].ActorID == actorID && s.entries[i].Type == entryType {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) Recent(ctx context.Context, actorID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Entry{}
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].ActorID == actorID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}
