package task

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory task store. Every method holds the lock for its
// whole read-check-write, which gives the same atomicity as the conditional
// UPDATEs in PgStore.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string // insertion order, oldest first
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[string]*Task)}
}

func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func (s *MemStore) Create(ctx context.Context, t *Task) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Collaborators = []string{}
	t.PendingInvitations = []string{}
	if t.Visibility == "" {
		t.Visibility = Private
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = clone(t)
	s.order = append(s.order, t.ID)
	return clone(t), nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemStore) Delete(ctx context.Context, id, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.OwnerID != ownerID {
		return ErrPrecondition
	}
	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func (s *MemStore) SetContent(ctx context.Context, id, content string) (*Task, error) {
	return s.mutate(ctx, id, func(t *Task) bool {
		t.Content = content
		return true
	})
}

func (s *MemStore) SetCompleted(ctx context.Context, id string, completed bool) (*Task, bool, error) {
	t, err := s.mutate(ctx, id, func(t *Task) bool {
		if t.IsCompleted == completed {
			return false
		}
		t.IsCompleted = completed
		return true
	})
	if err == ErrPrecondition {
		t, err = s.Get(ctx, id)
		return t, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *MemStore) AddPending(ctx context.Context, id, userID string) (*Task, error) {
	return s.mutate(ctx, id, func(t *Task) bool {
		if t.Involves(userID) {
			return false
		}
		t.PendingInvitations = append(t.PendingInvitations, userID)
		return true
	})
}

func (s *MemStore) RemovePending(ctx context.Context, id, userID string) (*Task, error) {
	return s.mutate(ctx, id, func(t *Task) bool {
		if !t.IsPending(userID) {
			return false
		}
		t.PendingInvitations = without(t.PendingInvitations, userID)
		return true
	})
}

func (s *MemStore) PromotePending(ctx context.Context, id, userID string) (*Task, error) {
	return s.mutate(ctx, id, func(t *Task) bool {
		if !t.IsPending(userID) {
			return false
		}
		t.PendingInvitations = without(t.PendingInvitations, userID)
		t.Collaborators = append(t.Collaborators, userID)
		return true
	})
}

func (s *MemStore) AddCollaborator(ctx context.Context, id, userID string) (*Task, error) {
	return s.mutate(ctx, id, func(t *Task) bool {
		if t.Visibility != Public || t.IsOwner(userID) || t.IsCollaborator(userID) {
			return false
		}
		t.PendingInvitations = without(t.PendingInvitations, userID)
		t.Collaborators = append(t.Collaborators, userID)
		return true
	})
}

func (s *MemStore) ByOwner(ctx context.Context, ownerID string) ([]Task, error) {
	return s.filter(ctx, 0, func(t *Task) bool { return t.OwnerID == ownerID })
}

func (s *MemStore) ByCollaborator(ctx context.Context, userID string) ([]Task, error) {
	return s.filter(ctx, 0, func(t *Task) bool { return t.IsCollaborator(userID) })
}

func (s *MemStore) ByInvitee(ctx context.Context, userID string) ([]Task, error) {
	return s.filter(ctx, 0, func(t *Task) bool { return t.IsPending(userID) })
}

func (s *MemStore) Discoverable(ctx context.Context, userID string, limit int) ([]Task, error) {
	return s.filter(ctx, limit, func(t *Task) bool {
		return t.Visibility == Public && !t.Involves(userID)
	})
}

func (s *MemStore) CountCompletedOwned(ctx context.Context, ownerID string) (int, error) {
	tasks, err := s.filter(ctx, 0, func(t *Task) bool { return t.OwnerID == ownerID && t.IsCompleted })
	return len(tasks), err
}

// mutate applies fn under the write lock. fn returns false when its
// precondition does not hold, in which case nothing is written.
func (s *MemStore) mutate(ctx context.Context, id string, fn func(t *Task) bool) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := clone(t)
	if !fn(next) {
		return nil, ErrPrecondition
	}
	next.UpdatedAt = time.Now()
	s.tasks[id] = next
	return clone(next), nil
}

// filter returns matching tasks newest first, capped at limit when limit > 0.
func (s *MemStore) filter(ctx context.Context, limit int, match func(t *Task) bool) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []Task{}
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.tasks[s.order[i]]
		if !match(t) {
			continue
		}
		result = append(result, *clone(t))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func clone(t *Task) *Task {
	cp := *t
	cp.Collaborators = slices.Clone(t.Collaborators)
	cp.PendingInvitations = slices.Clone(t.PendingInvitations)
	if cp.Collaborators == nil {
		cp.Collaborators = []string{}
	}
	if cp.PendingInvitations == nil {
		cp.PendingInvitations = []string{}
	}
	return &cp
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
}
