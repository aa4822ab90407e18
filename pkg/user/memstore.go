package user

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory user store, safe for concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	byName map[string]string // lower(username) -> id
	order  []string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[string]*User),
		byName: make(map[string]string),
	}
}

func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func (s *MemStore) Register(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("register user: empty username")
	}
	key := strings.ToLower(username)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[key]; ok {
		return cloneUser(s.users[id]), nil
	}
	u := &User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Username:  username,
		Badges:    []string{},
		CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	s.byName[key] = u.ID
	s.order = append(s.order, u.ID)
	return cloneUser(u), nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *MemStore) ByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, fmt.Errorf("user by name %s: %w", username, ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemStore) List(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, *cloneUser(s.users[id]))
	}
	return users, nil
}

func (s *MemStore) AddXP(ctx context.Context, id string, delta int) (int, error) {
	if delta <= 0 {
		return 0, ErrInvalidXP
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, fmt.Errorf("add xp to %s: %w", id, ErrNotFound)
	}
	u.XP += delta
	return u.XP, nil
}

func (s *MemStore) AddXPMany(ctx context.Context, ids []string, delta int) error {
	if delta <= 0 {
		return ErrInvalidXP
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			u.XP += delta
		}
	}
	return nil
}

func (s *MemStore) AddBadges(ctx context.Context, id string, codes []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("add badges to %s: %w", id, ErrNotFound)
	}
	var added []string
	for _, code := range codes {
		if u.HasBadge(code) {
			continue
		}
		u.Badges = append(u.Badges, code)
		added = append(added, code)
	}
	return added, nil
}

func (s *MemStore) CreditStreak(ctx context.Context, id string, kind StreakKind, expectedLast *time.Time, streak int, today time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, fmt.Errorf("credit streak for %s: %w", id, ErrNotFound)
	}
	day := today
	switch kind {
	case CalorieStreak:
		if !sameDate(u.LastStreakUpdate, expectedLast) {
			return false, nil
		}
		u.Streak, u.LastStreakUpdate = streak, &day
	case MeditationStreak:
		if !sameDate(u.LastMeditationDate, expectedLast) {
			return false, nil
		}
		u.MeditationStreak, u.LastMeditationDate = streak, &day
	default:
		return false, fmt.Errorf("unknown streak kind %q", kind)
	}
	return true, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func cloneUser(u *User) *User {
	cp := *u
	cp.Badges = slices.Clone(u.Badges)
	if cp.Badges == nil {
		cp.Badges = []string{}
	}
	if u.LastStreakUpdate != nil {
		d := *u.LastStreakUpdate
		cp.LastStreakUpdate = &d
	}
	if u.LastMeditationDate != nil {
		d := *u.LastMeditationDate
		cp.LastMeditationDate = &d
	}
	return &cp
}
