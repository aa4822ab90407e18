package user

import (
	"context"
	"errors"
	"slices"
	"time"
)

// StreakKind selects which consecutive-day counter is credited.
type StreakKind string

const (
	CalorieStreak    StreakKind = "calorie"
	MeditationStreak StreakKind = "meditation"
)

// User is a person accruing XP, badges and streaks.
type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	XP                 int        `json:"xp"`
	Badges             []string   `json:"badges"`
	Streak             int        `json:"streak"`                       // calorie-goal streak
	LastStreakUpdate   *time.Time `json:"last_streak_update,omitempty"` // date only
	MeditationStreak   int        `json:"meditation_streak"`
	LastMeditationDate *time.Time `json:"last_meditation_date,omitempty"` // date only
	CreatedAt          time.Time  `json:"created_at"`
}

// HasBadge reports whether the user already holds code.
func (u *User) HasBadge(code string) bool {
	return slices.Contains(u.Badges, code)
}

// StreakState returns the counter and last credited date for kind.
func (u *User) StreakState(kind StreakKind) (int, *time.Time) {
	if kind == MeditationStreak {
		return u.MeditationStreak, u.LastMeditationDate
	}
	return u.Streak, u.LastStreakUpdate
}

var (
	ErrNotFound = errors.New("user not found")
	// ErrInvalidXP guards the monotonic XP invariant.
	ErrInvalidXP = errors.New("xp delta must be positive")
)

// Store is the contract for user persistence.
type Store interface {
	// Register creates or returns an existing user. Idempotent: usernames
	// match case-insensitively.
	Register(ctx context.Context, username string) (*User, error)

	// Get returns a user by ID.
	Get(ctx context.Context, id string) (*User, error)

	// ByUsername returns a user by case-insensitive username.
	ByUsername(ctx context.Context, username string) (*User, error)

	// List returns all users.
	List(ctx context.Context) ([]User, error)

	// AddXP atomically increments one user's XP and returns the new total.
	AddXP(ctx context.Context, id string, delta int) (int, error)

	// AddXPMany atomically increments XP for each listed user.
	AddXPMany(ctx context.Context, ids []string, delta int) error

	// AddBadges appends each code the user does not already hold and returns
	// the codes actually added. Concurrent callers never both add the same code.
	AddBadges(ctx context.Context, id string, codes []string) ([]string, error)

	// CreditStreak stores streak and today for kind, but only if the stored
	// last-credited date still equals expectedLast. Returns whether it applied.
	CreditStreak(ctx context.Context, id string, kind StreakKind, expectedLast *time.Time, streak int, today time.Time) (bool, error)

	// EnsureTable creates the users table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
