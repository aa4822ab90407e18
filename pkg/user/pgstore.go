package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, xp, badges, streak, last_streak_update, meditation_streak, last_meditation_date, created_at`

// PgStore is a PostgreSQL-backed user store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			username             TEXT NOT NULL,
			xp                   INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
			badges               TEXT[] NOT NULL DEFAULT '{}',
			streak               INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
			last_streak_update   DATE,
			meditation_streak    INTEGER NOT NULL DEFAULT 0 CHECK (meditation_streak >= 0),
			last_meditation_date DATE,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users(lower(username))`)
	return err
}

// Register creates or returns an existing user. Idempotent.
func (s *PgStore) Register(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("register user: empty username")
	}

	u, err := s.ByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		id, username, now)
	if err != nil {
		return nil, fmt.Errorf("register user %s: %w", username, err)
	}

	// Re-fetch to handle race conditions (ON CONFLICT DO NOTHING)
	u, err = s.ByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("register user %s: re-fetch failed: %w", username, err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// ByUsername returns a user by case-insensitive username.
func (s *PgStore) ByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
	if err != nil {
		return nil, fmt.Errorf("user by name %s: %w", username, err)
	}
	return u, nil
}

// List returns all users.
func (s *PgStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// AddXP increments XP in place and returns the new total.
func (s *PgStore) AddXP(ctx context.Context, id string, delta int) (int, error) {
	if delta <= 0 {
		return 0, ErrInvalidXP
	}
	var xp int
	err := s.pool.QueryRow(ctx, `UPDATE users SET xp = xp + $2 WHERE id = $1 RETURNING xp`, id, delta).Scan(&xp)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("add xp to %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("add xp to %s: %w", id, err)
	}
	return xp, nil
}

// AddXPMany increments XP for every listed user in one statement.
func (s *PgStore) AddXPMany(ctx context.Context, ids []string, delta int) error {
	if delta <= 0 {
		return ErrInvalidXP
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE users SET xp = xp + $2 WHERE id = ANY($1)`, ids, delta)
	if err != nil {
		return fmt.Errorf("add xp to %d users: %w", len(ids), err)
	}
	return nil
}

// AddBadges appends missing codes inside one transaction. The row lock plus
// the NOT ANY guard make each append conditional on absence.
func (s *PgStore) AddBadges(ctx context.Context, id string, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("add badges to %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}

	var added []string
	for _, code := range codes {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET badges = array_append(badges, $2)
			WHERE id = $1 AND NOT ($2 = ANY(badges))`, id, code)
		if err != nil {
			return nil, fmt.Errorf("add badge %s to %s: %w", code, id, err)
		}
		if tag.RowsAffected() == 1 {
			added = append(added, code)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit badges: %w", err)
	}
	return added, nil
}

// CreditStreak writes the streak only if last-credited still matches.
func (s *PgStore) CreditStreak(ctx context.Context, id string, kind StreakKind, expectedLast *time.Time, streak int, today time.Time) (bool, error) {
	var query string
	switch kind {
	case CalorieStreak:
		query = `UPDATE users SET streak = $2, last_streak_update = $3
			WHERE id = $1 AND last_streak_update IS NOT DISTINCT FROM $4`
	case MeditationStreak:
		query = `UPDATE users SET meditation_streak = $2, last_meditation_date = $3
			WHERE id = $1 AND last_meditation_date IS NOT DISTINCT FROM $4`
	default:
		return false, fmt.Errorf("unknown streak kind %q", kind)
	}
	tag, err := s.pool.Exec(ctx, query, id, streak, today, expectedLast)
	if err != nil {
		return false, fmt.Errorf("credit %s streak for %s: %w", kind, id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) scanOne(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.XP, &u.Badges, &u.Streak, &u.LastStreakUpdate, &u.MeditationStreak, &u.LastMeditationDate, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	return &u, nil
}
