package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed activity store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activity (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			actor_id  TEXT NOT NULL,
			subject   TEXT NOT NULL DEFAULT '',
			content   JSONB NOT NULL DEFAULT '{}',
			timestamp TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_actor_type ON activity(actor_id, type)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_actor_ts ON activity(actor_id, timestamp DESC, id DESC)`)
	return err
}

// Append stores a new entry.
func (s *PgStore) Append(ctx context.Context, entryType, actorID, subject string, content map[string]any) (*Entry, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	e := &Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      entryType,
		ActorID:   actorID,
		Subject:   subject,
		Content:   content,
		Timestamp: time.Now().Truncate(time.Microsecond),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO activity (id, type, actor_id, subject, content, timestamp)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.ID, e.Type, e.ActorID, e.Subject, string(contentJSON), e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return e, nil
}

// Count returns how many entries of entryType actorID has.
func (s *PgStore) Count(ctx context.Context, actorID, entryType string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity WHERE actor_id = $1 AND type = $2`, actorID, entryType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s for %s: %w", entryType, actorID, err)
	}
	return n, nil
}

// Recent returns actorID's latest entries, newest first.
func (s *PgStore) Recent(ctx context.Context, actorID string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, actor_id, subject, content, timestamp
		FROM activity WHERE actor_id = $1
		ORDER BY timestamp DESC, id DESC LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.ActorID, &e.Subject, &contentJSON, &e.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return entries, nil
}
