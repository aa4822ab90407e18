package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, owner_id, collaborators, pending_invitations, content, is_completed, visibility, created_at, updated_at`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist. The membership
// invariants are enforced as CHECK constraints as well as in the updates.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                  TEXT PRIMARY KEY,
			owner_id            TEXT NOT NULL,
			collaborators       TEXT[] NOT NULL DEFAULT '{}',
			pending_invitations TEXT[] NOT NULL DEFAULT '{}',
			content             TEXT NOT NULL CHECK (btrim(content) <> ''),
			is_completed        BOOLEAN NOT NULL DEFAULT FALSE,
			visibility          TEXT NOT NULL DEFAULT 'private' CHECK (visibility IN ('private', 'public')),
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (NOT (owner_id = ANY(collaborators))),
			CHECK (NOT (owner_id = ANY(pending_invitations))),
			CHECK (NOT (collaborators && pending_invitations))
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id, created_at DESC)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_collaborators ON tasks USING GIN(collaborators)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks USING GIN(pending_invitations)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_public ON tasks(created_at DESC) WHERE visibility = 'public'`)
	return err
}

// Create inserts a new task with empty membership sets.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	t.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Collaborators = []string{}
	t.PendingInvitations = []string{}
	if t.Visibility == "" {
		t.Visibility = Private
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, owner_id, content, is_completed, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.OwnerID, t.Content, t.IsCompleted, string(t.Visibility), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// Delete removes a task if ownerID owns it.
func (s *PgStore) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, id)
	}
	return nil
}

// SetContent replaces the task's content.
func (s *PgStore) SetContent(ctx context.Context, id, content string) (*Task, error) {
	return s.updateOne(ctx, "set content", id, `
		UPDATE tasks SET content = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+taskColumns, content)
}

// SetCompleted flips is_completed with a compare-and-set.
func (s *PgStore) SetCompleted(ctx context.Context, id string, completed bool) (*Task, bool, error) {
	t, err := s.updateOne(ctx, "set completed", id, `
		UPDATE tasks SET is_completed = $2, updated_at = $3
		WHERE id = $1 AND is_completed <> $2
		RETURNING `+taskColumns, completed)
	if errors.Is(err, ErrPrecondition) {
		// Already in the requested state.
		t, err = s.Get(ctx, id)
		return t, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// AddPending appends userID to pending_invitations.
func (s *PgStore) AddPending(ctx context.Context, id, userID string) (*Task, error) {
	return s.updateOne(ctx, "add pending", id, `
		UPDATE tasks SET pending_invitations = array_append(pending_invitations, $2), updated_at = $3
		WHERE id = $1
		  AND owner_id <> $2
		  AND NOT ($2 = ANY(collaborators))
		  AND NOT ($2 = ANY(pending_invitations))
		RETURNING `+taskColumns, userID)
}

// RemovePending drops userID from pending_invitations.
func (s *PgStore) RemovePending(ctx context.Context, id, userID string) (*Task, error) {
	return s.updateOne(ctx, "remove pending", id, `
		UPDATE tasks SET pending_invitations = array_remove(pending_invitations, $2), updated_at = $3
		WHERE id = $1 AND $2 = ANY(pending_invitations)
		RETURNING `+taskColumns, userID)
}

// PromotePending moves userID from pending_invitations to collaborators.
func (s *PgStore) PromotePending(ctx context.Context, id, userID string) (*Task, error) {
	return s.updateOne(ctx, "promote pending", id, `
		UPDATE tasks SET
			pending_invitations = array_remove(pending_invitations, $2),
			collaborators = array_append(collaborators, $2),
			updated_at = $3
		WHERE id = $1 AND $2 = ANY(pending_invitations)
		RETURNING `+taskColumns, userID)
}

// AddCollaborator joins userID to a public task. Any stale pending entry is
// dropped in the same statement so the two sets stay disjoint.
func (s *PgStore) AddCollaborator(ctx context.Context, id, userID string) (*Task, error) {
	return s.updateOne(ctx, "add collaborator", id, `
		UPDATE tasks SET
			collaborators = array_append(collaborators, $2),
			pending_invitations = array_remove(pending_invitations, $2),
			updated_at = $3
		WHERE id = $1
		  AND visibility = 'public'
		  AND owner_id <> $2
		  AND NOT ($2 = ANY(collaborators))
		RETURNING `+taskColumns, userID)
}

// ByOwner returns tasks owned by ownerID, newest first.
func (s *PgStore) ByOwner(ctx context.Context, ownerID string) ([]Task, error) {
	return s.scanMany(ctx, "tasks by owner", `
		SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`, ownerID)
}

// ByCollaborator returns tasks where userID is a confirmed collaborator.
func (s *PgStore) ByCollaborator(ctx context.Context, userID string) ([]Task, error) {
	return s.scanMany(ctx, "tasks by collaborator", `
		SELECT `+taskColumns+` FROM tasks WHERE $1 = ANY(collaborators)
		ORDER BY created_at DESC, id DESC`, userID)
}

// ByInvitee returns tasks with a pending invitation for userID.
func (s *PgStore) ByInvitee(ctx context.Context, userID string) ([]Task, error) {
	return s.scanMany(ctx, "tasks by invitee", `
		SELECT `+taskColumns+` FROM tasks WHERE $1 = ANY(pending_invitations)
		ORDER BY created_at DESC, id DESC`, userID)
}

// Discoverable returns public tasks the user neither owns nor belongs to.
func (s *PgStore) Discoverable(ctx context.Context, userID string, limit int) ([]Task, error) {
	return s.scanMany(ctx, "discoverable tasks", `
		SELECT `+taskColumns+` FROM tasks
		WHERE visibility = 'public'
		  AND owner_id <> $1
		  AND NOT ($1 = ANY(collaborators))
		  AND NOT ($1 = ANY(pending_invitations))
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
}

// CountCompletedOwned returns how many of ownerID's tasks are completed.
func (s *PgStore) CountCompletedOwned(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = $1 AND is_completed`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed tasks for %s: %w", ownerID, err)
	}
	return n, nil
}

// updateOne runs a conditional UPDATE ... RETURNING. $1 is the task ID, $2 the
// caller's argument and $3 the update timestamp. No returned row means either
// the task is gone (ErrNotFound) or the condition failed (ErrPrecondition).
func (s *PgStore) updateOne(ctx context.Context, op, id, query string, arg any) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t, err := scanTask(s.pool.QueryRow(ctx, query, id, arg, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missing(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s on task %s: %w", op, id, err)
	}
	return t, nil
}

// missing distinguishes a deleted task from a failed precondition.
func (s *PgStore) missing(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check task %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrPrecondition
}

func (s *PgStore) scanMany(ctx context.Context, op, query string, args ...any) ([]Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var vis string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Collaborators, &t.PendingInvitations, &t.Content, &t.IsCompleted, &vis, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Visibility = Visibility(vis)
	if t.Collaborators == nil {
		t.Collaborators = []string{}
	}
	if t.PendingInvitations == nil {
		t.PendingInvitations = []string{}
	}
	return &t, nil
}
