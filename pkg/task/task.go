package task

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Visibility controls who can discover and join a task.
type Visibility string

const (
	Private Visibility = "private" // invite-only
	Public  Visibility = "public"  // discoverable and joinable
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == Private || v == Public
}

// Task is a goal owned by one user and shared with collaborators.
type Task struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"owner_id"`
	Collaborators      []string   `json:"collaborators"`
	PendingInvitations []string   `json:"pending_invitations"`
	Content            string     `json:"content"`
	IsCompleted        bool       `json:"is_completed"`
	Visibility         Visibility `json:"visibility"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (t *Task) IsOwner(userID string) bool        { return t.OwnerID == userID }
func (t *Task) IsCollaborator(userID string) bool { return slices.Contains(t.Collaborators, userID) }
func (t *Task) IsPending(userID string) bool      { return slices.Contains(t.PendingInvitations, userID) }

// Involves reports whether userID is the owner, a collaborator, or invited.
func (t *Task) Involves(userID string) bool {
	return t.IsOwner(userID) || t.IsCollaborator(userID) || t.IsPending(userID)
}

var (
	// ErrNotFound is returned when no task has the given ID.
	ErrNotFound = errors.New("task not found")
	// ErrPrecondition is returned when a conditional membership update
	// matched no row: the task exists but its state no longer allows the change.
	ErrPrecondition = errors.New("task state changed")
)

// Store is the contract for task persistence. Membership methods are single
// atomic statements scoped to the affected set; none rewrites the whole task.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Delete(ctx context.Context, id, ownerID string) error
	SetContent(ctx context.Context, id, content string) (*Task, error)

	// SetCompleted sets is_completed only if it differs from the stored value.
	// changed is true for exactly one caller per edge crossing.
	SetCompleted(ctx context.Context, id string, completed bool) (t *Task, changed bool, err error)

	// AddPending invites userID unless they are owner, collaborator or already pending.
	AddPending(ctx context.Context, id, userID string) (*Task, error)
	// RemovePending drops userID from pending invitations if present.
	RemovePending(ctx context.Context, id, userID string) (*Task, error)
	// PromotePending moves userID from pending invitations to collaborators.
	PromotePending(ctx context.Context, id, userID string) (*Task, error)
	// AddCollaborator adds userID directly to a public task's collaborators.
	AddCollaborator(ctx context.Context, id, userID string) (*Task, error)

	ByOwner(ctx context.Context, ownerID string) ([]Task, error)
	ByCollaborator(ctx context.Context, userID string) ([]Task, error)
	ByInvitee(ctx context.Context, userID string) ([]Task, error)
	// Discoverable returns public tasks the user is not involved in, newest first.
	Discoverable(ctx context.Context, userID string, limit int) ([]Task, error)

	CountCompletedOwned(ctx context.Context, ownerID string) (int, error)
	EnsureTable(ctx context.Context) error
}
