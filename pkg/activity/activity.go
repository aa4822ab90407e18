// Package activity records qualifying user actions in an append-only log.
// The log is the source of truth for action counts (posts, food logs,
// meditation sessions) and the feed handed to the notification layer.
package activity

import (
	"context"
	"time"
)

// Entry types.
const (
	TaskCreated      = "task.created"
	TaskCompleted    = "task.completed"
	TaskInvited      = "task.invited"
	TaskJoined       = "task.joined"
	PostCreated      = "post.created"
	FoodLogged       = "food.logged"
	MeditationLogged = "meditation.logged"
	BadgeAwarded     = "badge.awarded"
)

// Entry is a single recorded action.
type Entry struct {
	ID        string         `json:"id"`       // UUID v7 (time-ordered)
	Type      string         `json:"type"`     // e.g. "post.created"
	ActorID   string         `json:"actor_id"` // user who acted or was rewarded
	Subject   string         `json:"subject"`  // task ID, badge code, ...
	Content   map[string]any `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store is the contract for activity persistence.
type Store interface {
	Append(ctx context.Context, entryType, actorID, subject string, content map[string]any) (*Entry, error)
	Count(ctx context.Context, actorID, entryType string) (int, error)
	Recent(ctx context.Context, actorID string, limit int) ([]Entry, error)
	EnsureTable(ctx context.Context) error
}
