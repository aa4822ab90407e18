// Package dashboard builds the per-user composite view of goals.
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"thrive/pkg/task"
)

// DefaultPublicLimit bounds PublicTasks when no limit is configured.
const DefaultPublicLimit = 10

// Dashboard is a display view. The four lists are read concurrently and are
// not a consistent snapshot.
type Dashboard struct {
	OwnedTasks         []task.Task `json:"owned_tasks"`
	CollaboratingTasks []task.Task `json:"collaborating_tasks"`
	Invitations        []task.Task `json:"invitations"`
	PublicTasks        []task.Task `json:"public_tasks"`
}

// Reader is the read side of task.Store used here.
type Reader interface {
	ByOwner(ctx context.Context, ownerID string) ([]task.Task, error)
	ByCollaborator(ctx context.Context, userID string) ([]task.Task, error)
	ByInvitee(ctx context.Context, userID string) ([]task.Task, error)
	Discoverable(ctx context.Context, userID string, limit int) ([]task.Task, error)
}

// Aggregator assembles dashboards.
type Aggregator struct {
	tasks       Reader
	publicLimit int
}

// New creates an Aggregator. A non-positive limit falls back to DefaultPublicLimit.
func New(tasks Reader, publicLimit int) *Aggregator {
	if publicLimit <= 0 {
		publicLimit = DefaultPublicLimit
	}
	return &Aggregator{tasks: tasks, publicLimit: publicLimit}
}

// Get returns the dashboard for userID.
func (a *Aggregator) Get(ctx context.Context, userID string) (*Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		owned, err := a.tasks.ByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("owned tasks: %w", err)
		}
		d.OwnedTasks = maskSentInvitations(owned)
		return nil
	})
	g.Go(func() error {
		var err error
		if d.CollaboratingTasks, err = a.tasks.ByCollaborator(ctx, userID); err != nil {
			return fmt.Errorf("collaborating tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d.Invitations, err = a.tasks.ByInvitee(ctx, userID); err != nil {
			return fmt.Errorf("invitations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d.PublicTasks, err = a.tasks.Discoverable(ctx, userID, a.publicLimit); err != nil {
			return fmt.Errorf("public tasks: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard for %s: %w", userID, err)
	}
	d.OwnedTasks = nonNil(d.OwnedTasks)
	d.CollaboratingTasks = nonNil(d.CollaboratingTasks)
	d.Invitations = nonNil(d.Invitations)
	d.PublicTasks = nonNil(d.PublicTasks)
	return &d, nil
}

// maskSentInvitations hides pending invitations on private owned tasks. On a
// private task those are invites the owner sent, not requests to approve.
// Public tasks keep theirs.
func maskSentInvitations(tasks []task.Task) []task.Task {
	for i := range tasks {
		if tasks[i].Visibility == task.Private {
			tasks[i].PendingInvitations = []string{}
		}
	}
	return tasks
}

func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}
