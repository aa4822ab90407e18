// Package lifecycle implements the collaborative goal membership state
// machine. Per (task, user) the states are None, Invited and Collaborator;
// the owner is a separate, exclusive role.
//
//	None    -> Invited       InviteCollaborator
//	Invited -> Collaborator  AcceptInvite, AcceptCollaborationRequest
//	Invited -> None          RejectInvite
//	None    -> Collaborator  RequestJoinPublicTask (public tasks only)
//
// Nothing removes a collaborator short of deleting the task.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"thrive/pkg/achievement"
	"thrive/pkg/activity"
	"thrive/pkg/fault"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

// Rewarder is invoked once per false->true completion edge.
type Rewarder interface {
	RewardCompletion(ctx context.Context, t *task.Task) ([]achievement.Badge, error)
}

// Service runs task lifecycle operations on behalf of an acting user.
type Service struct {
	tasks    task.Store
	users    user.Store
	rewards  Rewarder
	activity activity.Store
}

// New creates a Service.
func New(tasks task.Store, users user.Store, rewards Rewarder, events activity.Store) *Service {
	return &Service{
		tasks:    tasks,
		users:    users,
		rewards:  rewards,
		activity: events,
	}
}

// Patch is a partial task update. Nil fields are left unchanged.
type Patch struct {
	Content     *string `json:"content,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// UpdateResult is the task after an update plus any badges the owner earned.
type UpdateResult struct {
	Task      *task.Task          `json:"task"`
	NewBadges []achievement.Badge `json:"new_badges"`
}

// CreateTask creates a task owned by ownerID with empty membership sets.
func (s *Service) CreateTask(ctx context.Context, ownerID, content string, visibility task.Visibility) (*task.Task, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fault.Validationf("content is required")
	}
	if visibility == "" {
		visibility = task.Private
	}
	if !visibility.Valid() {
		return nil, fault.Validationf("visibility must be %q or %q", task.Private, task.Public)
	}
	if _, err := s.user(ctx, ownerID); err != nil {
		return nil, err
	}

	t, err := s.tasks.Create(ctx, &task.Task{OwnerID: ownerID, Content: content, Visibility: visibility})
	if err != nil {
		return nil, err
	}
	s.record(ctx, activity.TaskCreated, ownerID, t.ID, map[string]any{"visibility": string(t.Visibility)})
	return t, nil
}

// GetTask returns a task the actor may see: owner, collaborator, invitee, or
// anyone for a public task.
func (s *Service) GetTask(ctx context.Context, taskID, actorID string) (*task.Task, error) {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Visibility != task.Public && !t.Involves(actorID) {
		return nil, fault.Unauthorizedf("not a member of this task")
	}
	return t, nil
}

// UpdateTask applies a patch. Content edits are owner-only; completion may be
// toggled by the owner or a collaborator. Only the false->true edge rewards.
func (s *Service) UpdateTask(ctx context.Context, taskID, actorID string, p Patch) (*UpdateResult, error) {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if p.Content != nil && !t.IsOwner(actorID) {
		return nil, fault.Unauthorizedf("only the owner can edit content")
	}
	if p.IsCompleted != nil && !t.IsOwner(actorID) && !t.IsCollaborator(actorID) {
		return nil, fault.Unauthorizedf("only the owner or a collaborator can change completion")
	}
	if p.Content == nil && p.IsCompleted == nil && !t.IsOwner(actorID) && !t.IsCollaborator(actorID) {
		return nil, fault.Unauthorizedf("not a member of this task")
	}

	if p.Content != nil {
		content := strings.TrimSpace(*p.Content)
		if content == "" {
			return nil, fault.Validationf("content is required")
		}
		if t, err = s.tasks.SetContent(ctx, taskID, content); err != nil {
			return nil, s.storeErr(err)
		}
	}

	result := &UpdateResult{Task: t, NewBadges: []achievement.Badge{}}
	if p.IsCompleted == nil {
		return result, nil
	}

	t, changed, err := s.tasks.SetCompleted(ctx, taskID, *p.IsCompleted)
	if err != nil {
		return nil, s.storeErr(err)
	}
	result.Task = t
	if changed && t.IsCompleted {
		log.Printf("lifecycle: task %s completed by %s", t.ID, actorID)
		badges, err := s.rewards.RewardCompletion(ctx, t)
		if err != nil {
			// Reopen the task so a retry crosses the edge again.
			if _, _, undoErr := s.tasks.SetCompleted(ctx, taskID, false); undoErr != nil {
				log.Printf("lifecycle: reopen %s after failed reward: %v", taskID, undoErr)
			}
			return nil, fmt.Errorf("reward completion of %s: %w", t.ID, err)
		}
		result.NewBadges = badges
	}
	return result, nil
}

// DeleteTask removes a task. Owner only.
func (s *Service) DeleteTask(ctx context.Context, taskID, actorID string) error {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return err
	}
	if !t.IsOwner(actorID) {
		return fault.Unauthorizedf("only the owner can delete this task")
	}
	if err := s.tasks.Delete(ctx, taskID, actorID); err != nil {
		return s.storeErr(err)
	}
	log.Printf("lifecycle: task %s deleted by %s", taskID, actorID)
	return nil
}

// InviteCollaborator adds the user named targetUsername to pending
// invitations. Owner only. Usable on private and public tasks alike.
func (s *Service) InviteCollaborator(ctx context.Context, taskID, ownerID, targetUsername string) (*task.Task, error) {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.IsOwner(ownerID) {
		return nil, fault.Unauthorizedf("only the owner can invite collaborators")
	}
	name := strings.TrimSpace(targetUsername)
	target, err := s.users.ByUsername(ctx, name)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fault.NotFoundf("User '%s' not found", name)
	}
	if err != nil {
		return nil, err
	}
	if t.Involves(target.ID) {
		return nil, fault.InvalidStatef("User '%s' is already involved with this task", target.Username)
	}

	t, err = s.tasks.AddPending(ctx, taskID, target.ID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.record(ctx, activity.TaskInvited, target.ID, t.ID, map[string]any{"owner_id": ownerID})
	return t, nil
}

// AcceptInvite turns the invitee's pending invitation into collaboration.
func (s *Service) AcceptInvite(ctx context.Context, taskID, inviteeID string) (*task.Task, error) {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.IsPending(inviteeID) {
		return nil, fault.InvalidStatef("no pending invitation for this task")
	}
	t, err = s.tasks.PromotePending(ctx, taskID, inviteeID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.record(ctx, activity.TaskJoined, inviteeID, t.ID, map[string]any{"via": "invite"})
	return t, nil
}

// RejectInvite drops the invitee's pending invitation.
func (s *Service) RejectInvite(ctx context.Context, taskID, inviteeID string) error {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return err
	}
	if !t.IsPending(inviteeID) {
		return fault.InvalidStatef("no pending invitation for this task")
	}
	if _, err := s.tasks.RemovePending(ctx, taskID, inviteeID); err != nil {
		return s.storeErr(err)
	}
	return nil
}

// RequestJoinPublicTask adds the requester straight to collaborators of a
// public task. There is no pending stage on this path.
func (s *Service) RequestJoinPublicTask(ctx context.Context, taskID, requesterID string) (*task.Task, error) {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Visibility != task.Public {
		return nil, fault.Validationf("only public tasks can be joined")
	}
	if t.IsOwner(requesterID) || t.IsCollaborator(requesterID) {
		return nil, fault.InvalidStatef("already involved with this task")
	}
	if _, err := s.user(ctx, requesterID); err != nil {
		return nil, err
	}
	t, err = s.tasks.AddCollaborator(ctx, taskID, requesterID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.record(ctx, activity.TaskJoined, requesterID, t.ID, map[string]any{"via": "public"})
	return t, nil
}

// AcceptCollaborationRequest lets the owner approve a pending entry, moving
// targetUserID to collaborators.
func (s *Service) AcceptCollaborationRequest(ctx context.Context, taskID, ownerID, targetUserID string) (*task.Task, error) {
	t, err := s.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.IsOwner(ownerID) {
		return nil, fault.Unauthorizedf("only the owner can accept requests")
	}
	if !t.IsPending(targetUserID) {
		return nil, fault.InvalidStatef("no pending request from this user")
	}
	t, err = s.tasks.PromotePending(ctx, taskID, targetUserID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.record(ctx, activity.TaskJoined, targetUserID, t.ID, map[string]any{"via": "approval"})
	return t, nil
}

func (s *Service) task(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if errors.Is(err, task.ErrNotFound) {
		return nil, fault.NotFoundf("task %s not found", id)
	}
	return t, err
}

func (s *Service) user(ctx context.Context, id string) (*user.User, error) {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fault.NotFoundf("user %s not found", id)
	}
	return u, err
}

// storeErr maps store outcomes after a successful pre-check. The task was
// present and eligible when read, so a failed condition means a concurrent
// request changed it first.
func (s *Service) storeErr(err error) error {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return fault.NotFoundf("task was deleted")
	case errors.Is(err, task.ErrPrecondition):
		return fault.Conflictf("task changed concurrently, retry")
	default:
		return err
	}
}

func (s *Service) record(ctx context.Context, entryType, actorID, subject string, content map[string]any) {
	if _, err := s.activity.Append(ctx, entryType, actorID, subject, content); err != nil {
		log.Printf("lifecycle: record %s for %s: %v", entryType, actorID, err)
	}
}
