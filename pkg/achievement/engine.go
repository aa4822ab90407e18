// Package achievement grants XP, badges and streak credit for qualifying
// actions: task completion, posts, food logs and meditation sessions.
package achievement

import (
	"context"
	"fmt"
	"log"
	"time"

	"thrive/pkg/activity"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

// XP granted per qualifying action. Flat, non-decaying, uncapped.
const (
	XPPost              = 15
	XPFoodLog           = 5
	XPTaskOwner         = 10
	XPTaskCollaborator  = 5
	XPMeditationSession = 20
)

const streakCreditAttempts = 2

// TaskCounter is the slice of the task store the engine reads.
type TaskCounter interface {
	CountCompletedOwned(ctx context.Context, ownerID string) (int, error)
}

// Engine evaluates the badge catalog and applies XP and streak updates.
type Engine struct {
	users    user.Store
	tasks    TaskCounter
	activity activity.Store
	catalog  *Catalog
	now      func() time.Time
	loc      *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the time zone that decides where a streak day begins.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithCatalog replaces the default badge catalog.
func WithCatalog(c *Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// New creates an Engine.
func New(users user.Store, tasks TaskCounter, events activity.Store, opts ...Option) *Engine {
	e := &Engine{
		users:    users,
		tasks:    tasks,
		activity: events,
		catalog:  DefaultCatalog(),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// CheckAndAwardBadges grants every catalog badge the user newly qualifies for
// and returns them in catalog order. Badges already held are skipped without
// evaluation. A second call with no state change in between returns none.
func (e *Engine) CheckAndAwardBadges(ctx context.Context, userID string) ([]Badge, error) {
	u, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var facts *Facts
	var codes []string
	for _, b := range e.catalog.badges {
		if u.HasBadge(b.Code) {
			continue
		}
		if facts == nil {
			f, err := e.facts(ctx, u)
			if err != nil {
				return nil, err
			}
			facts = &f
		}
		if b.Predicate(*facts) {
			codes = append(codes, b.Code)
		}
	}
	if len(codes) == 0 {
		return []Badge{}, nil
	}

	// A concurrent caller may have won some of these; only report what we added.
	added, err := e.users.AddBadges(ctx, userID, codes)
	if err != nil {
		return nil, err
	}
	awarded := make([]Badge, 0, len(added))
	for _, code := range added {
		b, _ := e.catalog.Lookup(code)
		awarded = append(awarded, b)
		e.record(ctx, activity.BadgeAwarded, userID, code, map[string]any{"name": b.Name})
	}
	if len(awarded) > 0 {
		log.Printf("achievement: awarded %v to %s", added, userID)
	}
	return awarded, nil
}

// RewardCompletion grants completion XP to the owner and every current
// collaborator, then checks the owner's badges. Call it once per false->true
// edge of a task's completion flag.
func (e *Engine) RewardCompletion(ctx context.Context, t *task.Task) ([]Badge, error) {
	if _, err := e.users.AddXP(ctx, t.OwnerID, XPTaskOwner); err != nil {
		return nil, fmt.Errorf("reward owner of %s: %w", t.ID, err)
	}
	if err := e.users.AddXPMany(ctx, t.Collaborators, XPTaskCollaborator); err != nil {
		return nil, fmt.Errorf("reward collaborators of %s: %w", t.ID, err)
	}
	e.record(ctx, activity.TaskCompleted, t.OwnerID, t.ID, map[string]any{
		"collaborators": len(t.Collaborators),
	})
	return e.CheckAndAwardBadges(ctx, t.OwnerID)
}

// RecordPost credits a community post.
func (e *Engine) RecordPost(ctx context.Context, userID string) ([]Badge, error) {
	if err := e.logAction(ctx, activity.PostCreated, userID, nil); err != nil {
		return nil, err
	}
	if _, err := e.users.AddXP(ctx, userID, XPPost); err != nil {
		return nil, err
	}
	return e.CheckAndAwardBadges(ctx, userID)
}

// RecordFoodLog credits a food log entry and advances the calorie streak when
// the day's calorie goal has been met.
func (e *Engine) RecordFoodLog(ctx context.Context, userID string, calorieGoalMet bool) ([]Badge, error) {
	if err := e.logAction(ctx, activity.FoodLogged, userID, map[string]any{"calorie_goal_met": calorieGoalMet}); err != nil {
		return nil, err
	}
	if _, err := e.users.AddXP(ctx, userID, XPFoodLog); err != nil {
		return nil, err
	}
	if err := e.UpdateStreak(ctx, userID, user.CalorieStreak, calorieGoalMet); err != nil {
		return nil, err
	}
	return e.CheckAndAwardBadges(ctx, userID)
}

// RecordMeditation credits a finished meditation session; a session counts as
// meeting the day's meditation goal.
func (e *Engine) RecordMeditation(ctx context.Context, userID string, minutes int) ([]Badge, error) {
	if err := e.logAction(ctx, activity.MeditationLogged, userID, map[string]any{"minutes": minutes}); err != nil {
		return nil, err
	}
	if _, err := e.users.AddXP(ctx, userID, XPMeditationSession); err != nil {
		return nil, err
	}
	if err := e.UpdateStreak(ctx, userID, user.MeditationStreak, true); err != nil {
		return nil, err
	}
	return e.CheckAndAwardBadges(ctx, userID)
}

// UpdateStreak applies today's goal result to the user's streak of the given
// kind. The write is a compare-and-set on the last credited date; losing the
// race means another event already credited today, so one retry suffices.
func (e *Engine) UpdateStreak(ctx context.Context, userID string, kind user.StreakKind, goalMet bool) error {
	if !goalMet {
		return nil
	}
	today := dateIn(e.now(), e.loc)
	for attempt := 0; attempt < streakCreditAttempts; attempt++ {
		u, err := e.users.Get(ctx, userID)
		if err != nil {
			return err
		}
		streak, last := u.StreakState(kind)
		next, credited := NextStreak(streak, last, today, goalMet)
		if !credited {
			return nil
		}
		ok, err := e.users.CreditStreak(ctx, userID, kind, last, next, today)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	log.Printf("achievement: %s streak credit for %s lost race", kind, userID)
	return nil
}

func (e *Engine) facts(ctx context.Context, u *user.User) (Facts, error) {
	f := Facts{
		Streak:           u.Streak,
		MeditationStreak: u.MeditationStreak,
		XP:               u.XP,
	}
	var err error
	if f.CompletedTasks, err = e.tasks.CountCompletedOwned(ctx, u.ID); err != nil {
		return f, err
	}
	if f.Posts, err = e.activity.Count(ctx, u.ID, activity.PostCreated); err != nil {
		return f, err
	}
	if f.FoodLogs, err = e.activity.Count(ctx, u.ID, activity.FoodLogged); err != nil {
		return f, err
	}
	if f.MeditationSessions, err = e.activity.Count(ctx, u.ID, activity.MeditationLogged); err != nil {
		return f, err
	}
	return f, nil
}

// logAction records an action whose count feeds badge predicates, so a
// failure is returned rather than logged.
func (e *Engine) logAction(ctx context.Context, entryType, userID string, content map[string]any) error {
	if _, err := e.users.Get(ctx, userID); err != nil {
		return err
	}
	if _, err := e.activity.Append(ctx, entryType, userID, "", content); err != nil {
		return fmt.Errorf("record %s: %w", entryType, err)
	}
	return nil
}

// record appends an informational entry; failures are only logged.
func (e *Engine) record(ctx context.Context, entryType, actorID, subject string, content map[string]any) {
	if _, err := e.activity.Append(ctx, entryType, actorID, subject, content); err != nil {
		log.Printf("achievement: record %s for %s: %v", entryType, actorID, err)
	}
}
