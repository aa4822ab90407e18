package achievement

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"thrive/pkg/activity"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

type fixture struct {
	users    *user.MemStore
	tasks    *task.MemStore
	activity *activity.MemStore
	engine   *Engine
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    user.NewMemStore(),
		tasks:    task.NewMemStore(),
		activity: activity.NewMemStore(),
		clock:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.engine = New(f.users, f.tasks, f.activity, WithClock(func() time.Time { return f.clock }))
	return f
}

func (f *fixture) register(t *testing.T, name string) *user.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), name)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (f *fixture) completeTask(t *testing.T, owner string, collaborators ...string) *task.Task {
	t.Helper()
	ctx := context.Background()
	tk, err := f.tasks.Create(ctx, &task.Task{OwnerID: owner, Content: "goal", Visibility: task.Public})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range collaborators {
		if _, err := f.tasks.AddCollaborator(ctx, tk.ID, c); err != nil {
			t.Fatal(err)
		}
	}
	tk, _, err = f.tasks.SetCompleted(ctx, tk.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

func codes(badges []Badge) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = b.Code
	}
	return out
}

func TestDefaultCatalogIsOrderedAndUnique(t *testing.T) {
	all := DefaultCatalog().All()
	if len(all) == 0 || all[0].Code != "first_goal" {
		t.Fatalf("unexpected catalog head: %v", codes(all))
	}
	if _, ok := DefaultCatalog().Lookup("task_master"); !ok {
		t.Error("task_master missing from catalog")
	}
	all[0].Code = "tampered"
	if DefaultCatalog().All()[0].Code != "first_goal" {
		t.Error("All must return a copy")
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	p := func(Facts) bool { return true }
	if _, err := NewCatalog(Badge{Code: "a", Predicate: p}, Badge{Code: "a", Predicate: p}); err == nil {
		t.Error("expected duplicate code error")
	}
	if _, err := NewCatalog(Badge{Code: "a"}); err == nil {
		t.Error("expected missing predicate error")
	}
}

func TestCheckAndAwardBadgesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.completeTask(t, alice.ID)

	first, err := f.engine.CheckAndAwardBadges(ctx, alice.ID)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if len(first) != 1 || first[0].Code != "first_goal" {
		t.Fatalf("first check: got %v", codes(first))
	}

	second, err := f.engine.CheckAndAwardBadges(ctx, alice.ID)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if second == nil || len(second) != 0 {
		t.Errorf("second check should return an empty list, got %v", second)
	}
}

func TestRewardCompletionGrantsXP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	tk := f.completeTask(t, alice.ID, bob.ID, carol.ID)

	badges, err := f.engine.RewardCompletion(ctx, tk)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if len(badges) != 1 || badges[0].Code != "first_goal" {
		t.Errorf("owner badges: %v", codes(badges))
	}

	want := map[string]int{alice.ID: XPTaskOwner, bob.ID: XPTaskCollaborator, carol.ID: XPTaskCollaborator}
	for id, xp := range want {
		u, _ := f.users.Get(ctx, id)
		if u.XP != xp {
			t.Errorf("%s xp: want %d, got %d", u.Username, xp, u.XP)
		}
	}
	bobUser, _ := f.users.Get(ctx, bob.ID)
	if len(bobUser.Badges) != 0 {
		t.Errorf("collaborators are not badge-checked on completion: %v", bobUser.Badges)
	}
}

func TestTaskMasterGrantedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	grants := 0
	for i := 1; i <= 11; i++ {
		tk := f.completeTask(t, alice.ID)
		badges, err := f.engine.RewardCompletion(ctx, tk)
		if err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
		for _, b := range badges {
			if b.Code == "task_master" {
				grants++
				if i != 10 {
					t.Errorf("task_master granted on completion %d", i)
				}
			}
		}
	}
	if grants != 1 {
		t.Errorf("task_master grants: want 1, got %d", grants)
	}
	u, _ := f.users.Get(ctx, alice.ID)
	n := 0
	for _, b := range u.Badges {
		if b == "task_master" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("stored task_master count: %d", n)
	}
}

func TestRecordPostCountsFromActivityLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	badges, err := f.engine.RecordPost(ctx, alice.ID)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(badges) != 1 || badges[0].Code != "first_post" {
		t.Errorf("first post badges: %v", codes(badges))
	}
	for i := 0; i < 9; i++ {
		badges, _ = f.engine.RecordPost(ctx, alice.ID)
	}
	if len(badges) != 1 || badges[0].Code != "community_voice" {
		t.Errorf("tenth post badges: %v", codes(badges))
	}
	u, _ := f.users.Get(ctx, alice.ID)
	if u.XP != 10*XPPost {
		t.Errorf("xp: want %d, got %d", 10*XPPost, u.XP)
	}
}

func TestRecordActionUnknownUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.RecordPost(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown user")
	}
	n, _ := f.activity.Count(context.Background(), "ghost", activity.PostCreated)
	if n != 0 {
		t.Error("no activity should be recorded for an unknown user")
	}
}

func TestFoodLogStreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	streakAfter := func() int {
		u, _ := f.users.Get(ctx, alice.ID)
		return u.Streak
	}

	f.engine.RecordFoodLog(ctx, alice.ID, true)
	if s := streakAfter(); s != 1 {
		t.Fatalf("day 1: want 1, got %d", s)
	}
	// Same day again: no double credit.
	f.engine.RecordFoodLog(ctx, alice.ID, true)
	if s := streakAfter(); s != 1 {
		t.Fatalf("day 1 repeat: want 1, got %d", s)
	}

	f.clock = f.clock.AddDate(0, 0, 1)
	f.engine.RecordFoodLog(ctx, alice.ID, false)
	if s := streakAfter(); s != 1 {
		t.Fatalf("day 2 goal missed: want 1, got %d", s)
	}
	f.engine.RecordFoodLog(ctx, alice.ID, true)
	if s := streakAfter(); s != 2 {
		t.Fatalf("day 2 goal met: want 2, got %d", s)
	}

	f.clock = f.clock.AddDate(0, 0, 1)
	badges, _ := f.engine.RecordFoodLog(ctx, alice.ID, true)
	if s := streakAfter(); s != 3 {
		t.Fatalf("day 3: want 3, got %d", s)
	}
	found := false
	for _, b := range badges {
		found = found || b.Code == "streak_3"
	}
	if !found {
		t.Errorf("streak_3 should be awarded on day 3, got %v", codes(badges))
	}

	f.clock = f.clock.AddDate(0, 0, 3)
	f.engine.RecordFoodLog(ctx, alice.ID, true)
	if s := streakAfter(); s != 1 {
		t.Fatalf("after gap: want 1, got %d", s)
	}
}

func TestMeditationStreakIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	badges, err := f.engine.RecordMeditation(ctx, alice.ID, 15)
	if err != nil {
		t.Fatalf("meditation: %v", err)
	}
	if len(badges) != 1 || badges[0].Code != "zen_beginner" {
		t.Errorf("badges: %v", codes(badges))
	}
	u, _ := f.users.Get(ctx, alice.ID)
	if u.MeditationStreak != 1 || u.Streak != 0 {
		t.Errorf("streaks: meditation=%d calorie=%d", u.MeditationStreak, u.Streak)
	}
	if u.XP != XPMeditationSession {
		t.Errorf("xp: want %d, got %d", XPMeditationSession, u.XP)
	}
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	older := today.AddDate(0, 0, -4)

	tests := []struct {
		name     string
		streak   int
		last     *time.Time
		goalMet  bool
		want     int
		credited bool
	}{
		{"goal missed", 4, &yesterday, false, 4, false},
		{"already credited today", 4, &today, true, 4, false},
		{"continues from yesterday", 4, &yesterday, true, 5, true},
		{"gap resets", 4, &older, true, 1, true},
		{"first credit", 0, nil, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, credited := NextStreak(tt.streak, tt.last, today, tt.goalMet)
			if got != tt.want || credited != tt.credited {
				t.Errorf("got (%d, %v), want (%d, %v)", got, credited, tt.want, tt.credited)
			}
		})
	}
}

func TestDateInUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 20:00 UTC on the 9th is already the 10th at UTC+10.
	got := dateIn(time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC), loc)
	if got.Day() != 10 {
		t.Errorf("want day 10, got %v", got)
	}
}

// contendedUsers loses every streak compare-and-set.
type contendedUsers struct {
	*user.MemStore
	credits int
}

func (c *contendedUsers) CreditStreak(context.Context, string, user.StreakKind, *time.Time, int, time.Time) (bool, error) {
	c.credits++
	return false, nil
}

func TestUpdateStreakLostRaceIsLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	users := &contendedUsers{MemStore: f.users}
	engine := New(users, f.tasks, f.activity, WithClock(func() time.Time { return f.clock }))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if err := engine.UpdateStreak(ctx, alice.ID, user.CalorieStreak, true); err != nil {
		t.Fatalf("lost race must not fail: %v", err)
	}
	if users.credits != streakCreditAttempts {
		t.Errorf("credit attempts: want %d, got %d", streakCreditAttempts, users.credits)
	}
	if !strings.Contains(buf.String(), "lost race") {
		t.Errorf("expected lost race log, got %q", buf.String())
	}
	u, _ := f.users.Get(ctx, alice.ID)
	if u.Streak != 0 {
		t.Errorf("streak should be unchanged, got %d", u.Streak)
	}
}
