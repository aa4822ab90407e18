package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"thrive/pkg/achievement"
	"thrive/pkg/activity"
	"thrive/pkg/dashboard"
	"thrive/pkg/lifecycle"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

type testEnv struct {
	srv    *Server
	users  *user.MemStore
	events *activity.MemStore
}

func newTestEnv() *testEnv {
	tasks := task.NewMemStore()
	users := user.NewMemStore()
	events := activity.NewMemStore()
	engine := achievement.New(users, tasks, events)
	svc := lifecycle.New(tasks, users, engine, events)
	srv := New(svc, dashboard.New(tasks, 10), engine, users, events)
	return &testEnv{srv: srv, users: users, events: events}
}

func (e *testEnv) do(t *testing.T, method, path, uid, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if uid != "" {
		req.Header.Set(UserHeader, uid)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, name string) string {
	t.Helper()
	w := e.do(t, "POST", "/api/users", "", `{"username":"`+name+`"}`)
	if w.Code != 201 {
		t.Fatalf("register %s: %d %s", name, w.Code, w.Body)
	}
	var u user.User
	json.NewDecoder(w.Body).Decode(&u)
	return u.ID
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) task.Task {
	t.Helper()
	var tk task.Task
	if err := json.NewDecoder(w.Body).Decode(&tk); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return tk
}

func TestHealth(t *testing.T) {
	e := newTestEnv()
	w := e.do(t, "GET", "/health", "", "")
	if w.Code != 200 {
		t.Fatalf("health: %d", w.Code)
	}
}

func TestMissingIdentity(t *testing.T) {
	e := newTestEnv()
	w := e.do(t, "POST", "/api/tasks", "", `{"content":"x"}`)
	if w.Code != 401 {
		t.Errorf("want 401, got %d", w.Code)
	}
}

func TestInviteAcceptOverHTTP(t *testing.T) {
	e := newTestEnv()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")

	w := e.do(t, "POST", "/api/tasks", alice, `{"content":"Run 5k","visibility":"private"}`)
	if w.Code != 201 {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	tk := decodeTask(t, w)

	w = e.do(t, "POST", "/api/tasks/"+tk.ID+"/invite", alice, `{"username":"Bob"}`)
	if w.Code != 200 {
		t.Fatalf("invite: %d %s", w.Code, w.Body)
	}
	w = e.do(t, "POST", "/api/tasks/"+tk.ID+"/accept", bob, "")
	if w.Code != 200 {
		t.Fatalf("accept: %d %s", w.Code, w.Body)
	}
	got := decodeTask(t, w)
	if !got.IsCollaborator(bob) || got.IsPending(bob) {
		t.Errorf("bob should be a collaborator: %+v", got)
	}

	w = e.do(t, "GET", "/api/dashboard", alice, "")
	var d dashboard.Dashboard
	json.NewDecoder(w.Body).Decode(&d)
	if len(d.OwnedTasks) != 1 || len(d.OwnedTasks[0].PendingInvitations) != 0 {
		t.Errorf("dashboard owned: %+v", d.OwnedTasks)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	e := newTestEnv()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	tk := decodeTask(t, e.do(t, "POST", "/api/tasks", alice, `{"content":"Run 5k"}`))

	tests := []struct {
		name   string
		method string
		path   string
		uid    string
		body   string
		status int
		kind   string
	}{
		{"empty content", "POST", "/api/tasks", alice, `{"content":" "}`, 400, "validation"},
		{"unknown invitee", "POST", "/api/tasks/" + tk.ID + "/invite", alice, `{"username":"zed"}`, 404, "not_found"},
		{"non-owner edit", "PATCH", "/api/tasks/" + tk.ID, bob, `{"content":"x"}`, 403, "unauthorized"},
		{"reject without invite", "POST", "/api/tasks/" + tk.ID + "/reject", bob, "", 409, "invalid_state"},
		{"join private", "POST", "/api/tasks/" + tk.ID + "/join", bob, "", 400, "validation"},
		{"missing task", "GET", "/api/tasks/nope", alice, "", 404, "not_found"},
		{"unknown user activity", "POST", "/api/activity/posts", "ghost", "", 404, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.uid, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status: want %d, got %d (%s)", tt.status, w.Code, w.Body)
			}
			var body map[string]string
			json.NewDecoder(w.Body).Decode(&body)
			if body["kind"] != tt.kind {
				t.Errorf("kind: want %q, got %q", tt.kind, body["kind"])
			}
		})
	}

	w := e.do(t, "POST", "/api/tasks/"+tk.ID+"/invite", alice, `{"username":"zed"}`)
	if !strings.Contains(w.Body.String(), "User 'zed' not found") {
		t.Errorf("message: %s", w.Body)
	}
}

func TestCompletionReturnsNewBadges(t *testing.T) {
	e := newTestEnv()
	alice := e.register(t, "alice")
	tk := decodeTask(t, e.do(t, "POST", "/api/tasks", alice, `{"content":"Run 5k"}`))

	w := e.do(t, "PATCH", "/api/tasks/"+tk.ID, alice, `{"is_completed":true}`)
	if w.Code != 200 {
		t.Fatalf("patch: %d %s", w.Code, w.Body)
	}
	var res struct {
		Task      task.Task `json:"task"`
		NewBadges []struct {
			Code string `json:"code"`
		} `json:"new_badges"`
	}
	json.NewDecoder(w.Body).Decode(&res)
	if !res.Task.IsCompleted || len(res.NewBadges) != 1 || res.NewBadges[0].Code != "first_goal" {
		t.Errorf("unexpected result: %+v", res)
	}

	u, _ := e.users.Get(context.Background(), alice)
	if u.XP != achievement.XPTaskOwner {
		t.Errorf("xp: %d", u.XP)
	}
}

func TestActivityEndpoints(t *testing.T) {
	e := newTestEnv()
	alice := e.register(t, "alice")

	w := e.do(t, "POST", "/api/activity/posts", alice, "")
	if w.Code != 201 || !strings.Contains(w.Body.String(), "first_post") {
		t.Fatalf("post: %d %s", w.Code, w.Body)
	}
	w = e.do(t, "POST", "/api/activity/food", alice, `{"calorie_goal_met":true}`)
	if w.Code != 201 {
		t.Fatalf("food: %d %s", w.Code, w.Body)
	}
	w = e.do(t, "POST", "/api/activity/meditation", alice, `{"minutes":0}`)
	if w.Code != 400 {
		t.Errorf("zero minutes: want 400, got %d", w.Code)
	}

	w = e.do(t, "GET", "/api/activity?limit=2", alice, "")
	var entries []activity.Entry
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 2 {
		t.Errorf("want 2 entries, got %d", len(entries))
	}

	u, _ := e.users.Get(context.Background(), alice)
	if u.Streak != 1 || u.XP != achievement.XPPost+achievement.XPFoodLog {
		t.Errorf("user after actions: %+v", u)
	}
}

func TestActivityLimitMustBePositive(t *testing.T) {
	e := newTestEnv()
	alice := e.register(t, "alice")
	for _, q := range []string{"0", "-1"} {
		w := e.do(t, "GET", "/api/activity?limit="+q, alice, "")
		if w.Code != 400 {
			t.Errorf("limit=%s: want 400, got %d (%s)", q, w.Code, w.Body)
		}
	}
}

func TestBadgeCatalog(t *testing.T) {
	e := newTestEnv()
	w := e.do(t, "GET", "/api/badges", "", "")
	var badges []map[string]any
	json.NewDecoder(w.Body).Decode(&badges)
	if len(badges) != len(achievement.DefaultCatalog().All()) {
		t.Fatalf("catalog size: %d", len(badges))
	}
	if _, ok := badges[0]["Predicate"]; ok {
		t.Error("predicate must not be serialized")
	}
}
