package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"thrive/pkg/achievement"
	"thrive/pkg/activity"
	"thrive/pkg/dashboard"
	"thrive/pkg/fault"
	"thrive/pkg/lifecycle"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

// UserHeader carries the caller's user ID. Authentication happens upstream.
const UserHeader = "X-User-ID"

// Server is the HTTP API server.
type Server struct {
	lifecycle *lifecycle.Service
	dashboard *dashboard.Aggregator
	engine    *achievement.Engine
	users     user.Store
	activity  activity.Store
	mux       *http.ServeMux
}

// New creates a new Server.
func New(svc *lifecycle.Service, dash *dashboard.Aggregator, engine *achievement.Engine, users user.Store, events activity.Store) *Server {
	s := &Server{
		lifecycle: svc,
		dashboard: dash,
		engine:    engine,
		users:     users,
		activity:  events,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Users
	s.mux.HandleFunc("POST /api/users", s.handleUserRegister)
	s.mux.HandleFunc("GET /api/users/{id}", s.handleUserGet)

	// Tasks
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
	s.mux.HandleFunc("POST /api/tasks/{id}/invite", s.handleTaskInvite)
	s.mux.HandleFunc("POST /api/tasks/{id}/accept", s.handleTaskAccept)
	s.mux.HandleFunc("POST /api/tasks/{id}/reject", s.handleTaskReject)
	s.mux.HandleFunc("POST /api/tasks/{id}/join", s.handleTaskJoin)
	s.mux.HandleFunc("POST /api/tasks/{id}/requests/{userId}/accept", s.handleRequestAccept)

	// Dashboard
	s.mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	// Activity and achievements
	s.mux.HandleFunc("POST /api/activity/posts", s.handlePostCreate)
	s.mux.HandleFunc("POST /api/activity/food", s.handleFoodLog)
	s.mux.HandleFunc("POST /api/activity/meditation", s.handleMeditation)
	s.mux.HandleFunc("GET /api/activity", s.handleActivityList)
	s.mux.HandleFunc("GET /api/badges", s.handleBadges)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

// actor returns the calling user's ID, writing a 401 if it is missing.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(UserHeader)
	if id == "" {
		writeError(w, 401, UserHeader+" header is required")
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFault writes err with the status for its kind. Store-level not-found
// errors that escaped the services are treated as not_found too.
func writeFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	if kind == fault.Internal && (errors.Is(err, user.ErrNotFound) || errors.Is(err, task.ErrNotFound)) {
		kind = fault.NotFound
	}
	status := statusFor(kind)
	msg := err.Error()
	if status == 500 {
		log.Printf("api: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg, "kind": string(kind)})
}

func statusFor(k fault.Kind) int {
	switch k {
	case fault.Validation:
		return 400
	case fault.Unauthorized:
		return 403
	case fault.NotFound:
		return 404
	case fault.InvalidState, fault.Conflict:
		return 409
	default:
		return 500
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
