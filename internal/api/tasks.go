package api

import (
	"net/http"

	"thrive/pkg/lifecycle"
	"thrive/pkg/task"
)

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Content    string          `json:"content"`
		Visibility task.Visibility `json:"visibility"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := s.lifecycle.CreateTask(r.Context(), uid, req.Content, req.Visibility)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := s.lifecycle.GetTask(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var p lifecycle.Patch
	if !decode(w, r, &p) {
		return
	}
	res, err := s.lifecycle.UpdateTask(r.Context(), r.PathValue("id"), uid, p)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, res)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.lifecycle.DeleteTask(r.Context(), r.PathValue("id"), uid); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (s *Server) handleTaskInvite(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, 400, "username is required")
		return
	}
	t, err := s.lifecycle.InviteCollaborator(r.Context(), r.PathValue("id"), uid, req.Username)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskAccept(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := s.lifecycle.AcceptInvite(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskReject(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	if err := s.lifecycle.RejectInvite(r.Context(), r.PathValue("id"), uid); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "rejected"})
}

func (s *Server) handleTaskJoin(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := s.lifecycle.RequestJoinPublicTask(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleRequestAccept(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := s.lifecycle.AcceptCollaborationRequest(r.Context(), r.PathValue("id"), uid, r.PathValue("userId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := s.dashboard.Get(r.Context(), uid)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, d)
}
