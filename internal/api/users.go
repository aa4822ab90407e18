package api

import (
	"net/http"
	"strings"
)

func (s *Server) handleUserRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, 400, "username is required")
		return
	}
	u, err := s.users.Register(r.Context(), req.Username)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 201, u)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, u)
}
