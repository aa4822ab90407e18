package api

import (
	"net/http"

	"thrive/pkg/achievement"
)

type badgesResponse struct {
	NewBadges []achievement.Badge `json:"new_badges"`
}

func (s *Server) handlePostCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	badges, err := s.engine.RecordPost(r.Context(), uid)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 201, badgesResponse{NewBadges: badges})
}

func (s *Server) handleFoodLog(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		CalorieGoalMet bool `json:"calorie_goal_met"`
	}
	if !decode(w, r, &req) {
		return
	}
	badges, err := s.engine.RecordFoodLog(r.Context(), uid, req.CalorieGoalMet)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 201, badgesResponse{NewBadges: badges})
}

func (s *Server) handleMeditation(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Minutes <= 0 {
		writeError(w, 400, "minutes must be positive")
		return
	}
	badges, err := s.engine.RecordMeditation(r.Context(), uid, req.Minutes)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 201, badgesResponse{NewBadges: badges})
}

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit < 1 {
		writeError(w, 400, "limit must be positive")
		return
	}
	entries, err := s.activity.Recent(r.Context(), uid, limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, 200, entries)
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.engine.Catalog().All())
}
