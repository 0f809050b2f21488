package api

import (
	"net/http"

	"github.com/base-guestbook/internal/service"
	"github.com/base-guestbook/internal/types"
	"github.com/gorilla/mux"
)

// handleRecordActivity handles POST /api/activities
func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req service.RecordInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body: "+err.Error(), nil)
		return
	}

	activity, err := s.activityService.Record(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, activity)
}

// handleListActivities handles GET /api/activities
func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	activityType := types.ActivityType(r.URL.Query().Get("type"))

	activities, pagination, err := s.activityService.List(r.Context(), activityType, page, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"pagination": pagination,
	})
}

// handleListUserActivities handles GET /api/activities/user/{userId}
func (s *Server) handleListUserActivities(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	userID := mux.Vars(r)["userId"]

	activities, pagination, err := s.activityService.ListByUser(r.Context(), userID, page, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"pagination": pagination,
	})
}
