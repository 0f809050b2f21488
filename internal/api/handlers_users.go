package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// authUserRequest is the body of POST /api/users/auth
type authUserRequest struct {
	WalletAddress string `json:"walletAddress"`
	Username      string `json:"username,omitempty"`
}

// handleAuthUser handles POST /api/users/auth
func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	var req authUserRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body: "+err.Error(), nil)
		return
	}
	if req.WalletAddress == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "walletAddress is required", nil)
		return
	}

	result, err := s.userService.Authenticate(r.Context(), req.WalletAddress, req.Username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, result)
}

// handleGetUser handles GET /api/users/{walletAddress}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	walletAddress := mux.Vars(r)["walletAddress"]

	user, err := s.userService.GetByWalletAddress(r.Context(), walletAddress)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleListUsers handles GET /api/users
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	users, pagination, err := s.userService.List(r.Context(), page, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users":      users,
		"pagination": pagination,
	})
}
