package api

import (
	"net/http"

	"github.com/base-guestbook/internal/service"
	"github.com/base-guestbook/internal/types"
	"github.com/gorilla/mux"
)

// handleRecordMessage handles POST /api/guestbook/messages. The client
// wallet already confirmed the transaction; this mirrors it.
func (s *Server) handleRecordMessage(w http.ResponseWriter, r *http.Request) {
	var req service.RecordMessageInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body: "+err.Error(), nil)
		return
	}

	message, err := s.guestbookService.RecordMessage(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, message)
}

// handleListMessages handles GET /api/guestbook/messages
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	messages, pagination, err := s.guestbookService.ListMessages(r.Context(), page, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages":   messages,
		"pagination": pagination,
	})
}

// addReactionRequest is the body of POST /api/guestbook/messages/{messageId}/reactions
type addReactionRequest struct {
	UserID       string `json:"userId"`
	ReactionType string `json:"reactionType"`
}

// handleAddReaction handles POST /api/guestbook/messages/{messageId}/reactions
func (s *Server) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["messageId"]

	var req addReactionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body: "+err.Error(), nil)
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "userId is required", nil)
		return
	}

	message, err := s.guestbookService.AddReaction(r.Context(), messageID, req.UserID, types.ReactionKind(req.ReactionType))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, message)
}

// handleListEntries handles GET /api/guestbook/entries, the merged
// chain-plus-mirror listing
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	q := r.URL.Query()

	search := q.Get("search")
	if search == "" {
		search = q.Get("q")
	}

	query := &service.EntryQuery{
		Search: search,
		Date:   types.DateFilter(q.Get("date")),
		Tag:    q.Get("tag"),
		Sort:   types.SortOrder(q.Get("sort")),
		Page:   page,
		Limit:  limit,
	}

	result, err := s.queryService.ListEntries(r.Context(), query)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleSign handles POST /api/guestbook/sign, the server-side write
// path: validate, gate, broadcast, confirm, mirror
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req service.SignInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body: "+err.Error(), nil)
		return
	}

	result, err := s.guestbookService.SignAndRecord(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleApprove handles POST /api/guestbook/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	txHash, err := s.guestbookService.ApproveSigning(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"txHash": txHash})
}

// handleLedgerStatus handles GET /api/ledger/status
func (s *Server) handleLedgerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.guestbookService.Status(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
