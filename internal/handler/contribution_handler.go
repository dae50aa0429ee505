package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/middleware"
)

// RecordContribution appends a payment record to the group ledger
func (h *Handler) RecordContribution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID  string  `json:"group_id"`
		MemberID string  `json:"member_id,omitempty"` // defaults to the caller
		Amount   float64 `json:"amount"`
		Date     string  `json:"date,omitempty"` // YYYY-MM-DD
		Method   string  `json:"method,omitempty"`
		Notes    string  `json:"notes,omitempty"`
		Status   string  `json:"status,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	var paidAt time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			h.writeError(w, apperr.New(apperr.Validation, "date must be YYYY-MM-DD"))
			return
		}
		paidAt = parsed
	}

	c, err := h.contributions.Record(r.Context(), middleware.UserID(r), req.MemberID,
		req.GroupID, req.Amount, paidAt, req.Method, req.Notes, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListUserContributions returns a user's contributions across their active
// memberships. Always responds 200 with a list, possibly empty.
func (h *Handler) ListUserContributions(w http.ResponseWriter, r *http.Request) {
	list, err := h.contributions.ListForMember(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListGroupContributions returns a group's contributions
func (h *Handler) ListGroupContributions(w http.ResponseWriter, r *http.Request) {
	list, err := h.contributions.ListForGroup(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
