package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chamaledger/chama-service/internal/middleware"
	"github.com/chamaledger/chama-service/internal/models"
)

// CreateInvitation issues a membership invitation or files a join request
func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID     string `json:"group_id"`
		Email       string `json:"email,omitempty"`
		Phone       string `json:"phone,omitempty"`
		FirstName   string `json:"first_name,omitempty"`
		LastName    string `json:"last_name,omitempty"`
		InvitedRole string `json:"invited_role,omitempty"`
		TTLHours    int    `json:"ttl_hours,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	inv, err := h.invitations.Create(r.Context(), middleware.UserID(r), req.GroupID,
		req.Email, req.Phone, req.FirstName, req.LastName, req.InvitedRole,
		time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// The token is returned once, to the issuer, and never serialized again.
	writeJSON(w, http.StatusCreated, struct {
		*models.Invitation
		Token string `json:"invitation_token"`
	}{inv, inv.Token})
}

// LookupInvitation resolves an invitation token
func (h *Handler) LookupInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invitations.Lookup(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// AcceptInvitation consumes a token and creates the membership
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var profile models.InvitationProfile
	if err := decodeJSON(r, &profile); err != nil {
		h.writeError(w, err)
		return
	}

	inv, membership, err := h.invitations.Accept(r.Context(), mux.Vars(r)["token"],
		middleware.UserID(r), profile)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invitation": inv,
		"membership": membership,
	})
}

// RejectInvitation administratively closes an open membership request
func (h *Handler) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.invitations.Reject(r.Context(), mux.Vars(r)["id"], middleware.UserID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGroupInvitations returns a group's membership requests
func (h *Handler) ListGroupInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := h.invitations.ListForGroup(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
