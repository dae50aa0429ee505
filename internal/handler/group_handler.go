package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chamaledger/chama-service/internal/middleware"
	"github.com/chamaledger/chama-service/internal/models"
)

// CreateGroup handles group creation
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string               `json:"name"`
		Settings models.GroupSettings `json:"settings"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	group, err := h.groups.Create(r.Context(), middleware.UserID(r), req.Name, req.Settings)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// GetGroup returns a group with its policy
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Get(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// ListMembers returns a group's active memberships
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.groups.Members(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// RemoveMember deactivates a membership
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.groups.RemoveMember(r.Context(), vars["id"], vars["userId"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings returns a group's policy settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces a group's policy settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.GroupSettings
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	settings, err := h.settings.Update(r.Context(), mux.Vars(r)["id"], middleware.UserID(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
