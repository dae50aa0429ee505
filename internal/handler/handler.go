package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/service"
)

// Handler exposes the ledger operations over HTTP.
type Handler struct {
	auth          *service.AuthService
	groups        *service.GroupService
	settings      *service.SettingsService
	loans         *service.LoanService
	contributions *service.ContributionService
	invitations   *service.InvitationService
	log           *logrus.Logger
}

// NewHandler initializes a new handler over the service layer.
func NewHandler(
	auth *service.AuthService,
	groups *service.GroupService,
	settings *service.SettingsService,
	loans *service.LoanService,
	contributions *service.ContributionService,
	invitations *service.InvitationService,
	log *logrus.Logger,
) *Handler {
	return &Handler{
		auth:          auth,
		groups:        groups,
		settings:      settings,
		loans:         loans,
		contributions: contributions,
		invitations:   invitations,
		log:           log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.Validation, "malformed request body", err)
	}
	return nil
}

// writeError maps the error taxonomy onto HTTP statuses. Unclassified errors
// are logged with their cause and reported as a bare internal error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.log.Errorf("Internal error: %v", err)
	}
	writeJSON(w, statusFor(kind), map[string]string{
		"error": apperr.Message(err),
		"code":  kind.String(),
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Permission:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidState, apperr.Conflict:
		return http.StatusConflict
	case apperr.Expired:
		return http.StatusGone
	case apperr.Overpayment:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
