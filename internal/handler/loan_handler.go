package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/middleware"
)

// ApplyLoan handles loan applications
func (h *Handler) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID        string   `json:"group_id"`
		Amount         float64  `json:"amount"`
		Purpose        string   `json:"purpose"`
		DurationMonths int      `json:"duration_months"`
		InterestRate   *float64 `json:"interest_rate,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	loan, err := h.loans.Apply(r.Context(), middleware.UserID(r), req.GroupID,
		req.Amount, req.Purpose, req.DurationMonths, req.InterestRate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// GetLoan returns a single loan
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.Get(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// DecideLoan approves or rejects a pending application
func (h *Handler) DecideLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	loan, err := h.loans.Decide(r.Context(), mux.Vars(r)["id"], req.Status, middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// DisburseLoan releases funds on an approved loan
func (h *Handler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount    float64 `json:"amount"`
		Method    string  `json:"method"`
		Reference string  `json:"reference,omitempty"`
		Notes     string  `json:"notes,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	loan, err := h.loans.Disburse(r.Context(), mux.Vars(r)["id"],
		req.Amount, req.Method, req.Reference, req.Notes, middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// RecordRepayment applies a repayment to a disbursed loan
func (h *Handler) RecordRepayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      float64 `json:"amount"`
		PaymentDate string  `json:"payment_date,omitempty"` // YYYY-MM-DD
		Method      string  `json:"method,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	var paymentDate time.Time
	if req.PaymentDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			h.writeError(w, apperr.New(apperr.Validation, "payment_date must be YYYY-MM-DD"))
			return
		}
		paymentDate = parsed
	}

	loan, err := h.loans.RecordRepayment(r.Context(), mux.Vars(r)["id"],
		req.Amount, paymentDate, req.Method, middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// DeleteLoan withdraws a pending application
func (h *Handler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	if err := h.loans.Delete(r.Context(), mux.Vars(r)["id"], middleware.UserID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGroupLoans returns a group's loans
func (h *Handler) ListGroupLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListForGroup(r.Context(), mux.Vars(r)["id"], middleware.UserID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}
