package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
	"github.com/chamaledger/chama-service/internal/notify"
	"github.com/chamaledger/chama-service/internal/storage"
)

// fallbackInterestRate applies when neither the application nor the group
// policy specifies a rate.
const fallbackInterestRate = 10.0

// LoanService drives the loan lifecycle: application, decision, disbursement,
// repayment and withdrawal.
type LoanService struct {
	store    *storage.Store
	log      *logrus.Logger
	notifier notify.Dispatcher
	now      func() time.Time
}

// NewLoanService initializes a new loan service.
func NewLoanService(store *storage.Store, log *logrus.Logger, notifier notify.Dispatcher) *LoanService {
	return &LoanService{store: store, log: log, notifier: notifier, now: defaultNow}
}

// Apply submits a loan application for the borrower. The interest rate is
// resolved from the request, then the group policy, then a fixed fallback.
func (s *LoanService) Apply(ctx context.Context, borrowerID, groupID string, amount float64, purpose string, durationMonths int, requestedRate *float64) (*models.Loan, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.Validation, "loan amount must be greater than zero")
	}
	if purpose == "" {
		return nil, apperr.New(apperr.Validation, "loan purpose is required")
	}
	if durationMonths <= 0 {
		return nil, apperr.New(apperr.Validation, "loan duration must be at least one month")
	}
	if requestedRate != nil && (*requestedRate < 0 || *requestedRate > 100) {
		return nil, apperr.New(apperr.Validation, "interest rate must be between 0 and 100")
	}

	membership, err := s.requireMembership(ctx, groupID, borrowerID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	rate := fallbackInterestRate
	switch {
	case requestedRate != nil:
		rate = *requestedRate
	case group.Settings.InterestRate > 0:
		rate = group.Settings.InterestRate
	}

	now := s.now()
	loan := &models.Loan{
		ID:             uuid.NewString(),
		GroupID:        groupID,
		MembershipID:   membership.ID,
		BorrowerID:     borrowerID,
		Amount:         round2(amount),
		Purpose:        purpose,
		DurationMonths: durationMonths,
		InterestRate:   rate,
		Status:         models.LoanPending,
		AppliedAt:      now,
		DueDate:        now.AddDate(0, durationMonths, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":  loan.ID,
		"group_id": groupID,
		"amount":   loan.Amount,
	}).Info("Loan application submitted")
	return loan, nil
}

// Decide approves or rejects a pending application.
func (s *LoanService) Decide(ctx context.Context, loanID, decision, deciderID string) (*models.Loan, error) {
	if decision != models.LoanApproved && decision != models.LoanRejected {
		return nil, apperr.Newf(apperr.Validation, "decision must be %q or %q", models.LoanApproved, models.LoanRejected)
	}

	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, loan.GroupID, deciderID); err != nil {
		return nil, err
	}

	decided, err := s.store.DecideLoan(ctx, loanID, decision, deciderID, s.now().Unix())
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":  loanID,
		"decision": decision,
		"decider":  deciderID,
	}).Info("Loan decided")
	s.notifyBorrower(ctx, decided, notify.EventLoanDecided,
		fmt.Sprintf("Loan %s", decision),
		fmt.Sprintf("Your loan application for %.2f has been %s.", decided.Amount, decision))
	return decided, nil
}

// Disburse releases funds on an approved loan. The disbursed amount becomes
// the loan's effective principal.
func (s *LoanService) Disburse(ctx context.Context, loanID string, amount float64, method, reference, notes, actorID string) (*models.Loan, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.Validation, "disbursement amount must be greater than zero")
	}
	if method == "" {
		return nil, apperr.New(apperr.Validation, "disbursement method is required")
	}

	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, loan.GroupID, actorID); err != nil {
		return nil, err
	}

	disbursed, err := s.store.DisburseLoan(ctx, loanID, round2(amount), method, reference, notes, s.now().Unix())
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id": loanID,
		"amount":  disbursed.Amount,
		"method":  method,
	}).Info("Loan disbursed")
	s.notifyBorrower(ctx, disbursed, notify.EventLoanDisbursed,
		"Loan disbursed",
		fmt.Sprintf("Your loan of %.2f has been disbursed via %s. Due date: %s.",
			disbursed.Amount, method, disbursed.DueDate.Format("2006-01-02")))
	return disbursed, nil
}

// RecordRepayment applies a repayment against a disbursed loan and completes
// the loan once the principal is fully covered.
func (s *LoanService) RecordRepayment(ctx context.Context, loanID string, amount float64, paymentDate time.Time, method, actorID string) (*models.Loan, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.Validation, "repayment amount must be greater than zero")
	}

	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMembership(ctx, loan.GroupID, actorID); err != nil {
		return nil, err
	}
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	updated, err := s.store.AddRepayment(ctx, loanID, round2(amount), s.now().Unix())
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":       loanID,
		"amount":        round2(amount),
		"method":        method,
		"payment_date":  paymentDate.Format("2006-01-02"),
		"amount_repaid": updated.AmountRepaid,
		"status":        updated.Status,
	}).Info("Repayment recorded")

	body := fmt.Sprintf("A repayment of %.2f was recorded on your loan. Repaid %.2f of %.2f.",
		round2(amount), updated.AmountRepaid, updated.Amount)
	if updated.Status == models.LoanCompleted {
		body += " The loan is now fully repaid."
	}
	s.notifyBorrower(ctx, updated, notify.EventRepaymentRecorded, "Repayment recorded", body)
	return updated, nil
}

// Delete withdraws a pending loan application. Only the borrower or a group
// manager may withdraw.
func (s *LoanService) Delete(ctx context.Context, loanID, actorID string) error {
	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.BorrowerID != actorID {
		if err := s.requireManager(ctx, loan.GroupID, actorID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteLoan(ctx, loanID); err != nil {
		return err
	}
	s.log.Infof("Loan application %s withdrawn", loanID)
	return nil
}

// Get returns a loan visible to the caller.
func (s *LoanService) Get(ctx context.Context, loanID, actorID string) (*models.Loan, error) {
	loan, err := s.store.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMembership(ctx, loan.GroupID, actorID); err != nil {
		return nil, err
	}
	return loan, nil
}

// ListForGroup returns a group's loans for an active member.
func (s *LoanService) ListForGroup(ctx context.Context, groupID, actorID string) ([]models.Loan, error) {
	if _, err := s.requireMembership(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.LoansForGroup(ctx, groupID)
}

func (s *LoanService) requireMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	m, err := s.store.ActiveMembership(ctx, groupID, userID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Permission, "no active membership in group")
		}
		return nil, err
	}
	return m, nil
}

func (s *LoanService) requireManager(ctx context.Context, groupID, userID string) error {
	m, err := s.requireMembership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !m.CanManage() {
		return apperr.New(apperr.Permission, "admin or treasurer role required")
	}
	return nil
}

func (s *LoanService) notifyBorrower(ctx context.Context, loan *models.Loan, event, subject, body string) {
	user, err := s.store.UserByID(ctx, loan.BorrowerID)
	if err != nil {
		s.log.Warnf("Skipping %s notification, borrower lookup failed: %v", event, err)
		return
	}
	s.notifier.Dispatch(notify.Message{
		To:      []string{user.Email},
		Event:   event,
		Subject: subject,
		Body:    fmt.Sprintf("Dear %s,\n\n%s\n", user.Username, body),
	})
}

func defaultNow() time.Time {
	return time.Now().UTC()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
