package storage

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

const loanColumns = `id, group_id, membership_id, borrower_id, amount, purpose,
	duration_months, interest_rate, status, amount_repaid, applied_at,
	approved_at, disbursed_at, due_date, approved_by, disburse_method,
	disburse_ref, disburse_notes, created_at, updated_at`

// repaymentAttempts bounds the optimistic retry loop in AddRepayment.
const repaymentAttempts = 5

// CreateLoan persists a new loan application.
func (s *Store) CreateLoan(ctx context.Context, l *models.Loan) error {
	query := `
		INSERT INTO loans (id, group_id, membership_id, borrower_id, amount,
			purpose, duration_months, interest_rate, status, amount_repaid,
			applied_at, due_date, approved_by, disburse_method, disburse_ref,
			disburse_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		l.ID, l.GroupID, l.MembershipID, l.BorrowerID, l.Amount,
		l.Purpose, l.DurationMonths, l.InterestRate, l.Status, l.AmountRepaid,
		unix(l.AppliedAt), unix(l.DueDate), l.ApprovedBy, l.DisburseMethod,
		l.DisburseRef, l.DisburseNotes, unix(l.CreatedAt), unix(l.UpdatedAt))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to create loan", err)
	}
	return nil
}

// LoanByID retrieves a loan by id.
func (s *Store) LoanByID(ctx context.Context, id string) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`
	return scanLoan(s.db.QueryRowContext(ctx, s.rebind(query), id))
}

// LoansForGroup returns a group's loans, newest application first.
func (s *Store) LoansForGroup(ctx context.Context, groupID string) ([]models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE group_id = ? ORDER BY applied_at DESC`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), groupID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list loans", err)
	}
	defer rows.Close()

	list := []models.Loan{}
	for rows.Next() {
		l, err := scanLoanRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list loans", err)
	}
	return list, nil
}

// DecideLoan moves a pending loan to approved or rejected, stamping the
// decision time and the decider. The status guard makes the transition
// first-writer-wins under concurrency.
func (s *Store) DecideLoan(ctx context.Context, loanID, decision, deciderID string, at int64) (*models.Loan, error) {
	query := `
		UPDATE loans
		SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`
	res, err := s.db.ExecContext(ctx, s.rebind(query), decision, deciderID, at, at, loanID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to decide loan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to decide loan", err)
	}
	if n == 0 {
		loan, err := s.LoanByID(ctx, loanID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Newf(apperr.InvalidState, "loan is %s, only pending loans can be decided", loan.Status)
	}
	return s.LoanByID(ctx, loanID)
}

// DisburseLoan releases an approved loan's funds. The disbursed amount
// becomes the loan's effective principal for repayment tracking.
func (s *Store) DisburseLoan(ctx context.Context, loanID string, amount float64, method, ref, notes string, at int64) (*models.Loan, error) {
	query := `
		UPDATE loans
		SET status = 'disbursed', amount = ?, disbursed_at = ?,
			disburse_method = ?, disburse_ref = ?, disburse_notes = ?, updated_at = ?
		WHERE id = ? AND status = 'approved'`
	res, err := s.db.ExecContext(ctx, s.rebind(query), amount, at, method, ref, notes, at, loanID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to disburse loan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to disburse loan", err)
	}
	if n == 0 {
		loan, err := s.LoanByID(ctx, loanID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Newf(apperr.InvalidState, "loan is %s, only approved loans can be disbursed", loan.Status)
	}
	return s.LoanByID(ctx, loanID)
}

// AddRepayment applies a repayment to a disbursed loan. The balance update is
// an optimistic check-and-set against the observed amount_repaid so two
// concurrent repayments can never both pass the overpayment check on a stale
// balance; the losing writer re-reads and re-validates.
func (s *Store) AddRepayment(ctx context.Context, loanID string, amount float64, at int64) (*models.Loan, error) {
	for attempt := 0; attempt < repaymentAttempts; attempt++ {
		loan, err := s.addRepaymentOnce(ctx, loanID, amount, at)
		if err == errRepaymentRace {
			continue
		}
		return loan, err
	}
	return nil, apperr.New(apperr.Conflict, "concurrent repayments on loan, retry")
}

// errRepaymentRace is an internal signal that the optimistic check lost.
var errRepaymentRace = errors.New("repayment race")

func (s *Store) addRepaymentOnce(ctx context.Context, loanID string, amount float64, at int64) (*models.Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`
	loan, err := scanLoan(tx.QueryRowContext(ctx, s.rebind(query), loanID))
	if err != nil {
		return nil, err
	}

	switch loan.Status {
	case models.LoanDisbursed:
		// balance check below
	case models.LoanCompleted:
		return nil, apperr.New(apperr.Overpayment, "loan is already fully repaid")
	default:
		return nil, apperr.Newf(apperr.InvalidState, "loan is %s, repayments require a disbursed loan", loan.Status)
	}

	newRepaid := round2(loan.AmountRepaid + amount)
	if newRepaid > loan.Amount+amountEpsilon {
		return nil, apperr.Newf(apperr.Overpayment,
			"repayment of %.2f would exceed principal: %.2f already repaid of %.2f",
			amount, loan.AmountRepaid, loan.Amount)
	}
	newStatus := models.LoanDisbursed
	if newRepaid >= loan.Amount-amountEpsilon {
		newStatus = models.LoanCompleted
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE loans
		SET amount_repaid = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = 'disbursed' AND amount_repaid = ?`),
		newRepaid, newStatus, at, loanID, loan.AmountRepaid)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to record repayment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to record repayment", err)
	}
	if n == 0 {
		// Lost the optimistic check to a concurrent writer.
		return nil, errRepaymentRace
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to commit repayment", err)
	}

	loan.AmountRepaid = newRepaid
	loan.Status = newStatus
	loan.UpdatedAt = fromUnix(at)
	return loan, nil
}

// DeleteLoan withdraws a pending loan application.
func (s *Store) DeleteLoan(ctx context.Context, loanID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM loans WHERE id = ? AND status = 'pending'`), loanID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete loan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete loan", err)
	}
	if n == 0 {
		if _, err := s.LoanByID(ctx, loanID); err != nil {
			return err
		}
		return apperr.New(apperr.InvalidState, "only pending applications may be withdrawn")
	}
	return nil
}

// amountEpsilon absorbs float64 noise when comparing two-decimal monetary values.
const amountEpsilon = 1e-6

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row *sql.Row) (*models.Loan, error) {
	l, err := scanLoanRow(row)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func scanLoanRow(row rowScanner) (*models.Loan, error) {
	l := &models.Loan{}
	var (
		appliedAt, dueDate, createdAt, updatedAt int64
		approvedAt, disbursedAt                  sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.GroupID, &l.MembershipID, &l.BorrowerID, &l.Amount,
		&l.Purpose, &l.DurationMonths, &l.InterestRate, &l.Status, &l.AmountRepaid,
		&appliedAt, &approvedAt, &disbursedAt, &dueDate, &l.ApprovedBy,
		&l.DisburseMethod, &l.DisburseRef, &l.DisburseNotes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "loan not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to find loan", err)
	}
	l.AppliedAt = fromUnix(appliedAt)
	l.ApprovedAt = timeFromNull(approvedAt)
	l.DisbursedAt = timeFromNull(disbursedAt)
	l.DueDate = fromUnix(dueDate)
	l.CreatedAt = fromUnix(createdAt)
	l.UpdatedAt = fromUnix(updatedAt)
	return l, nil
}
