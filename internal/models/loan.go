package models

import "time"

// Loan statuses. Transitions are monotonic:
// pending -> approved|rejected, approved -> disbursed,
// disbursed -> disbursed (partial repayment) | completed.
const (
	LoanPending   = "pending"
	LoanApproved  = "approved"
	LoanRejected  = "rejected"
	LoanDisbursed = "disbursed"
	LoanCompleted = "completed"
)

// Loan represents a borrowing against the group pool
type Loan struct {
	ID             string     `json:"id"`
	GroupID        string     `json:"group_id"`
	MembershipID   string     `json:"membership_id"`
	BorrowerID     string     `json:"borrower_id"`
	Amount         float64    `json:"amount"` // effective principal
	Purpose        string     `json:"purpose"`
	DurationMonths int        `json:"duration_months"`
	InterestRate   float64    `json:"interest_rate"` // percent, simple interest
	Status         string     `json:"status"`
	AmountRepaid   float64    `json:"amount_repaid"`
	AppliedAt      time.Time  `json:"application_date"`
	ApprovedAt     *time.Time `json:"approval_date,omitempty"`
	DisbursedAt    *time.Time `json:"disbursement_date,omitempty"`
	DueDate        time.Time  `json:"due_date"`
	ApprovedBy     string     `json:"approved_by,omitempty"`
	DisburseMethod string     `json:"disbursement_method,omitempty"`
	DisburseRef    string     `json:"disbursement_reference,omitempty"`
	DisburseNotes  string     `json:"disbursement_notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Outstanding returns the unpaid principal on the loan.
func (l *Loan) Outstanding() float64 {
	return l.Amount - l.AmountRepaid
}

// TotalDue returns principal plus simple interest, for display purposes.
// The ledger itself only tracks principal against amount_repaid.
func (l *Loan) TotalDue() float64 {
	return l.Amount + l.Amount*l.InterestRate/100
}
