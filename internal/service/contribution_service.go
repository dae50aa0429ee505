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

// ContributionService appends member payments to the group ledger.
type ContributionService struct {
	store    *storage.Store
	log      *logrus.Logger
	notifier notify.Dispatcher
	now      func() time.Time
}

// NewContributionService initializes a new contribution service.
func NewContributionService(store *storage.Store, log *logrus.Logger, notifier notify.Dispatcher) *ContributionService {
	return &ContributionService{store: store, log: log, notifier: notifier, now: defaultNow}
}

// Record appends a contribution for memberID in the group. When memberID is
// empty the caller contributes for themselves; recording on behalf of another
// member requires a manager role. Status defaults to completed (cash/manual);
// asynchronous payment rails record pending.
func (s *ContributionService) Record(ctx context.Context, callerID, memberID, groupID string, amount float64, paidAt time.Time, method, notes, status string) (*models.Contribution, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.Validation, "contribution amount must be greater than zero")
	}
	switch status {
	case "":
		status = models.ContributionCompleted
	case models.ContributionCompleted, models.ContributionPending:
	default:
		return nil, apperr.Newf(apperr.Validation, "invalid contribution status %q", status)
	}
	if memberID == "" {
		memberID = callerID
	}

	membership, err := s.store.ActiveMembership(ctx, groupID, memberID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Permission, "no active membership in group")
		}
		return nil, err
	}
	if memberID != callerID {
		caller, err := s.store.ActiveMembership(ctx, groupID, callerID)
		if err != nil || !caller.CanManage() {
			return nil, apperr.New(apperr.Permission, "admin or treasurer role required to record for another member")
		}
	}

	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	amount = round2(amount)
	st := group.Settings
	if !st.AllowPartialContributions && st.ContributionAmount > 0 &&
		math.Abs(amount-st.ContributionAmount) > 1e-6 {
		return nil, apperr.Newf(apperr.Validation,
			"group requires an exact contribution of %.2f", st.ContributionAmount)
	}
	// Min/max bounds are advisory; out-of-band amounts are recorded but flagged.
	if st.MinContribution > 0 && amount < st.MinContribution {
		s.log.Warnf("Contribution %.2f below group minimum %.2f for group %s", amount, st.MinContribution, groupID)
	}
	if st.MaxContribution > 0 && amount > st.MaxContribution {
		s.log.Warnf("Contribution %.2f above group maximum %.2f for group %s", amount, st.MaxContribution, groupID)
	}

	now := s.now()
	if paidAt.IsZero() {
		paidAt = now
	}
	if method == "" {
		method = "cash"
	}
	c := &models.Contribution{
		ID:           uuid.NewString(),
		MembershipID: membership.ID,
		GroupID:      groupID,
		Amount:       amount,
		PaidAt:       paidAt,
		Status:       status,
		Method:       method,
		Notes:        notes,
		RecordedBy:   callerID,
		CreatedAt:    now,
	}
	if err := s.store.CreateContribution(ctx, c); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"contribution_id": c.ID,
		"group_id":        groupID,
		"amount":          amount,
		"status":          status,
	}).Info("Contribution recorded")

	if user, err := s.store.UserByID(ctx, memberID); err == nil {
		s.notifier.Dispatch(notify.Message{
			To:      []string{user.Email},
			Event:   notify.EventContributionRecorded,
			Subject: fmt.Sprintf("Contribution received: %s", group.Name),
			Body: fmt.Sprintf("Dear %s,\n\nYour contribution of %.2f to %s has been recorded.\n",
				user.Username, amount, group.Name),
		})
	}
	return c, nil
}

// ListForMember returns all contributions across the user's active
// memberships, newest first. Always returns a list, possibly empty.
func (s *ContributionService) ListForMember(ctx context.Context, userID string) ([]models.Contribution, error) {
	return s.store.ContributionsForUser(ctx, userID)
}

// ListForGroup returns a group's contributions for an active member.
func (s *ContributionService) ListForGroup(ctx context.Context, groupID, actorID string) ([]models.Contribution, error) {
	if _, err := s.store.ActiveMembership(ctx, groupID, actorID); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Permission, "no active membership in group")
		}
		return nil, err
	}
	return s.store.ContributionsForGroup(ctx, groupID)
}
