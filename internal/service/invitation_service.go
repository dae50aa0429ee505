package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
	"github.com/chamaledger/chama-service/internal/notify"
	"github.com/chamaledger/chama-service/internal/storage"
	"github.com/chamaledger/chama-service/internal/token"
)

// tokenBytes sizes the random invitation token (2x hex characters on the wire).
const tokenBytes = 24

// InvitationService issues membership invitations and consumes them on
// acceptance.
type InvitationService struct {
	store      *storage.Store
	log        *logrus.Logger
	notifier   notify.Dispatcher
	defaultTTL time.Duration
	baseURL    string
	now        func() time.Time
}

// NewInvitationService initializes a new invitation service.
func NewInvitationService(store *storage.Store, log *logrus.Logger, notifier notify.Dispatcher, defaultTTL time.Duration, baseURL string) *InvitationService {
	if defaultTTL <= 0 {
		defaultTTL = 7 * 24 * time.Hour
	}
	return &InvitationService{
		store:      store,
		log:        log,
		notifier:   notifier,
		defaultTTL: defaultTTL,
		baseURL:    baseURL,
		now:        defaultNow,
	}
}

// Create issues a new invitation. Admin- or treasurer-initiated invitations
// start as invited; a caller with no membership in the group files a
// self-request that starts as pending. TTL <= 0 falls back to the default.
func (s *InvitationService) Create(ctx context.Context, actorID, groupID, email, phone, firstName, lastName, role string, ttl time.Duration) (*models.Invitation, error) {
	if email == "" && phone == "" {
		return nil, apperr.New(apperr.Validation, "an email or phone contact is required")
	}
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return nil, apperr.Newf(apperr.Validation, "invalid role %q", role)
	}
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	status := models.InvitationPending
	membership, err := s.store.ActiveMembership(ctx, groupID, actorID)
	switch {
	case err == nil && membership.CanManage():
		status = models.InvitationInvited
	case err == nil:
		return nil, apperr.New(apperr.Permission, "admin or treasurer role required to invite members")
	case !apperr.IsKind(err, apperr.NotFound):
		return nil, err
	default:
		// Self-request to join: only a plain membership may be requested.
		role = models.RoleMember
	}

	tok, err := token.New(tokenBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to generate invitation token", err)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	inv := &models.Invitation{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Token:       tok,
		Email:       email,
		Phone:       phone,
		FirstName:   firstName,
		LastName:    lastName,
		InvitedRole: role,
		Status:      status,
		InvitedBy:   actorID,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"invitation_id": inv.ID,
		"group_id":      groupID,
		"status":        status,
		"expires_at":    inv.ExpiresAt.Format(time.RFC3339),
	}).Info("Invitation created")

	if email != "" && status == models.InvitationInvited {
		s.notifier.Dispatch(notify.Message{
			To:      []string{email},
			Event:   notify.EventInvitationCreated,
			Subject: fmt.Sprintf("Invitation to join %s", group.Name),
			Body: fmt.Sprintf("You have been invited to join %s as %s.\n\nAccept here: %s/%s/accept\n\nThe invitation expires on %s.",
				group.Name, role, s.baseURL, tok, inv.ExpiresAt.Format("2006-01-02")),
		})
	}
	return inv, nil
}

// Lookup resolves a token to its open invitation. Closed tokens report
// NotFound; expiry is derived from expires_at at read time, the stored status
// is never flipped by the passage of time.
func (s *InvitationService) Lookup(ctx context.Context, tok string) (*models.Invitation, error) {
	inv, err := s.store.InvitationByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if !inv.IsOpen() {
		return nil, apperr.New(apperr.NotFound, "invitation no longer open")
	}
	if inv.IsExpired(s.now()) {
		return nil, apperr.New(apperr.Expired, "invitation has expired")
	}
	return inv, nil
}

// Accept consumes the token, creating an active membership for userID in the
// invitation's group. Exactly one concurrent acceptance can succeed.
func (s *InvitationService) Accept(ctx context.Context, tok, userID string, profile models.InvitationProfile) (*models.Invitation, *models.Membership, error) {
	if userID == "" {
		return nil, nil, apperr.New(apperr.Validation, "user is required to accept an invitation")
	}

	inv, membership, err := s.store.AcceptInvitation(ctx, tok, userID, profile, s.now())
	if err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"invitation_id": inv.ID,
		"group_id":      inv.GroupID,
		"user_id":       userID,
		"role":          membership.Role,
	}).Info("Invitation accepted")

	// Admin notification is outside the transaction; a dispatch failure never
	// unwinds the acceptance.
	if emails, err := s.store.AdminEmails(ctx, inv.GroupID); err == nil && len(emails) > 0 {
		s.notifier.Dispatch(notify.Message{
			To:      emails,
			Event:   notify.EventInvitationAccepted,
			Subject: "New member joined",
			Body: fmt.Sprintf("%s %s accepted their invitation and joined as %s.",
				profile.FirstName, profile.LastName, membership.Role),
		})
	} else if err != nil {
		s.log.Warnf("Skipping acceptance notification, admin lookup failed: %v", err)
	}
	return inv, membership, nil
}

// Reject administratively closes an open membership request.
func (s *InvitationService) Reject(ctx context.Context, invitationID, actorID string) error {
	inv, err := s.store.InvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	membership, err := s.store.ActiveMembership(ctx, inv.GroupID, actorID)
	if err != nil || !membership.CanManage() {
		return apperr.New(apperr.Permission, "admin or treasurer role required")
	}
	if err := s.store.RejectInvitation(ctx, invitationID, s.now().Unix()); err != nil {
		return err
	}
	s.log.Infof("Invitation %s rejected by %s", invitationID, actorID)
	return nil
}

// ListForGroup returns a group's membership requests for a manager.
func (s *InvitationService) ListForGroup(ctx context.Context, groupID, actorID string) ([]models.Invitation, error) {
	membership, err := s.store.ActiveMembership(ctx, groupID, actorID)
	if err != nil || !membership.CanManage() {
		return nil, apperr.New(apperr.Permission, "admin or treasurer role required")
	}
	return s.store.InvitationsForGroup(ctx, groupID)
}
