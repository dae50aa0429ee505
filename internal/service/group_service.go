package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
	"github.com/chamaledger/chama-service/internal/storage"
)

// GroupService creates groups and manages their membership roster.
type GroupService struct {
	store *storage.Store
	log   *logrus.Logger
	now   func() time.Time
}

// NewGroupService initializes a new group service.
func NewGroupService(store *storage.Store, log *logrus.Logger) *GroupService {
	return &GroupService{store: store, log: log, now: defaultNow}
}

// Create creates a group with the given policy and enrolls the creator as an
// active admin, all in one transaction.
func (s *GroupService) Create(ctx context.Context, creatorID, name string, settings models.GroupSettings) (*models.Group, error) {
	if name == "" {
		return nil, apperr.New(apperr.Validation, "group name is required")
	}
	normalizeSettings(&settings)
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	now := s.now()
	group := &models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Settings:    settings,
		MemberCount: 1,
		Status:      models.GroupActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	creator := &models.Membership{
		ID:       uuid.NewString(),
		GroupID:  group.ID,
		UserID:   creatorID,
		Role:     models.RoleAdmin,
		Status:   models.MembershipActive,
		JoinedAt: now,
	}
	if err := s.store.CreateGroup(ctx, group, creator); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"group_id": group.ID,
		"name":     name,
		"creator":  creatorID,
	}).Info("Group created")
	return group, nil
}

// Get returns a group visible to one of its active members.
func (s *GroupService) Get(ctx context.Context, groupID, actorID string) (*models.Group, error) {
	if _, err := s.memberOf(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.GroupByID(ctx, groupID)
}

// Members lists a group's active memberships.
func (s *GroupService) Members(ctx context.Context, groupID, actorID string) ([]models.Membership, error) {
	if _, err := s.memberOf(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.MembersOfGroup(ctx, groupID)
}

// RemoveMember deactivates a membership and decrements the member count.
// Members may remove themselves; removing others requires a manager role.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, targetUserID, actorID string) error {
	if actorID != targetUserID {
		actor, err := s.memberOf(ctx, groupID, actorID)
		if err != nil {
			return err
		}
		if !actor.CanManage() {
			return apperr.New(apperr.Permission, "admin or treasurer role required to remove members")
		}
	}
	if err := s.store.DeactivateMembership(ctx, groupID, targetUserID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"group_id": groupID,
		"user_id":  targetUserID,
		"actor":    actorID,
	}).Info("Membership deactivated")
	return nil
}

func (s *GroupService) memberOf(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	m, err := s.store.ActiveMembership(ctx, groupID, userID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Permission, "no active membership in group")
		}
		return nil, err
	}
	return m, nil
}
