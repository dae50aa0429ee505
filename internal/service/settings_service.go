package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
	"github.com/chamaledger/chama-service/internal/storage"
)

// SettingsService reads and writes a group's policy. Writes are validated,
// direct replacements of the affected fields; last write wins.
type SettingsService struct {
	store *storage.Store
	log   *logrus.Logger
	now   func() time.Time
}

// NewSettingsService initializes a new settings service.
func NewSettingsService(store *storage.Store, log *logrus.Logger) *SettingsService {
	return &SettingsService{store: store, log: log, now: defaultNow}
}

// Get returns the group's policy for an active member.
func (s *SettingsService) Get(ctx context.Context, groupID, actorID string) (*models.GroupSettings, error) {
	if _, err := s.store.ActiveMembership(ctx, groupID, actorID); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Permission, "no active membership in group")
		}
		return nil, err
	}
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &group.Settings, nil
}

// Update replaces the group's policy fields.
func (s *SettingsService) Update(ctx context.Context, groupID, actorID string, settings models.GroupSettings) (*models.GroupSettings, error) {
	membership, err := s.store.ActiveMembership(ctx, groupID, actorID)
	if err != nil || !membership.CanManage() {
		return nil, apperr.New(apperr.Permission, "admin or treasurer role required")
	}
	normalizeSettings(&settings)
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if err := s.store.UpdateGroupSettings(ctx, groupID, settings, s.now().Unix()); err != nil {
		return nil, err
	}
	s.log.Infof("Group %s settings updated by %s", groupID, actorID)
	return &settings, nil
}

// normalizeSettings fills policy defaults for unset fields.
func normalizeSettings(st *models.GroupSettings) {
	if st.MaxLoanMultiplier == 0 {
		st.MaxLoanMultiplier = 3
	}
}

// contribution frequencies the policy recognizes
var validFrequencies = map[string]bool{
	"":         true,
	"daily":    true,
	"weekly":   true,
	"biweekly": true,
	"monthly":  true,
}

// validateSettings checks a policy document before it is written.
func validateSettings(st models.GroupSettings) error {
	if st.ContributionAmount < 0 || st.MinContribution < 0 || st.MaxContribution < 0 {
		return apperr.New(apperr.Validation, "contribution amounts cannot be negative")
	}
	if st.MinContribution > 0 && st.MaxContribution > 0 && st.MinContribution > st.MaxContribution {
		return apperr.New(apperr.Validation, "min_contribution cannot exceed max_contribution")
	}
	if !validFrequencies[st.ContributionFrequency] {
		return apperr.Newf(apperr.Validation, "invalid contribution frequency %q", st.ContributionFrequency)
	}
	if st.InterestRate < 0 || st.InterestRate > 100 {
		return apperr.New(apperr.Validation, "interest rate must be between 0 and 100")
	}
	if st.MaxLoanMultiplier <= 0 {
		return apperr.New(apperr.Validation, "loan multiplier must be greater than zero")
	}
	if st.GracePeriodDays < 0 {
		return apperr.New(apperr.Validation, "grace period cannot be negative")
	}
	return validateRules(st.Rules)
}

// validateRules rejects malformed rules documents instead of silently
// discarding them. Extension data must be a flat document of scalar values.
func validateRules(rules models.GroupRules) error {
	for key, value := range rules.Extra {
		switch value.(type) {
		case string, float64, int, bool, nil:
		default:
			return apperr.Newf(apperr.Validation, "rules extension %q must be a scalar value", key)
		}
	}
	return nil
}
