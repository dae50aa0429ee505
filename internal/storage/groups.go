package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

const groupColumns = `id, name, contribution_amount, contribution_frequency,
	min_contribution, max_contribution, allow_partial_contributions,
	interest_rate, max_loan_multiplier, grace_period_days, rules,
	member_count, status, created_at, updated_at`

// CreateGroup inserts a new group together with its creator's admin
// membership in one transaction. The group's member_count starts at 1.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group, creator *models.Membership) error {
	rules, err := json.Marshal(group.Settings.Rules)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "malformed rules document", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO groups (id, name, contribution_amount, contribution_frequency,
			min_contribution, max_contribution, allow_partial_contributions,
			interest_rate, max_loan_multiplier, grace_period_days, rules,
			member_count, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	st := group.Settings
	_, err = tx.ExecContext(ctx, s.rebind(query),
		group.ID, group.Name, st.ContributionAmount, st.ContributionFrequency,
		st.MinContribution, st.MaxContribution, boolToInt(st.AllowPartialContributions),
		st.InterestRate, st.MaxLoanMultiplier, st.GracePeriodDays, string(rules),
		group.MemberCount, group.Status, unix(group.CreatedAt), unix(group.UpdatedAt))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to create group", err)
	}

	if err := insertMembership(ctx, tx, s, creator); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to commit group creation", err)
	}
	return nil
}

// GroupByID retrieves a group by id.
func (s *Store) GroupByID(ctx context.Context, id string) (*models.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE id = ?`, groupColumns)
	return scanGroup(s.db.QueryRowContext(ctx, s.rebind(query), id))
}

// UpdateGroupSettings replaces the group's policy fields. Last write wins.
func (s *Store) UpdateGroupSettings(ctx context.Context, groupID string, st models.GroupSettings, now int64) error {
	rules, err := json.Marshal(st.Rules)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "malformed rules document", err)
	}
	query := `
		UPDATE groups
		SET contribution_amount = ?, contribution_frequency = ?,
			min_contribution = ?, max_contribution = ?,
			allow_partial_contributions = ?, interest_rate = ?,
			max_loan_multiplier = ?, grace_period_days = ?, rules = ?,
			updated_at = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(query),
		st.ContributionAmount, st.ContributionFrequency,
		st.MinContribution, st.MaxContribution,
		boolToInt(st.AllowPartialContributions), st.InterestRate,
		st.MaxLoanMultiplier, st.GracePeriodDays, string(rules),
		now, groupID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update group settings", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update group settings", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "group not found")
	}
	return nil
}

// ContributionReminderTargets returns one row per active member of every
// active group that has a contribution frequency configured.
func (s *Store) ContributionReminderTargets(ctx context.Context) ([]models.ReminderTarget, error) {
	query := `
		SELECT g.name, g.contribution_amount, g.contribution_frequency, u.email, u.username
		FROM groups g
		JOIN group_memberships m ON m.group_id = g.id AND m.status = 'active'
		JOIN users u ON u.id = m.user_id
		WHERE g.status = 'active' AND g.contribution_frequency <> ''
		ORDER BY g.name`
	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list reminder targets", err)
	}
	defer rows.Close()

	var targets []models.ReminderTarget
	for rows.Next() {
		var t models.ReminderTarget
		if err := rows.Scan(&t.GroupName, &t.ContributionAmount, &t.Frequency, &t.Email, &t.Username); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to scan reminder target", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list reminder targets", err)
	}
	return targets, nil
}

func scanGroup(row *sql.Row) (*models.Group, error) {
	g := &models.Group{}
	var (
		allowPartial         int
		rules                string
		createdAt, updatedAt int64
	)
	st := &g.Settings
	err := row.Scan(&g.ID, &g.Name, &st.ContributionAmount, &st.ContributionFrequency,
		&st.MinContribution, &st.MaxContribution, &allowPartial,
		&st.InterestRate, &st.MaxLoanMultiplier, &st.GracePeriodDays, &rules,
		&g.MemberCount, &g.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "group not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to find group", err)
	}
	st.AllowPartialContributions = allowPartial != 0
	if err := json.Unmarshal([]byte(rules), &st.Rules); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to decode rules document", err)
	}
	g.CreatedAt = fromUnix(createdAt)
	g.UpdatedAt = fromUnix(updatedAt)
	return g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
