package storage

import (
	"context"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

const contributionColumns = `id, membership_id, group_id, amount, paid_at,
	status, method, notes, recorded_by, created_at`

// CreateContribution appends a contribution record. Contributions are never
// updated or deleted; corrections are compensating entries.
func (s *Store) CreateContribution(ctx context.Context, c *models.Contribution) error {
	query := `
		INSERT INTO contributions (id, membership_id, group_id, amount, paid_at,
			status, method, notes, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		c.ID, c.MembershipID, c.GroupID, c.Amount, unix(c.PaidAt),
		c.Status, c.Method, c.Notes, c.RecordedBy, unix(c.CreatedAt))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to record contribution", err)
	}
	return nil
}

// ContributionsForUser returns all contributions across the user's active
// memberships, newest first. An unprovisioned store or a user with no
// memberships yields an empty list, never an error.
func (s *Store) ContributionsForUser(ctx context.Context, userID string) ([]models.Contribution, error) {
	query := `
		SELECT c.id, c.membership_id, c.group_id, c.amount, c.paid_at,
			c.status, c.method, c.notes, c.recorded_by, c.created_at
		FROM contributions c
		JOIN group_memberships m ON m.id = c.membership_id
		WHERE m.user_id = ? AND m.status = 'active'
		ORDER BY c.paid_at DESC`
	list, err := s.queryContributions(ctx, query, userID)
	if err != nil && isNotProvisioned(err) {
		return []models.Contribution{}, nil
	}
	return list, err
}

// ContributionsForGroup returns a group's contributions, newest first.
func (s *Store) ContributionsForGroup(ctx context.Context, groupID string) ([]models.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE group_id = ?
		ORDER BY paid_at DESC`
	return s.queryContributions(ctx, query, groupID)
}

func (s *Store) queryContributions(ctx context.Context, query string, args ...any) ([]models.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list contributions", err)
	}
	defer rows.Close()

	list := []models.Contribution{}
	for rows.Next() {
		var c models.Contribution
		var paidAt, createdAt int64
		if err := rows.Scan(&c.ID, &c.MembershipID, &c.GroupID, &c.Amount, &paidAt,
			&c.Status, &c.Method, &c.Notes, &c.RecordedBy, &createdAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to scan contribution", err)
		}
		c.PaidAt = fromUnix(paidAt)
		c.CreatedAt = fromUnix(createdAt)
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list contributions", err)
	}
	return list, nil
}
