package storage

import (
	"context"
	"database/sql"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

const membershipColumns = `id, group_id, user_id, role, status, joined_at`

// ActiveMembership retrieves the caller's active membership in a group.
func (s *Store) ActiveMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM group_memberships
		WHERE group_id = ? AND user_id = ? AND status = 'active'`
	m, err := scanMembership(s.db.QueryRowContext(ctx, s.rebind(query), groupID, userID))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ActiveMembershipsForUser returns all of a user's active memberships.
func (s *Store) ActiveMembershipsForUser(ctx context.Context, userID string) ([]models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM group_memberships
		WHERE user_id = ? AND status = 'active'
		ORDER BY joined_at DESC`
	return s.queryMemberships(ctx, query, userID)
}

// MembersOfGroup returns the active memberships of a group.
func (s *Store) MembersOfGroup(ctx context.Context, groupID string) ([]models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM group_memberships
		WHERE group_id = ? AND status = 'active'
		ORDER BY joined_at`
	return s.queryMemberships(ctx, query, groupID)
}

// DeactivateMembership soft-deletes a membership and decrements the group's
// denormalized member count in one transaction. Historical contributions and
// loans keep referencing the row.
func (s *Store) DeactivateMembership(ctx context.Context, groupID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE group_memberships SET status = 'inactive'
		WHERE group_id = ? AND user_id = ? AND status = 'active'`),
		groupID, userID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to deactivate membership", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to deactivate membership", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "no active membership for user in group")
	}

	// The guard keeps member_count from ever going negative.
	_, err = tx.ExecContext(ctx, s.rebind(`
		UPDATE groups SET member_count = member_count - 1
		WHERE id = ? AND member_count > 0`), groupID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update member count", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to commit membership removal", err)
	}
	return nil
}

// AdminEmails returns the email addresses of a group's admins and treasurers.
func (s *Store) AdminEmails(ctx context.Context, groupID string) ([]string, error) {
	query := `
		SELECT u.email
		FROM group_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ? AND m.status = 'active' AND m.role IN ('admin', 'treasurer')`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), groupID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list group admins", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to scan admin email", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list group admins", err)
	}
	return emails, nil
}

func (s *Store) queryMemberships(ctx context.Context, query string, args ...any) ([]models.Membership, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list memberships", err)
	}
	defer rows.Close()

	var list []models.Membership
	for rows.Next() {
		var m models.Membership
		var joinedAt int64
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.Status, &joinedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to scan membership", err)
		}
		m.JoinedAt = fromUnix(joinedAt)
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list memberships", err)
	}
	return list, nil
}

func scanMembership(row *sql.Row) (*models.Membership, error) {
	m := &models.Membership{}
	var joinedAt int64
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.Status, &joinedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "membership not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to find membership", err)
	}
	m.JoinedAt = fromUnix(joinedAt)
	return m, nil
}

// insertMembership inserts a membership row inside a caller-owned
// transaction. The partial unique index maps duplicate active memberships to
// a Conflict error.
func insertMembership(ctx context.Context, tx *sql.Tx, s *Store, m *models.Membership) error {
	query := `
		INSERT INTO group_memberships (id, group_id, user_id, role, status, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, s.rebind(query),
		m.ID, m.GroupID, m.UserID, m.Role, m.Status, unix(m.JoinedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "user already has an active membership in group")
		}
		return apperr.Wrap(apperr.Internal, "failed to create membership", err)
	}
	return nil
}
