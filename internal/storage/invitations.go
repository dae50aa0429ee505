package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

const invitationColumns = `id, group_id, token, email, phone, first_name,
	last_name, invited_role, status, invited_by, expires_at, form_submitted,
	created_at, updated_at`

// CreateInvitation persists a new membership request.
func (s *Store) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO membership_requests (id, group_id, token, email, phone,
			first_name, last_name, invited_role, status, invited_by,
			expires_at, form_submitted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		inv.ID, inv.GroupID, inv.Token, inv.Email, inv.Phone,
		inv.FirstName, inv.LastName, inv.InvitedRole, inv.Status, inv.InvitedBy,
		unix(inv.ExpiresAt), boolToInt(inv.FormSubmitted), unix(inv.CreatedAt), unix(inv.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "invitation token already exists")
		}
		return apperr.Wrap(apperr.Internal, "failed to create invitation", err)
	}
	return nil
}

// InvitationByToken retrieves a membership request by its opaque token.
// Status and expiry are not judged here; callers apply those rules.
func (s *Store) InvitationByToken(ctx context.Context, tok string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM membership_requests WHERE token = ?`
	return scanInvitation(s.db.QueryRowContext(ctx, s.rebind(query), tok))
}

// InvitationByID retrieves a membership request by id.
func (s *Store) InvitationByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM membership_requests WHERE id = ?`
	return scanInvitation(s.db.QueryRowContext(ctx, s.rebind(query), id))
}

// InvitationsForGroup returns a group's membership requests, newest first.
func (s *Store) InvitationsForGroup(ctx context.Context, groupID string) ([]models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM membership_requests WHERE group_id = ? ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), groupID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list invitations", err)
	}
	defer rows.Close()

	list := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list invitations", err)
	}
	return list, nil
}

// RejectInvitation administratively closes an open membership request.
func (s *Store) RejectInvitation(ctx context.Context, id string, at int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE membership_requests SET status = 'rejected', updated_at = ?
		WHERE id = ? AND status IN ('pending', 'invited')`), at, id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to reject invitation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to reject invitation", err)
	}
	if n == 0 {
		inv, err := s.InvitationByID(ctx, id)
		if err != nil {
			return err
		}
		return apperr.Newf(apperr.InvalidState, "invitation is %s and can no longer be rejected", inv.Status)
	}
	return nil
}

// AcceptInvitation consumes an invitation token and creates the membership.
// All steps run in one transaction: re-validate the token, flip its status,
// check for a duplicate membership, insert the membership and bump the
// group's member count. Partial application is never observable; the status
// flip is the serialization point, so of two concurrent acceptances exactly
// one wins and the loser reports NotFound.
func (s *Store) AcceptInvitation(ctx context.Context, tok, userID string, profile models.InvitationProfile, now time.Time) (*models.Invitation, *models.Membership, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + invitationColumns + ` FROM membership_requests WHERE token = ?`
	inv, err := scanInvitation(tx.QueryRowContext(ctx, s.rebind(query), tok))
	if err != nil {
		return nil, nil, err
	}
	if !inv.IsOpen() {
		return nil, nil, apperr.New(apperr.NotFound, "invitation no longer open")
	}
	if inv.IsExpired(now) {
		return nil, nil, apperr.New(apperr.Expired, "invitation has expired")
	}

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(1) FROM group_memberships
		WHERE group_id = ? AND user_id = ? AND status = 'active'`),
		inv.GroupID, userID).Scan(&exists)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to check membership", err)
	}
	if exists > 0 {
		return nil, nil, apperr.New(apperr.Conflict, "user already has an active membership in group")
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE membership_requests
		SET status = 'accepted', first_name = ?, last_name = ?, phone = ?,
			form_submitted = 1, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'invited')`),
		profile.FirstName, profile.LastName, profile.Phone, unix(now), inv.ID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to accept invitation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to accept invitation", err)
	}
	if n == 0 {
		// Another acceptance won the race between our read and this write.
		return nil, nil, apperr.New(apperr.NotFound, "invitation no longer open")
	}

	membership := &models.Membership{
		ID:       uuid.NewString(),
		GroupID:  inv.GroupID,
		UserID:   userID,
		Role:     inv.InvitedRole,
		Status:   models.MembershipActive,
		JoinedAt: now.UTC(),
	}
	if err := insertMembership(ctx, tx, s, membership); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE groups SET member_count = member_count + 1, updated_at = ?
		WHERE id = ?`), unix(now), inv.GroupID); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to update member count", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to commit acceptance", err)
	}

	inv.Status = models.InvitationAccepted
	inv.FirstName = profile.FirstName
	inv.LastName = profile.LastName
	if profile.Phone != "" {
		inv.Phone = profile.Phone
	}
	inv.FormSubmitted = true
	inv.UpdatedAt = now.UTC()
	return inv, membership, nil
}

func scanInvitation(row *sql.Row) (*models.Invitation, error) {
	inv, err := scanInvitationRow(row)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func scanInvitationRow(row rowScanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var (
		expiresAt, createdAt, updatedAt int64
		formSubmitted                   int
	)
	err := row.Scan(&inv.ID, &inv.GroupID, &inv.Token, &inv.Email, &inv.Phone,
		&inv.FirstName, &inv.LastName, &inv.InvitedRole, &inv.Status, &inv.InvitedBy,
		&expiresAt, &formSubmitted, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "invitation not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to find invitation", err)
	}
	inv.ExpiresAt = fromUnix(expiresAt)
	inv.FormSubmitted = formSubmitted != 0
	inv.CreatedAt = fromUnix(createdAt)
	inv.UpdatedAt = fromUnix(updatedAt)
	return inv, nil
}
