package storage

import (
	"context"
	"database/sql"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

// CreateUser creates a new user in the database.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		user.ID, user.Email, user.Username, user.PasswordHash, unix(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "email already registered")
		}
		return apperr.Wrap(apperr.Internal, "failed to create user", err)
	}
	return nil
}

// UserByEmail retrieves a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, username, password_hash, created_at
		FROM users
		WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(query), email))
}

// UserByID retrieves a user by id.
func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, username, password_hash, created_at
		FROM users
		WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(query), id))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var createdAt int64
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to find user", err)
	}
	user.CreatedAt = fromUnix(createdAt)
	return user, nil
}
