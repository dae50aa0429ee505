package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
	"github.com/chamaledger/chama-service/internal/storage"
)

// AuthService issues and validates caller identity. The ledger itself never
// authenticates; it only authorizes against membership and role.
type AuthService struct {
	store     *storage.Store
	log       *logrus.Logger
	jwtSecret string
	now       func() time.Time
}

// NewAuthService initializes a new auth service.
func NewAuthService(store *storage.Store, log *logrus.Logger, jwtSecret string) *AuthService {
	return &AuthService{store: store, log: log, jwtSecret: jwtSecret, now: defaultNow}
}

// Register creates a new user with a hashed password.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" {
		return nil, apperr.New(apperr.Validation, "username and email are required")
	}
	if len(password) < 8 {
		return nil, apperr.New(apperr.Validation, "password must be at least 8 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return "", apperr.New(apperr.Permission, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperr.New(apperr.Permission, "invalid credentials")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	})
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to generate token", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return signed, nil
}
