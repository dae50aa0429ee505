package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/models"
	"github.com/chamaledger/chama-service/internal/notify"
	"github.com/chamaledger/chama-service/internal/storage"
)

type testEnv struct {
	t             *testing.T
	store         *storage.Store
	auth          *AuthService
	groups        *GroupService
	settings      *SettingsService
	loans         *LoanService
	contributions *ContributionService
	invitations   *InvitationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "chama.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dispatcher := notify.NewLogDispatcher(logger)

	return &testEnv{
		t:             t,
		store:         store,
		auth:          NewAuthService(store, logger, "test-secret"),
		groups:        NewGroupService(store, logger),
		settings:      NewSettingsService(store, logger),
		loans:         NewLoanService(store, logger, dispatcher),
		contributions: NewContributionService(store, logger, dispatcher),
		invitations:   NewInvitationService(store, logger, dispatcher, 7*24*time.Hour, "http://test/invitations"),
	}
}

func (e *testEnv) register(name string) *models.User {
	e.t.Helper()
	user, err := e.auth.Register(context.Background(), name, name+"@example.com", "password123")
	if err != nil {
		e.t.Fatalf("failed to register %s: %v", name, err)
	}
	return user
}

func (e *testEnv) createGroup(adminID string, settings models.GroupSettings) *models.Group {
	e.t.Helper()
	group, err := e.groups.Create(context.Background(), adminID, "Umoja Savings", settings)
	if err != nil {
		e.t.Fatalf("failed to create group: %v", err)
	}
	return group
}

// join enrolls userID in the group through the invitation flow.
func (e *testEnv) join(adminID, groupID, userID, role string) *models.Membership {
	e.t.Helper()
	ctx := context.Background()
	inv, err := e.invitations.Create(ctx, adminID, groupID, userID+"@invite.example.com", "", "", "", role, 0)
	if err != nil {
		e.t.Fatalf("failed to create invitation: %v", err)
	}
	_, membership, err := e.invitations.Accept(ctx, inv.Token, userID, models.InvitationProfile{FirstName: "New", LastName: "Member"})
	if err != nil {
		e.t.Fatalf("failed to accept invitation: %v", err)
	}
	return membership
}
