package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "chama.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, s *Store, name string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

func seedGroup(t *testing.T, s *Store, creatorID string) *models.Group {
	t.Helper()
	now := time.Now()
	g := &models.Group{
		ID:          uuid.NewString(),
		Name:        "Test Chama",
		Settings:    models.GroupSettings{MaxLoanMultiplier: 3},
		MemberCount: 1,
		Status:      models.GroupActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m := &models.Membership{
		ID:       uuid.NewString(),
		GroupID:  g.ID,
		UserID:   creatorID,
		Role:     models.RoleAdmin,
		Status:   models.MembershipActive,
		JoinedAt: now,
	}
	if err := s.CreateGroup(context.Background(), g, m); err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	return g
}

func seedDisbursedLoan(t *testing.T, s *Store, groupID, membershipID, borrowerID string, amount float64) *models.Loan {
	t.Helper()
	now := time.Now()
	l := &models.Loan{
		ID:             uuid.NewString(),
		GroupID:        groupID,
		MembershipID:   membershipID,
		BorrowerID:     borrowerID,
		Amount:         amount,
		Purpose:        "stock",
		DurationMonths: 6,
		InterestRate:   10,
		Status:         models.LoanDisbursed,
		AppliedAt:      now,
		DueDate:        now.AddDate(0, 6, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.CreateLoan(context.Background(), l); err != nil {
		t.Fatalf("failed to seed loan: %v", err)
	}
	return l
}

func seedInvitation(t *testing.T, s *Store, groupID string, expiresAt time.Time) *models.Invitation {
	t.Helper()
	now := time.Now()
	inv := &models.Invitation{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Token:       uuid.NewString(),
		Email:       "invitee@example.com",
		InvitedRole: models.RoleMember,
		Status:      models.InvitationInvited,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.CreateInvitation(context.Background(), inv); err != nil {
		t.Fatalf("failed to seed invitation: %v", err)
	}
	return inv
}

func TestMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")

	dup := &models.User{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		Username:     "alice2",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	err := store.CreateUser(context.Background(), dup)
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateGroupEnrollsCreator(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	group := seedGroup(t, store, alice.ID)

	m, err := store.ActiveMembership(ctx, group.ID, alice.ID)
	if err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("creator role = %q, want admin", m.Role)
	}

	got, err := store.GroupByID(ctx, group.ID)
	if err != nil {
		t.Fatalf("failed to read group: %v", err)
	}
	if got.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", got.MemberCount)
	}
}

func TestDeactivateMembership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	group := seedGroup(t, store, alice.ID)

	inv := seedInvitation(t, store, group.ID, time.Now().Add(time.Hour))
	if _, _, err := store.AcceptInvitation(ctx, inv.Token, bob.ID, models.InvitationProfile{FirstName: "Bob"}, time.Now()); err != nil {
		t.Fatalf("failed to accept invitation: %v", err)
	}

	if err := store.DeactivateMembership(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	got, _ := store.GroupByID(ctx, group.ID)
	if got.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", got.MemberCount)
	}
	if _, err := store.ActiveMembership(ctx, group.ID, bob.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected membership gone, got %v", err)
	}

	// Second removal reports not found and leaves the counter alone.
	if err := store.DeactivateMembership(ctx, group.ID, bob.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("expected not found on repeat removal, got %v", err)
	}
	got, _ = store.GroupByID(ctx, group.ID)
	if got.MemberCount != 1 {
		t.Errorf("member_count after repeat removal = %d, want 1", got.MemberCount)
	}
}

func TestMemberCountMatchesActiveMemberships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	group := seedGroup(t, store, alice.ID)

	for i := 0; i < 3; i++ {
		u := seedUser(t, store, "member"+uuid.NewString()[:8])
		inv := seedInvitation(t, store, group.ID, time.Now().Add(time.Hour))
		if _, _, err := store.AcceptInvitation(ctx, inv.Token, u.ID, models.InvitationProfile{}, time.Now()); err != nil {
			t.Fatalf("failed to accept invitation: %v", err)
		}
	}

	got, _ := store.GroupByID(ctx, group.ID)
	members, err := store.MembersOfGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("failed to list members: %v", err)
	}
	if got.MemberCount != len(members) {
		t.Errorf("member_count = %d, active memberships = %d", got.MemberCount, len(members))
	}
}

func TestConcurrentRepayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	group := seedGroup(t, store, alice.ID)
	m, _ := store.ActiveMembership(ctx, group.ID, alice.ID)
	loan := seedDisbursedLoan(t, store, group.ID, m.ID, alice.ID, 10000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.AddRepayment(ctx, loan.ID, 6000, time.Now().Unix())
		}(i)
	}
	wg.Wait()

	var successes, overpayments int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperr.IsKind(err, apperr.Overpayment):
			overpayments++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || overpayments != 1 {
		t.Fatalf("got %d successes and %d overpayments, want exactly one of each", successes, overpayments)
	}

	got, err := store.LoanByID(ctx, loan.ID)
	if err != nil {
		t.Fatalf("failed to read loan: %v", err)
	}
	if got.AmountRepaid != 6000 {
		t.Errorf("amount_repaid = %.2f, want 6000", got.AmountRepaid)
	}
	if got.Status != models.LoanDisbursed {
		t.Errorf("status = %q, want disbursed", got.Status)
	}
}

func TestConcurrentAcceptance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	carol := seedUser(t, store, "carol")
	group := seedGroup(t, store, alice.ID)
	inv := seedInvitation(t, store, group.ID, time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	users := []string{bob.ID, carol.ID}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = store.AcceptInvitation(ctx, inv.Token, users[i], models.InvitationProfile{}, time.Now())
		}(i)
	}
	wg.Wait()

	var successes, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperr.IsKind(err, apperr.NotFound), apperr.IsKind(err, apperr.Conflict):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || losers != 1 {
		t.Fatalf("got %d successes and %d losers, want exactly one of each", successes, losers)
	}

	got, _ := store.GroupByID(ctx, group.ID)
	if got.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", got.MemberCount)
	}
}

func TestAcceptInvitationDuplicateMembership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	group := seedGroup(t, store, alice.ID)
	inv := seedInvitation(t, store, group.ID, time.Now().Add(time.Hour))

	// Alice is already an active member; accepting must not partially apply.
	_, _, err := store.AcceptInvitation(ctx, inv.Token, alice.ID, models.InvitationProfile{}, time.Now())
	if !apperr.IsKind(err, apperr.Conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := store.InvitationByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("failed to read invitation: %v", err)
	}
	if got.Status != models.InvitationInvited {
		t.Errorf("invitation status = %q, want invited (rolled back)", got.Status)
	}
	g, _ := store.GroupByID(ctx, group.ID)
	if g.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1 (rolled back)", g.MemberCount)
	}
}

func TestContributionsForUserGracefulEmpty(t *testing.T) {
	store := newTestStore(t)
	list, err := store.ContributionsForUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("expected graceful empty, got %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(list))
	}
}

func TestRejectInvitation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice")
	group := seedGroup(t, store, alice.ID)
	inv := seedInvitation(t, store, group.ID, time.Now().Add(time.Hour))

	if err := store.RejectInvitation(ctx, inv.ID, time.Now().Unix()); err != nil {
		t.Fatalf("failed to reject: %v", err)
	}
	if err := store.RejectInvitation(ctx, inv.ID, time.Now().Unix()); !apperr.IsKind(err, apperr.InvalidState) {
		t.Errorf("expected invalid state on repeat reject, got %v", err)
	}
}
