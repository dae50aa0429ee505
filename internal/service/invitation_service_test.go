package service

import (
	"context"
	"testing"
	"time"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

func TestInvitationAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	joiner := env.register("joiner")

	inv, err := env.invitations.Create(ctx, admin.ID, group.ID, "joiner@example.com", "", "Jo", "Iner", models.RoleTreasurer, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if inv.Status != models.InvitationInvited {
		t.Fatalf("status = %q, want invited for admin-initiated", inv.Status)
	}
	if inv.Token == "" {
		t.Fatal("expected an invitation token")
	}

	looked, err := env.invitations.Lookup(ctx, inv.Token)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if looked.ID != inv.ID {
		t.Fatalf("lookup returned %s, want %s", looked.ID, inv.ID)
	}

	accepted, membership, err := env.invitations.Accept(ctx, inv.Token, joiner.ID, models.InvitationProfile{FirstName: "Jo", LastName: "Iner"})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != models.InvitationAccepted {
		t.Errorf("invitation status = %q, want accepted", accepted.Status)
	}
	if membership.Role != models.RoleTreasurer || membership.UserID != joiner.ID {
		t.Errorf("unexpected membership: %+v", membership)
	}

	fresh, err := env.groups.Get(ctx, group.ID, admin.ID)
	if err != nil {
		t.Fatalf("group lookup failed: %v", err)
	}
	if fresh.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", fresh.MemberCount)
	}
}

func TestInvitationExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	joiner := env.register("joiner")

	inv, err := env.invitations.Create(ctx, admin.ID, group.ID, "late@example.com", "", "", "", models.RoleMember, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Eight days later the token is dead on both paths.
	env.invitations.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }

	if _, err := env.invitations.Lookup(ctx, inv.Token); !apperr.IsKind(err, apperr.Expired) {
		t.Fatalf("expected expired on lookup, got %v", err)
	}
	if _, _, err := env.invitations.Accept(ctx, inv.Token, joiner.ID, models.InvitationProfile{}); !apperr.IsKind(err, apperr.Expired) {
		t.Fatalf("expected expired on accept, got %v", err)
	}

	// A failed acceptance leaves no membership behind.
	if _, err := env.store.ActiveMembership(ctx, group.ID, joiner.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("expected no membership after expired acceptance, got %v", err)
	}
}

func TestInvitationTokenConsumedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	first := env.register("first")
	second := env.register("second")

	inv, err := env.invitations.Create(ctx, admin.ID, group.ID, "shared@example.com", "", "", "", models.RoleMember, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := env.invitations.Accept(ctx, inv.Token, first.ID, models.InvitationProfile{}); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	if _, _, err := env.invitations.Accept(ctx, inv.Token, second.ID, models.InvitationProfile{}); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("expected not found on reuse, got %v", err)
	}
	if _, err := env.invitations.Lookup(ctx, inv.Token); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("expected not found looking up a consumed token, got %v", err)
	}
}

func TestInvitationDuplicateMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	member := env.register("member")
	env.join(admin.ID, group.ID, member.ID, models.RoleMember)

	inv, err := env.invitations.Create(ctx, admin.ID, group.ID, "again@example.com", "", "", "", models.RoleMember, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, _, err := env.invitations.Accept(ctx, inv.Token, member.ID, models.InvitationProfile{}); !apperr.IsKind(err, apperr.Conflict) {
		t.Fatalf("expected conflict for an existing active member, got %v", err)
	}

	// The conflict rolls back completely: the token stays open, the counter
	// stays put.
	if _, err := env.invitations.Lookup(ctx, inv.Token); err != nil {
		t.Fatalf("token should remain open after a rolled-back acceptance: %v", err)
	}
	fresh, err := env.groups.Get(ctx, group.ID, admin.ID)
	if err != nil {
		t.Fatalf("group lookup failed: %v", err)
	}
	if fresh.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", fresh.MemberCount)
	}
}

func TestInvitationSelfRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	candidate := env.register("candidate")

	inv, err := env.invitations.Create(ctx, candidate.ID, group.ID, "candidate@example.com", "", "", "", models.RoleTreasurer, 0)
	if err != nil {
		t.Fatalf("self-request failed: %v", err)
	}
	if inv.Status != models.InvitationPending {
		t.Errorf("status = %q, want pending for self-request", inv.Status)
	}
	if inv.InvitedRole != models.RoleMember {
		t.Errorf("role = %q, self-requests cannot claim elevated roles", inv.InvitedRole)
	}
}

func TestInvitationCreateByPlainMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	member := env.register("member")
	env.join(admin.ID, group.ID, member.ID, models.RoleMember)

	if _, err := env.invitations.Create(ctx, member.ID, group.ID, "friend@example.com", "", "", "", models.RoleMember, 0); !apperr.IsKind(err, apperr.Permission) {
		t.Fatalf("expected permission error for plain member, got %v", err)
	}
}

func TestInvitationReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	candidate := env.register("candidate")

	inv, err := env.invitations.Create(ctx, candidate.ID, group.ID, "candidate@example.com", "", "", "", "", 0)
	if err != nil {
		t.Fatalf("self-request failed: %v", err)
	}
	if err := env.invitations.Reject(ctx, inv.ID, admin.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := env.invitations.Lookup(ctx, inv.Token); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("expected rejected token to be closed, got %v", err)
	}
	if err := env.invitations.Reject(ctx, inv.ID, admin.ID); !apperr.IsKind(err, apperr.InvalidState) {
		t.Fatalf("expected invalid state on repeated reject, got %v", err)
	}
}

func TestInvitationCreateRequiresContact(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})

	if _, err := env.invitations.Create(context.Background(), admin.ID, group.ID, "", "", "", "", "", 0); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("expected validation error without contact, got %v", err)
	}
}
