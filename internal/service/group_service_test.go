package service

import (
	"context"
	"testing"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

func TestCreateGroupEnrollsCreatorAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("founder")
	group := env.createGroup(admin.ID, models.GroupSettings{})

	if group.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", group.MemberCount)
	}
	members, err := env.groups.Members(ctx, group.ID, admin.ID)
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 1 || members[0].Role != models.RoleAdmin {
		t.Fatalf("expected a single admin membership, got %+v", members)
	}
}

func TestCreateGroupValidatesNameAndPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("founder")

	if _, err := env.groups.Create(ctx, admin.ID, "", models.GroupSettings{}); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := env.groups.Create(ctx, admin.ID, "Umoja", models.GroupSettings{InterestRate: 200}); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error for bad policy, got %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	alice := env.register("alice")
	bob := env.register("bob")
	env.join(admin.ID, group.ID, alice.ID, models.RoleMember)
	env.join(admin.ID, group.ID, bob.ID, models.RoleMember)

	// A plain member cannot remove others.
	if err := env.groups.RemoveMember(ctx, group.ID, alice.ID, bob.ID); !apperr.IsKind(err, apperr.Permission) {
		t.Errorf("expected permission error, got %v", err)
	}
	// Leaving on your own is fine.
	if err := env.groups.RemoveMember(ctx, group.ID, bob.ID, bob.ID); err != nil {
		t.Fatalf("self-removal failed: %v", err)
	}
	// Admins remove anyone.
	if err := env.groups.RemoveMember(ctx, group.ID, alice.ID, admin.ID); err != nil {
		t.Fatalf("admin removal failed: %v", err)
	}

	fresh, err := env.groups.Get(ctx, group.ID, admin.ID)
	if err != nil {
		t.Fatalf("group lookup failed: %v", err)
	}
	if fresh.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", fresh.MemberCount)
	}
	// Removed members lose visibility.
	if _, err := env.groups.Get(ctx, group.ID, bob.ID); !apperr.IsKind(err, apperr.Permission) {
		t.Errorf("expected permission error for removed member, got %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Register(ctx, "wanjiku", "wanjiku@example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.PasswordHash == "s3cretpass" {
		t.Fatal("password stored in cleartext")
	}

	if _, err := env.auth.Register(ctx, "other", "wanjiku@example.com", "s3cretpass"); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("expected conflict on duplicate email, got %v", err)
	}
	if _, err := env.auth.Register(ctx, "short", "short@example.com", "abc"); !apperr.IsKind(err, apperr.Validation) {
		t.Errorf("expected validation error for short password, got %v", err)
	}

	if tok, err := env.auth.Login(ctx, "wanjiku@example.com", "s3cretpass"); err != nil || tok == "" {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := env.auth.Login(ctx, "wanjiku@example.com", "wrongpass"); !apperr.IsKind(err, apperr.Permission) {
		t.Errorf("expected permission error on bad password, got %v", err)
	}
}
