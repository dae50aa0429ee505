package service

import (
	"context"
	"testing"

	"github.com/chamaledger/chama-service/internal/apperr"
	"github.com/chamaledger/chama-service/internal/models"
)

func TestSettingsUpdateRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})

	want := models.GroupSettings{
		ContributionAmount:    1000,
		ContributionFrequency: "monthly",
		MinContribution:       500,
		MaxContribution:       5000,
		InterestRate:          10,
		MaxLoanMultiplier:     3,
		GracePeriodDays:       5,
		Rules: models.GroupRules{
			RulesText:       "Contributions are due by the 5th.",
			MeetingSchedule: "first Saturday",
			Extra:           map[string]any{"late_fee": 50.0},
		},
	}
	if _, err := env.settings.Update(ctx, group.ID, admin.ID, want); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := env.settings.Get(ctx, group.ID, admin.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ContributionAmount != 1000 || got.ContributionFrequency != "monthly" || got.GracePeriodDays != 5 {
		t.Errorf("settings did not round-trip: %+v", got)
	}
	if got.Rules.RulesText != want.Rules.RulesText {
		t.Errorf("rules_text = %q, want %q", got.Rules.RulesText, want.Rules.RulesText)
	}
	if fee, ok := got.Rules.Extra["late_fee"].(float64); !ok || fee != 50 {
		t.Errorf("rules extension late_fee = %v, want 50", got.Rules.Extra["late_fee"])
	}
}

func TestSettingsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})

	cases := []struct {
		name     string
		settings models.GroupSettings
	}{
		{"negative contribution amount", models.GroupSettings{ContributionAmount: -1}},
		{"min above max", models.GroupSettings{MinContribution: 100, MaxContribution: 50}},
		{"unknown frequency", models.GroupSettings{ContributionFrequency: "fortnightly"}},
		{"interest above 100", models.GroupSettings{InterestRate: 150}},
		{"negative multiplier", models.GroupSettings{MaxLoanMultiplier: -1}},
		{"negative grace period", models.GroupSettings{GracePeriodDays: -1}},
		{"nested rules extension", models.GroupSettings{
			Rules: models.GroupRules{Extra: map[string]any{"fees": map[string]any{"late": 50}}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.settings.Update(ctx, group.ID, admin.ID, tc.settings); !apperr.IsKind(err, apperr.Validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSettingsPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})
	member := env.register("member")
	env.join(admin.ID, group.ID, member.ID, models.RoleMember)
	outsider := env.register("outsider")

	// Members read, only managers write.
	if _, err := env.settings.Get(ctx, group.ID, member.ID); err != nil {
		t.Errorf("member read should succeed: %v", err)
	}
	if _, err := env.settings.Update(ctx, group.ID, member.ID, models.GroupSettings{}); !apperr.IsKind(err, apperr.Permission) {
		t.Errorf("expected permission error on member write, got %v", err)
	}
	if _, err := env.settings.Get(ctx, group.ID, outsider.ID); !apperr.IsKind(err, apperr.Permission) {
		t.Errorf("expected permission error on outsider read, got %v", err)
	}
}

func TestSettingsDefaultsApplied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register("admin")
	group := env.createGroup(admin.ID, models.GroupSettings{})

	updated, err := env.settings.Update(ctx, group.ID, admin.ID, models.GroupSettings{ContributionAmount: 200})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.MaxLoanMultiplier != 3 {
		t.Errorf("multiplier = %.1f, want default 3", updated.MaxLoanMultiplier)
	}
}
