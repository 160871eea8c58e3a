package rolegate

import (
	"testing"

	"sharpms/dashboard/internal/models"
)

func TestAllow(t *testing.T) {
	managers := []models.Role{models.RoleAdmin, models.RoleManager}

	if !Allow(models.RoleAdmin, managers) {
		t.Fatalf("expected Admin to be allowed")
	}
	if Allow(models.RoleStaff, managers) {
		t.Fatalf("expected Staff to be denied")
	}
	for _, role := range []models.Role{models.RoleAdmin, models.RoleStaff, ""} {
		if Allow(role, nil) || Allow(role, []models.Role{}) {
			t.Fatalf("expected %q to be denied by an empty list", role)
		}
	}
}

func TestGate(t *testing.T) {
	type button struct{ Label string }

	if got := Gate(models.RoleAdmin, button{Label: "Add Branch"}); got == nil || got.Label != "Add Branch" {
		t.Fatalf("expected Admin to see the button, got %v", got)
	}
	if got := Gate(models.RoleManager, button{Label: "Add Branch"}); got != nil {
		t.Fatalf("expected Manager to see nothing, got %v", got)
	}
	if got := Gate("", button{Label: "Add Branch"}); got != nil {
		t.Fatalf("expected no role to see nothing, got %v", got)
	}
}
