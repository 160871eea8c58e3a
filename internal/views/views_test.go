package views

import (
	"testing"
	"time"

	"sharpms/dashboard/internal/models"
)

func actionIDs(actions []Action) map[string]bool {
	out := make(map[string]bool, len(actions))
	for _, a := range actions {
		out[a.ID] = true
	}
	return out
}

func TestVisibleActions_Branches(t *testing.T) {
	r := NewRegistry(nil)
	v, ok := r.Lookup("branches")
	if !ok {
		t.Fatalf("expected branches view")
	}

	admin := actionIDs(v.VisibleActions(models.RoleAdmin))
	if !admin["branch.create"] || !admin["branch.update"] {
		t.Fatalf("expected admin to see both actions, got %v", admin)
	}

	manager := actionIDs(v.VisibleActions(models.RoleManager))
	if manager["branch.create"] || !manager["branch.update"] {
		t.Fatalf("expected manager to only edit, got %v", manager)
	}

	if got := v.VisibleActions(models.RoleStaff); got == nil || len(got) != 0 {
		t.Fatalf("expected staff to see an empty list, got %v", got)
	}
}

func TestRegistry_PollingOverrides(t *testing.T) {
	r := NewRegistry(map[string]time.Duration{"clock": 5 * time.Second, "dashboard": 0})

	clock, _ := r.Lookup("clock")
	if clock.PollInterval != 5*time.Second {
		t.Fatalf("expected 5s, got %s", clock.PollInterval)
	}

	for _, v := range r.Polled() {
		if v.Name == "dashboard" {
			t.Fatalf("expected dashboard polling to be disabled")
		}
		if v.PollInterval < 2*time.Second || v.PollInterval > 30*time.Second {
			t.Fatalf("view %s polls at %s", v.Name, v.PollInterval)
		}
	}
}

func TestRegistry_AllSorted(t *testing.T) {
	all := NewRegistry(nil).All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Name > all[i].Name {
			t.Fatalf("expected sorted views, got %s before %s", all[i-1].Name, all[i].Name)
		}
	}
}
