package views

import (
	"sort"
	"time"

	"sharpms/dashboard/internal/models"
	"sharpms/dashboard/internal/rolegate"
)

// Action is a UI affordance on a view. Privileged actions pass through
// rolegate.Gate; the rest are checked against Roles.
type Action struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Roles      []models.Role `json:"-"`
	Privileged bool          `json:"-"`
}

type View struct {
	Name         string
	Title        string
	Endpoint     string
	PollInterval time.Duration
	Actions      []Action
}

// VisibleActions filters the view's actions for role. The result is never
// nil so it encodes as an empty list.
func (v View) VisibleActions(role models.Role) []Action {
	out := make([]Action, 0, len(v.Actions))
	for _, a := range v.Actions {
		if a.Privileged {
			if gated := rolegate.Gate(role, a); gated != nil {
				out = append(out, *gated)
			}
			continue
		}
		if rolegate.Allow(role, a.Roles) {
			out = append(out, a)
		}
	}
	return out
}

var (
	managers = []models.Role{models.RoleAdmin, models.RoleManager}
	everyone = []models.Role{models.RoleAdmin, models.RoleManager, models.RoleStaff}
)

func defaults() []View {
	return []View{
		{Name: "dashboard", Title: "Dashboard", Endpoint: "/dashboard/stats", PollInterval: 30 * time.Second},
		{Name: "branches", Title: "Branches", Endpoint: "/branches", Actions: []Action{
			{ID: "branch.create", Label: "Add Branch", Privileged: true},
			{ID: "branch.update", Label: "Edit Branch", Roles: managers},
		}},
		{Name: "companies", Title: "Companies", Endpoint: "/companies", Actions: []Action{
			{ID: "company.create", Label: "Add Company", Privileged: true},
		}},
		{Name: "rooms", Title: "Rooms", Endpoint: "/rooms", Actions: []Action{
			{ID: "room.create", Label: "Add Room", Roles: managers},
		}},
		{Name: "guests", Title: "Service Users", Endpoint: "/service-users", Actions: []Action{
			{ID: "guest.create", Label: "Add Service User", Roles: everyone},
		}},
		{Name: "staff", Title: "Staff", Endpoint: "/staff", Actions: []Action{
			{ID: "staff.create", Label: "Add Staff", Roles: managers},
		}},
		{Name: "documents", Title: "Documents", Endpoint: "/documents", Actions: []Action{
			{ID: "document.upload", Label: "Upload Document", Roles: everyone},
		}},
		{Name: "notifications", Title: "Notifications", Endpoint: "/notifications", PollInterval: 30 * time.Second, Actions: []Action{
			{ID: "notification.send", Label: "Send Notification", Roles: managers},
		}},
		{Name: "meals", Title: "Meal Tracking", Endpoint: "/food", PollInterval: 10 * time.Second, Actions: []Action{
			{ID: "meal.record", Label: "Record Meal", Roles: everyone},
		}},
		{Name: "clock", Title: "Clock In/Out", Endpoint: "/attendance", PollInterval: 2 * time.Second, Actions: []Action{
			{ID: "clock.qr", Label: "Generate QR", Roles: managers},
		}},
		{Name: "incidents", Title: "Incidents", Endpoint: "/incidents", PollInterval: 10 * time.Second, Actions: []Action{
			{ID: "incident.report", Label: "Report Incident", Roles: everyone},
		}},
		{Name: "welfare", Title: "Welfare Checks", Endpoint: "/welfare-checks", PollInterval: 30 * time.Second, Actions: []Action{
			{ID: "welfare.record", Label: "Record Welfare Check", Roles: everyone},
		}},
	}
}

// Registry is the set of dashboard views, keyed by name.
type Registry struct {
	views map[string]View
}

// NewRegistry builds the default views, applying poll interval overrides
// by view name. A zero override turns polling off.
func NewRegistry(polling map[string]time.Duration) *Registry {
	r := &Registry{views: make(map[string]View)}
	for _, v := range defaults() {
		if interval, ok := polling[v.Name]; ok {
			v.PollInterval = interval
		}
		r.views[v.Name] = v
	}
	return r
}

func (r *Registry) Lookup(name string) (View, bool) {
	v, ok := r.views[name]
	return v, ok
}

// All returns the views sorted by name.
func (r *Registry) All() []View {
	out := make([]View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Polled() []View {
	var out []View
	for _, v := range r.All() {
		if v.PollInterval > 0 {
			out = append(out, v)
		}
	}
	return out
}

// CacheKey scopes cached view data to one user.
func CacheKey(userID string, view string) string {
	return "view:" + userID + ":" + view
}
