// Package guard decides what a protected route does for a session.
package guard

import (
	"strings"

	"sharpms/dashboard/internal/session"
)

type Action int

const (
	ActionRender Action = iota
	ActionLoading
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionLoading:
		return "loading"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Decision struct {
	Action   Action
	Location string
}

type Routes struct {
	Login      string
	Dashboard  string
	Onboarding string
}

func DefaultRoutes() Routes {
	return Routes{
		Login:      "/login",
		Dashboard:  "/dashboard",
		Onboarding: "/onboarding",
	}
}

// Decide applies the guard rules in order: pending sessions show a loading
// state, anonymous ones go to login, and onboarding is enforced in both
// directions. Only when none fire is the route rendered.
func Decide(snap session.Snapshot, path string, routes Routes) Decision {
	if snap.Pending() {
		return Decision{Action: ActionLoading}
	}
	if snap.User == nil {
		return Decision{Action: ActionRedirect, Location: routes.Login}
	}

	onOnboarding := matches(path, routes.Onboarding)
	if snap.User.Onboarded && onOnboarding {
		return Decision{Action: ActionRedirect, Location: routes.Dashboard}
	}
	if !snap.User.Onboarded && !onOnboarding {
		return Decision{Action: ActionRedirect, Location: routes.Onboarding}
	}
	return Decision{Action: ActionRender}
}

// matches is true for the route itself and anything nested below it.
func matches(path string, route string) bool {
	path = strings.TrimRight(path, "/")
	route = strings.TrimRight(route, "/")
	if path == route {
		return true
	}
	return route != "" && strings.HasPrefix(path, route+"/")
}
