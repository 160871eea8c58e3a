package session

import "sharpms/dashboard/internal/models"

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of a session. User is non-nil exactly when
// State is StateAuthenticated.
type Snapshot struct {
	State State
	User  *models.User
}

func (s Snapshot) Pending() bool {
	return s.State == StateUninitialized || s.State == StateLoading
}

func (s Snapshot) Role() models.Role {
	if s.User == nil {
		return ""
	}
	return s.User.PrimaryRole()
}
