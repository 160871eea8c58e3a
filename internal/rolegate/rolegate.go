// Package rolegate decides which UI affordances a role may see.
package rolegate

import "sharpms/dashboard/internal/models"

// PrivilegedRole is the only role that passes Gate.
const PrivilegedRole = models.RoleAdmin

// Allow reports whether role is one of allowed. An empty list allows no one.
func Allow(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// Gate returns node only for the privileged role, nil for everyone else.
func Gate[T any](role models.Role, node T) *T {
	if role != PrivilegedRole {
		return nil
	}
	return &node
}
