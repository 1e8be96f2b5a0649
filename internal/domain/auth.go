package domain

import (
	"slices"
	"strings"
)

// Built-in roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the subject and role set carried by a token.
type Identity struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the identity carries role.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// NormalizeRoles trims, de-duplicates and sorts roles. Empty input yields an
// empty, non-nil slice.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" || slices.Contains(out, role) {
			continue
		}
		out = append(out, role)
	}
	slices.Sort(out)
	return out
}
