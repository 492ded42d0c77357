package core

import "strings"

// Role prefixes. Concrete roles (eg. "admin:owner") start with one of them.
const (
	RoleAdmin   = "admin:"
	RoleTeacher = "teacher:"
	RoleStudent = "student:"
)

// Actor is the authenticated user on whose behalf a service operation runs.
// The zero Actor is anonymous.
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) IsAnonymous() bool { return a.ID == "" }

func (a Actor) hasRolePrefix(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool   { return a.hasRolePrefix(RoleAdmin) }
func (a Actor) IsTeacher() bool { return a.hasRolePrefix(RoleTeacher) }
func (a Actor) IsStudent() bool { return a.hasRolePrefix(RoleStudent) }

// CanManage reports whether the actor may modify a resource owned by ownerID.
func (a Actor) CanManage(ownerID string) bool {
	if a.IsAnonymous() {
		return false
	}
	return a.IsAdmin() || a.ID == ownerID
}
