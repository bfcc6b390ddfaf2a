package domain

// Role is the coarse role claimed by the identity collaborator.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
	// RoleSystem identifies internal actors such as the escalation scheduler.
	RoleSystem Role = "system"
)

// Valid reports whether r is a role a token may carry.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	ID         string
	Role       Role
	Department string
}

// SystemActorID is recorded as updatedBy for automatic changes.
const SystemActorID = "system"

// SystemActor returns the actor used by background jobs.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: RoleSystem}
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsStaff() bool  { return a.Role == RoleStaff }
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }
