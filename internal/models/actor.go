package models

type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated principal behind a write. A nil *Actor means
// the write is anonymous or system-originated.
type Actor struct {
	ID   string
	Role Role
}

func (a *Actor) IsStaff() bool {
	return a != nil && (a.Role == RoleStaff || a.Role == RoleAdmin)
}

// ActorID returns the actor identifier or "" when no actor is present.
func (a *Actor) ActorID() string {
	if a == nil {
		return ""
	}
	return a.ID
}
