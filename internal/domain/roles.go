package domain

// Role is the internal role bound to a user profile.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleEmployee   Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleEmployee:
		return true
	}
	return false
}

// User is the internal profile resolved for an authenticated subject.
type User struct {
	ID   UserID
	Role Role
}
