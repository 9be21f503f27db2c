package domain

// Role is an account's privilege level.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleRegular    Role = "regular"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleRegular:
		return true
	}
	return false
}

// Rank orders roles; higher is more privileged. Unknown roles rank below
// regular.
func (r Role) Rank() int {
	switch r {
	case RoleSuperadmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleRegular:
		return 1
	}
	return 0
}

// AtLeast reports whether r is as privileged as other.
func (r Role) AtLeast(other Role) bool { return r.Rank() >= other.Rank() }

func (r Role) String() string { return string(r) }
