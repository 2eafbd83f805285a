package domain

import "time"

// Role enumerates the fixed user roles ordered by escalation privilege.
type Role string

const (
	RoleCustomer      Role = "CUSTOMER"
	RoleAgentTier1    Role = "AGENT_TIER1"
	RoleAgentTier2    Role = "AGENT_TIER2"
	RoleSupervisor    Role = "SUPERVISOR"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// Roles lists every valid role.
var Roles = []Role{RoleCustomer, RoleAgentTier1, RoleAgentTier2, RoleSupervisor, RoleAdministrator}

// Valid reports whether the role is one of the fixed five.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgentTier1, RoleAgentTier2, RoleSupervisor, RoleAdministrator:
		return true
	}
	return false
}

// User is the domain model for every account, customer or staff.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool

	// Account security state.
	FailedAttempts int
	LockedUntil    *time.Time
	MFAEnabled     bool
	MFASecret      string

	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether the lockout window is still in effect.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RegisterFailedAttempt applies one failed login to the security state.
// A lock that has already expired resets the counter to 1 instead of
// accumulating; reaching maxAttempts starts a new lockout window from the
// triggering attempt.
func (u *User) RegisterFailedAttempt(now time.Time, maxAttempts int, lockFor time.Duration) {
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.FailedAttempts = 1
		u.LockedUntil = nil
		return
	}
	u.FailedAttempts++
	if u.FailedAttempts >= maxAttempts && !u.IsLocked(now) {
		until := now.Add(lockFor)
		u.LockedUntil = &until
	}
}

// ResetAttempts clears the failure counter and any lockout window.
func (u *User) ResetAttempts() {
	u.FailedAttempts = 0
	u.LockedUntil = nil
}
