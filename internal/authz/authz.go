// Package authz implements the role-based authorization engine: a pure
// decision surface over the static permission matrix plus per-ticket
// ownership checks. It keeps no state and performs no logging; callers
// audit denials themselves.
package authz

import "github.com/spec-kit/incident-desk/internal/domain"

// Authorize reports whether role holds action on resource. Unknown roles
// and resources deny by default.
func Authorize(role domain.Role, resource Resource, action Action) bool {
	perms, ok := matrix[role]
	if !ok {
		return false
	}
	set, ok := perms[resource]
	if !ok {
		return false
	}
	if _, wild := set[ActionWildcard]; wild {
		return true
	}
	_, allowed := set[action]
	return allowed
}

// CanAccessTicket applies ownership semantics on top of the matrix for a
// concrete ticket.
func CanAccessTicket(ticket *domain.Ticket, user *domain.User, action Action) bool {
	if ticket == nil || user == nil {
		return false
	}
	switch user.Role {
	case domain.RoleAdministrator:
		return true
	case domain.RoleSupervisor:
		return true
	case domain.RoleCustomer:
		switch action {
		case ActionCreate:
			return true
		case ActionReadOwn, ActionAddComments, ActionUploadOwn:
			return ticket.CreatorID == user.ID
		}
		return false
	case domain.RoleAgentTier1, domain.RoleAgentTier2:
		assigned := ticket.AssigneeID != nil && *ticket.AssigneeID == user.ID
		switch action {
		case ActionCreate:
			return true
		case ActionReadAssigned, ActionUpdateAssigned, ActionAddComments, ActionUpload:
			return assigned
		case ActionEscalate:
			return user.Role == domain.RoleAgentTier2 && assigned
		}
		return false
	}
	return false
}

// CanAccessAuditLogs reports whether the user may query the audit ledger.
func CanAccessAuditLogs(user *domain.User) bool {
	if user == nil {
		return false
	}
	return user.Role == domain.RoleSupervisor || user.Role == domain.RoleAdministrator
}

// TicketScope describes which tickets a role may list.
type TicketScope struct {
	CreatorID  *string
	AssigneeID *string
	DenyAll    bool
}

// ScopeFor returns the listing filter for a user: customers see their own
// tickets, agents their assignments, supervisors and administrators
// everything. Unknown roles see nothing.
func ScopeFor(user *domain.User) TicketScope {
	switch user.Role {
	case domain.RoleCustomer:
		id := user.ID
		return TicketScope{CreatorID: &id}
	case domain.RoleAgentTier1, domain.RoleAgentTier2:
		id := user.ID
		return TicketScope{AssigneeID: &id}
	case domain.RoleSupervisor, domain.RoleAdministrator:
		return TicketScope{}
	}
	return TicketScope{DenyAll: true}
}
