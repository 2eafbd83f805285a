package authz

import (
	"sort"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// Resource names a protected resource class.
type Resource string

const (
	ResourceTickets     Resource = "tickets"
	ResourceComments    Resource = "comments"
	ResourceAttachments Resource = "attachments"
	ResourceAuditLogs   Resource = "audit_logs"
	ResourceUsers       Resource = "users"
)

// Resources lists every protected resource class.
var Resources = []Resource{ResourceTickets, ResourceComments, ResourceAttachments, ResourceAuditLogs, ResourceUsers}

// Action is a permission token checked against the matrix.
type Action string

const (
	ActionCreate         Action = "create"
	ActionReadOwn        Action = "read_own"
	ActionReadAssigned   Action = "read_assigned"
	ActionReadAll        Action = "read_all"
	ActionUpdateAssigned Action = "update_assigned"
	ActionUpdateAll      Action = "update_all"
	ActionEscalate       Action = "escalate"
	ActionReassign       Action = "reassign"
	ActionReports        Action = "reports"
	ActionAddComments    Action = "add_comments"
	ActionUpload         Action = "upload"
	ActionUploadOwn      Action = "upload_own"
	ActionDownload       Action = "download"
	ActionViewOwn        Action = "view_own"
	ActionViewAll        Action = "view_all"
	ActionFilter         Action = "filter"
	ActionWildcard       Action = "*"
)

type actionSet map[Action]struct{}

func actions(list ...Action) actionSet {
	set := make(actionSet, len(list))
	for _, a := range list {
		set[a] = struct{}{}
	}
	return set
}

// matrix is the static permission table, built once and never mutated.
// Every (role, resource) pair resolves to a defined, possibly empty, set.
var matrix = map[domain.Role]map[Resource]actionSet{
	domain.RoleCustomer: {
		ResourceTickets:     actions(ActionCreate, ActionReadOwn, ActionAddComments),
		ResourceComments:    actions(ActionCreate, ActionReadOwn),
		ResourceAttachments: actions(ActionUploadOwn),
		ResourceAuditLogs:   actions(),
		ResourceUsers:       actions(),
	},
	domain.RoleAgentTier1: {
		ResourceTickets:     actions(ActionCreate, ActionReadAssigned, ActionUpdateAssigned, ActionAddComments),
		ResourceComments:    actions(ActionCreate, ActionReadAssigned),
		ResourceAttachments: actions(ActionUpload, ActionDownload),
		ResourceAuditLogs:   actions(ActionViewOwn),
		ResourceUsers:       actions(),
	},
	domain.RoleAgentTier2: {
		ResourceTickets:     actions(ActionCreate, ActionReadAssigned, ActionUpdateAssigned, ActionEscalate, ActionAddComments),
		ResourceComments:    actions(ActionCreate, ActionReadAssigned),
		ResourceAttachments: actions(ActionUpload, ActionDownload),
		ResourceAuditLogs:   actions(ActionViewOwn),
		ResourceUsers:       actions(),
	},
	domain.RoleSupervisor: {
		ResourceTickets:     actions(ActionCreate, ActionReadAll, ActionUpdateAll, ActionReassign, ActionReports, ActionAddComments),
		ResourceComments:    actions(ActionCreate, ActionReadAll),
		ResourceAttachments: actions(ActionUpload, ActionDownload),
		ResourceAuditLogs:   actions(ActionViewAll, ActionFilter),
		ResourceUsers:       actions(),
	},
	domain.RoleAdministrator: {
		ResourceTickets:     actions(ActionWildcard),
		ResourceComments:    actions(ActionWildcard),
		ResourceAttachments: actions(ActionWildcard),
		ResourceAuditLogs:   actions(ActionWildcard),
		ResourceUsers:       actions(ActionWildcard),
	},
}

// RolePermissions returns the action tokens a role holds on a resource,
// sorted for stable output. The session endpoint exposes these so
// clients can gate their UI; mutation of the result does not affect the
// matrix.
func RolePermissions(role domain.Role, resource Resource) []Action {
	perms, ok := matrix[role]
	if !ok {
		return nil
	}
	set := perms[resource]
	out := make([]Action, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
