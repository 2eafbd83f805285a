package domain

import "time"

// AuditAction enumerates security-relevant event codes.
type AuditAction string

const (
	AuditLoginSuccess       AuditAction = "login_success"
	AuditLoginFailed        AuditAction = "login_failed"
	AuditLoginBlocked       AuditAction = "login_blocked"
	AuditLogout             AuditAction = "logout"
	AuditRegisterUser       AuditAction = "register_user"
	AuditPasswordChanged    AuditAction = "password_changed"
	AuditMFAEnabled         AuditAction = "mfa_enabled"
	AuditMFADisabled        AuditAction = "mfa_disabled"
	AuditMFAFailed          AuditAction = "mfa_failed"
	AuditTicketCreated      AuditAction = "ticket_created"
	AuditTicketUpdated      AuditAction = "ticket_updated"
	AuditTicketEscalated    AuditAction = "ticket_escalated"
	AuditTicketEscalatedSLA AuditAction = "ticket_escalated_sla"
	AuditTicketResolved     AuditAction = "ticket_resolved"
	AuditTicketClosed       AuditAction = "ticket_closed"
	AuditTicketReassigned   AuditAction = "ticket_reassigned"
	AuditCommentAdded       AuditAction = "comment_added"
	AuditAttachmentUploaded AuditAction = "attachment_uploaded"
	AuditSLAWarningSent     AuditAction = "sla_warning_sent"
	AuditPermissionDenied   AuditAction = "permission_denied"
)

// AuditResource names the kind of entity an audit entry refers to.
type AuditResource string

const (
	AuditResourceTicket     AuditResource = "ticket"
	AuditResourceUser       AuditResource = "user"
	AuditResourceComment    AuditResource = "comment"
	AuditResourceAttachment AuditResource = "attachment"
	AuditResourceSystem     AuditResource = "system"
)

// AuditEntry is one immutable line of the security ledger. It lives in its
// own top-level collection, independent of ticket history. ActorID is nil
// for system-initiated events.
type AuditEntry struct {
	ID           string
	ActorID      *string
	Action       AuditAction
	Resource     AuditResource
	ResourceID   *string
	Details      map[string]any
	OriginIP     string
	UserAgent    string
	Timestamp    time.Time
	Success      bool
	ErrorMessage *string
}

// Origin carries the request provenance the transport layer hands to the
// core with every call.
type Origin struct {
	IP        string
	UserAgent string
}

// SystemOrigin is used for changes initiated by background processes.
var SystemOrigin = Origin{IP: "system", UserAgent: "SLA Monitor"}
