package events

import (
	"time"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketReassigned    EventType = "ticket_reassigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventSLAWarning          EventType = "sla_warning"
	EventSLAEscalated        EventType = "sla_escalated"
)

// Event represents a domain event emitted by services. ActorID is nil for
// system-initiated events such as SLA escalation.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     domain.TicketCategory `json:"category"`
	Title        string                `json:"title"`
	SLADeadline  time.Time             `json:"sla_deadline"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	NewAssigneeID *string `json:"new_assignee_id,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}

// SLAWarningPayload tells the notification collaborator who to warn.
type SLAWarningPayload struct {
	TicketNumber string    `json:"ticket_number"`
	NotifyUserID string    `json:"notify_user_id"`
	SLADeadline  time.Time `json:"sla_deadline"`
}

// SLAEscalatedPayload payload.
type SLAEscalatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	OldPriority  domain.TicketPriority `json:"old_priority"`
	NewPriority  domain.TicketPriority `json:"new_priority"`
	NotifyUserID *string               `json:"notify_user_id,omitempty"`
}
