package dto

import (
	"time"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Category        domain.TicketCategory  `json:"category"`
	Priority        domain.TicketPriority  `json:"priority,omitempty"`
	Confidentiality domain.Confidentiality `json:"confidentiality,omitempty"`
}

// UpdateTicketRequest payload; omitted fields stay unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Priority    *domain.TicketPriority `json:"priority,omitempty"`
	Status      *domain.TicketStatus   `json:"status,omitempty"`
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	Reason string `json:"reason"`
}

// ReassignTicketRequest payload.
type ReassignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CreateAttachmentRequest carries attachment metadata from the storage
// collaborator.
type CreateAttachmentRequest struct {
	FileName  string `json:"file_name"`
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	Number      string                `json:"number"`
	Title       string                `json:"title"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	AssigneeID  *string               `json:"assignee_id,omitempty"`
	SLADeadline time.Time             `json:"sla_deadline"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID              string                 `json:"id"`
	Number          string                 `json:"number"`
	CreatorID       string                 `json:"creator_id"`
	AssigneeID      *string                `json:"assignee_id,omitempty"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Category        domain.TicketCategory  `json:"category"`
	Priority        domain.TicketPriority  `json:"priority"`
	Status          domain.TicketStatus    `json:"status"`
	Confidentiality domain.Confidentiality `json:"confidentiality"`
	SLADeadline     time.Time              `json:"sla_deadline"`
	EscalatedBySLA  bool                   `json:"escalated_by_sla"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time             `json:"closed_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Comments        []CommentResponse      `json:"comments,omitempty"`
	History         []HistoryResponse      `json:"history,omitempty"`
}

// CommentResponse response.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	Checksum   string    `json:"checksum"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// HistoryResponse is one line of the ticket's change ledger.
type HistoryResponse struct {
	ID        string               `json:"id"`
	Action    domain.HistoryAction `json:"action"`
	Field     string               `json:"field"`
	OldValue  *string              `json:"old_value,omitempty"`
	NewValue  *string              `json:"new_value,omitempty"`
	ActorID   *string              `json:"actor_id,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}
