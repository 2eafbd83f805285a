package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/authz"
	"github.com/spec-kit/incident-desk/internal/config"
	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/events"
	"github.com/spec-kit/incident-desk/internal/observability"
	"github.com/spec-kit/incident-desk/internal/repository"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle. Every mutating
// operation follows the same shape: RBAC check, field change, history
// entry, atomic persistence, best-effort audit.
type TicketService struct {
	tickets     repository.TicketRepository
	history     repository.TicketHistoryRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	audit       *AuditService
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	slaCfg      config.SLAConfig
	now         func() time.Time
}

// TicketDependencies bundles requirements for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	HistoryRepo    repository.TicketHistoryRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	UserRepo       repository.UserRepository
	Audit          *AuditService
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(slaCfg config.SLAConfig, deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		history:     deps.HistoryRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		users:       deps.UserRepo,
		audit:       deps.Audit,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		slaCfg:      slaCfg,
		now:         time.Now,
	}
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title           string
	Description     string
	Category        domain.TicketCategory
	Priority        domain.TicketPriority
	Confidentiality domain.Confidentiality
}

// UpdateTicketInput carries the mutable fields; nil means unchanged.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
}

// AttachmentInput carries attachment metadata from the storage
// collaborator.
type AttachmentInput struct {
	FileName  string
	Checksum  string
	SizeBytes int64
}

// ListTicketsInput narrows the role-scoped listing.
type ListTicketsInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	SearchTerm *string
	Limit      int
	Offset     int
}

// CreateTicket creates a ticket for the actor, stamping the SLA deadline
// from the configured hours-per-priority table and recording the creation
// as the first history entry.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input CreateTicketInput, origin domain.Origin) (*domain.Ticket, error) {
	if !authz.Authorize(actor.Role, authz.ResourceTickets, authz.ActionCreate) {
		return nil, s.deny(ctx, actor, nil, "create ticket", origin)
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || len(title) > 200 {
		return nil, apperrors.NewValidationError("title is required and must not exceed 200 characters", nil)
	}
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	confidentiality := input.Confidentiality
	if confidentiality == "" {
		confidentiality = domain.ConfidentialityInternal
	}

	now := s.now()
	ticket := &domain.Ticket{
		CreatorID:       actor.ID,
		Title:           title,
		Description:     description,
		Category:        input.Category,
		Priority:        priority,
		Status:          domain.TicketStatusOpen,
		Confidentiality: confidentiality,
		SLADeadline:     domain.SLADeadlineFor(now, priority, s.slaCfg.Hours()),
	}

	created := string(domain.TicketStatusOpen)
	history := []domain.HistoryEntry{{
		Action:   domain.HistoryActionCreate,
		Field:    "status",
		OldValue: nil,
		NewValue: &created,
		ActorID:  &actor.ID,
		OriginIP: origin.IP,
	}}

	if err := s.tickets.Create(ctx, ticket, history); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.recordAudit(ctx, actor, domain.AuditTicketCreated, ticket, map[string]any{
		"ticketNumber": ticket.Number,
		"priority":     ticket.Priority,
		"category":     ticket.Category,
	}, origin)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.Number,
			Priority:     ticket.Priority,
			Category:     ticket.Category,
			Title:        ticket.Title,
			SLADeadline:  ticket.SLADeadline,
		},
	})
	return ticket, nil
}

// GetTicket fetches one ticket the actor may read.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string, origin domain.Origin) (*domain.Ticket, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, readActionFor(actor.Role)) {
		return nil, s.deny(ctx, actor, ticket, "read ticket", origin)
	}
	return ticket, nil
}

// ListTickets returns the tickets visible to the actor's role.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, input ListTicketsInput) ([]domain.Ticket, error) {
	scope := authz.ScopeFor(actor)
	if scope.DenyAll {
		return nil, apperrors.NewPermissionDenied("")
	}
	filter := repository.TicketFilter{
		CreatorID:  scope.CreatorID,
		AssigneeID: scope.AssigneeID,
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		Categories: input.Categories,
		SearchTerm: input.SearchTerm,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	return s.tickets.List(ctx, filter)
}

// UpdateTicket applies the changed fields as one logical unit, appending
// one history entry per changed field. Status may not be set to ESCALATED
// here; that path is EscalateTicket with its own privilege rule.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input UpdateTicketInput, origin domain.Origin) (*domain.Ticket, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, updateActionFor(actor.Role)) {
		return nil, s.deny(ctx, actor, ticket, "update ticket", origin)
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		if *input.Status == domain.TicketStatusEscalated {
			return nil, apperrors.NewValidationError("status ESCALATED is set through the escalate operation", nil)
		}
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" || len(trimmed) > 200 {
			return nil, apperrors.NewValidationError("title is required and must not exceed 200 characters", nil)
		}
		input.Title = &trimmed
	}

	now := s.now()
	var history []domain.HistoryEntry

	if input.Title != nil && *input.Title != ticket.Title {
		history = append(history, fieldChange(actor, origin, domain.HistoryActionUpdate, "title", ticket.Title, *input.Title))
		ticket.Title = *input.Title
	}
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if desc != "" && desc != ticket.Description {
			history = append(history, fieldChange(actor, origin, domain.HistoryActionUpdate, "description", ticket.Description, desc))
			ticket.Description = desc
		}
	}
	if input.Priority != nil && *input.Priority != ticket.Priority {
		history = append(history, fieldChange(actor, origin, domain.HistoryActionUpdate, "priority", string(ticket.Priority), string(*input.Priority)))
		ticket.Priority = *input.Priority
	}
	if input.Status != nil && *input.Status != ticket.Status {
		action := domain.HistoryActionUpdate
		switch *input.Status {
		case domain.TicketStatusResolved:
			action = domain.HistoryActionResolve
			ticket.ResolvedAt = &now
		case domain.TicketStatusClosed:
			action = domain.HistoryActionClose
			ticket.ClosedAt = &now
		}
		history = append(history, fieldChange(actor, origin, action, "status", string(ticket.Status), string(*input.Status)))
		ticket.Status = *input.Status
	}

	if len(history) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket, history); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	auditAction := domain.AuditTicketUpdated
	switch ticket.Status {
	case domain.TicketStatusResolved:
		auditAction = domain.AuditTicketResolved
	case domain.TicketStatusClosed:
		auditAction = domain.AuditTicketClosed
	}
	s.recordAudit(ctx, actor, auditAction, ticket, map[string]any{
		"ticketNumber":  ticket.Number,
		"changedFields": changedFields(history),
	}, origin)
	if input.Status != nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  &actor.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: statusBefore(history, ticket.Status),
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, nil
}

// EscalateTicket moves the ticket into ESCALATED. Requires tier-2-or-above
// privilege on the ticket; escalating an already escalated ticket is
// rejected.
func (s *TicketService) EscalateTicket(ctx context.Context, actor *domain.User, ticketID, reason string, origin domain.Origin) (*domain.Ticket, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, authz.ActionEscalate) {
		return nil, s.deny(ctx, actor, ticket, "escalate ticket", origin)
	}
	if ticket.Status == domain.TicketStatusEscalated {
		return nil, apperrors.NewConflict("ticket is already escalated", map[string]any{"ticketNumber": ticket.Number})
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusEscalated
	entry := fieldChange(actor, origin, domain.HistoryActionEscalate, "status", string(oldStatus), string(ticket.Status))
	entry.Reason = reason

	if err := s.tickets.Update(ctx, ticket, []domain.HistoryEntry{entry}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.recordAudit(ctx, actor, domain.AuditTicketEscalated, ticket, map[string]any{
		"ticketNumber": ticket.Number,
		"reason":       reason,
	}, origin)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload:  events.TicketEscalatedPayload{OldStatus: oldStatus, Reason: reason},
	})
	return ticket, nil
}

// ReassignTicket moves the ticket to another assignee. Supervisor or
// administrator only.
func (s *TicketService) ReassignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID string, origin domain.Origin) (*domain.Ticket, error) {
	if !authz.Authorize(actor.Role, authz.ResourceTickets, authz.ActionReassign) {
		return nil, s.deny(ctx, actor, nil, "reassign ticket", origin)
	}
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee")
		}
		return nil, apperrors.NewInternalError(err)
	}

	oldAssignee := ticket.AssigneeID
	action := domain.HistoryActionReassign
	if oldAssignee == nil {
		action = domain.HistoryActionAssign
	}
	entry := fieldChange(actor, origin, action, "assignee", derefOr(oldAssignee, ""), assignee.ID)
	ticket.AssigneeID = &assignee.ID

	if err := s.tickets.Update(ctx, ticket, []domain.HistoryEntry{entry}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.recordAudit(ctx, actor, domain.AuditTicketReassigned, ticket, map[string]any{
		"ticketNumber": ticket.Number,
		"assigneeId":   assignee.ID,
	}, origin)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload:  events.TicketReassignedPayload{OldAssigneeID: oldAssignee, NewAssigneeID: ticket.AssigneeID},
	})
	return ticket, nil
}

// AddComment appends a comment and its history line in one transaction.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, body string, origin domain.Origin) (*domain.Comment, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, authz.ActionAddComments) {
		return nil, s.deny(ctx, actor, ticket, "comment on ticket", origin)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", nil)
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Body:     body,
	}
	preview := stringPreview(body, 50)
	entry := domain.HistoryEntry{
		Action:   domain.HistoryActionComment,
		Field:    "comments",
		NewValue: &preview,
		ActorID:  &actor.ID,
		OriginIP: origin.IP,
	}
	if err := s.comments.Add(ctx, comment, entry); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.recordAudit(ctx, actor, domain.AuditCommentAdded, ticket, map[string]any{
		"ticketNumber": ticket.Number,
		"commentId":    comment.ID,
	}, origin)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    actor.ID,
			BodyPreview: preview,
		},
	})
	return comment, nil
}

// AddAttachment records attachment metadata. The checksum comes from the
// storage collaborator; this core never touches file bytes.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID string, input AttachmentInput, origin domain.Origin) (*domain.Attachment, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, uploadActionFor(actor.Role)) {
		return nil, s.deny(ctx, actor, ticket, "attach file to ticket", origin)
	}
	if strings.TrimSpace(input.FileName) == "" || strings.TrimSpace(input.Checksum) == "" {
		return nil, apperrors.NewValidationError("file name and checksum are required", nil)
	}

	attachment := &domain.Attachment{
		TicketID:   ticket.ID,
		FileName:   input.FileName,
		Checksum:   input.Checksum,
		SizeBytes:  input.SizeBytes,
		UploadedBy: actor.ID,
	}
	entry := domain.HistoryEntry{
		Action:   domain.HistoryActionUpdate,
		Field:    "attachments",
		NewValue: &attachment.FileName,
		ActorID:  &actor.ID,
		OriginIP: origin.IP,
	}
	if err := s.attachments.Add(ctx, attachment, entry); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.recordAudit(ctx, actor, domain.AuditAttachmentUploaded, ticket, map[string]any{
		"ticketNumber": ticket.Number,
		"fileName":     attachment.FileName,
		"checksum":     attachment.Checksum,
	}, origin)
	return attachment, nil
}

// TicketHistory returns the ticket's change ledger, oldest first.
func (s *TicketService) TicketHistory(ctx context.Context, actor *domain.User, ticketID string, origin domain.Origin) ([]domain.HistoryEntry, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, readActionFor(actor.Role)) {
		return nil, s.deny(ctx, actor, ticket, "read ticket history", origin)
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}

// TicketComments returns the ticket's comments, oldest first.
func (s *TicketService) TicketComments(ctx context.Context, actor *domain.User, ticketID string, origin domain.Origin) ([]domain.Comment, error) {
	ticket, err := s.fetch(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(ticket, actor, readActionFor(actor.Role)) {
		return nil, s.deny(ctx, actor, ticket, "read ticket comments", origin)
	}
	return s.comments.ListByTicket(ctx, ticket.ID)
}

func (s *TicketService) fetch(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

// deny audits the denial and returns the caller-facing error. Nothing has
// been mutated at this point.
func (s *TicketService) deny(ctx context.Context, actor *domain.User, ticket *domain.Ticket, detail string, origin domain.Origin) error {
	var resourceID *string
	if ticket != nil {
		id := ticket.ID
		resourceID = &id
	}
	s.audit.RecordDenied(ctx, actor, domain.AuditResourceTicket, resourceID, detail, origin)
	s.metrics.RecordDenial()
	return apperrors.NewPermissionDenied("")
}

func (s *TicketService) recordAudit(ctx context.Context, actor *domain.User, action domain.AuditAction, ticket *domain.Ticket, details map[string]any, origin domain.Origin) {
	id := ticket.ID
	s.audit.Record(ctx, domain.AuditEntry{
		ActorID:    &actor.ID,
		Action:     action,
		Resource:   domain.AuditResourceTicket,
		ResourceID: &id,
		Details:    details,
		OriginIP:   origin.IP,
		UserAgent:  origin.UserAgent,
		Success:    true,
	})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func readActionFor(role domain.Role) authz.Action {
	switch role {
	case domain.RoleCustomer:
		return authz.ActionReadOwn
	case domain.RoleAgentTier1, domain.RoleAgentTier2:
		return authz.ActionReadAssigned
	}
	return authz.ActionReadAll
}

func updateActionFor(role domain.Role) authz.Action {
	switch role {
	case domain.RoleAgentTier1, domain.RoleAgentTier2:
		return authz.ActionUpdateAssigned
	}
	return authz.ActionUpdateAll
}

func uploadActionFor(role domain.Role) authz.Action {
	if role == domain.RoleCustomer {
		return authz.ActionUploadOwn
	}
	return authz.ActionUpload
}

func fieldChange(actor *domain.User, origin domain.Origin, action domain.HistoryAction, field, oldValue, newValue string) domain.HistoryEntry {
	oldCopy, newCopy := oldValue, newValue
	return domain.HistoryEntry{
		Action:   action,
		Field:    field,
		OldValue: &oldCopy,
		NewValue: &newCopy,
		ActorID:  &actor.ID,
		OriginIP: origin.IP,
	}
}

func changedFields(history []domain.HistoryEntry) []string {
	fields := make([]string, 0, len(history))
	for _, h := range history {
		fields = append(fields, h.Field)
	}
	return fields
}

func statusBefore(history []domain.HistoryEntry, current domain.TicketStatus) domain.TicketStatus {
	for _, h := range history {
		if h.Field == "status" && h.OldValue != nil {
			return domain.TicketStatus(*h.OldValue)
		}
	}
	return current
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func stringPreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Truncate on a rune boundary so the preview stays valid UTF-8.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
