package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/events"
)

// NotificationService turns domain events into user notifications. The
// delivery channel is a log line for now; delivery failures never affect
// the operation that raised the event.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService builds the service.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	return &NotificationService{logger: logger}
}

// RegisterHandlers subscribes the service to the events it delivers.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, s.onTicketCreated)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.onStatusChanged)
	dispatcher.Subscribe(events.EventTicketEscalated, s.onEscalated)
	dispatcher.Subscribe(events.EventTicketReassigned, s.onReassigned)
	dispatcher.Subscribe(events.EventTicketCommentAdded, s.onCommentAdded)
	dispatcher.Subscribe(events.EventSLAWarning, s.onSLAWarning)
	dispatcher.Subscribe(events.EventSLAEscalated, s.onSLAEscalated)
}

func (s *NotificationService) onTicketCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	s.logger.Info("notify: ticket created",
		zap.String("ticket", payload.TicketNumber),
		zap.String("priority", string(payload.Priority)),
		zap.Time("sla_deadline", payload.SLADeadline))
	return nil
}

func (s *NotificationService) onStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	s.logger.Info("notify: ticket status changed",
		zap.String("ticket_id", event.TicketID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))
	return nil
}

func (s *NotificationService) onEscalated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return nil
	}
	s.logger.Info("notify: ticket escalated",
		zap.String("ticket_id", event.TicketID),
		zap.String("reason", payload.Reason))
	return nil
}

func (s *NotificationService) onReassigned(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReassignedPayload)
	if !ok || payload.NewAssigneeID == nil {
		return nil
	}
	s.logger.Info("notify: ticket reassigned",
		zap.String("ticket_id", event.TicketID),
		zap.String("assignee_id", *payload.NewAssigneeID))
	return nil
}

func (s *NotificationService) onCommentAdded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok {
		return nil
	}
	s.logger.Info("notify: comment added",
		zap.String("ticket_id", event.TicketID),
		zap.String("author_id", payload.AuthorID))
	return nil
}

func (s *NotificationService) onSLAWarning(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAWarningPayload)
	if !ok {
		return nil
	}
	s.logger.Warn("notify: sla deadline approaching",
		zap.String("ticket", payload.TicketNumber),
		zap.String("notify_user_id", payload.NotifyUserID),
		zap.Time("sla_deadline", payload.SLADeadline))
	return nil
}

func (s *NotificationService) onSLAEscalated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAEscalatedPayload)
	if !ok {
		return nil
	}
	target := ""
	if payload.NotifyUserID != nil {
		target = *payload.NotifyUserID
	}
	s.logger.Warn("notify: ticket escalated on sla breach",
		zap.String("ticket", payload.TicketNumber),
		zap.String("old_priority", string(payload.OldPriority)),
		zap.String("new_priority", string(payload.NewPriority)),
		zap.String("notify_user_id", target))
	return nil
}
