package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/events"
	"github.com/spec-kit/incident-desk/internal/observability"
	"github.com/spec-kit/incident-desk/internal/repository"
	"github.com/spec-kit/incident-desk/internal/service"
)

// SLAMonitor periodically scans open work for breached and soon-to-breach
// deadlines. Escalation and warning delivery are made exactly-once by the
// repository's compare-and-set markers, so overlapping instances are
// safe.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	audit      *service.AuditService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	interval   time.Duration
	lookahead  time.Duration
	now        func() time.Time
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(
	tickets repository.TicketRepository,
	audit *service.AuditService,
	dispatcher events.Dispatcher,
	metrics *observability.Metrics,
	logger *zap.Logger,
	interval, lookahead time.Duration,
) *SLAMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SLAMonitor{
		tickets:    tickets,
		audit:      audit,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		interval:   interval,
		lookahead:  lookahead,
		now:        time.Now,
	}
}

// Start runs the scan loop until the context is cancelled. The first
// cycle runs immediately.
func (m *SLAMonitor) Start(ctx context.Context) {
	m.logger.Info("sla monitor started",
		zap.Duration("interval", m.interval),
		zap.Duration("warning_lookahead", m.lookahead))

	m.RunCycle(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle performs one breach scan followed by one warning scan. A
// failure on one ticket never aborts the rest of the cycle.
func (m *SLAMonitor) RunCycle(ctx context.Context) {
	now := m.now()
	m.scanBreaches(ctx, now)
	m.scanWarnings(ctx, now)
}

func (m *SLAMonitor) scanBreaches(ctx context.Context, now time.Time) {
	breached, err := m.tickets.ListBreached(ctx, now)
	if err != nil {
		m.logger.Error("sla breach scan failed", zap.Error(err))
		return
	}
	for i := range breached {
		if ctx.Err() != nil {
			return
		}
		if err := m.escalate(ctx, &breached[i], now); err != nil {
			m.logger.Error("sla escalation failed",
				zap.String("ticket", breached[i].Number),
				zap.Error(err))
		}
	}
}

func (m *SLAMonitor) escalate(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	oldPriority := ticket.Priority
	newPriority := oldPriority.Escalate()

	oldVal, newVal := string(oldPriority), string(newPriority)
	entry := domain.HistoryEntry{
		TicketID: ticket.ID,
		Action:   domain.HistoryActionEscalate,
		Field:    "priority",
		OldValue: &oldVal,
		NewValue: &newVal,
		ActorID:  nil,
		Reason:   "SLA deadline breached",
		OriginIP: domain.SystemOrigin.IP,
	}

	applied, err := m.tickets.EscalateBySLA(ctx, ticket.ID, newPriority, entry)
	if err != nil {
		return err
	}
	if !applied {
		// Another instance got there first.
		return nil
	}

	m.metrics.RecordSLAEscalation()
	m.logger.Warn("ticket escalated on sla breach",
		zap.String("ticket", ticket.Number),
		zap.String("old_priority", oldVal),
		zap.String("new_priority", newVal),
		zap.Time("deadline", ticket.SLADeadline))

	id := ticket.ID
	m.audit.Record(ctx, domain.AuditEntry{
		ActorID:    nil,
		Action:     domain.AuditTicketEscalatedSLA,
		Resource:   domain.AuditResourceTicket,
		ResourceID: &id,
		Details: map[string]any{
			"ticketNumber": ticket.Number,
			"oldPriority":  oldPriority,
			"newPriority":  newPriority,
			"deadline":     ticket.SLADeadline,
		},
		OriginIP:  domain.SystemOrigin.IP,
		UserAgent: domain.SystemOrigin.UserAgent,
		Success:   true,
		Timestamp: now,
	})

	if m.dispatcher != nil {
		_ = m.dispatcher.Publish(ctx, events.Event{
			Type:     events.EventSLAEscalated,
			TicketID: ticket.ID,
			Payload: events.SLAEscalatedPayload{
				TicketNumber: ticket.Number,
				OldPriority:  oldPriority,
				NewPriority:  newPriority,
				NotifyUserID: notifyTarget(ticket),
			},
		})
	}
	return nil
}

func (m *SLAMonitor) scanWarnings(ctx context.Context, now time.Time) {
	due, err := m.tickets.ListWarningDue(ctx, now, now.Add(m.lookahead))
	if err != nil {
		m.logger.Error("sla warning scan failed", zap.Error(err))
		return
	}
	for i := range due {
		if ctx.Err() != nil {
			return
		}
		if err := m.warn(ctx, &due[i], now); err != nil {
			m.logger.Error("sla warning failed",
				zap.String("ticket", due[i].Number),
				zap.Error(err))
		}
	}
}

func (m *SLAMonitor) warn(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	applied, err := m.tickets.MarkWarningSent(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	target := notifyTarget(ticket)
	m.metrics.RecordSLAWarning()
	m.logger.Info("sla warning issued",
		zap.String("ticket", ticket.Number),
		zap.Time("deadline", ticket.SLADeadline))

	id := ticket.ID
	m.audit.Record(ctx, domain.AuditEntry{
		ActorID:    nil,
		Action:     domain.AuditSLAWarningSent,
		Resource:   domain.AuditResourceTicket,
		ResourceID: &id,
		Details: map[string]any{
			"ticketNumber": ticket.Number,
			"deadline":     ticket.SLADeadline,
			"notifyUserId": target,
		},
		OriginIP:  domain.SystemOrigin.IP,
		UserAgent: domain.SystemOrigin.UserAgent,
		Success:   true,
		Timestamp: now,
	})

	if m.dispatcher != nil && target != nil {
		_ = m.dispatcher.Publish(ctx, events.Event{
			Type:     events.EventSLAWarning,
			TicketID: ticket.ID,
			Payload: events.SLAWarningPayload{
				TicketNumber: ticket.Number,
				NotifyUserID: *target,
				SLADeadline:  ticket.SLADeadline,
			},
		})
	}
	return nil
}

// notifyTarget picks the assignee when there is one, otherwise the
// creator.
func notifyTarget(ticket *domain.Ticket) *string {
	if ticket.AssigneeID != nil {
		return ticket.AssigneeID
	}
	id := ticket.CreatorID
	return &id
}
