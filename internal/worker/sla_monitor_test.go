package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/events"
	"github.com/spec-kit/incident-desk/internal/observability"
	"github.com/spec-kit/incident-desk/internal/repository"
	"github.com/spec-kit/incident-desk/internal/service"
)

type monitorTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	history map[string][]domain.HistoryEntry

	failEscalateFor string
}

func newMonitorTicketRepo() *monitorTicketRepo {
	return &monitorTicketRepo{
		tickets: make(map[string]*domain.Ticket),
		history: make(map[string][]domain.HistoryEntry),
	}
}

func (r *monitorTicketRepo) add(ticket domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := ticket
	r.tickets[ticket.ID] = &copied
}

func (r *monitorTicketRepo) get(id string) domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.tickets[id]
}

func (r *monitorTicketRepo) Create(context.Context, *domain.Ticket, []domain.HistoryEntry) error {
	panic("not used")
}

func (r *monitorTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, errors.New("missing")
	}
	copied := *ticket
	return &copied, nil
}

func (r *monitorTicketRepo) GetByNumber(context.Context, string) (*domain.Ticket, error) {
	panic("not used")
}

func (r *monitorTicketRepo) Update(context.Context, *domain.Ticket, []domain.HistoryEntry) error {
	panic("not used")
}

func (r *monitorTicketRepo) List(context.Context, repository.TicketFilter) ([]domain.Ticket, error) {
	panic("not used")
}

func (r *monitorTicketRepo) ListBreached(_ context.Context, now time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status.Terminal() || ticket.EscalatedBySLA {
			continue
		}
		if ticket.SLADeadline.Before(now) {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (r *monitorTicketRepo) ListWarningDue(_ context.Context, now, until time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status.Terminal() || ticket.SLAWarningSent {
			continue
		}
		if !ticket.SLADeadline.Before(now) && !ticket.SLADeadline.After(until) {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (r *monitorTicketRepo) EscalateBySLA(_ context.Context, ticketID string, newPriority domain.TicketPriority, entry domain.HistoryEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticketID == r.failEscalateFor {
		return false, errors.New("induced failure")
	}
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.EscalatedBySLA || ticket.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	ticket.Priority = newPriority
	ticket.EscalatedBySLA = true
	ticket.EscalatedAt = &now
	r.history[ticketID] = append(r.history[ticketID], entry)
	return true, nil
}

func (r *monitorTicketRepo) MarkWarningSent(_ context.Context, ticketID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.SLAWarningSent {
		return false, nil
	}
	ticket.SLAWarningSent = true
	return true, nil
}

type monitorAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *monitorAuditRepo) Insert(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = fmt.Sprintf("audit-%d", len(r.entries)+1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *monitorAuditRepo) List(context.Context, repository.AuditFilter) ([]domain.AuditEntry, int64, error) {
	panic("not used")
}

func (r *monitorAuditRepo) Stats(context.Context, repository.AuditFilter) (*repository.AuditStats, error) {
	panic("not used")
}

func (r *monitorAuditRepo) Update(context.Context, string, map[string]any) error {
	panic("audit ledger is append-only")
}

func (r *monitorAuditRepo) Delete(context.Context, string) error {
	panic("audit ledger is append-only")
}

func (r *monitorAuditRepo) count(action domain.AuditAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func newMonitorFixture(repo *monitorTicketRepo, now time.Time) (*SLAMonitor, *monitorAuditRepo, *[]events.Event) {
	audit := &monitorAuditRepo{}
	dispatcher := events.NewInMemoryDispatcher()

	var published []events.Event
	for _, et := range []events.EventType{events.EventSLAEscalated, events.EventSLAWarning} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			published = append(published, e)
			return nil
		})
	}

	monitor := NewSLAMonitor(repo, service.NewAuditService(audit, zap.NewNop()), dispatcher,
		observability.NewMetrics(), zap.NewNop(), 5*time.Minute, 2*time.Hour)
	monitor.now = func() time.Time { return now }
	return monitor, audit, &published
}

func breachedTicket(id string, status domain.TicketStatus, priority domain.TicketPriority, deadline time.Time) domain.Ticket {
	assignee := "agent-1"
	return domain.Ticket{
		ID:          id,
		Number:      "TKT-00000" + id[len(id)-1:],
		CreatorID:   "cust-1",
		AssigneeID:  &assignee,
		Status:      status,
		Priority:    priority,
		SLADeadline: deadline,
	}
}

func TestRunCycle_EscalatesBreachedExactlyOnce(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMonitorTicketRepo()
	repo.add(breachedTicket("t1", domain.TicketStatusOpen, domain.TicketPriorityMedium, now.Add(-time.Hour)))

	monitor, audit, published := newMonitorFixture(repo, now)
	monitor.RunCycle(context.Background())

	ticket := repo.get("t1")
	require.Equal(t, domain.TicketPriorityHigh, ticket.Priority, "priority steps one level up")
	require.Equal(t, domain.TicketStatusOpen, ticket.Status, "escalation steps priority without changing status")
	require.True(t, ticket.EscalatedBySLA)
	require.Equal(t, 1, audit.count(domain.AuditTicketEscalatedSLA))
	require.Len(t, *published, 1)

	// History entry carries a nil actor and the breach reason.
	require.Len(t, repo.history["t1"], 1)
	entry := repo.history["t1"][0]
	require.Nil(t, entry.ActorID)
	require.Equal(t, domain.HistoryActionEscalate, entry.Action)
	require.Equal(t, "SLA deadline breached", entry.Reason)

	// A second cycle sees the marker and does nothing.
	monitor.RunCycle(context.Background())
	require.Equal(t, 1, audit.count(domain.AuditTicketEscalatedSLA))
	require.Len(t, *published, 1)
}

func TestRunCycle_ScansAllNonTerminalStatuses(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMonitorTicketRepo()
	repo.add(breachedTicket("t1", domain.TicketStatusOpen, domain.TicketPriorityLow, now.Add(-time.Hour)))
	repo.add(breachedTicket("t2", domain.TicketStatusInProgress, domain.TicketPriorityHigh, now.Add(-time.Hour)))
	repo.add(breachedTicket("t3", domain.TicketStatusEscalated, domain.TicketPriorityCritical, now.Add(-time.Hour)))
	repo.add(breachedTicket("t4", domain.TicketStatusResolved, domain.TicketPriorityLow, now.Add(-time.Hour)))
	repo.add(breachedTicket("t5", domain.TicketStatusClosed, domain.TicketPriorityLow, now.Add(-time.Hour)))

	monitor, audit, _ := newMonitorFixture(repo, now)
	monitor.RunCycle(context.Background())

	require.Equal(t, 3, audit.count(domain.AuditTicketEscalatedSLA), "terminal tickets are skipped")
	require.True(t, repo.get("t1").EscalatedBySLA)
	require.True(t, repo.get("t2").EscalatedBySLA)
	require.True(t, repo.get("t3").EscalatedBySLA)
	require.False(t, repo.get("t4").EscalatedBySLA)
	require.False(t, repo.get("t5").EscalatedBySLA)

	// Critical is already the ceiling.
	require.Equal(t, domain.TicketPriorityCritical, repo.get("t3").Priority)
}

func TestRunCycle_WarningSentOnceWithFallbackTarget(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMonitorTicketRepo()

	assigned := breachedTicket("t1", domain.TicketStatusInProgress, domain.TicketPriorityMedium, now.Add(time.Hour))
	unassigned := breachedTicket("t2", domain.TicketStatusOpen, domain.TicketPriorityMedium, now.Add(90*time.Minute))
	unassigned.AssigneeID = nil
	farAway := breachedTicket("t3", domain.TicketStatusOpen, domain.TicketPriorityLow, now.Add(48*time.Hour))
	repo.add(assigned)
	repo.add(unassigned)
	repo.add(farAway)

	monitor, audit, published := newMonitorFixture(repo, now)
	monitor.RunCycle(context.Background())

	require.Equal(t, 2, audit.count(domain.AuditSLAWarningSent))
	require.True(t, repo.get("t1").SLAWarningSent)
	require.True(t, repo.get("t2").SLAWarningSent)
	require.False(t, repo.get("t3").SLAWarningSent, "deadline outside the lookahead window")

	targets := map[string]string{}
	for _, e := range *published {
		payload, ok := e.Payload.(events.SLAWarningPayload)
		if !ok {
			continue
		}
		targets[e.TicketID] = payload.NotifyUserID
	}
	require.Equal(t, "agent-1", targets["t1"], "assignee is warned when present")
	require.Equal(t, "cust-1", targets["t2"], "creator is warned when unassigned")

	monitor.RunCycle(context.Background())
	require.Equal(t, 2, audit.count(domain.AuditSLAWarningSent))
}

func TestRunCycle_PerTicketFailureIsolation(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMonitorTicketRepo()
	repo.add(breachedTicket("t1", domain.TicketStatusOpen, domain.TicketPriorityLow, now.Add(-time.Hour)))
	repo.add(breachedTicket("t2", domain.TicketStatusOpen, domain.TicketPriorityLow, now.Add(-time.Hour)))
	repo.failEscalateFor = "t1"

	monitor, audit, _ := newMonitorFixture(repo, now)
	monitor.RunCycle(context.Background())

	require.False(t, repo.get("t1").EscalatedBySLA)
	require.True(t, repo.get("t2").EscalatedBySLA, "failure on one ticket must not abort the cycle")
	require.Equal(t, 1, audit.count(domain.AuditTicketEscalatedSLA))
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMonitorTicketRepo()
	monitor, _, _ := newMonitorFixture(repo, now)
	monitor.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
