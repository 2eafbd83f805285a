package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/repository"
)

// In-memory repository fakes. They mirror the transactional guarantees of
// the real store closely enough for service-level behavior: mutations
// with history land together, CAS markers flip once.

type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) UpdateSecurityState(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.FailedAttempts = user.FailedAttempts
	stored.LockedUntil = user.LockedUntil
	stored.LastLogin = user.LastLogin
	return nil
}

func (r *fakeUserRepo) add(user *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", r.seq)
	}
	copied := *user
	r.users[user.ID] = &copied
	return user
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *fakeAuditRepo) Insert(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = fmt.Sprintf("audit-%d", len(r.entries)+1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if filter.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filter.ActorID) {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) Stats(_ context.Context, _ repository.AuditFilter) (*repository.AuditStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.AuditStats{
		ByAction:   make(map[string]int64),
		ByResource: make(map[string]int64),
		ByActor:    make(map[string]int64),
	}
	for _, e := range r.entries {
		stats.Total++
		stats.ByAction[string(e.Action)]++
		stats.ByResource[string(e.Resource)]++
		if e.ActorID != nil {
			stats.ByActor[*e.ActorID]++
		}
		if !e.Success {
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *fakeAuditRepo) Update(context.Context, string, map[string]any) error {
	panic("audit ledger is append-only")
}

func (r *fakeAuditRepo) Delete(context.Context, string) error {
	panic("audit ledger is append-only")
}

func (r *fakeAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *fakeAuditRepo) last() *domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	copied := r.entries[len(r.entries)-1]
	return &copied
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int64
	tickets map[string]*domain.Ticket
	history map[string][]domain.HistoryEntry
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets: make(map[string]*domain.Ticket),
		history: make(map[string][]domain.HistoryEntry),
	}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket, history []domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.Number = domain.FormatTicketNumber(r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	r.appendHistory(ticket.ID, history)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.Number == number {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket, history []domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	r.appendHistory(ticket.ID, history)
	return nil
}

func (r *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		out = append(out, *ticket)
	}
	return out, nil
}

func (r *fakeTicketRepo) ListBreached(_ context.Context, now time.Time) ([]domain.Ticket, error) {
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

func (r *fakeTicketRepo) ListWarningDue(_ context.Context, now, until time.Time) ([]domain.Ticket, error) {
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

func (r *fakeTicketRepo) EscalateBySLA(_ context.Context, ticketID string, newPriority domain.TicketPriority, entry domain.HistoryEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.EscalatedBySLA || ticket.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	ticket.Priority = newPriority
	ticket.EscalatedBySLA = true
	ticket.EscalatedAt = &now
	r.appendHistory(ticketID, []domain.HistoryEntry{entry})
	return true, nil
}

func (r *fakeTicketRepo) MarkWarningSent(_ context.Context, ticketID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.SLAWarningSent {
		return false, nil
	}
	ticket.SLAWarningSent = true
	return true, nil
}

func (r *fakeTicketRepo) appendHistory(ticketID string, entries []domain.HistoryEntry) {
	for _, e := range entries {
		e.TicketID = ticketID
		e.ID = fmt.Sprintf("hist-%d", len(r.history[ticketID])+1)
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		r.history[ticketID] = append(r.history[ticketID], e)
	}
}

func (r *fakeTicketRepo) historyOf(ticketID string) []domain.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.HistoryEntry{}, r.history[ticketID]...)
}

type fakeHistoryRepo struct {
	tickets *fakeTicketRepo
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	return r.tickets.historyOf(ticketID), nil
}

func (r *fakeHistoryRepo) Delete(context.Context, string) error {
	panic("ticket history is append-only")
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	tickets  *fakeTicketRepo
	comments map[string][]domain.Comment
}

func newFakeCommentRepo(tickets *fakeTicketRepo) *fakeCommentRepo {
	return &fakeCommentRepo{tickets: tickets, comments: make(map[string][]domain.Comment)}
}

func (r *fakeCommentRepo) Add(_ context.Context, comment *domain.Comment, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = fmt.Sprintf("comment-%d", len(r.comments[comment.TicketID])+1)
	comment.CreatedAt = time.Now()
	r.comments[comment.TicketID] = append(r.comments[comment.TicketID], *comment)
	r.tickets.mu.Lock()
	r.tickets.appendHistory(comment.TicketID, []domain.HistoryEntry{entry})
	r.tickets.mu.Unlock()
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Comment{}, r.comments[ticketID]...), nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	tickets     *fakeTicketRepo
	attachments map[string][]domain.Attachment
}

func newFakeAttachmentRepo(tickets *fakeTicketRepo) *fakeAttachmentRepo {
	return &fakeAttachmentRepo{tickets: tickets, attachments: make(map[string][]domain.Attachment)}
}

func (r *fakeAttachmentRepo) Add(_ context.Context, attachment *domain.Attachment, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attachment.ID = fmt.Sprintf("att-%d", len(r.attachments[attachment.TicketID])+1)
	attachment.UploadedAt = time.Now()
	r.attachments[attachment.TicketID] = append(r.attachments[attachment.TicketID], *attachment)
	r.tickets.mu.Lock()
	r.tickets.appendHistory(attachment.TicketID, []domain.HistoryEntry{entry})
	r.tickets.mu.Unlock()
	return nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Attachment{}, r.attachments[ticketID]...), nil
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
