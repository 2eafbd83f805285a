package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// TicketFilter captures search parameters for listing tickets.
type TicketFilter struct {
	CreatorID  *string
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. Mutations that carry
// history entries are applied in a single transaction: the ticket row and
// its ledger lines land together or not at all.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, history []domain.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, history []domain.HistoryEntry) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)

	// SLA monitor scans and compare-and-set marker writes.
	ListBreached(ctx context.Context, now time.Time) ([]domain.Ticket, error)
	ListWarningDue(ctx context.Context, now, until time.Time) ([]domain.Ticket, error)
	EscalateBySLA(ctx context.Context, ticketID string, newPriority domain.TicketPriority, entry domain.HistoryEntry) (bool, error)
	MarkWarningSent(ctx context.Context, ticketID string) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, creator_id, assignee_id, title, description, category,
               priority, status, confidentiality, sla_deadline, resolved_at, closed_at,
               escalated_by_sla, sla_warning_sent, escalated_at, created_at, updated_at`

// Create inserts the ticket and its initial history in one transaction.
// The ticket number comes from a global sequence, so concurrent creations
// always receive distinct, strictly increasing numbers.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, history []domain.HistoryEntry) error {
	const query = `
        INSERT INTO tickets (number, creator_id, assignee_id, title, description, category,
                             priority, status, confidentiality, sla_deadline)
        VALUES ('TKT-' || lpad(nextval('ticket_number_seq')::text, 6, '0'),
                $1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, number, created_at, updated_at`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			ticket.CreatorID,
			ticket.AssigneeID,
			ticket.Title,
			ticket.Description,
			ticket.Category,
			ticket.Priority,
			ticket.Status,
			ticket.Confidentiality,
			ticket.SLADeadline,
		).Scan(&ticket.ID, &ticket.Number, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return err
		}
		for i := range history {
			history[i].TicketID = ticket.ID
			if err := insertHistoryTx(ctx, tx, &history[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE number=$1`, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Update persists the mutated ticket together with the history entries
// describing the change.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, history []domain.HistoryEntry) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, title=$2, description=$3, priority=$4, status=$5,
            confidentiality=$6, resolved_at=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			ticket.AssigneeID,
			ticket.Title,
			ticket.Description,
			ticket.Priority,
			ticket.Status,
			ticket.Confidentiality,
			ticket.ResolvedAt,
			ticket.ClosedAt,
			ticket.ID,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		for i := range history {
			history[i].TicketID = ticket.ID
			if err := insertHistoryTx(ctx, tx, &history[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListBreached(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status IN ('OPEN','IN_PROGRESS','ESCALATED')
          AND sla_deadline < $1
          AND escalated_by_sla = FALSE
        ORDER BY sla_deadline ASC`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWarningDue(ctx context.Context, now, until time.Time) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status IN ('OPEN','IN_PROGRESS','ESCALATED')
          AND sla_deadline >= $1 AND sla_deadline <= $2
          AND sla_warning_sent = FALSE
        ORDER BY sla_deadline ASC`
	rows, err := r.pool.Query(ctx, query, now, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// EscalateBySLA steps the priority and sets the escalated_by_sla marker
// with compare-and-set semantics. The history entry lands in the same
// transaction; a false return means another run already claimed the
// breach and nothing was written.
func (r *ticketRepository) EscalateBySLA(ctx context.Context, ticketID string, newPriority domain.TicketPriority, entry domain.HistoryEntry) (bool, error) {
	const query = `
        UPDATE tickets SET priority=$1, escalated_by_sla=TRUE, escalated_at=NOW(), updated_at=NOW()
        WHERE id=$2
          AND escalated_by_sla=FALSE
          AND status IN ('OPEN','IN_PROGRESS','ESCALATED')`

	applied := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query, newPriority, ticketID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return nil
		}
		entry.TicketID = ticketID
		if err := insertHistoryTx(ctx, tx, &entry); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// MarkWarningSent sets the warning marker with compare-and-set semantics
// so overlapping monitor cycles notify at most once.
func (r *ticketRepository) MarkWarningSent(ctx context.Context, ticketID string) (bool, error) {
	const query = `
        UPDATE tickets SET sla_warning_sent=TRUE, updated_at=NOW()
        WHERE id=$1 AND sla_warning_sent=FALSE`
	cmd, err := r.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Confidentiality,
		&ticket.SLADeadline,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.EscalatedBySLA,
		&ticket.SLAWarningSent,
		&ticket.EscalatedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
