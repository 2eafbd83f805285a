package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-desk/internal/domain"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// TicketHistoryRepository reads the per-ticket change ledger. Writes go
// through the ticket repository transactions; the ledger itself is
// append-only and the store refuses anything else.
type TicketHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error)
	Delete(ctx context.Context, entryID string) error
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// insertHistoryTx appends one ledger line inside the caller's transaction.
func insertHistoryTx(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, action, field, old_value, new_value, actor_id, reason, origin_ip)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		entry.TicketID,
		entry.Action,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.ActorID,
		entry.Reason,
		entry.OriginIP,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, action, field, old_value, new_value, actor_id, reason, origin_ip, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Action,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.ActorID,
			&entry.Reason,
			&entry.OriginIP,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Delete always refuses: history entries are immutable once written.
func (r *ticketHistoryRepository) Delete(ctx context.Context, entryID string) error {
	return apperrors.NewAppendOnlyViolation("ticket history entries cannot be deleted")
}
