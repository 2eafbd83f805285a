package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// AttachmentRepository stores attachment metadata only; file bytes live
// with the external storage collaborator.
type AttachmentRepository interface {
	Add(ctx context.Context, attachment *domain.Attachment, entry domain.HistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository builds repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Add(ctx context.Context, attachment *domain.Attachment, entry domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, file_name, checksum, size_bytes, uploaded_by)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, uploaded_at`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			attachment.TicketID,
			attachment.FileName,
			attachment.Checksum,
			attachment.SizeBytes,
			attachment.UploadedBy,
		).Scan(&attachment.ID, &attachment.UploadedAt); err != nil {
			return err
		}
		entry.TicketID = attachment.TicketID
		return insertHistoryTx(ctx, tx, &entry)
	})
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, file_name, checksum, size_bytes, uploaded_by, uploaded_at
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY uploaded_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.TicketID,
			&att.FileName,
			&att.Checksum,
			&att.SizeBytes,
			&att.UploadedBy,
			&att.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
