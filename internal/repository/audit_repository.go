package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-desk/internal/domain"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// AuditFilter captures the ledger query surface: actor, action, resource
// and a timestamp range, plus pagination.
type AuditFilter struct {
	ActorID  *string
	Action   *domain.AuditAction
	Resource *domain.AuditResource
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	// SortAsc flips the default timestamp-descending order.
	SortAsc bool
}

// AuditStats aggregates ledger counts for reporting.
type AuditStats struct {
	ByAction   map[string]int64
	ByResource map[string]int64
	ByActor    map[string]int64
	Failed     int64
	Total      int64
}

// AuditRepository is the append-only security ledger. Insert and read are
// the only effective operations; Update and Delete exist to make the
// refusal explicit rather than leaving mutation an unstated convention.
// The schema enforces the same rule with triggers.
type AuditRepository interface {
	Insert(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, int64, error)
	Stats(ctx context.Context, filter AuditFilter) (*AuditStats, error)
	Update(ctx context.Context, entryID string, fields map[string]any) error
	Delete(ctx context.Context, entryID string) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_logs (actor_id, action, resource, resource_id, details, origin_ip, user_agent, success, error_message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	return r.pool.QueryRow(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.Resource,
		entry.ResourceID,
		details,
		entry.OriginIP,
		entry.UserAgent,
		entry.Success,
		entry.ErrorMessage,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, int64, error) {
	clauses, args := buildAuditClauses(filter)
	where := strings.Join(clauses, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM audit_logs WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	order := "DESC"
	if filter.SortAsc {
		order = "ASC"
	}

	query := fmt.Sprintf(`
        SELECT id, actor_id, action, resource, resource_id, details, origin_ip, user_agent, success, error_message, created_at
        FROM audit_logs WHERE %s ORDER BY created_at %s, id %s LIMIT %d OFFSET %d`,
		where, order, order, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.Resource,
			&entry.ResourceID,
			&entry.Details,
			&entry.OriginIP,
			&entry.UserAgent,
			&entry.Success,
			&entry.ErrorMessage,
			&entry.Timestamp,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, entry)
	}
	return result, total, rows.Err()
}

func (r *auditRepository) Stats(ctx context.Context, filter AuditFilter) (*AuditStats, error) {
	clauses, args := buildAuditClauses(filter)
	where := strings.Join(clauses, " AND ")

	stats := &AuditStats{
		ByAction:   make(map[string]int64),
		ByResource: make(map[string]int64),
		ByActor:    make(map[string]int64),
	}

	grouped := []struct {
		column string
		target map[string]int64
	}{
		{"action", stats.ByAction},
		{"resource", stats.ByResource},
		{"COALESCE(actor_id::text, 'system')", stats.ByActor},
	}
	for _, g := range grouped {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM audit_logs WHERE %s GROUP BY 1 ORDER BY 2 DESC`, g.column, where)
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, err
			}
			g.target[key] = count
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	failedQuery := fmt.Sprintf(`SELECT COUNT(*) FILTER (WHERE success=FALSE), COUNT(*) FROM audit_logs WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, failedQuery, args...).Scan(&stats.Failed, &stats.Total); err != nil {
		return nil, err
	}
	return stats, nil
}

// Update always refuses: committed ledger entries are immutable.
func (r *auditRepository) Update(ctx context.Context, entryID string, fields map[string]any) error {
	return apperrors.NewAppendOnlyViolation("audit log entries cannot be modified")
}

// Delete always refuses: the ledger only grows. Retention is an external
// administrative operation outside this service.
func (r *auditRepository) Delete(ctx context.Context, entryID string) error {
	return apperrors.NewAppendOnlyViolation("audit log entries cannot be deleted")
}

func buildAuditClauses(filter AuditFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("actor_id=$%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		clauses = append(clauses, fmt.Sprintf("action=$%d", len(args)))
	}
	if filter.Resource != nil {
		args = append(args, *filter.Resource)
		clauses = append(clauses, fmt.Sprintf("resource=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return clauses, args
}
