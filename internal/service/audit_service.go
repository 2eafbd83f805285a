package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/repository"
)

// AuditService writes and queries the append-only security ledger.
type AuditService struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

// NewAuditService builds the service.
func NewAuditService(repo repository.AuditRepository, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one audit entry. Logging is always best-effort: a ledger
// write failure is reported to operational logging and swallowed so it
// can never abort the triggering business operation. Returns the stored
// entry, or nil when the write failed.
func (s *AuditService) Record(ctx context.Context, entry domain.AuditEntry) *domain.AuditEntry {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.String("resource", string(entry.Resource)),
			zap.Error(err))
		return nil
	}
	return &entry
}

// RecordDenied is the shorthand every call site uses for authorization
// denials.
func (s *AuditService) RecordDenied(ctx context.Context, actor *domain.User, resource domain.AuditResource, resourceID *string, detail string, origin domain.Origin) {
	var actorID *string
	if actor != nil {
		id := actor.ID
		actorID = &id
	}
	msg := detail
	s.Record(ctx, domain.AuditEntry{
		ActorID:      actorID,
		Action:       domain.AuditPermissionDenied,
		Resource:     resource,
		ResourceID:   resourceID,
		Details:      map[string]any{"detail": detail},
		OriginIP:     origin.IP,
		UserAgent:    origin.UserAgent,
		Success:      false,
		ErrorMessage: &msg,
	})
}

// List returns ledger entries matching the filter plus the total count
// for pagination.
func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, int64, error) {
	return s.repo.List(ctx, filter)
}

// Stats returns aggregate counts grouped by action, resource, actor and
// success for reporting.
func (s *AuditService) Stats(ctx context.Context, filter repository.AuditFilter) (*repository.AuditStats, error) {
	return s.repo.Stats(ctx, filter)
}
