package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-desk/internal/api/dto"
	"github.com/spec-kit/incident-desk/internal/auth"
	"github.com/spec-kit/incident-desk/internal/authz"
	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/repository"
	"github.com/spec-kit/incident-desk/internal/service"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// AuditHandler exposes the security ledger to supervisors and
// administrators. Tier-1 agents may view their own trail only.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{service: auditService}
}

// ListEntries GET /audit.
func (h *AuditHandler) ListEntries(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	filter, err := parseAuditQuery(c)
	if err != nil {
		return err
	}
	if !authz.CanAccessAuditLogs(principal.User) {
		// Agents get their own trail; everyone else is refused.
		if !authz.Authorize(principal.User.Role, authz.ResourceAuditLogs, authz.ActionViewOwn) {
			return apperrors.NewPermissionDenied("")
		}
		id := principal.User.ID
		filter.ActorID = &id
	}

	entries, total, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, auditEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": dto.AuditListResponse{Items: items, Total: total}})
}

// Stats GET /audit/stats.
func (h *AuditHandler) Stats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	if !authz.CanAccessAuditLogs(principal.User) {
		return apperrors.NewPermissionDenied("")
	}
	filter, err := parseAuditQuery(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuditStatsResponse{
		ByAction:   stats.ByAction,
		ByResource: stats.ByResource,
		ByActor:    stats.ByActor,
		Failed:     stats.Failed,
		Total:      stats.Total,
	}})
}

func parseAuditQuery(c *fiber.Ctx) (repository.AuditFilter, error) {
	filter := repository.AuditFilter{}
	if actor := strings.TrimSpace(c.Query("actor_id")); actor != "" {
		filter.ActorID = &actor
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		a := domain.AuditAction(action)
		filter.Action = &a
	}
	if resource := strings.TrimSpace(c.Query("resource")); resource != "" {
		r := domain.AuditResource(resource)
		filter.Resource = &r
	}
	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return filter, apperrors.NewValidationError("from must be RFC3339", nil)
		}
		filter.From = &from
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return filter, apperrors.NewValidationError("to must be RFC3339", nil)
		}
		filter.To = &to
	}
	filter.SortAsc = c.Query("sort") == "asc"
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func auditEntryResponse(entry *domain.AuditEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:           entry.ID,
		ActorID:      entry.ActorID,
		Action:       entry.Action,
		Resource:     entry.Resource,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		OriginIP:     entry.OriginIP,
		UserAgent:    entry.UserAgent,
		Timestamp:    entry.Timestamp,
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
	}
}
