package dto

import (
	"time"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// AuditEntryResponse is one line of the security ledger.
type AuditEntryResponse struct {
	ID           string               `json:"id"`
	ActorID      *string              `json:"actor_id,omitempty"`
	Action       domain.AuditAction   `json:"action"`
	Resource     domain.AuditResource `json:"resource"`
	ResourceID   *string              `json:"resource_id,omitempty"`
	Details      map[string]any       `json:"details,omitempty"`
	OriginIP     string               `json:"origin_ip"`
	UserAgent    string               `json:"user_agent,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
	Success      bool                 `json:"success"`
	ErrorMessage *string              `json:"error_message,omitempty"`
}

// AuditListResponse wraps a ledger page with its total for pagination.
type AuditListResponse struct {
	Items []AuditEntryResponse `json:"items"`
	Total int64                `json:"total"`
}

// AuditStatsResponse carries aggregate ledger counts.
type AuditStatsResponse struct {
	ByAction   map[string]int64 `json:"by_action"`
	ByResource map[string]int64 `json:"by_resource"`
	ByActor    map[string]int64 `json:"by_actor"`
	Failed     int64            `json:"failed"`
	Total      int64            `json:"total"`
}
