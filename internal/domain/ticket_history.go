package domain

import "time"

// HistoryAction tags what kind of change a history entry records.
type HistoryAction string

const (
	HistoryActionCreate   HistoryAction = "create"
	HistoryActionUpdate   HistoryAction = "update"
	HistoryActionEscalate HistoryAction = "escalate"
	HistoryActionResolve  HistoryAction = "resolve"
	HistoryActionClose    HistoryAction = "close"
	HistoryActionAssign   HistoryAction = "assign"
	HistoryActionReassign HistoryAction = "reassign"
	HistoryActionComment  HistoryAction = "comment"
)

// HistoryEntry is one immutable line of a ticket's change ledger. ActorID
// is nil for system-initiated changes such as SLA escalation. Entries are
// append-only; the store rejects updates and deletes.
type HistoryEntry struct {
	ID        string
	TicketID  string
	Action    HistoryAction
	Field     string
	OldValue  *string
	NewValue  *string
	ActorID   *string
	Reason    string
	OriginIP  string
	Timestamp time.Time
}
