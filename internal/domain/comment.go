package domain

import "time"

// Comment is an ordered, append-preferred child of a ticket.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// Attachment records file metadata only; checksums come from the external
// storage collaborator, never from file I/O in this core.
type Attachment struct {
	ID         string
	TicketID   string
	FileName   string
	Checksum   string // SHA-256 hex
	SizeBytes  int64
	UploadedBy string
	UploadedAt time.Time
}
