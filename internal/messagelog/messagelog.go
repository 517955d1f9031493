// Package messagelog implements the MessageLogEntry entity: the immutable,
// append-only record of every message the Relay Coordinator accepted and
// fanned out.
package messagelog

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the messagelog package.
var ErrNotFound = errors.New("message log entry not found")

// Attachment is a lazy reference to platform-hosted media: the relay never downloads or re-hosts attachments, it
// only forwards the reference.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// ReplyRef is the structured reply context captured at fan-out time, produced by the Reply Resolver.
type ReplyRef struct {
	AuthorDisplay string
	QuotedText    string
	OriginKind    string // "native", "relayed", or "relayed-nested"
}

// Entry is a single row in the message log. It is immutable after insert: edits from the source platform produce a
// new entry or are ignored, never an update of an existing row.
type Entry struct {
	ID               int64
	RoomID           int64
	SourceGuildID    string
	SourceChannelID  string
	SourceMessageID  string
	AuthorID         string
	AuthorDisplay    string
	Content          string
	Attachments      []Attachment
	ReplyTo          *ReplyRef
	Timestamp        time.Time
	DeliveredCount   int
	FailedCount      int
}

// CreateParams groups the inputs for appending a log entry. DeliveredCount/FailedCount are supplied once fan-out has
// completed, so Append is called after the Fan-Out Engine finishes, not before.
type CreateParams struct {
	RoomID          int64
	SourceGuildID   string
	SourceChannelID string
	SourceMessageID string
	AuthorID        string
	AuthorDisplay   string
	Content         string
	Attachments     []Attachment
	ReplyTo         *ReplyRef
	DeliveredCount  int
	FailedCount     int
}

// Stats summarizes message-log activity for the admin telemetry surface.
type Stats struct {
	TotalMessages  int64
	DeliveredTotal int64
	FailedTotal    int64
	ActiveRooms    int64
}

// Repository defines the data-access contract for message log operations.
type Repository interface {
	// Append inserts a new, immutable log entry. This is the only write operation — there is no Update.
	Append(ctx context.Context, params CreateParams) (*Entry, error)
	GetByID(ctx context.Context, id int64) (*Entry, error)
	ListByRoom(ctx context.Context, roomID int64, before *int64, limit int) ([]Entry, error)
	Stats(ctx context.Context) (*Stats, error)
	StatsForRoom(ctx context.Context, roomID int64) (*Stats, error)
}
