package messagelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const entryColumns = `id, room_id, source_guild_id, source_channel_id, source_message_id, author_id, author_display,
content, attachments, reply_to, "timestamp", delivered_count, failed_count`

// PGRepository implements Repository using PostgreSQL. Attachments and ReplyTo are stored as JSONB columns — the
// message log is append-only and these fields are never queried by their internal structure, only read back whole.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed message log repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Append inserts a new log entry. It is the only write path this repository exposes.
func (r *PGRepository) Append(ctx context.Context, params CreateParams) (*Entry, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`
			INSERT INTO message_log
				(room_id, source_guild_id, source_channel_id, source_message_id, author_id, author_display,
				 content, attachments, reply_to, "timestamp", delivered_count, failed_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), $10, $11)
			RETURNING %s`, entryColumns),
		params.RoomID, params.SourceGuildID, params.SourceChannelID, params.SourceMessageID,
		params.AuthorID, params.AuthorDisplay, params.Content, params.Attachments, params.ReplyTo,
		params.DeliveredCount, params.FailedCount,
	)
	e, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("insert message log entry: %w", err)
	}
	return e, nil
}

// GetByID returns the log entry matching the given ID.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM message_log WHERE id = $1", entryColumns), id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query message log entry: %w", err)
	}
	return e, nil
}

// ListByRoom returns log entries for a room, newest first, with cursor-based pagination via before.
func (r *PGRepository) ListByRoom(ctx context.Context, roomID int64, before *int64, limit int) ([]Entry, error) {
	var rows pgx.Rows
	var err error

	if before != nil {
		rows, err = r.db.Query(ctx,
			fmt.Sprintf(`SELECT %s FROM message_log WHERE room_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`, entryColumns),
			roomID, *before, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			fmt.Sprintf(`SELECT %s FROM message_log WHERE room_id = $1 ORDER BY id DESC LIMIT $2`, entryColumns),
			roomID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query message log entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message log entries: %w", err)
	}
	return out, nil
}

// Stats aggregates message-log activity across all rooms.
func (r *PGRepository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(delivered_count), 0),
			COALESCE(SUM(failed_count), 0),
			(SELECT COUNT(*) FROM rooms WHERE is_active)
		FROM message_log
	`).Scan(&s.TotalMessages, &s.DeliveredTotal, &s.FailedTotal, &s.ActiveRooms)
	if err != nil {
		return nil, fmt.Errorf("aggregate message log stats: %w", err)
	}
	return &s, nil
}

// StatsForRoom aggregates message-log activity for a single room.
func (r *PGRepository) StatsForRoom(ctx context.Context, roomID int64) (*Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(delivered_count), 0), COALESCE(SUM(failed_count), 0)
		FROM message_log WHERE room_id = $1
	`, roomID).Scan(&s.TotalMessages, &s.DeliveredTotal, &s.FailedTotal)
	if err != nil {
		return nil, fmt.Errorf("aggregate room message log stats: %w", err)
	}
	s.ActiveRooms = 1
	return &s, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.RoomID, &e.SourceGuildID, &e.SourceChannelID, &e.SourceMessageID,
		&e.AuthorID, &e.AuthorDisplay, &e.Content, &e.Attachments, &e.ReplyTo,
		&e.Timestamp, &e.DeliveredCount, &e.FailedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("scan message log entry: %w", err)
	}
	return &e, nil
}
