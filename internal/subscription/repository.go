package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/postgres"
)

const subColumns = "room_id, guild_id, channel_id, guild_name, channel_name, registered_by, registered_at, is_active, last_message_at"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed subscription repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Register inserts a new active subscription row; a previously deactivated row for the same (guild_id, channel_id)
// pair is left as it is. A unique index on (guild_id, channel_id) WHERE is_active enforces the one-active-
// binding-per-channel invariant at the database level; a conflict surfaces as ErrAlreadyBound.
func (r *PGRepository) Register(ctx context.Context, params RegisterParams) (*Subscription, error) {
	var sub *Subscription
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			fmt.Sprintf(`
				INSERT INTO subscriptions (room_id, guild_id, channel_id, guild_name, channel_name, registered_by, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, true)
				ON CONFLICT (guild_id, channel_id) WHERE is_active
				DO NOTHING
				RETURNING %s`, subColumns),
			params.RoomID, params.GuildID, params.ChannelID, params.GuildName, params.ChannelName, params.RegisteredBy,
		)
		var err error
		sub, err = scanSubscription(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAlreadyBound
			}
			if postgres.IsUniqueViolation(err) {
				return ErrAlreadyBound
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Deactivate soft-deactivates the active subscription for (guild_id, channel_id). Deactivation, not deletion,
// preserves the audit trail.
func (r *PGRepository) Deactivate(ctx context.Context, guildID, channelID string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE subscriptions SET is_active = false WHERE guild_id = $1 AND channel_id = $2 AND is_active",
		guildID, channelID,
	)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetActive returns the active subscription for (guild_id, channel_id), if any.
func (r *PGRepository) GetActive(ctx context.Context, guildID, channelID string) (*Subscription, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM subscriptions WHERE guild_id = $1 AND channel_id = $2 AND is_active", subColumns),
		guildID, channelID,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return sub, nil
}

// ListByRoom returns the subscriptions bound to a room.
func (r *PGRepository) ListByRoom(ctx context.Context, roomID int64, activeOnly bool) ([]Subscription, error) {
	query := fmt.Sprintf("SELECT %s FROM subscriptions WHERE room_id = $1", subColumns)
	if activeOnly {
		query += " AND is_active"
	}
	query += " ORDER BY registered_at"

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions by room: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// CountDistinctActiveGuilds returns the number of distinct guild IDs with an active subscription to the room.
func (r *PGRepository) CountDistinctActiveGuilds(ctx context.Context, roomID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(DISTINCT guild_id) FROM subscriptions WHERE room_id = $1 AND is_active", roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct active guilds: %w", err)
	}
	return count, nil
}

// TouchLastMessage updates last_message_at for the active subscription matching (guild_id, channel_id). It is
// best-effort bookkeeping for dashboard display and is not part of the relay's correctness contract.
func (r *PGRepository) TouchLastMessage(ctx context.Context, guildID, channelID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		"UPDATE subscriptions SET last_message_at = $1 WHERE guild_id = $2 AND channel_id = $3 AND is_active",
		at, guildID, channelID,
	)
	if err != nil {
		return fmt.Errorf("touch last_message_at: %w", err)
	}
	return nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.RoomID, &s.GuildID, &s.ChannelID, &s.GuildName, &s.ChannelName,
		&s.RegisteredBy, &s.RegisteredAt, &s.IsActive, &s.LastMessageAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}
