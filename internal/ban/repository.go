package ban

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const banColumns = "guild_id, guild_name, reason, banned_by, banned_at, is_active, unbanned_at, unbanned_by"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed guild ban repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// Ban inserts a ban row for guild_id, or reactivates an existing one with a fresh reason/actor if the guild was
// banned and later unbanned.
func (r *PGRepository) Ban(ctx context.Context, params BanParams) (*GuildBan, error) {
	var existing bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM guild_bans WHERE guild_id = $1 AND is_active)", params.GuildID,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("check existing ban: %w", err)
	}
	if existing {
		return nil, ErrAlreadyBanned
	}

	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`
			INSERT INTO guild_bans (guild_id, guild_name, reason, banned_by, is_active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (guild_id) DO UPDATE SET
				guild_name = EXCLUDED.guild_name,
				reason = EXCLUDED.reason,
				banned_by = EXCLUDED.banned_by,
				banned_at = now(),
				is_active = true,
				unbanned_at = NULL,
				unbanned_by = NULL
			RETURNING %s`, banColumns),
		params.GuildID, params.GuildName, params.Reason, params.BannedBy,
	)
	b, err := scanBan(row)
	if err != nil {
		return nil, fmt.Errorf("insert guild ban: %w", err)
	}
	return b, nil
}

// Unban marks the active ban for guild_id as lifted, recording who lifted it and when.
func (r *PGRepository) Unban(ctx context.Context, guildID, unbannedBy string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE guild_bans SET is_active = false, unbanned_at = now(), unbanned_by = $1 WHERE guild_id = $2 AND is_active",
		unbannedBy, guildID,
	)
	if err != nil {
		return fmt.Errorf("unban guild: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotBanned
	}
	return nil
}

// IsBanned reports whether guild_id currently has an active ban. This is the hot-path check used by the Resolver;
// callers needing the full record should use Get instead.
func (r *PGRepository) IsBanned(ctx context.Context, guildID string) (bool, error) {
	var banned bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM guild_bans WHERE guild_id = $1 AND is_active)", guildID,
	).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("check guild ban: %w", err)
	}
	return banned, nil
}

// Get returns the ban record for guild_id, active or not.
func (r *PGRepository) Get(ctx context.Context, guildID string) (*GuildBan, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM guild_bans WHERE guild_id = $1", banColumns), guildID)
	b, err := scanBan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query guild ban: %w", err)
	}
	return b, nil
}

// List returns guild ban records, optionally restricted to currently active bans.
func (r *PGRepository) List(ctx context.Context, activeOnly bool) ([]GuildBan, error) {
	query := fmt.Sprintf("SELECT %s FROM guild_bans", banColumns)
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY banned_at DESC"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query guild bans: %w", err)
	}
	defer rows.Close()

	var out []GuildBan
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guild bans: %w", err)
	}
	return out, nil
}

func scanBan(row pgx.Row) (*GuildBan, error) {
	var b GuildBan
	err := row.Scan(
		&b.GuildID, &b.GuildName, &b.Reason, &b.BannedBy, &b.BannedAt, &b.IsActive, &b.UnbannedAt, &b.UnbannedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("scan guild ban: %w", err)
	}
	return &b, nil
}
