package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/postgres"
)

const roomColumns = "id, name, created_by, created_at, max_servers, is_active"
const permColumns = "room_id, allow_urls, allow_files, allow_mentions, allow_emojis, enable_bad_word_filter, banned_words, max_message_length, rate_limit_seconds"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed room repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

// List returns every room, optionally including inactive ones, along with the count of active subscriptions (bound
// channels) of each.
func (r *PGRepository) List(ctx context.Context, includeInactive bool) ([]WithCount, error) {
	query := fmt.Sprintf(`
		SELECT %s,
		       COALESCE((SELECT COUNT(*) FROM subscriptions s WHERE s.room_id = rooms.id AND s.is_active), 0)
		FROM rooms
		%s
		ORDER BY created_at`,
		prefixColumns("rooms", roomColumns), whereActive(includeInactive))

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var out []WithCount
	for rows.Next() {
		var wc WithCount
		if err := rows.Scan(&wc.ID, &wc.Name, &wc.CreatedBy, &wc.CreatedAt, &wc.MaxServers, &wc.IsActive, &wc.ChannelCount); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, wc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return out, nil
}

// GetByID returns the room matching the given ID.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*Room, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM rooms WHERE id = $1", roomColumns), id)
	rm, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query room by id: %w", err)
	}
	return rm, nil
}

// GetByName returns the active room with the given case-insensitive name, if any.
func (r *PGRepository) GetByName(ctx context.Context, name string) (*Room, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM rooms WHERE lower(name) = lower($1) AND is_active", roomColumns), name,
	)
	rm, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query room by name: %w", err)
	}
	return rm, nil
}

// Create inserts a new room and its default permissions row inside a transaction, enforcing room-name uniqueness
// among active rooms.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (*Room, *Permissions, error) {
	var rm *Room
	var perms *Permissions

	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM rooms WHERE lower(name) = lower($1) AND is_active)", params.Name,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check room name exists: %w", err)
		}
		if exists {
			return ErrNameTaken
		}

		row := tx.QueryRow(ctx,
			fmt.Sprintf(
				`INSERT INTO rooms (name, created_by, max_servers, is_active)
				 VALUES ($1, $2, $3, true)
				 RETURNING %s`, roomColumns),
			params.Name, params.CreatedBy, params.MaxServers,
		)
		rm, err = scanRoom(row)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}

		defaults := DefaultPermissions(rm.ID)
		prow := tx.QueryRow(ctx,
			fmt.Sprintf(
				`INSERT INTO room_permissions
				   (room_id, allow_urls, allow_files, allow_mentions, allow_emojis, enable_bad_word_filter, banned_words, max_message_length, rate_limit_seconds)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 RETURNING %s`, permColumns),
			defaults.RoomID, defaults.AllowURLs, defaults.AllowFiles, defaults.AllowMentions, defaults.AllowEmojis,
			defaults.EnableBadWordFilter, defaults.BannedWords, defaults.MaxMessageLength, defaults.RateLimitSeconds,
		)
		perms, err = scanPermissions(prow)
		if err != nil {
			return fmt.Errorf("insert room permissions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rm, perms, nil
}

// Update applies the non-nil fields in params to the room row and returns the updated room.
//
// Safety: the query is built dynamically, but every SET clause and named arg key is a hardcoded string literal. No
// caller-supplied value enters the SQL structure; all values flow through pgx named parameter binding.
func (r *PGRepository) Update(ctx context.Context, id int64, params UpdateParams) (*Room, error) {
	var setClauses []string
	namedArgs := pgx.NamedArgs{"id": id}

	if params.Name != nil {
		setClauses = append(setClauses, "name = @name")
		namedArgs["name"] = *params.Name
	}
	if params.MaxServers != nil {
		setClauses = append(setClauses, "max_servers = @max_servers")
		namedArgs["max_servers"] = *params.MaxServers
	}
	if params.IsActive != nil {
		setClauses = append(setClauses, "is_active = @is_active")
		namedArgs["is_active"] = *params.IsActive
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	query := "UPDATE rooms SET " + strings.Join(setClauses, ", ") +
		" WHERE id = @id RETURNING " + roomColumns

	row := r.db.QueryRow(ctx, query, namedArgs)
	rm, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update room: %w", err)
	}
	return rm, nil
}

// Delete soft-deactivates the room rather than removing the row: message_log entries carry a foreign key to
// room_id, and those entries are immutable and must survive a room's removal from the relay path.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "UPDATE rooms SET is_active = false WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deactivate room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPermissions returns the permissions row for a room.
func (r *PGRepository) GetPermissions(ctx context.Context, roomID int64) (*Permissions, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM room_permissions WHERE room_id = $1", permColumns), roomID)
	perms, err := scanPermissions(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query room permissions: %w", err)
	}
	return perms, nil
}

// UpdatePermissions applies the non-nil fields in params to the room's permissions row.
func (r *PGRepository) UpdatePermissions(ctx context.Context, roomID int64, params PermissionsUpdateParams) (*Permissions, error) {
	var setClauses []string
	namedArgs := pgx.NamedArgs{"room_id": roomID}

	if params.AllowURLs != nil {
		setClauses = append(setClauses, "allow_urls = @allow_urls")
		namedArgs["allow_urls"] = *params.AllowURLs
	}
	if params.AllowFiles != nil {
		setClauses = append(setClauses, "allow_files = @allow_files")
		namedArgs["allow_files"] = *params.AllowFiles
	}
	if params.AllowMentions != nil {
		setClauses = append(setClauses, "allow_mentions = @allow_mentions")
		namedArgs["allow_mentions"] = *params.AllowMentions
	}
	if params.AllowEmojis != nil {
		setClauses = append(setClauses, "allow_emojis = @allow_emojis")
		namedArgs["allow_emojis"] = *params.AllowEmojis
	}
	if params.EnableBadWordFilter != nil {
		setClauses = append(setClauses, "enable_bad_word_filter = @enable_bad_word_filter")
		namedArgs["enable_bad_word_filter"] = *params.EnableBadWordFilter
	}
	if params.BannedWords != nil {
		setClauses = append(setClauses, "banned_words = @banned_words")
		namedArgs["banned_words"] = params.BannedWords
	}
	if params.MaxMessageLength != nil {
		setClauses = append(setClauses, "max_message_length = @max_message_length")
		namedArgs["max_message_length"] = *params.MaxMessageLength
	}
	if params.RateLimitSeconds != nil {
		setClauses = append(setClauses, "rate_limit_seconds = @rate_limit_seconds")
		namedArgs["rate_limit_seconds"] = *params.RateLimitSeconds
	}

	if len(setClauses) == 0 {
		return r.GetPermissions(ctx, roomID)
	}

	query := "UPDATE room_permissions SET " + strings.Join(setClauses, ", ") +
		" WHERE room_id = @room_id RETURNING " + permColumns

	row := r.db.QueryRow(ctx, query, namedArgs)
	perms, err := scanPermissions(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update room permissions: %w", err)
	}
	return perms, nil
}

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.Name, &rm.CreatedBy, &rm.CreatedAt, &rm.MaxServers, &rm.IsActive)
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &rm, nil
}

func scanPermissions(row pgx.Row) (*Permissions, error) {
	var p Permissions
	err := row.Scan(
		&p.RoomID, &p.AllowURLs, &p.AllowFiles, &p.AllowMentions, &p.AllowEmojis,
		&p.EnableBadWordFilter, &p.BannedWords, &p.MaxMessageLength, &p.RateLimitSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("scan room permissions: %w", err)
	}
	return &p, nil
}

func whereActive(includeInactive bool) string {
	if includeInactive {
		return ""
	}
	return "WHERE is_active"
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}
