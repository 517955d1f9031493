// Package bootstrap seeds the relay's single root-admin credential on
// first run. Unlike the teacher server's owner/role/channel seed, a relay
// deployment has no per-user accounts: the only identity the Admin API
// recognizes is the operator credential from config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uncord-chat/relay/internal/adminauth"
	"github.com/uncord-chat/relay/internal/config"
)

// IsFirstRun returns true when the rooms table has no rows, used only to decide whether to log a first-run notice —
// the admin credential itself is stateless (hashed at boot from config, never persisted to Postgres).
func IsFirstRun(ctx context.Context, db *pgxpool.Pool) (bool, error) {
	var count int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM rooms").Scan(&count); err != nil {
		return false, fmt.Errorf("check first run: %w", err)
	}
	return count == 0, nil
}

// HashAdminPassword hashes cfg's bootstrap admin password with the configured Argon2id parameters, to be held in
// memory by adminauth.Service for the life of the process.
func HashAdminPassword(cfg *config.Config) (string, error) {
	return adminauth.HashPassword(cfg.AdminPassword, adminauth.Argon2Params{
		Memory:      cfg.Argon2Memory,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
		SaltLength:  cfg.Argon2SaltLength,
		KeyLength:   cfg.Argon2KeyLength,
	})
}
