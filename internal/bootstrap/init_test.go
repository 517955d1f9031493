package bootstrap

import (
	"strings"
	"testing"

	"github.com/uncord-chat/relay/internal/config"
)

func TestHashAdminPassword_producesVerifiableArgon2idHash(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		AdminPassword:     "correct-horse-battery-staple",
		Argon2Memory:      16 * 1024,
		Argon2Iterations:  2,
		Argon2Parallelism: 1,
		Argon2SaltLength:  16,
		Argon2KeyLength:   32,
	}

	hash, err := HashAdminPassword(cfg)
	if err != nil {
		t.Fatalf("HashAdminPassword() error = %v", err)
	}
	if hash == "" || hash == cfg.AdminPassword {
		t.Errorf("unexpected hash value: %q", hash)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash = %q, want an argon2id PHC-format string", hash)
	}
}
