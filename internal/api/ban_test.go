package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/ban"
)

func newBanTestApp(repo *fakeBanRepo) *fiber.App {
	h := NewBanHandler(repo, zerolog.Nop())
	app := fiber.New()
	app.Get("/bans", h.List)
	app.Post("/bans", h.Ban)
	app.Delete("/bans/:guildID", h.Unban)
	return app
}

func TestBanCreate_success(t *testing.T) {
	t.Parallel()

	app := newBanTestApp(newFakeBanRepo())
	body, _ := json.Marshal(banRequest{GuildID: "g1", Reason: "spam"})

	req := httptest.NewRequest(http.MethodPost, "/bans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

func TestBanCreate_missingGuildID(t *testing.T) {
	t.Parallel()

	app := newBanTestApp(newFakeBanRepo())
	body, _ := json.Marshal(banRequest{Reason: "spam"})

	req := httptest.NewRequest(http.MethodPost, "/bans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestBanCreate_alreadyBannedConflict(t *testing.T) {
	t.Parallel()

	repo := newFakeBanRepo()
	if _, err := repo.Ban(t.Context(), ban.BanParams{GuildID: "g1"}); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	app := newBanTestApp(repo)
	body, _ := json.Marshal(banRequest{GuildID: "g1", Reason: "spam"})

	req := httptest.NewRequest(http.MethodPost, "/bans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestBanUnban_notBannedNotFound(t *testing.T) {
	t.Parallel()

	app := newBanTestApp(newFakeBanRepo())
	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/bans/g1", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestBanUnban_success(t *testing.T) {
	t.Parallel()

	repo := newFakeBanRepo()
	if _, err := repo.Ban(t.Context(), ban.BanParams{GuildID: "g1"}); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	app := newBanTestApp(repo)
	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/bans/g1", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestBanList_includeInactiveFilter(t *testing.T) {
	t.Parallel()

	repo := newFakeBanRepo()
	if _, err := repo.Ban(t.Context(), ban.BanParams{GuildID: "g1"}); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if _, err := repo.Ban(t.Context(), ban.BanParams{GuildID: "g2"}); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if err := repo.Unban(t.Context(), "g2", "admin"); err != nil {
		t.Fatalf("Unban() error = %v", err)
	}

	app := newBanTestApp(repo)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/bans", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	var out struct {
		Data []ban.GuildBan `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0].GuildID != "g1" {
		t.Errorf("got %+v, want exactly the active g1 ban", out.Data)
	}
}
