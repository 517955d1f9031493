package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/uncord-chat/relay/internal/adminauth"
	"github.com/uncord-chat/relay/internal/cache"
)

var authTestParams = adminauth.Argon2Params{Memory: 16 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newAuthTestService(t *testing.T, username, password string) *adminauth.Service {
	t.Helper()

	hash, err := adminauth.HashPassword(password, authTestParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := cache.NewSessionStore(client)

	return adminauth.New(sessions, "test-secret", time.Hour, "relay-test", username, hash)
}

func newAuthTestApp(svc *adminauth.Service) *fiber.App {
	h := NewAuthHandler(svc)
	app := fiber.New()
	app.Post("/auth/login", h.Login)
	app.Post("/auth/logout", h.Logout)
	return app
}

func TestAuthLogin_success(t *testing.T) {
	t.Parallel()

	svc := newAuthTestService(t, "admin", "password123")
	app := newAuthTestApp(svc)

	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestAuthLogin_invalidCredentials(t *testing.T) {
	t.Parallel()

	svc := newAuthTestService(t, "admin", "password123")
	app := newAuthTestApp(svc)

	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthLogin_missingFields(t *testing.T) {
	t.Parallel()

	svc := newAuthTestService(t, "admin", "password123")
	app := newAuthTestApp(svc)

	body, _ := json.Marshal(loginRequest{Username: "admin"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAuthLogout_missingHeader(t *testing.T) {
	t.Parallel()

	svc := newAuthTestService(t, "admin", "password123")
	app := newAuthTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAuthLogout_success(t *testing.T) {
	t.Parallel()

	svc := newAuthTestService(t, "admin", "password123")
	token, err := svc.Login(t.Context(), "admin", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	app := newAuthTestApp(svc)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestAuthLogout_invalidToken(t *testing.T) {
	t.Parallel()

	svc := newAuthTestService(t, "admin", "password123")
	app := newAuthTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
