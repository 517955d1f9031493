package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/messagelog"
)

type fakeMessageLogRepo struct {
	entries []messagelog.Entry
	next    int64
}

func newFakeMessageLogRepo() *fakeMessageLogRepo {
	return &fakeMessageLogRepo{next: 1}
}

func (f *fakeMessageLogRepo) Append(_ context.Context, p messagelog.CreateParams) (*messagelog.Entry, error) {
	e := messagelog.Entry{
		ID: f.next, RoomID: p.RoomID, SourceGuildID: p.SourceGuildID, SourceChannelID: p.SourceChannelID,
		SourceMessageID: p.SourceMessageID, AuthorID: p.AuthorID, AuthorDisplay: p.AuthorDisplay,
		Content: p.Content, Attachments: p.Attachments, ReplyTo: p.ReplyTo, Timestamp: time.Unix(0, 0),
		DeliveredCount: p.DeliveredCount, FailedCount: p.FailedCount,
	}
	f.next++
	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeMessageLogRepo) GetByID(_ context.Context, id int64) (*messagelog.Entry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, messagelog.ErrNotFound
}

func (f *fakeMessageLogRepo) ListByRoom(_ context.Context, roomID int64, before *int64, limit int) ([]messagelog.Entry, error) {
	var out []messagelog.Entry
	for _, e := range f.entries {
		if e.RoomID != roomID {
			continue
		}
		if before != nil && e.ID >= *before {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMessageLogRepo) Stats(context.Context) (*messagelog.Stats, error) {
	var s messagelog.Stats
	for _, e := range f.entries {
		s.TotalMessages++
		s.DeliveredTotal += int64(e.DeliveredCount)
		s.FailedTotal += int64(e.FailedCount)
	}
	return &s, nil
}

func (f *fakeMessageLogRepo) StatsForRoom(_ context.Context, roomID int64) (*messagelog.Stats, error) {
	var s messagelog.Stats
	for _, e := range f.entries {
		if e.RoomID != roomID {
			continue
		}
		s.TotalMessages++
		s.DeliveredTotal += int64(e.DeliveredCount)
		s.FailedTotal += int64(e.FailedCount)
	}
	return &s, nil
}

func newMessageLogTestApp(repo *fakeMessageLogRepo) *fiber.App {
	h := NewMessageLogHandler(repo, zerolog.Nop())
	app := fiber.New()
	app.Get("/rooms/:id/messages", h.ListByRoom)
	app.Get("/rooms/:id/stats", h.StatsForRoom)
	app.Get("/stats", h.Stats)
	return app
}

func TestMessageLogListByRoom_invalidLimitRejected(t *testing.T) {
	t.Parallel()

	app := newMessageLogTestApp(newFakeMessageLogRepo())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rooms/1/messages?limit=500", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestMessageLogListByRoom_invalidCursorRejected(t *testing.T) {
	t.Parallel()

	app := newMessageLogTestApp(newFakeMessageLogRepo())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rooms/1/messages?before=not-a-number", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestMessageLogListByRoom_returnsEntriesForRoom(t *testing.T) {
	t.Parallel()

	repo := newFakeMessageLogRepo()
	if _, err := repo.Append(t.Context(), messagelog.CreateParams{RoomID: 1, Content: "hi"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := repo.Append(t.Context(), messagelog.CreateParams{RoomID: 2, Content: "bye"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	app := newMessageLogTestApp(repo)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rooms/1/messages", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestMessageLogStats_aggregatesAcrossRooms(t *testing.T) {
	t.Parallel()

	repo := newFakeMessageLogRepo()
	if _, err := repo.Append(t.Context(), messagelog.CreateParams{RoomID: 1, DeliveredCount: 2}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := repo.Append(t.Context(), messagelog.CreateParams{RoomID: 2, DeliveredCount: 3, FailedCount: 1}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	app := newMessageLogTestApp(repo)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stats", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestMessageLogStatsForRoom_invalidID(t *testing.T) {
	t.Parallel()

	app := newMessageLogTestApp(newFakeMessageLogRepo())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rooms/not-a-number/stats", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
