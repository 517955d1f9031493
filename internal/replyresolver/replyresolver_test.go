package replyresolver

import (
	"strings"
	"testing"

	"github.com/uncord-chat/relay/internal/formatter"
	"github.com/uncord-chat/relay/internal/platform"
)

func strPtr(s string) *string { return &s }

func TestResolve_nilReferenceReturnsNil(t *testing.T) {
	t.Parallel()

	r := New(platform.NewFake())
	ctx, err := r.Resolve(t.Context(), "chan-1", nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ctx != nil {
		t.Errorf("ctx = %+v, want nil", ctx)
	}
}

func TestResolve_nativeMessage(t *testing.T) {
	t.Parallel()

	fake := platform.NewFake()
	fake.Seed("chan-1", platform.MessageRef{
		MessageID:     "msg-1",
		AuthorDisplay: "alice",
		Content:       "original text",
		IsRelayBot:    false,
	})

	r := New(fake)
	ctx, err := r.Resolve(t.Context(), "chan-1", strPtr("msg-1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ctx.OriginKind != OriginNative {
		t.Errorf("OriginKind = %q, want %q", ctx.OriginKind, OriginNative)
	}
	if ctx.AuthorDisplay != "alice" || ctx.QuotedText != "original text" {
		t.Errorf("ctx = %+v", ctx)
	}
}

func TestResolve_relayedEnvelope(t *testing.T) {
	t.Parallel()

	fake := platform.NewFake()
	rendered := formatter.Format(formatter.Envelope{
		Author:    "bob",
		Content:   "relayed body",
		GuildName: "Other Server",
	})
	fake.Seed("chan-1", platform.MessageRef{
		MessageID:  "msg-2",
		Content:    rendered,
		IsRelayBot: true,
	})

	r := New(fake)
	ctx, err := r.Resolve(t.Context(), "chan-1", strPtr("msg-2"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ctx.OriginKind != OriginRelayed {
		t.Errorf("OriginKind = %q, want %q", ctx.OriginKind, OriginRelayed)
	}
	if ctx.AuthorDisplay != "bob" || ctx.QuotedText != "relayed body" {
		t.Errorf("ctx = %+v", ctx)
	}
}

func TestResolve_relayedNestedCapsAtOneLevel(t *testing.T) {
	t.Parallel()

	fake := platform.NewFake()
	rendered := formatter.Format(formatter.Envelope{
		Author:    "carol",
		Content:   "outer body",
		GuildName: "Server C",
		Reply: &formatter.Reply{
			QuotedAuthor: "dave",
			QuotedText:   "innermost quote",
		},
	})
	fake.Seed("chan-1", platform.MessageRef{
		MessageID:  "msg-3",
		Content:    rendered,
		IsRelayBot: true,
	})

	r := New(fake)
	ctx, err := r.Resolve(t.Context(), "chan-1", strPtr("msg-3"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ctx.OriginKind != OriginRelayedNested {
		t.Errorf("OriginKind = %q, want %q", ctx.OriginKind, OriginRelayedNested)
	}
	if ctx.AuthorDisplay != "dave" || ctx.QuotedText != "innermost quote" {
		t.Errorf("ctx = %+v, want innermost author/quote surfaced, not outer carol", ctx)
	}
}

func TestResolve_relayBotButNotEnvelopeTreatedAsNative(t *testing.T) {
	t.Parallel()

	fake := platform.NewFake()
	fake.Seed("chan-1", platform.MessageRef{
		MessageID:     "msg-4",
		AuthorDisplay: "relay-bot",
		Content:       "a system notice with no envelope grammar",
		IsRelayBot:    true,
	})

	r := New(fake)
	ctx, err := r.Resolve(t.Context(), "chan-1", strPtr("msg-4"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ctx.OriginKind != OriginNative {
		t.Errorf("OriginKind = %q, want %q", ctx.OriginKind, OriginNative)
	}
}

func TestResolve_quoteTruncatedAt80Runes(t *testing.T) {
	t.Parallel()

	fake := platform.NewFake()
	fake.Seed("chan-1", platform.MessageRef{
		MessageID:     "msg-5",
		AuthorDisplay: "erin",
		Content:       strings.Repeat("x", 200),
	})

	r := New(fake)
	ctx, err := r.Resolve(t.Context(), "chan-1", strPtr("msg-5"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := len([]rune(ctx.QuotedText)); got > MaxQuoteRunes+1 {
		t.Errorf("quote length = %d, want <= %d", got, MaxQuoteRunes+1)
	}
}

func TestResolve_fetchErrorPropagates(t *testing.T) {
	t.Parallel()

	r := New(platform.NewFake())
	_, err := r.Resolve(t.Context(), "chan-1", strPtr("missing-msg"))
	if err == nil {
		t.Fatal("expected error for an unresolvable message reference")
	}
}
