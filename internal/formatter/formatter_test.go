package formatter

import (
	"strings"
	"testing"
)

func TestFormatParseRoundTrip(t *testing.T) {
	t.Parallel()

	env := Envelope{
		Author:  "alice",
		Content: "hello from the other side",
		Reply: &Reply{
			QuotedAuthor: "bob",
			QuotedText:   "original message",
		},
		Attachments: []Attachment{{Filename: "cat.png", URL: "https://cdn.example.com/cat.png"}},
		GuildName:   "Home Server",
	}

	rendered := Format(env)
	got, ok := Parse(rendered)
	if !ok {
		t.Fatalf("Parse() failed on:\n%s", rendered)
	}

	if got.Author != env.Author {
		t.Errorf("Author = %q, want %q", got.Author, env.Author)
	}
	if got.Content != env.Content {
		t.Errorf("Content = %q, want %q", got.Content, env.Content)
	}
	if got.GuildName != env.GuildName {
		t.Errorf("GuildName = %q, want %q", got.GuildName, env.GuildName)
	}
	if got.Reply == nil || got.Reply.QuotedAuthor != env.Reply.QuotedAuthor || got.Reply.QuotedText != env.Reply.QuotedText {
		t.Errorf("Reply = %+v, want %+v", got.Reply, env.Reply)
	}
}

func TestFormatParseRoundTrip_noReplyNoAttachments(t *testing.T) {
	t.Parallel()

	env := Envelope{Author: "carol", Content: "plain message\nwith two lines", GuildName: "Other Server"}

	got, ok := Parse(Format(env))
	if !ok {
		t.Fatal("Parse() failed")
	}
	if got.Author != env.Author || got.Content != env.Content || got.GuildName != env.GuildName {
		t.Errorf("got %+v, want %+v", got, env)
	}
	if got.Reply != nil {
		t.Errorf("Reply = %+v, want nil", got.Reply)
	}
}

func TestParse_rejectsNonEnvelope(t *testing.T) {
	t.Parallel()

	_, ok := Parse("just a plain message with no header")
	if ok {
		t.Error("expected Parse to reject text without the fixed author-line grammar")
	}
}

func TestIsEnvelope(t *testing.T) {
	t.Parallel()

	if !IsEnvelope(Format(Envelope{Author: "dave", Content: "x", GuildName: "g"})) {
		t.Error("expected formatted envelope to be recognized")
	}
	if IsEnvelope("not an envelope") {
		t.Error("expected plain text to be rejected")
	}
}

func TestFormat_attachmentsBlock(t *testing.T) {
	t.Parallel()

	out := Format(Envelope{
		Author:      "erin",
		Content:     "see attached",
		Attachments: []Attachment{{Filename: "doc.pdf", URL: "https://cdn.example.com/doc.pdf"}},
		GuildName:   "G",
	})
	if !strings.Contains(out, attachmentsMarker) {
		t.Error("expected attachments marker in output")
	}
	if !strings.Contains(out, "[doc.pdf](https://cdn.example.com/doc.pdf)") {
		t.Errorf("expected attachment link in output, got: %s", out)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	short := "hello"
	if got := truncateRunes(short, 10); got != short {
		t.Errorf("truncateRunes(short) = %q, want unchanged %q", got, short)
	}

	long := strings.Repeat("a", 10)
	got := truncateRunes(long, 5)
	if got != "aaaaa…" {
		t.Errorf("truncateRunes(long, 5) = %q, want %q", got, "aaaaa…")
	}
}

func TestFormat_quoteTruncated(t *testing.T) {
	t.Parallel()

	longQuote := strings.Repeat("q", MaxQuoteRunes+20)
	env := Envelope{
		Author:    "frank",
		Content:   "reply",
		Reply:     &Reply{QuotedAuthor: "grace", QuotedText: longQuote},
		GuildName: "G",
	}

	got, ok := Parse(Format(env))
	if !ok {
		t.Fatal("Parse() failed")
	}
	if len([]rune(got.Reply.QuotedText)) > MaxQuoteRunes+1 { // +1 for the ellipsis marker
		t.Errorf("quoted text not truncated: %d runes", len([]rune(got.Reply.QuotedText)))
	}
}
