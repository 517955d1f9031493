// Package contentfilter implements the Content Filter component: a pure
// function applying RoomPermissions rules to a canonical message in a fixed
// order, first failure wins.
package contentfilter

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/uncord-chat/relay/internal/relayerr"
	"github.com/uncord-chat/relay/internal/room"
)

// urlPattern matches a scheme + host, the same bar the spec sets for "looks like a URL" (not full RFC 3986).
var urlPattern = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s]+`)

// mentionPattern matches the platform's native mention token shape, e.g. <@123456789012345678> or <@&role-id>.
var mentionPattern = regexp.MustCompile(`<@[!&]?\d+>`)

// emojiPattern matches the platform's native custom emoji token shape, e.g. <:name:123456789012345678>.
var emojiPattern = regexp.MustCompile(`<a?:\w+:\d+>`)

// controlCharPattern strips leading/trailing ASCII control characters (excluding the whitespace already handled by
// strings.TrimSpace's Unicode-aware trimming).
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// sanitizer strips any HTML markup that slipped in from the source platform while preserving plain text content. The
// relay's envelopes are plain text, not HTML, so this is a defense-in-depth pass rather than the primary mechanism.
var sanitizer = bluemonday.StrictPolicy()

// Attachment is the minimal attachment shape the filter reasons about: just enough to decide accept/reject, not the
// full messagelog.Attachment record.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Input groups the Content Filter's inputs.
type Input struct {
	Text        string
	Attachments []Attachment
	Permissions room.Permissions
}

// Result is the Content Filter's output on acceptance.
type Result struct {
	NormalizedText     string
	AcceptedAttachments []Attachment
}

// Filter applies RoomPermissions rules to the input in spec order, returning the normalized result or a
// relayerr.Code identifying the first rule that rejected the message.
func Filter(in Input) (*Result, relayerr.Code, bool) {
	text := normalize(in.Text)

	if len([]rune(text)) > in.Permissions.MaxMessageLength {
		return nil, relayerr.TooLong, false
	}

	if !in.Permissions.AllowURLs && urlPattern.MatchString(text) {
		return nil, relayerr.UrlsDisallowed, false
	}

	if !in.Permissions.AllowFiles && len(in.Attachments) > 0 {
		return nil, relayerr.AttachmentsDisallowed, false
	}

	if !in.Permissions.AllowMentions {
		text = mentionPattern.ReplaceAllString(text, "")
	}

	if !in.Permissions.AllowEmojis {
		text = emojiPattern.ReplaceAllString(text, "")
	}

	if in.Permissions.EnableBadWordFilter && containsBannedWord(text, in.Permissions.BannedWords) {
		return nil, relayerr.BannedWord, false
	}

	text = strings.TrimSpace(sanitizer.Sanitize(text))

	return &Result{
		NormalizedText:      text,
		AcceptedAttachments: in.Attachments,
	}, "", true
}

// normalize collapses internal whitespace runs, strips control characters, and trims the result — applied before any
// rule is evaluated so length and pattern checks see the same text the author will read.
func normalize(text string) string {
	text = controlCharPattern.ReplaceAllString(text, "")
	fields := strings.Fields(text)
	return strings.TrimSpace(strings.Join(fields, " "))
}

// containsBannedWord reports whether text contains any of the room's banned words as a whole-word, case-insensitive
// match.
func containsBannedWord(text string, bannedWords []string) bool {
	if len(bannedWords) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, word := range bannedWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if wordBoundaryMatch(lower, word) {
			return true
		}
	}
	return false
}

func wordBoundaryMatch(text, word string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return strings.Contains(text, word)
	}
	return re.MatchString(text)
}
