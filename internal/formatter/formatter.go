// Package formatter renders the Fan-Out Engine's stable message envelope and
// parses it back into its author/content/reply fields, so the Reply Resolver
// can decode the relay's own prior messages across relay boundaries.
//
// Envelope grammar (fixed; any change is a wire-format break):
//
//	**<author>**
//	↪ **<quoted author>**: <quoted text>      (optional reply line)
//	<blank line>
//	<normalized body>
//	📎 Attachments:                            (optional, only if attachments present)
//	- [<filename>](<url>)
//	— via **<guild name>**                     (source badge, always present)
package formatter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxBodyRunes caps the body before the attachments/source badge are appended, keeping the overall envelope within
// the source platform's message length limit. Overflow is resolved by truncation with an explicit ellipsis marker,
// never by dropping headers.
const MaxBodyRunes = 1800

// MaxQuoteRunes caps a reply quote to the Reply Resolver's depth-capping limit (spec §4.6).
const MaxQuoteRunes = 80

var (
	authorLinePattern = regexp.MustCompile(`^\*\*(.+)\*\*$`)
	replyLinePattern  = regexp.MustCompile(`^↪ \*\*(.+)\*\*: (.*)$`)
	badgeLinePattern  = regexp.MustCompile(`^— via \*\*(.+)\*\*$`)
	attachmentsMarker = "📎 Attachments:"
)

// Attachment is a lazy reference link rendered in the envelope's attachment block.
type Attachment struct {
	Filename string
	URL      string
}

// Reply is the optional reply header rendered beneath the author line.
type Reply struct {
	QuotedAuthor string
	QuotedText   string
}

// Envelope groups the fields Format renders and Parse recovers.
type Envelope struct {
	Author      string
	Content     string
	Reply       *Reply
	Attachments []Attachment
	GuildName   string
}

// Format renders env into the fixed-grammar wire format.
func Format(env Envelope) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s**\n", env.Author)

	if env.Reply != nil {
		quote := truncateRunes(env.Reply.QuotedText, MaxQuoteRunes)
		fmt.Fprintf(&b, "↪ **%s**: %s\n", env.Reply.QuotedAuthor, quote)
	}

	b.WriteString("\n")
	b.WriteString(truncateRunes(env.Content, MaxBodyRunes))
	b.WriteString("\n")

	if len(env.Attachments) > 0 {
		b.WriteString(attachmentsMarker + "\n")
		for _, a := range env.Attachments {
			fmt.Fprintf(&b, "- [%s](%s)\n", a.Filename, a.URL)
		}
	}

	fmt.Fprintf(&b, "— via **%s**", env.GuildName)

	return b.String()
}

// Parse decodes an envelope previously produced by Format, recovering the author, content, reply header (if any),
// and guild name. Parse(Format(env)) reproduces env's Author, Content, Reply, and GuildName exactly — the round-trip
// invariant the Formatter and Reply Resolver both depend on — as long as Content fits MaxBodyRunes and the quoted text
// fits MaxQuoteRunes; longer values come back truncated with the ellipsis marker. It returns ok=false if text does not
// match the fixed grammar's first line.
func Parse(text string) (Envelope, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return Envelope{}, false
	}

	authorMatch := authorLinePattern.FindStringSubmatch(lines[0])
	if authorMatch == nil {
		return Envelope{}, false
	}

	env := Envelope{Author: authorMatch[1]}
	idx := 1

	if idx < len(lines) {
		if m := replyLinePattern.FindStringSubmatch(lines[idx]); m != nil {
			env.Reply = &Reply{QuotedAuthor: m[1], QuotedText: m[2]}
			idx++
		}
	}

	// Skip the blank separator line between the header block and the body.
	if idx < len(lines) && lines[idx] == "" {
		idx++
	}

	var bodyLines []string
	for ; idx < len(lines); idx++ {
		if lines[idx] == attachmentsMarker || badgeLinePattern.MatchString(lines[idx]) {
			break
		}
		bodyLines = append(bodyLines, lines[idx])
	}
	env.Content = strings.TrimSuffix(strings.Join(bodyLines, "\n"), "\n")

	for ; idx < len(lines); idx++ {
		if m := badgeLinePattern.FindStringSubmatch(lines[idx]); m != nil {
			env.GuildName = m[1]
		}
	}

	return env, true
}

// IsEnvelope reports whether text matches the envelope grammar's required first line, without fully parsing it.
func IsEnvelope(text string) bool {
	lines := strings.SplitN(text, "\n", 2)
	return len(lines) > 0 && authorLinePattern.MatchString(lines[0])
}

// truncateRunes truncates s to at most max runes, appending an explicit ellipsis marker when truncation occurs.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
