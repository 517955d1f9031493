// Package replyresolver implements the Reply Resolver component: given a
// platform-native reply reference, it recovers the original author and text
// across relay boundaries so the rebroadcast reads coherently everywhere.
//
// This component is pure with respect to the Store: it only reads through
// the platform.Client, never writes, and never queries Postgres directly.
package replyresolver

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/uncord-chat/relay/internal/formatter"
	"github.com/uncord-chat/relay/internal/platform"
)

// MaxQuoteRunes caps a surfaced quote to 80 visible characters (spec §4.6), matching formatter.MaxQuoteRunes.
const MaxQuoteRunes = formatter.MaxQuoteRunes

// OriginKind classifies how a ReplyContext's author/text were recovered.
type OriginKind string

const (
	OriginNative        OriginKind = "native"
	OriginRelayed        OriginKind = "relayed"
	OriginRelayedNested OriginKind = "relayed-nested"
)

// Context is the recovered reply context attached to a relayed message's envelope.
type Context struct {
	AuthorDisplay string
	QuotedText    string
	OriginKind    OriginKind
}

// Resolver recovers reply context from a platform reference via the given client.
type Resolver struct {
	client platform.Client
}

// New creates a new Reply Resolver.
func New(client platform.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches the referenced message and builds its Context, or returns (nil, nil) if referencedMessageID is
// nil (no reply on the source event).
func (r *Resolver) Resolve(ctx context.Context, channelID string, referencedMessageID *string) (*Context, error) {
	if referencedMessageID == nil {
		return nil, nil
	}

	ref, err := r.client.FetchMessage(ctx, channelID, *referencedMessageID)
	if err != nil {
		return nil, fmt.Errorf("fetch referenced message: %w", err)
	}

	if !ref.IsRelayBot {
		return &Context{
			AuthorDisplay: ref.AuthorDisplay,
			QuotedText:    truncate(ref.Content, MaxQuoteRunes),
			OriginKind:    OriginNative,
		}, nil
	}

	env, ok := formatter.Parse(ref.Content)
	if !ok {
		// The relay's own bot posted this message but it doesn't match the envelope grammar (e.g. a system
		// notice) — treat its raw content as native rather than failing the relay.
		return &Context{
			AuthorDisplay: ref.AuthorDisplay,
			QuotedText:    truncate(ref.Content, MaxQuoteRunes),
			OriginKind:    OriginNative,
		}, nil
	}

	// One level of nesting only: if the envelope we just parsed itself carries a reply header, surface the
	// innermost author and a short quote instead of recursing further.
	if env.Reply != nil {
		return &Context{
			AuthorDisplay: env.Reply.QuotedAuthor,
			QuotedText:    truncate(env.Reply.QuotedText, MaxQuoteRunes),
			OriginKind:    OriginRelayedNested,
		}, nil
	}

	return &Context{
		AuthorDisplay: env.Author,
		QuotedText:    truncate(env.Content, MaxQuoteRunes),
		OriginKind:    OriginRelayed,
	}, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
