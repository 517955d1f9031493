// Package relay implements the Relay Coordinator: the top-level entry point
// for every inbound chat event, driving it through Resolver, Rate Limiter,
// Content Filter, Reply Resolver, Formatter, and the Fan-Out Engine.
//
// State is held entirely in the per-event Artifact; the Coordinator itself
// carries no mutable state beyond metrics counters.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/cache"
	"github.com/uncord-chat/relay/internal/contentfilter"
	"github.com/uncord-chat/relay/internal/fanout"
	"github.com/uncord-chat/relay/internal/formatter"
	"github.com/uncord-chat/relay/internal/messagelog"
	"github.com/uncord-chat/relay/internal/platform"
	"github.com/uncord-chat/relay/internal/ratelimit"
	"github.com/uncord-chat/relay/internal/replyresolver"
	"github.com/uncord-chat/relay/internal/resolver"
	"github.com/uncord-chat/relay/internal/room"
	"github.com/uncord-chat/relay/internal/subscription"
)

// Outcome classifies how the Coordinator disposed of one inbound event, for metrics and tests.
type Outcome string

const (
	OutcomeDropped   Outcome = "dropped"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDelivered Outcome = "delivered"
)

// Artifact is the per-event decision record: resolved room, permission snapshot, formatted envelope, reply context,
// and the fan-out plan. It is ephemeral — built up through HandleInbound and discarded once fan-out completes.
type Artifact struct {
	Event       platform.InboundEvent
	Room        room.Room
	Permissions room.Permissions
	Reply       *replyresolver.Context
	Envelope    string
	Targets     []fanout.Target
}

// Coordinator is the Relay Coordinator component.
type Coordinator struct {
	resolver      *resolver.Resolver
	rateLimiter   *ratelimit.Limiter
	replyResolver *replyresolver.Resolver
	fanoutEngine  *fanout.Engine
	subs          subscription.Repository
	logs          messagelog.Repository
	pubsub        *cache.PubSub
	stats         *cache.LiveStats
	client        platform.Client
	log           zerolog.Logger
}

// New creates a new Relay Coordinator wiring every pipeline stage together.
func New(
	res *resolver.Resolver,
	limiter *ratelimit.Limiter,
	replyRes *replyresolver.Resolver,
	engine *fanout.Engine,
	subs subscription.Repository,
	logs messagelog.Repository,
	pubsub *cache.PubSub,
	stats *cache.LiveStats,
	client platform.Client,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		resolver: res, rateLimiter: limiter, replyResolver: replyRes, fanoutEngine: engine,
		subs: subs, logs: logs, pubsub: pubsub, stats: stats, client: client, log: logger,
	}
}

// HandleInbound drives one inbound chat event through the full pipeline: Resolver, Rate Limiter, Content Filter,
// Reply Resolver, Formatter, Fan-Out Engine, Store, and Cache pub/sub. It never panics on policy rejections — those
// are expected outcomes and never logged as failures: Resolver rejections (not subscribed, banned guild, inactive
// room) are dropped silently, while rate-limit and content-filter rejections are surfaced to the author via an
// ephemeral notice.
func (c *Coordinator) HandleInbound(ctx context.Context, event platform.InboundEvent) (Outcome, error) {
	resolved, err := c.resolver.Resolve(ctx, event.GuildID, event.ChannelID)
	if err != nil {
		return c.handlePolicyRejection(ctx, event, err)
	}

	decision, err := c.rateLimiter.Check(ctx, resolved.Room.ID, event.AuthorID, resolved.Permissions.RateLimitSeconds)
	if err != nil {
		c.log.Error().Err(err).Msg("rate limiter check failed")
		return OutcomeDropped, err
	}
	if !decision.Allowed {
		c.notify(ctx, event, "you're sending messages too fast in this room, please slow down")
		return OutcomeRejected, nil
	}

	filterResult, code, ok := contentfilter.Filter(contentfilter.Input{
		Text:        event.Content,
		Attachments: toFilterAttachments(event.Attachments),
		Permissions: resolved.Permissions,
	})
	if !ok {
		c.notify(ctx, event, string(code))
		return OutcomeRejected, nil
	}

	replyCtx, err := c.replyResolver.Resolve(ctx, event.ChannelID, event.ReferencedMessageID)
	if err != nil {
		c.log.Warn().Err(err).Msg("reply resolution failed, relaying without reply context")
		replyCtx = nil
	}

	targets, err := c.planTargets(ctx, resolved.Room.ID, event.GuildID, event.ChannelID)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to plan fan-out targets")
		return OutcomeDropped, err
	}
	if len(targets) == 0 {
		return OutcomeDropped, nil
	}

	guildName := event.GuildID
	if src, err := c.subs.GetActive(ctx, event.GuildID, event.ChannelID); err == nil && src.GuildName != "" {
		guildName = src.GuildName
	}

	envelope := formatter.Format(formatter.Envelope{
		Author:      event.AuthorDisplay,
		Content:     filterResult.NormalizedText,
		Reply:       toFormatterReply(replyCtx),
		Attachments: toFormatterAttachments(filterResult.AcceptedAttachments),
		GuildName:   guildName,
	})

	result := c.fanoutEngine.Deliver(ctx, targets, envelope)

	for _, t := range result.Deactivated {
		if err := c.subs.Deactivate(ctx, t.GuildID, t.ChannelID); err != nil {
			c.log.Warn().Err(err).Str("channel_id", t.ChannelID).Msg("failed to deactivate subscription after permanent fan-out failure")
			continue
		}
		_ = c.pubsub.PublishEvent(ctx, "channel_update", map[string]string{"guild_id": t.GuildID, "channel_id": t.ChannelID})
	}

	entry, err := c.logs.Append(ctx, messagelog.CreateParams{
		RoomID:          resolved.Room.ID,
		SourceGuildID:   event.GuildID,
		SourceChannelID: event.ChannelID,
		SourceMessageID: event.MessageID,
		AuthorID:        event.AuthorID,
		AuthorDisplay:   event.AuthorDisplay,
		Content:         filterResult.NormalizedText,
		Attachments:     toLogAttachments(filterResult.AcceptedAttachments),
		ReplyTo:         toLogReply(replyCtx),
		DeliveredCount:  result.DeliveredCount,
		FailedCount:     result.FailedCount,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to append message log entry")
		return OutcomeDelivered, err
	}

	if err := c.subs.TouchLastMessage(ctx, event.GuildID, event.ChannelID, time.Now()); err != nil {
		c.log.Warn().Err(err).Msg("failed to update subscription last_message_at")
	}

	if err := c.stats.RecordFanout(ctx, int64(result.DeliveredCount), int64(result.FailedCount)); err != nil {
		c.log.Warn().Err(err).Msg("failed to record fanout stats")
	}

	if err := c.pubsub.PublishEvent(ctx, "new_message", entry); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish new_message event")
	}

	return OutcomeDelivered, nil
}

// handlePolicyRejection maps a Resolver error to the expected-rejection path: dropped silently, no fan-out, no
// failure logging.
func (c *Coordinator) handlePolicyRejection(_ context.Context, _ platform.InboundEvent, err error) (Outcome, error) {
	switch {
	case errors.Is(err, resolver.ErrNotSubscribed):
		return OutcomeDropped, nil
	case errors.Is(err, resolver.ErrGuildBanned):
		return OutcomeDropped, nil
	case errors.Is(err, resolver.ErrRoomInactive):
		return OutcomeDropped, nil
	default:
		c.log.Error().Err(err).Msg("resolver failed with an unexpected error")
		return OutcomeDropped, err
	}
}

// planTargets returns the fan-out targets for a room: every other active subscription besides the source.
func (c *Coordinator) planTargets(ctx context.Context, roomID int64, sourceGuildID, sourceChannelID string) ([]fanout.Target, error) {
	subs, err := c.subs.ListByRoom(ctx, roomID, true)
	if err != nil {
		return nil, err
	}

	targets := make([]fanout.Target, 0, len(subs))
	for _, s := range subs {
		if s.GuildID == sourceGuildID && s.ChannelID == sourceChannelID {
			continue
		}
		targets = append(targets, fanout.Target{GuildID: s.GuildID, ChannelID: s.ChannelID})
	}
	return targets, nil
}

func (c *Coordinator) notify(ctx context.Context, event platform.InboundEvent, message string) {
	if err := c.client.Notify(ctx, event.ChannelID, event.AuthorID, message); err != nil {
		c.log.Warn().Err(err).Msg("failed to notify author of policy rejection")
	}
}

func toFilterAttachments(in []platform.Attachment) []contentfilter.Attachment {
	out := make([]contentfilter.Attachment, len(in))
	for i, a := range in {
		out[i] = contentfilter.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType}
	}
	return out
}

func toFormatterAttachments(in []contentfilter.Attachment) []formatter.Attachment {
	out := make([]formatter.Attachment, len(in))
	for i, a := range in {
		out[i] = formatter.Attachment{Filename: a.Filename, URL: a.URL}
	}
	return out
}

func toLogAttachments(in []contentfilter.Attachment) []messagelog.Attachment {
	out := make([]messagelog.Attachment, len(in))
	for i, a := range in {
		out[i] = messagelog.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType}
	}
	return out
}

func toFormatterReply(r *replyresolver.Context) *formatter.Reply {
	if r == nil {
		return nil
	}
	return &formatter.Reply{QuotedAuthor: r.AuthorDisplay, QuotedText: r.QuotedText}
}

func toLogReply(r *replyresolver.Context) *messagelog.ReplyRef {
	if r == nil {
		return nil
	}
	return &messagelog.ReplyRef{AuthorDisplay: r.AuthorDisplay, QuotedText: r.QuotedText, OriginKind: string(r.OriginKind)}
}
