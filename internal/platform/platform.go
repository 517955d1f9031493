// Package platform defines the relay's boundary with the external chat
// platform. The actual gateway SDK connection, event ingestion, and REST
// client implementing this interface are out of scope (spec §1 non-goals):
// this package only names the narrow surface the rest of the relay depends
// on, so Resolver/Fan-Out/Relay Coordinator can be built and tested against
// Fake without a live platform connection.
package platform

import "context"

// InboundEvent is a single message event received from the chat platform.
type InboundEvent struct {
	GuildID         string
	ChannelID       string
	MessageID       string
	AuthorID        string
	AuthorDisplay   string
	Content         string
	Attachments     []Attachment
	ReferencedMessageID *string // set when the source event is a platform-native reply
}

// Attachment is a platform-hosted media reference attached to an inbound event.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// MessageRef is a platform message fetched by ID, used by the Reply Resolver to follow reference metadata.
type MessageRef struct {
	MessageID     string
	AuthorID      string
	AuthorDisplay string
	Content       string
	// IsRelayBot is true when the referenced message was posted by this relay's own bot identity — the signal the
	// Reply Resolver uses to decide whether to parse the message as an envelope (relayed) or use it as-is (native).
	IsRelayBot bool
}

// Client is the relay's outbound surface onto the chat platform: sending the formatted envelope to a target channel,
// fetching a referenced message for reply resolution, notifying an author of a policy rejection, and checking
// whether the relay's bot identity has the permissions a target channel requires.
type Client interface {
	// Send posts content to channelID and returns the platform-assigned message ID for the new message.
	Send(ctx context.Context, channelID, content string) (messageID string, err error)

	// FetchMessage retrieves a single message by ID from channelID, for reply resolution.
	FetchMessage(ctx context.Context, channelID, messageID string) (*MessageRef, error)

	// Notify sends an ephemeral, author-visible notice (e.g. a policy rejection) that is never fanned out and never
	// logged as a delivery failure.
	Notify(ctx context.Context, channelID, authorID, message string) error

	// CheckPermission reports whether the relay's bot identity can post to channelID.
	CheckPermission(ctx context.Context, channelID string) (bool, error)
}
