package platform

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var _ Client = (*Fake)(nil)

// Fake is an in-memory Client implementation for tests. It never touches the network: Send records outbound posts,
// FetchMessage replays whatever Sent messages were recorded, and permission checks default to allowed.
type Fake struct {
	mu   sync.Mutex
	sent []SentMessage
	msgs map[string]MessageRef // keyed by channelID+"/"+messageID
	seq  atomic.Int64

	// DeniedChannels marks channels where CheckPermission should report false.
	DeniedChannels map[string]bool
}

// SentMessage records a single Send call for test assertions.
type SentMessage struct {
	ChannelID string
	Content   string
	MessageID string
}

// NewFake creates an empty Fake platform client.
func NewFake() *Fake {
	return &Fake{msgs: make(map[string]MessageRef)}
}

// Send records the post and returns a deterministic, incrementing message ID.
func (f *Fake) Send(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := fmt.Sprintf("fake-msg-%d", f.seq.Add(1))
	f.sent = append(f.sent, SentMessage{ChannelID: channelID, Content: content, MessageID: id})
	return id, nil
}

// Seed registers a message as if it had been fetched from the platform, so later FetchMessage calls can find it.
func (f *Fake) Seed(channelID string, ref MessageRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[channelID+"/"+ref.MessageID] = ref
}

// FetchMessage returns a previously seeded or sent message, or an error if none matches.
func (f *Fake) FetchMessage(_ context.Context, channelID, messageID string) (*MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ref, ok := f.msgs[channelID+"/"+messageID]; ok {
		return &ref, nil
	}
	for _, s := range f.sent {
		if s.ChannelID == channelID && s.MessageID == messageID {
			return &MessageRef{MessageID: s.MessageID, Content: s.Content, IsRelayBot: true}, nil
		}
	}
	return nil, fmt.Errorf("fake platform: no message %s in channel %s", messageID, channelID)
}

// Notify is a no-op that records nothing; tests needing to assert on notices should extend Fake.
func (f *Fake) Notify(_ context.Context, _, _, _ string) error {
	return nil
}

// CheckPermission returns false for channels listed in DeniedChannels, true otherwise.
func (f *Fake) CheckPermission(_ context.Context, channelID string) (bool, error) {
	if f.DeniedChannels != nil && f.DeniedChannels[channelID] {
		return false, nil
	}
	return true, nil
}

// Sent returns a copy of every message recorded by Send, in order.
func (f *Fake) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}
