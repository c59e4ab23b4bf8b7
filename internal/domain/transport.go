package domain

import "context"

// MessageRef identifies a message a transport has delivered, so it can be
// edited later. ConversationID is transport-specific (channel ID on Discord,
// chat ID on Telegram).
type MessageRef struct {
	ConversationID string
	MessageID      string
}

// MessageHandler receives every message observed by a transport.
type MessageHandler func(ctx context.Context, msg IncomingMessage)

// Transport is the interface for the messaging platform the responder is
// bridged to. Implementations deliver incoming messages to a handler and
// expose send/edit primitives for replies.
type Transport interface {
	Name() string

	// Run connects and blocks, invoking handler for each incoming message,
	// until ctx is cancelled.
	Run(ctx context.Context, handler MessageHandler) error

	// SendMessage posts content into a conversation and returns a reference
	// for later edits.
	SendMessage(ctx context.Context, conversationID, content string) (MessageRef, error)

	// EditMessage replaces the content of a previously sent message.
	EditMessage(ctx context.Context, ref MessageRef, content string) error

	// EditMessageWithFile replaces the content with a short note and
	// attaches data as a file named filename.
	EditMessageWithFile(ctx context.Context, ref MessageRef, note, filename string, data []byte) error

	// InlineLimit reports the maximum number of characters the platform
	// accepts in a single message for this account. Account-tier dependent;
	// treated as opaque by the engine.
	InlineLimit() int
}
