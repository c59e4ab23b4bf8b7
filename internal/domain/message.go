package domain

import "time"

// ConversationKind distinguishes one-on-one exchanges from group channels.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// AttachmentRef points at a file attached to a message, as reported by the
// transport. The bytes are fetched lazily by the attachment resolver.
type AttachmentRef struct {
	URL  string
	Name string
}

// IncomingMessage is a single message delivered by a transport. Immutable
// once received.
type IncomingMessage struct {
	Transport      string
	ConversationID string
	Kind           ConversationKind
	AuthorID       string
	AuthorName     string
	AuthorIsBot    bool // automated account, per the transport
	FromSelf       bool // sent by the responder's own account
	Content        string
	Attachment     *AttachmentRef // at most one
	Mentions       []string       // mentioned author IDs, for commands
	Timestamp      time.Time
}

// ContextKey returns the conversation-context cache key: direct
// conversations key on the remote participant, group conversations on the
// conversation itself.
func (m IncomingMessage) ContextKey() string {
	if m.Kind == KindDirect {
		return m.AuthorID
	}
	return m.ConversationID
}

// Turn is one attributed entry retained in conversation context.
type Turn struct {
	Speaker string
	Content string
}
