package domain

import "context"

// IgnoreStore is the durable set of author IDs excluded from automatic
// replies. Mutations persist synchronously.
type IgnoreStore interface {
	IsIgnored(ctx context.Context, authorID string) (bool, error)
	AddIgnored(ctx context.Context, authorID string) error
	RemoveIgnored(ctx context.Context, authorID string) error
	ListIgnored(ctx context.Context) ([]string, error)
}

// SettingsStore persists process-wide runtime switches, currently the
// auto-reply toggle.
type SettingsStore interface {
	AutoReplyEnabled(ctx context.Context) (bool, error)
	SetAutoReply(ctx context.Context, enabled bool) error
}
