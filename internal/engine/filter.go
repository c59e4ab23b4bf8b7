package engine

import (
	"context"
	"log/slog"

	"replique/internal/domain"
)

// Filter decides whether an incoming message warrants a reply. It is a pure
// read over the stores: invoking it repeatedly for the same message always
// yields the same verdict.
type Filter struct {
	ignores  domain.IgnoreStore
	settings domain.SettingsStore
	logger   *slog.Logger
}

func NewFilter(ignores domain.IgnoreStore, settings domain.SettingsStore, logger *slog.Logger) *Filter {
	return &Filter{ignores: ignores, settings: settings, logger: logger}
}

// Eligible reports whether msg should receive a reply, with a short reason
// when it should not. Explicit invocations short-circuit every other check.
func (f *Filter) Eligible(ctx context.Context, msg domain.IncomingMessage, explicit bool) (bool, string) {
	if explicit {
		return true, ""
	}
	if msg.Kind != domain.KindDirect {
		return false, "group"
	}
	if msg.FromSelf {
		return false, "self"
	}
	if msg.AuthorIsBot {
		return false, "bot"
	}

	ignored, err := f.ignores.IsIgnored(ctx, msg.AuthorID)
	if err != nil {
		f.logger.Error("ignore lookup failed", "author", msg.AuthorID, "err", err)
		return false, "store_error"
	}
	if ignored {
		return false, "ignored"
	}

	enabled, err := f.settings.AutoReplyEnabled(ctx)
	if err != nil {
		f.logger.Error("auto-reply lookup failed", "err", err)
		return false, "store_error"
	}
	if !enabled {
		return false, "disabled"
	}

	return true, ""
}
