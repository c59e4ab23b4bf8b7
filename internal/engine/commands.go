package engine

import (
	"context"
	"fmt"
	"strings"

	"replique/internal/bus"
	"replique/internal/domain"
	"replique/internal/metrics"
)

// Owner command names, matched after the configured prefix.
const (
	cmdReply  = "ai"   // explicit reply to the rest of the line
	cmdToggle = "air"  // auto-reply on/off/status
	cmdAllow  = "aira" // remove a mentioned user from the ignore list
	cmdIgnore = "airr" // add a mentioned user to the ignore list
)

// handleCommand parses and runs an owner command. Returns false when msg is
// not a command, so the caller can fall through to the automatic-reply path.
// Only the controlling account's own messages are accepted.
func (o *Orchestrator) handleCommand(ctx context.Context, t domain.Transport, msg domain.IncomingMessage) bool {
	if !msg.FromSelf || !strings.HasPrefix(msg.Content, o.prefix) {
		return false
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Content, o.prefix))
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case cmdReply:
		derived := msg
		derived.Content = strings.Join(args, " ")
		o.respond(ctx, t, derived, true)
	case cmdToggle:
		o.toggleAutoReply(ctx, t, msg, args)
	case cmdAllow:
		o.allowAuthor(ctx, t, msg)
	case cmdIgnore:
		o.ignoreAuthor(ctx, t, msg)
	default:
		return false
	}

	metrics.CommandsHandled.Inc()
	o.bus.Emit(bus.Event{
		Type:    bus.EventCommandHandled,
		Source:  "engine",
		Payload: map[string]any{"command": cmd, "transport": t.Name()},
	})
	return true
}

func (o *Orchestrator) toggleAutoReply(ctx context.Context, t domain.Transport, msg domain.IncomingMessage, args []string) {
	if len(args) == 0 {
		enabled, err := o.settings.AutoReplyEnabled(ctx)
		if err != nil {
			o.logger.Error("auto-reply lookup failed", "err", err)
			return
		}
		status := "Disabled"
		if enabled {
			status = "Enabled"
		}
		o.say(ctx, t, msg.ConversationID, fmt.Sprintf("AI Reply status: %s", status))
		return
	}

	switch strings.ToUpper(args[0]) {
	case "OFF":
		if err := o.settings.SetAutoReply(ctx, false); err != nil {
			o.logger.Error("auto-reply persist failed", "err", err)
			return
		}
		o.say(ctx, t, msg.ConversationID, "AI Reply turned off")
	case "ON":
		if err := o.settings.SetAutoReply(ctx, true); err != nil {
			o.logger.Error("auto-reply persist failed", "err", err)
			return
		}
		o.say(ctx, t, msg.ConversationID, "AI Reply turned on")
	}
}

func (o *Orchestrator) allowAuthor(ctx context.Context, t domain.Transport, msg domain.IncomingMessage) {
	if len(msg.Mentions) == 0 {
		o.say(ctx, t, msg.ConversationID, "No user mentioned to re-allow replies to")
		return
	}
	target := msg.Mentions[0]

	ignored, err := o.ignores.IsIgnored(ctx, target)
	if err != nil {
		o.logger.Error("ignore lookup failed", "author", target, "err", err)
		return
	}
	if !ignored {
		o.say(ctx, t, msg.ConversationID, "That user is already allowed to be replied to")
		return
	}

	if err := o.ignores.RemoveIgnored(ctx, target); err != nil {
		o.logger.Error("ignore removal failed", "author", target, "err", err)
		return
	}
	o.say(ctx, t, msg.ConversationID, "Successfully removed user from the AI ignore list")
}

func (o *Orchestrator) ignoreAuthor(ctx context.Context, t domain.Transport, msg domain.IncomingMessage) {
	if len(msg.Mentions) == 0 {
		o.say(ctx, t, msg.ConversationID, "No user mentioned to remove from the reply list")
		return
	}
	target := msg.Mentions[0]

	ignored, err := o.ignores.IsIgnored(ctx, target)
	if err != nil {
		o.logger.Error("ignore lookup failed", "author", target, "err", err)
		return
	}
	if ignored {
		o.say(ctx, t, msg.ConversationID, "That user is already removed from the reply list")
		return
	}

	if err := o.ignores.AddIgnored(ctx, target); err != nil {
		o.logger.Error("ignore persist failed", "author", target, "err", err)
		return
	}
	o.say(ctx, t, msg.ConversationID, fmt.Sprintf("%s has been added to the AI ignore list", target))
}

// say posts a command acknowledgement; failures are logged and dropped.
func (o *Orchestrator) say(ctx context.Context, t domain.Transport, conversationID, text string) {
	if _, err := t.SendMessage(ctx, conversationID, text); err != nil {
		o.logger.Error("command reply failed", "conversation", conversationID, "err", err)
	}
}
