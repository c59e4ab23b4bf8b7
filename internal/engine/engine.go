// Package engine is the conversational response engine: it decides whether
// a message gets a reply, assembles the prompt from bounded per-conversation
// context, drives the completion call, and delivers the result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"replique/internal/attachment"
	"replique/internal/bus"
	"replique/internal/domain"
	"replique/internal/metrics"
	"replique/internal/persona"
)

// AttachmentResolver fetches and classifies a message attachment.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref domain.AttachmentRef) (*attachment.Payload, error)
}

// Options wires the orchestrator's collaborators. All fields are required
// except Persona defaults, which the caller resolves before construction.
type Options struct {
	Prefix    string
	Persona   persona.Persona
	MaxTurns  int
	Cooldown  time.Duration
	Ignores   domain.IgnoreStore
	Settings  domain.SettingsStore
	Resolver  AttachmentResolver
	Completer domain.Completer
	Bus       *bus.EventBus
	Logger    *slog.Logger
}

// Orchestrator sequences the reply pipeline for each incoming message:
// filter, guard, placeholder, attachment, prompt, completion, dispatch,
// context update.
type Orchestrator struct {
	prefix     string
	persona    persona.Persona
	filter     *Filter
	guard      *CooldownGuard
	cache      *ContextCache
	compiler   *Compiler
	dispatcher *Dispatcher
	resolver   AttachmentResolver
	completer  domain.Completer
	ignores    domain.IgnoreStore
	settings   domain.SettingsStore
	bus        *bus.EventBus
	logger     *slog.Logger
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		prefix:     opts.Prefix,
		persona:    opts.Persona,
		filter:     NewFilter(opts.Ignores, opts.Settings, opts.Logger),
		guard:      NewCooldownGuard(opts.Cooldown),
		cache:      NewContextCache(opts.MaxTurns),
		compiler:   NewCompiler(opts.Persona),
		dispatcher: NewDispatcher(opts.Persona, opts.Logger),
		resolver:   opts.Resolver,
		completer:  opts.Completer,
		ignores:    opts.Ignores,
		settings:   opts.Settings,
		bus:        opts.Bus,
		logger:     opts.Logger,
	}
}

// Handler returns the message handler to register with a transport.
func (o *Orchestrator) Handler(t domain.Transport) domain.MessageHandler {
	return func(ctx context.Context, msg domain.IncomingMessage) {
		metrics.MessagesObserved.Inc()
		o.bus.Emit(bus.Event{
			Type:   bus.EventMessageObserved,
			Source: t.Name(),
			Payload: map[string]any{
				"conversation": msg.ConversationID,
				"author":       msg.AuthorID,
			},
		})

		if o.handleCommand(ctx, t, msg) {
			return
		}
		o.respond(ctx, t, msg, false)
	}
}

// respond runs the reply pipeline for one message. Explicit flows skip the
// guard entirely; automatic flows hold a per-author marker until the
// debounce delay after delivery.
func (o *Orchestrator) respond(ctx context.Context, t domain.Transport, msg domain.IncomingMessage, explicit bool) {
	ok, reason := o.filter.Eligible(ctx, msg, explicit)
	if !ok {
		o.bus.Emit(bus.Event{
			Type:    bus.EventMessageIgnored,
			Source:  t.Name(),
			Payload: map[string]any{"author": msg.AuthorID, "reason": reason},
		})
		return
	}

	if !explicit {
		if !o.guard.Acquire(msg.AuthorID) {
			o.logger.Debug("author reply in flight, dropping message", "author", msg.AuthorID)
			metrics.GuardRejections.Inc()
			o.bus.Emit(bus.Event{
				Type:    bus.EventGuardRejected,
				Source:  t.Name(),
				Payload: map[string]any{"author": msg.AuthorID},
			})
			return
		}
		defer o.guard.Release(msg.AuthorID)
	}

	log := o.logger.With(
		"correlation_id", uuid.NewString(),
		"transport", t.Name(),
		"conversation", msg.ConversationID,
		"author", msg.AuthorID,
	)

	metrics.RepliesInFlight.Inc()
	defer metrics.RepliesInFlight.Dec()
	o.bus.Emit(bus.Event{
		Type:    bus.EventReplyStarted,
		Source:  t.Name(),
		Payload: map[string]any{"author": msg.AuthorID, "explicit": explicit},
	})

	ref, err := t.SendMessage(ctx, msg.ConversationID, o.persona.Thinking())
	if err != nil {
		log.Error("placeholder send failed", "err", err)
		return
	}

	var payload *attachment.Payload
	if msg.Attachment != nil {
		payload, err = o.resolver.Resolve(ctx, *msg.Attachment)
		if err != nil {
			metrics.AttachmentErrors.Inc()
			o.bus.Emit(bus.Event{
				Type:    bus.EventAttachmentFailed,
				Source:  t.Name(),
				Payload: map[string]any{"name": msg.Attachment.Name},
			})
			log.Warn("attachment resolution failed", "name", msg.Attachment.Name, "err", err)
			if editErr := t.EditMessage(ctx, ref, fmt.Sprintf("Error reading file: %v", err)); editErr != nil {
				log.Error("attachment error edit failed", "err", editErr)
			}
			return
		}
	}

	prompt := o.compiler.Compile(o.cache.Turns(msg.ContextKey()), msg, payload)

	req := domain.CompletionRequest{Prompt: prompt}
	if payload != nil && payload.Binary {
		req.Image = &domain.ImagePayload{Data: payload.Data, MIMEType: payload.MIMEType}
	}

	outcome := o.completer.Complete(ctx, req)
	if outcome.Kind != domain.OutcomeOK {
		metrics.CompletionFailure(outcome.Kind.String()).Inc()
		o.bus.Emit(bus.Event{
			Type:    bus.EventCompletionFailed,
			Source:  t.Name(),
			Payload: map[string]any{"kind": outcome.Kind.String()},
		})
	}

	delivered, err := o.dispatcher.Deliver(ctx, t, ref, outcome)
	if err != nil {
		log.Error("reply delivery failed", "err", err)
		return
	}

	metrics.RepliesDelivered.Inc()
	o.bus.Emit(bus.Event{
		Type:    bus.EventReplyDelivered,
		Source:  t.Name(),
		Payload: map[string]any{"author": msg.AuthorID, "kind": outcome.Kind.String()},
	})
	log.Info("reply delivered", "kind", outcome.Kind.String(), "chars", len(delivered))

	if outcome.Cacheable {
		o.cache.Append(msg.ContextKey(), userTurn(msg), replyTurn(delivered))
	}
}
