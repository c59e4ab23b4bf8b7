package engine

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"replique/internal/domain"
	"replique/internal/persona"
)

const responseFilename = "my_response.txt"

// User-facing sentinel messages for completion failure kinds. Raw backend
// diagnostics never reach the conversation.
const (
	msgEmptyResult = "There was an issue processing, try a simpler question"
	msgBadRequest  = "Whoopsies, I got a HTTP 400 status! You may have uploaded a bad image file or had a bad request"
	msgServerError = "Whoopsies, I got a HTTP 500 status! Try again soon as my server is under load"
)

// Dispatcher turns a completion outcome into the text shown to the user and
// delivers it by editing the placeholder message: inline when it fits the
// transport's limit, as an attached file otherwise.
type Dispatcher struct {
	persona persona.Persona
	logger  *slog.Logger
}

func NewDispatcher(p persona.Persona, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{persona: p, logger: logger}
}

// render maps an outcome to user-facing text.
func (d *Dispatcher) render(out domain.Outcome) string {
	switch out.Kind {
	case domain.OutcomeOK:
		return out.Text
	case domain.OutcomeEmpty:
		return msgEmptyResult
	case domain.OutcomeBadRequest:
		return msgBadRequest
	case domain.OutcomeBlocked:
		return d.persona.Refusal()
	default:
		return msgServerError
	}
}

// Deliver edits ref with the rendered outcome and returns the delivered
// text so the caller can fold it into context. A result exactly at the
// inline limit still goes inline; one character more switches to a file.
func (d *Dispatcher) Deliver(ctx context.Context, t domain.Transport, ref domain.MessageRef, out domain.Outcome) (string, error) {
	text := d.render(out)
	limit := t.InlineLimit()

	if utf8.RuneCountInString(text) <= limit {
		if err := t.EditMessage(ctx, ref, text); err != nil {
			return text, fmt.Errorf("edit reply: %w", err)
		}
		return text, nil
	}

	note := fmt.Sprintf("Whoopsies! The character count exceeded %d, so here's a file with my response instead!", limit)
	if err := t.EditMessageWithFile(ctx, ref, note, responseFilename, []byte(text)); err != nil {
		return text, fmt.Errorf("edit reply with file: %w", err)
	}
	d.logger.Debug("oversize reply delivered as file", "chars", utf8.RuneCountInString(text), "limit", limit)
	return text, nil
}
