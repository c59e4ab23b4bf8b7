package domain

import "context"

// OutcomeKind classifies the result of a completion request. Classification
// happens once, at the backend boundary — downstream code switches on the
// kind instead of matching response text.
type OutcomeKind int

const (
	// OutcomeOK is a usable completion.
	OutcomeOK OutcomeKind = iota
	// OutcomeEmpty means the backend returned a malformed or empty result.
	OutcomeEmpty
	// OutcomeBadRequest means the backend rejected the input format.
	OutcomeBadRequest
	// OutcomeBlocked means the backend declined to answer (policy block).
	OutcomeBlocked
	// OutcomeServerError covers every other backend failure.
	OutcomeServerError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeServerError:
		return "server_error"
	}
	return "unknown"
}

// Outcome is the typed result of one completion request. Text is only set
// for OutcomeOK; user-facing wording for the failure kinds is decided by the
// dispatcher. Cacheable records, at classification time, whether the
// delivered reply may be folded into conversation context.
type Outcome struct {
	Kind      OutcomeKind
	Text      string
	Cacheable bool
}

// ImagePayload carries binary attachment bytes to the completion backend
// out-of-band of the textual prompt.
type ImagePayload struct {
	Data     []byte
	MIMEType string
}

// CompletionRequest is the input for a single completion call.
type CompletionRequest struct {
	Prompt string
	Image  *ImagePayload
}

// Completer is the generative completion backend. Implementations issue
// exactly one request per call, no retries, and classify every failure into
// an Outcome kind rather than returning raw backend errors.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) Outcome
}
