package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"replique/internal/attachment"
	"replique/internal/domain"
)

func TestFirstMessageRepliesInlineAndCaches(t *testing.T) {
	deps := newTestDeps()
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "hello there")
	handle(context.Background(), msg)

	if deps.completer.requestCount() != 1 {
		t.Fatalf("expected 1 completion request, got %d", deps.completer.requestCount())
	}

	prompt := deps.completer.lastPrompt()
	if strings.Contains(prompt, transcriptSeparator) {
		t.Fatal("first message must not include a transcript block")
	}
	if !strings.HasSuffix(prompt, "Alice said this: hello there") {
		t.Fatalf("prompt must end with the author's message, got:\n%s", prompt)
	}

	if len(deps.transport.Sent) != 1 || deps.transport.Sent[0].Content != "Chloe Is Currently Thinking..." {
		t.Fatalf("expected thinking placeholder, got %+v", deps.transport.Sent)
	}
	if len(deps.transport.Edits) != 1 || deps.transport.Edits[0].Content != "sure!" {
		t.Fatalf("expected inline reply edit, got %+v", deps.transport.Edits)
	}

	if got := o.cache.Len(msg.ContextKey()); got != 2 {
		t.Fatalf("expected 2 cached turns after a successful reply, got %d", got)
	}
	turns := o.cache.Turns(msg.ContextKey())
	if turns[0].Speaker != "Alice" || turns[0].Content != "hello there" {
		t.Fatalf("unexpected user turn %+v", turns[0])
	}
	if turns[1].Speaker != "You" || turns[1].Content != "sure!" {
		t.Fatalf("unexpected reply turn %+v", turns[1])
	}
}

func TestFifthExchangeCarriesTranscript(t *testing.T) {
	deps := newTestDeps()
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "fifth question")
	for i := 0; i < 4; i++ {
		o.cache.Append(msg.ContextKey(),
			domain.Turn{Speaker: "Alice", Content: fmt.Sprintf("question %d", i)},
			domain.Turn{Speaker: "You", Content: fmt.Sprintf("answer %d", i)},
		)
	}

	handle(context.Background(), msg)

	prompt := deps.completer.lastPrompt()
	sepIdx := strings.Index(prompt, transcriptSeparator)
	if sepIdx < 0 {
		t.Fatal("expected a transcript block before the separator")
	}
	lines := strings.Split(strings.TrimSpace(prompt[:sepIdx]), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 transcript lines for 4 exchanges, got %d", len(lines))
	}
	if lines[0] != "Alice said this: question 0" {
		t.Fatalf("unexpected first transcript line %q", lines[0])
	}
	if lines[7] != "You said this: answer 3" {
		t.Fatalf("unexpected last transcript line %q", lines[7])
	}
}

func TestPolicyBlockDeliversRefusalAndCaches(t *testing.T) {
	deps := newTestDeps()
	deps.completer.Outcome = domain.Outcome{Kind: domain.OutcomeBlocked, Cacheable: true}
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "something dodgy")
	handle(context.Background(), msg)

	want := "Chloe has detected a bad prompt and will not reply"
	if len(deps.transport.Edits) != 1 || deps.transport.Edits[0].Content != want {
		t.Fatalf("expected refusal edit, got %+v", deps.transport.Edits)
	}

	turns := o.cache.Turns(msg.ContextKey())
	if len(turns) != 2 {
		t.Fatalf("refusal must still be folded into context, got %d turns", len(turns))
	}
	if turns[1].Content != want {
		t.Fatalf("cached reply turn must carry the refusal, got %q", turns[1].Content)
	}
}

func TestHardFailureIsNotCached(t *testing.T) {
	deps := newTestDeps()
	deps.completer.Outcome = domain.Outcome{Kind: domain.OutcomeServerError}
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "hello")
	handle(context.Background(), msg)

	if len(deps.transport.Edits) != 1 {
		t.Fatalf("expected sentinel edit, got %+v", deps.transport.Edits)
	}
	if o.cache.Len(msg.ContextKey()) != 0 {
		t.Fatal("hard failures must not be folded into context")
	}
}

func TestGroupMessageIsIgnored(t *testing.T) {
	deps := newTestDeps()
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "hello everyone")
	msg.Kind = domain.KindGroup
	msg.ConversationID = "room-7"
	handle(context.Background(), msg)

	if deps.completer.requestCount() != 0 {
		t.Fatal("group messages must not produce completion requests")
	}
	if len(deps.transport.Sent) != 0 {
		t.Fatal("group messages must not produce a placeholder")
	}
}

func TestGuardDropsBurstFromSameAuthor(t *testing.T) {
	deps := newTestDeps()
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	handle(context.Background(), directMessage("u1", "Alice", "first"))
	handle(context.Background(), directMessage("u1", "Alice", "second"))

	if deps.completer.requestCount() != 1 {
		t.Fatalf("expected the burst to collapse to 1 request, got %d", deps.completer.requestCount())
	}

	time.Sleep(60 * time.Millisecond) // past the cooldown window
	handle(context.Background(), directMessage("u1", "Alice", "third"))

	if deps.completer.requestCount() != 2 {
		t.Fatalf("expected a reply after the cooldown, got %d requests", deps.completer.requestCount())
	}
}

func TestIgnoredAuthorGetsNoReply(t *testing.T) {
	deps := newTestDeps()
	deps.ignores.AddIgnored(context.Background(), "u1")
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	handle(context.Background(), directMessage("u1", "Alice", "hello"))

	if deps.completer.requestCount() != 0 {
		t.Fatal("ignored authors must not receive automatic replies")
	}
}

func TestExplicitCommandBypassesGating(t *testing.T) {
	deps := newTestDeps()
	deps.settings.enabled = false
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("me", "Owner", "!ai explain goroutines")
	msg.FromSelf = true
	handle(context.Background(), msg)

	if deps.completer.requestCount() != 1 {
		t.Fatal("explicit command must run even with auto-reply disabled")
	}
	if !strings.HasSuffix(deps.completer.lastPrompt(), "Owner said this: explain goroutines") {
		t.Fatalf("prompt must carry the command remainder, got:\n%s", deps.completer.lastPrompt())
	}
}

func TestTextAttachmentInlinedIntoPrompt(t *testing.T) {
	deps := newTestDeps()
	deps.resolver.Payload = &attachment.Payload{Text: "SELECT 1;", TypeTag: "sql"}
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "what does this do?")
	msg.Attachment = &domain.AttachmentRef{URL: "https://cdn.example/q.sql", Name: "q.sql"}
	handle(context.Background(), msg)

	prompt := deps.completer.lastPrompt()
	if !strings.Contains(prompt, "The user also provided a file of type sql with the following content:\nSELECT 1;") {
		t.Fatalf("prompt must contain the attachment block, got:\n%s", prompt)
	}
	if deps.completer.Requests[0].Image != nil {
		t.Fatal("text attachments must not be sent as image payloads")
	}
}

func TestBinaryAttachmentGoesOutOfBand(t *testing.T) {
	deps := newTestDeps()
	deps.resolver.Payload = &attachment.Payload{Data: []byte{0x89, 'P', 'N', 'G'}, TypeTag: "png", MIMEType: "image/png", Binary: true}
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "what is in this picture?")
	msg.Attachment = &domain.AttachmentRef{URL: "https://cdn.example/p.png", Name: "p.png"}
	handle(context.Background(), msg)

	req := deps.completer.Requests[0]
	if req.Image == nil || req.Image.MIMEType != "image/png" {
		t.Fatalf("binary attachment must ride out-of-band, got %+v", req.Image)
	}
	if strings.Contains(req.Prompt, "provided a file") {
		t.Fatal("binary attachments must not appear in the prompt text")
	}
}

func TestAttachmentFailureShortCircuits(t *testing.T) {
	deps := newTestDeps()
	deps.resolver.Err = errors.New("connection reset")
	o := newTestOrchestrator(t, deps)
	handle := o.Handler(deps.transport)

	msg := directMessage("u1", "Alice", "read this")
	msg.Attachment = &domain.AttachmentRef{URL: "https://cdn.example/f.txt", Name: "f.txt"}
	handle(context.Background(), msg)

	if deps.completer.requestCount() != 0 {
		t.Fatal("attachment failure must not reach the completion backend")
	}
	if len(deps.transport.Edits) != 1 || !strings.HasPrefix(deps.transport.Edits[0].Content, "Error reading file: ") {
		t.Fatalf("expected an inline attachment error, got %+v", deps.transport.Edits)
	}
	if o.cache.Len(msg.ContextKey()) != 0 {
		t.Fatal("attachment failures must not touch context")
	}
}
