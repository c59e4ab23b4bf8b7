package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"replique/internal/attachment"
	"replique/internal/bus"
	"replique/internal/domain"
	"replique/internal/persona"
)

type sentRecord struct {
	Conversation string
	Content      string
}

type editRecord struct {
	Ref     domain.MessageRef
	Content string
}

type fileRecord struct {
	Ref      domain.MessageRef
	Note     string
	Filename string
	Data     []byte
}

// fakeTransport records every send and edit for assertions.
type fakeTransport struct {
	mu     sync.Mutex
	limit  int
	nextID int
	Sent   []sentRecord
	Edits  []editRecord
	Files  []fileRecord
}

func newFakeTransport(limit int) *fakeTransport {
	return &fakeTransport{limit: limit}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Run(ctx context.Context, handler domain.MessageHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeTransport) SendMessage(ctx context.Context, conversationID, content string) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.Sent = append(f.Sent, sentRecord{Conversation: conversationID, Content: content})
	return domain.MessageRef{ConversationID: conversationID, MessageID: fmt.Sprintf("m%d", f.nextID)}, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, ref domain.MessageRef, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, editRecord{Ref: ref, Content: content})
	return nil
}

func (f *fakeTransport) EditMessageWithFile(ctx context.Context, ref domain.MessageRef, note, filename string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files = append(f.Files, fileRecord{Ref: ref, Note: note, Filename: filename, Data: data})
	return nil
}

func (f *fakeTransport) InlineLimit() int { return f.limit }

// fakeCompleter returns a fixed outcome and records requests.
type fakeCompleter struct {
	mu       sync.Mutex
	Outcome  domain.Outcome
	Requests []domain.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req domain.CompletionRequest) domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	return f.Outcome
}

func (f *fakeCompleter) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Requests[len(f.Requests)-1].Prompt
}

// memIgnoreStore is an in-memory domain.IgnoreStore.
type memIgnoreStore struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newMemIgnoreStore() *memIgnoreStore {
	return &memIgnoreStore{ids: make(map[string]struct{})}
}

func (s *memIgnoreStore) IsIgnored(ctx context.Context, authorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[authorID]
	return ok, nil
}

func (s *memIgnoreStore) AddIgnored(ctx context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[authorID] = struct{}{}
	return nil
}

func (s *memIgnoreStore) RemoveIgnored(ctx context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, authorID)
	return nil
}

func (s *memIgnoreStore) ListIgnored(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out, nil
}

// memSettings is an in-memory domain.SettingsStore.
type memSettings struct {
	mu      sync.Mutex
	enabled bool
}

func (s *memSettings) AutoReplyEnabled(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, nil
}

func (s *memSettings) SetAutoReply(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

// fakeResolver returns a canned payload or error.
type fakeResolver struct {
	Payload *attachment.Payload
	Err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, ref domain.AttachmentRef) (*attachment.Payload, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Payload, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testDeps struct {
	transport *fakeTransport
	completer *fakeCompleter
	ignores   *memIgnoreStore
	settings  *memSettings
	resolver  *fakeResolver
}

func newTestOrchestrator(t *testing.T, deps *testDeps) *Orchestrator {
	t.Helper()
	logger := quietLogger()
	return New(Options{
		Prefix:    "!",
		Persona:   persona.Default(),
		MaxTurns:  20,
		Cooldown:  25 * time.Millisecond,
		Ignores:   deps.ignores,
		Settings:  deps.settings,
		Resolver:  deps.resolver,
		Completer: deps.completer,
		Bus:       bus.NewEventBus(logger),
		Logger:    logger,
	})
}

func newTestDeps() *testDeps {
	return &testDeps{
		transport: newFakeTransport(2000),
		completer: &fakeCompleter{Outcome: domain.Outcome{Kind: domain.OutcomeOK, Text: "sure!", Cacheable: true}},
		ignores:   newMemIgnoreStore(),
		settings:  &memSettings{enabled: true},
		resolver:  &fakeResolver{},
	}
}

func directMessage(author, name, content string) domain.IncomingMessage {
	return domain.IncomingMessage{
		Transport:      "fake",
		ConversationID: "conv-" + author,
		Kind:           domain.KindDirect,
		AuthorID:       author,
		AuthorName:     name,
		Content:        content,
		Timestamp:      time.Now(),
	}
}
