// Package completion wraps the generative backend. One request per call, no
// retries; every failure is classified into a typed outcome at this
// boundary so the rest of the system never inspects backend error text.
package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"replique/internal/domain"
	"replique/internal/metrics"
)

// Gemini implements domain.Completer against the Gemini API.
type Gemini struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	topP            float32
	logger          *slog.Logger
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int32
	TopP            float64
	Logger          *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 16384
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 0.2
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{
		client:          client,
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		topP:            float32(cfg.TopP),
		logger:          cfg.Logger,
	}, nil
}

// Complete issues a single completion request and classifies the result.
func (g *Gemini) Complete(ctx context.Context, req domain.CompletionRequest) domain.Outcome {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	cfg := &genai.GenerateContentConfig{
		TopP:            genai.Ptr(g.topP),
		MaxOutputTokens: g.maxOutputTokens,
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	metrics.CompletionLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		g.logger.Warn("completion request failed", "model", g.model, "err", err)
		return classifyFailure(err)
	}

	blockReason, finishReason, text := flattenResponse(resp)
	outcome := classifyResult(blockReason, finishReason, text)
	if outcome.Kind != domain.OutcomeOK {
		g.logger.Warn("completion returned no usable text",
			"kind", outcome.Kind.String(),
			"block_reason", blockReason,
			"finish_reason", finishReason,
		)
	}
	return outcome
}

// flattenResponse extracts the fields classification depends on. Text from
// all parts of the first candidate is concatenated.
func flattenResponse(resp *genai.GenerateContentResponse) (blockReason, finishReason, text string) {
	if resp == nil {
		return "", "", ""
	}
	if resp.PromptFeedback != nil {
		blockReason = string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return blockReason, "", ""
	}
	cand := resp.Candidates[0]
	finishReason = string(cand.FinishReason)
	if cand.Content == nil {
		return blockReason, finishReason, ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return blockReason, finishReason, sb.String()
}

// classifyFailure maps a transport/API error to an outcome kind. Only the
// kind leaves this package; the raw error stays in the logs.
func classifyFailure(err error) domain.Outcome {
	s := err.Error()
	switch {
	case strings.Contains(s, "400") || strings.Contains(s, "INVALID_ARGUMENT"):
		return domain.Outcome{Kind: domain.OutcomeBadRequest}
	case strings.Contains(s, "SAFETY") || strings.Contains(s, "PROHIBITED_CONTENT") || strings.Contains(s, "blocked"):
		return domain.Outcome{Kind: domain.OutcomeBlocked, Cacheable: true}
	default:
		return domain.Outcome{Kind: domain.OutcomeServerError}
	}
}

// classifyResult maps a decoded response to an outcome. Policy blocks are
// marked cacheable: the refusal is delivered as a reply and folded into
// context like any other.
func classifyResult(blockReason, finishReason, text string) domain.Outcome {
	if blockReason != "" && blockReason != "BLOCKED_REASON_UNSPECIFIED" {
		return domain.Outcome{Kind: domain.OutcomeBlocked, Cacheable: true}
	}
	switch finishReason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return domain.Outcome{Kind: domain.OutcomeBlocked, Cacheable: true}
	}
	if text == "" {
		return domain.Outcome{Kind: domain.OutcomeEmpty}
	}
	return domain.Outcome{Kind: domain.OutcomeOK, Text: text, Cacheable: true}
}
