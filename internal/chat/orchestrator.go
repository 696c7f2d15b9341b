package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/observability"
)

const systemInstruction = `You are a helpful assistant for a campus club discovery app. ` +
	`You help students find clubs that match their interests. ` +
	`Use the provided tools to look up club information instead of inventing it. ` +
	`When the user asks for recommendations and you do not know their interests, ` +
	`look up their preferences first. Keep answers friendly and concise, and ` +
	`always name the clubs you found.`

// preferencesKnownNote is appended to the system instruction when the caller
// already holds the user's preference tags, so the model skips the lookup.
const preferencesKnownNote = ` The user's preference tags are already known: %s. ` +
	`Do not look up preferences again; use these tags directly.`

// summarizeDirective is the synthetic user turn sent after tool results,
// prompting the model to turn raw data into an answer.
const summarizeDirective = `Based on the tool outputs above, please provide a ` +
	`helpful answer to my original request. List the clubs found.`

// User-safe messages for provider failures. Raw provider errors never reach
// the end user.
const (
	msgRateLimited   = "I'm overwhelmed with requests right now. Please wait a few seconds and try again."
	msgModelNotFound = "Error: AI model not found. Please check the API configuration."
	msgConnectivity  = "Sorry, I'm having trouble connecting to the AI right now."
	msgFollowUp      = "Sorry, I had trouble processing the club information."
)

// Generator is the model round-trip the orchestrator depends on.
type Generator interface {
	GenerateContent(ctx context.Context, req *genai.Request) (*genai.Response, error)
}

// Message is one prior turn of the conversation, oldest first.
type Message struct {
	Text   string
	IsUser bool
}

// Config holds orchestrator settings.
type Config struct {
	// Timeout is the wall-clock ceiling for a full converse pass, covering
	// both model round-trips and tool execution. When it elapses the
	// FallbackAnswer is returned.
	Timeout time.Duration
	// FallbackAnswer is returned on timeout and when the model declines to
	// summarize tool output.
	FallbackAnswer string
}

// Orchestrator runs the two-phase tool-calling conversation loop.
type Orchestrator struct {
	logger   *observability.Logger
	client   Generator
	registry *Registry
	cfg      Config
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(logger *observability.Logger, client Generator, registry *Registry, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Orchestrator{
		logger:   logger,
		client:   client,
		registry: registry,
		cfg:      cfg,
	}
}

// Converse answers one user message in the context of the prior history.
// cachedTags, when non-empty, are the user's already-known preference tags;
// they remove the preference-lookup tool from the offered set and are injected
// into tag-dependent tools directly.
//
// The returned text is always user-safe: provider failures are mapped to
// friendly messages and the configured fallback covers timeouts and
// degenerate model output. The error return is reserved for caller mistakes
// such as an empty message.
func (o *Orchestrator) Converse(ctx context.Context, history []Message, userMessage, userID string, cachedTags []string) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", errors.New("chat: empty user message")
	}

	type outcome struct {
		text string
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		text := o.converse(ctx, history, userMessage, userID, cachedTags)
		done <- outcome{text: text}
	}()

	timer := time.NewTimer(o.cfg.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		o.logger.Debug().
			Str("user_id", userID).
			Dur("elapsed", time.Since(start)).
			Msg("chat turn completed")
		return out.text, nil
	case <-timer.C:
		// The losing goroutine finishes in the background; its result is
		// discarded and never mutates what the caller sees.
		o.logger.Warn().
			Str("user_id", userID).
			Dur("timeout", o.cfg.Timeout).
			Msg("chat turn timed out, returning fallback answer")
		go func() {
			out := <-done
			o.logger.Debug().
				Int("discarded_len", len(out.text)).
				Msg("late chat result discarded")
		}()
		return o.cfg.FallbackAnswer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// converse is the unguarded conversation pass: first round-trip, tool
// execution, second round-trip. Always returns user-safe text.
func (o *Orchestrator) converse(ctx context.Context, history []Message, userMessage, userID string, cachedTags []string) string {
	contents := buildContents(history, userMessage)
	tools := o.registry.Declarations(len(cachedTags) == 0)

	instruction := systemInstruction
	if len(cachedTags) > 0 {
		instruction += strings.Replace(preferencesKnownNote, "%s", strings.Join(cachedTags, ", "), 1)
	}
	system := &genai.Content{Parts: []genai.Part{genai.TextPart(instruction)}}

	resp, err := o.client.GenerateContent(ctx, &genai.Request{
		Contents:          contents,
		Tools:             tools,
		SystemInstruction: system,
	})
	if err != nil {
		o.logger.Error().Err(err).Str("user_id", userID).Msg("chat round-trip failed")
		return mapProviderError(err, msgConnectivity)
	}
	if len(resp.Candidates) == 0 {
		o.logger.Warn().Str("user_id", userID).Msg("provider returned no candidates")
		return msgConnectivity
	}

	modelContent := resp.Candidates[0].Content
	calls := genai.FunctionCalls(modelContent)
	if len(calls) == 0 {
		// Direct answers pass through untouched, empty included. The
		// fallback substitution applies only to the post-tool summary.
		return strings.TrimSpace(genai.JoinText(modelContent))
	}

	// Tool round: execute every requested call in order and hand the
	// results back for a second pass.
	responseParts := make([]genai.Part, 0, len(calls))
	for _, call := range calls {
		o.logger.Info().
			Str("user_id", userID).
			Str("tool", call.Name).
			Msg("executing tool call")
		result := o.registry.Execute(ctx, call, userID, cachedTags)
		responseParts = append(responseParts, genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name: result.Name,
				Response: map[string]interface{}{
					"name":    result.Name,
					"content": result.Content,
				},
			},
		})
	}

	followUp := append(contents,
		modelContent,
		genai.Content{Role: "user", Parts: responseParts},
		genai.UserTurn(summarizeDirective),
	)

	resp, err = o.client.GenerateContent(ctx, &genai.Request{
		Contents:          followUp,
		Tools:             tools,
		SystemInstruction: system,
	})
	if err != nil {
		o.logger.Error().Err(err).Str("user_id", userID).Msg("chat follow-up failed")
		return mapProviderError(err, msgFollowUp)
	}
	if len(resp.Candidates) == 0 {
		o.logger.Warn().Str("user_id", userID).Msg("provider returned no candidates on follow-up")
		return msgFollowUp
	}

	return o.finalText(genai.JoinText(resp.Candidates[0].Content))
}

// finalText substitutes the fallback answer when the follow-up round yields
// empty or refusal text.
func (o *Orchestrator) finalText(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if trimmed == "" ||
		strings.Contains(lower, "can't summarize") ||
		strings.Contains(lower, "couldn't summarize") {
		o.logger.Warn().Msg("model declined to summarize, returning fallback answer")
		return o.cfg.FallbackAnswer
	}
	return trimmed
}

// buildContents converts the history plus the new message into provider
// turns. Leading model turns are trimmed because the provider requires the
// first turn to be from the user.
func buildContents(history []Message, userMessage string) []genai.Content {
	trimmed := history
	for len(trimmed) > 0 && !trimmed[0].IsUser {
		trimmed = trimmed[1:]
	}

	contents := make([]genai.Content, 0, len(trimmed)+1)
	for _, msg := range trimmed {
		if msg.IsUser {
			contents = append(contents, genai.UserTurn(msg.Text))
		} else {
			contents = append(contents, genai.ModelTurn(msg.Text))
		}
	}
	return append(contents, genai.UserTurn(userMessage))
}

// mapProviderError converts a transport or provider failure into a user-safe
// message.
func mapProviderError(err error, fallback string) string {
	var pe *genai.ProviderError
	if errors.As(err, &pe) {
		switch pe.StatusCode {
		case http.StatusTooManyRequests:
			return msgRateLimited
		case http.StatusNotFound:
			return msgModelNotFound
		}
	}
	return fallback
}
