package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/observability"
)

// scriptedGenerator replays canned responses and records the requests it saw.
type scriptedGenerator struct {
	responses []*genai.Response
	errs      []error
	requests  []*genai.Request
	delay     time.Duration
}

func (s *scriptedGenerator) GenerateContent(ctx context.Context, req *genai.Request) (*genai.Response, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return &genai.Response{}, nil
	}
	return s.responses[i], nil
}

func textResponse(text string) *genai.Response {
	return &genai.Response{Candidates: []genai.Candidate{{Content: genai.ModelTurn(text)}}}
}

func toolCallResponse(calls ...genai.FunctionCall) *genai.Response {
	parts := make([]genai.Part, len(calls))
	for i := range calls {
		parts[i] = genai.Part{FunctionCall: &calls[i]}
	}
	return &genai.Response{Candidates: []genai.Candidate{{Content: genai.Content{Role: "model", Parts: parts}}}}
}

func newTestOrchestrator(gen Generator, timeout time.Duration) *Orchestrator {
	registry := NewRegistry(observability.Nop(),
		&fakeClubStore{clubs: testClubs()},
		&fakePreferenceStore{tags: map[string][]string{"u1": {"Music"}}},
		5)
	return NewOrchestrator(observability.Nop(), gen, registry, Config{
		Timeout:        timeout,
		FallbackAnswer: "fallback answer",
	})
}

func TestConverse_PlainTextAnswer(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.Response{textResponse("Try the Chess Club!")}}
	o := newTestOrchestrator(gen, time.Second)

	reply, err := o.Converse(context.Background(), nil, "any chess clubs?", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Try the Chess Club!", reply)

	// Single round-trip when no tools are requested.
	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "any chess clubs?", req.Contents[0].Parts[0].Text)
	require.NotNil(t, req.SystemInstruction)
}

func TestConverse_EmptyMessageRejected(t *testing.T) {
	o := newTestOrchestrator(&scriptedGenerator{}, time.Second)

	_, err := o.Converse(context.Background(), nil, "   ", "u1", nil)
	assert.Error(t, err)
}

func TestConverse_HistoryTrimsLeadingModelTurns(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.Response{textResponse("ok")}}
	o := newTestOrchestrator(gen, time.Second)

	history := []Message{
		{Text: "Welcome! Ask me about clubs.", IsUser: false},
		{Text: "hi", IsUser: true},
		{Text: "Hello!", IsUser: false},
	}
	_, err := o.Converse(context.Background(), history, "what's good?", "u1", nil)
	require.NoError(t, err)

	contents := gen.requests[0].Contents
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "hi", contents[0].Parts[0].Text)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)
}

func TestConverse_ToolRoundTrip(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.Response{
		toolCallResponse(genai.FunctionCall{
			Name: toolSearchClubs,
			Args: map[string]interface{}{"query": "robot"},
		}),
		textResponse("Robotics Club looks perfect for you."),
	}}
	o := newTestOrchestrator(gen, time.Second)

	reply, err := o.Converse(context.Background(), nil, "something with robots", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Robotics Club looks perfect for you.", reply)
	require.Len(t, gen.requests, 2)

	// Second request carries the model turn, the tool results, and the
	// summarize directive, in that order.
	followUp := gen.requests[1].Contents
	require.Len(t, followUp, 4)
	assert.NotNil(t, followUp[1].Parts[0].FunctionCall)

	toolTurn := followUp[2]
	assert.Equal(t, "user", toolTurn.Role)
	require.Len(t, toolTurn.Parts, 1)
	fr := toolTurn.Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, toolSearchClubs, fr.Name)
	assert.Equal(t, toolSearchClubs, fr.Response["name"])
	assert.Contains(t, fr.Response, "content")

	directive := followUp[3]
	assert.Equal(t, "user", directive.Role)
	assert.Equal(t, summarizeDirective, directive.Parts[0].Text)
}

func TestConverse_MultipleToolCallsExecuteInOrder(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.Response{
		toolCallResponse(
			genai.FunctionCall{Name: toolGetAllClubs},
			genai.FunctionCall{Name: toolGetUserPreferences},
		),
		textResponse("Here is everything."),
	}}
	o := newTestOrchestrator(gen, time.Second)

	_, err := o.Converse(context.Background(), nil, "show me everything", "u1", nil)
	require.NoError(t, err)

	toolTurn := gen.requests[1].Contents[2]
	require.Len(t, toolTurn.Parts, 2)
	assert.Equal(t, toolGetAllClubs, toolTurn.Parts[0].FunctionResponse.Name)
	assert.Equal(t, toolGetUserPreferences, toolTurn.Parts[1].FunctionResponse.Name)
}

func TestConverse_CachedTagsPruneLookupTool(t *testing.T) {
	gen := &scriptedGenerator{responses: []*genai.Response{textResponse("ok")}}
	o := newTestOrchestrator(gen, time.Second)

	_, err := o.Converse(context.Background(), nil, "recommend clubs", "u1", []string{"Coding", "Music"})
	require.NoError(t, err)

	req := gen.requests[0]
	require.Len(t, req.Tools, 1)
	for _, d := range req.Tools[0].FunctionDeclarations {
		assert.NotEqual(t, toolGetUserPreferences, d.Name)
	}

	// The system instruction tells the model the tags are already known.
	instruction := genai.JoinText(*req.SystemInstruction)
	assert.Contains(t, instruction, "Coding, Music")
}

func TestConverse_TimeoutReturnsFallback(t *testing.T) {
	gen := &scriptedGenerator{
		delay:     time.Second,
		responses: []*genai.Response{textResponse("too late")},
	}
	o := newTestOrchestrator(gen, 30*time.Millisecond)

	start := time.Now()
	reply, err := o.Converse(context.Background(), nil, "anything", "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, "fallback answer", reply)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestConverse_FallbackOnDegenerateFollowUp(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty answer", "   "},
		{"cant summarize", "I can't summarize the tool results."},
		{"couldnt summarize", "Sorry, I couldn't summarize that."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{responses: []*genai.Response{
				toolCallResponse(genai.FunctionCall{Name: toolGetAllClubs}),
				textResponse(tt.text),
			}}
			o := newTestOrchestrator(gen, time.Second)

			reply, err := o.Converse(context.Background(), nil, "hello", "u1", nil)
			require.NoError(t, err)
			assert.Equal(t, "fallback answer", reply)
		})
	}
}

func TestConverse_DirectAnswerPassesThrough(t *testing.T) {
	// Without a tool round the model's text is returned as-is. An empty
	// answer stays empty and refusal phrasing is not rewritten.
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty answer", "   ", ""},
		{"refusal phrasing kept", "I can't summarize poetry, but the Chess Club fits.", "I can't summarize poetry, but the Chess Club fits."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{responses: []*genai.Response{textResponse(tt.text)}}
			o := newTestOrchestrator(gen, time.Second)

			reply, err := o.Converse(context.Background(), nil, "hello", "u1", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
			require.Len(t, gen.requests, 1)
		})
	}
}

func TestConverse_ProviderErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", &genai.ProviderError{StatusCode: http.StatusTooManyRequests}, msgRateLimited},
		{"model not found", &genai.ProviderError{StatusCode: http.StatusNotFound}, msgModelNotFound},
		{"server error", &genai.ProviderError{StatusCode: http.StatusInternalServerError}, msgConnectivity},
		{"transport error", context.DeadlineExceeded, msgConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{errs: []error{tt.err}}
			o := newTestOrchestrator(gen, time.Second)

			reply, err := o.Converse(context.Background(), nil, "hello", "u1", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestConverse_FollowUpErrorUsesFollowUpMessage(t *testing.T) {
	gen := &scriptedGenerator{
		responses: []*genai.Response{
			toolCallResponse(genai.FunctionCall{Name: toolGetAllClubs}),
			nil,
		},
		errs: []error{nil, &genai.ProviderError{StatusCode: http.StatusInternalServerError}},
	}
	o := newTestOrchestrator(gen, time.Second)

	reply, err := o.Converse(context.Background(), nil, "show me everything", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, msgFollowUp, reply)
}

func TestConverse_ThroughRealClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Chess Club"}]}}]}`))
	}))
	defer server.Close()

	client := genai.NewClient(genai.ClientConfig{
		BaseURL: server.URL,
		Model:   "test-model",
		APIKey:  "test-key",
	})
	o := newTestOrchestrator(client, time.Second)

	reply, err := o.Converse(context.Background(), nil, "chess?", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", reply)
}
