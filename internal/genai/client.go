// Package genai implements the HTTP client for the generateContent
// endpoint of a Gemini-style generative-AI provider.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-lite"
)

// Content is a single conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"` // user or model
	Parts []Part `json:"parts"`
}

// Part is one fragment of a turn. Exactly one field is set: plain text, a
// tool invocation requested by the model, or a tool result sent back to it.
// Both shapes can appear in the same response.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is the model's request to execute a named tool.
type FunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model, keyed by the
// same function name.
type FunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// Tool declares a group of callable functions to the model.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is the provider's JSON-schema dialect for declaring parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Request is the generateContent request body.
type Request struct {
	Contents          []Content `json:"contents"`
	Tools             []Tool    `json:"tools,omitempty"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

// Response is the generateContent response body.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content Content `json:"content"`
}

// ProviderError reports a non-2xx provider response. The body never reaches
// end users; the orchestrator maps status codes to user-safe messages.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("genai provider returned HTTP %d", e.StatusCode)
}

// Client calls the generateContent endpoint. No automatic retries: a failed
// round-trip surfaces immediately and the caller decides whether to retry.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// ClientConfig holds client settings.
type ClientConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	// HTTPClient overrides the default transport, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a generateContent client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// GenerateContent sends one request and decodes the response. Non-2xx
// statuses return a *ProviderError carrying the provider body.
func (c *Client) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("genai api key is not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// UserTurn builds a user turn with a single text part.
func UserTurn(text string) Content {
	return Content{Role: "user", Parts: []Part{TextPart(text)}}
}

// ModelTurn builds a model turn with a single text part.
func ModelTurn(text string) Content {
	return Content{Role: "model", Parts: []Part{TextPart(text)}}
}

// JoinText concatenates every text part of a content block.
func JoinText(content Content) string {
	var b bytes.Buffer
	for _, part := range content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// FunctionCalls extracts the function-call parts of a content block, in order.
func FunctionCalls(content Content) []FunctionCall {
	var calls []FunctionCall
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}
