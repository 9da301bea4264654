package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cvadapt-backend/internal/llm"
)

const (
	apiURL = "https://api.openai.com/v1/chat/completions"
)

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey       string
	defaultModel string
	httpClient   *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(defaultModel) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// Complete performs one structured completion call. When a schema is given it
// uses json_schema response format, otherwise json_object. Non-JSON content
// gets one repair round before failing.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}

	comp, err := c.completeOnce(ctx, model, req)
	if err != nil {
		return nil, err
	}
	logUsage(model, req.SchemaName, comp.Usage)

	if json.Valid(comp.Content) {
		return comp, nil
	}

	fixed, err := c.completeOnce(ctx, model, fixRequest(req, comp.Content))
	if err != nil {
		return nil, err
	}
	logUsage(model, req.SchemaName, fixed.Usage)
	if !json.Valid(fixed.Content) {
		return nil, fmt.Errorf("invalid JSON from OpenAI")
	}
	return fixed, nil
}

func fixRequest(req llm.Request, raw json.RawMessage) llm.Request {
	fixed := req
	fixed.System = "You convert malformed output into valid JSON. Return only the corrected JSON object, nothing else."
	fixed.User = fmt.Sprintf("The following output should be a single valid JSON object but is malformed. Fix it without changing its meaning:\n\n%s", raw)
	return fixed
}

func (c *Client) completeOnce(ctx context.Context, model string, req llm.Request) (*llm.Completion, error) {
	messages := []chatMessage{}
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	format := &responseFormat{Type: "json_object"}
	if len(req.Schema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		format = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   name,
				Strict: true,
				Schema: req.Schema,
			},
		}
	}

	temp := req.Temperature
	reqBody := chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    &temp,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: format,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseChatResponse(body, resp.StatusCode)
}

// parseChatResponse reads the provider body tolerantly so that a partial or
// errored payload still surfaces a useful message.
func parseChatResponse(body []byte, statusCode int) (*llm.Completion, error) {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return nil, fmt.Errorf("openai error (status %d): %s (%s)",
			statusCode, msg.String(), gjson.GetBytes(body, "error.type").String())
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", statusCode, truncateForLog(body))
	}

	content := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	if content == "" {
		return nil, fmt.Errorf("openai response empty content")
	}

	usage := llm.Usage{
		PromptTokens:     int(gjson.GetBytes(body, "usage.prompt_tokens").Int()),
		CachedTokens:     int(gjson.GetBytes(body, "usage.prompt_tokens_details.cached_tokens").Int()),
		CompletionTokens: int(gjson.GetBytes(body, "usage.completion_tokens").Int()),
		TotalTokens:      int(gjson.GetBytes(body, "usage.total_tokens").Int()),
	}

	return &llm.Completion{
		Content: json.RawMessage(content),
		Model:   gjson.GetBytes(body, "model").String(),
		Usage:   usage,
	}, nil
}

func truncateForLog(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func logUsage(model, schemaName string, usage llm.Usage) {
	log.Printf("llm response model=%s schema=%s prompt_tokens=%d cached_tokens=%d completion_tokens=%d total_tokens=%d",
		model, schemaName, usage.PromptTokens, usage.CachedTokens, usage.CompletionTokens, usage.TotalTokens)
}

var _ llm.Client = (*Client)(nil)
