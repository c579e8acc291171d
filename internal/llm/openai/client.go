package openai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"credit-backend/internal/llm"
	"credit-backend/internal/shared/telemetry"
)

const defaultModel = "gpt-4o-mini"

var apiURL = "https://api.openai.com/v1/chat/completions"

//go:embed schema/credit_analysis.json
var creditAnalysisSchema []byte

// Client implements llm.Analyzer and llm.LetterDrafter using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
	now        func() time.Time

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
}

// NewClient constructs a new OpenAI client. model defaults to gpt-4o-mini.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
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

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Analyze extracts the credit analysis document from report text using a
// strict json_schema response format, then validates the reply locally.
func (c *Client) Analyze(ctx context.Context, text string) (json.RawMessage, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.AnalysisSystemPrompt},
			{Role: "user", Content: llm.BuildAnalysisUserPrompt(text)},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "credit_report_analysis",
				Strict: true,
				Schema: creditAnalysisSchema,
			},
		},
	}
	c.applyTemperature(&req)

	content, err := c.complete(ctx, "analyze", req)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("invalid JSON from OpenAI")
	}
	if err := c.validate([]byte(content)); err != nil {
		return nil, err
	}
	return json.RawMessage(content), nil
}

// DraftLetter writes a plain-text dispute letter for bureau.
func (c *Client) DraftLetter(ctx context.Context, bureau string, findings json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(findings)) == 0 {
		findings = json.RawMessage("[]")
	}
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.LetterSystemPrompt},
			{Role: "user", Content: llm.BuildLetterPrompt(bureau, findings, c.now())},
		},
	}
	return c.complete(ctx, "draft_letter", req)
}

func (c *Client) applyTemperature(req *chatRequest) {
	if isGPT5(c.model) {
		return
	}
	temp := float32(0)
	req.Temperature = &temp
}

func (c *Client) validate(data []byte) error {
	c.schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("credit_analysis.json", bytes.NewReader(creditAnalysisSchema)); err != nil {
			c.schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		c.schema, c.schemaErr = compiler.Compile("credit_analysis.json")
	})
	if c.schemaErr != nil {
		return c.schemaErr
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal analysis: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("analysis does not match schema: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, op string, reqBody chatRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai response parse (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}

	fields := map[string]any{
		"op":          op,
		"model":       c.model,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
	return content, nil
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var (
	_ llm.Analyzer      = (*Client)(nil)
	_ llm.LetterDrafter = (*Client)(nil)
)
