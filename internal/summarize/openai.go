package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/template"
)

// openaiSummarizer extracts sections through an OpenAI-compatible chat
// completions endpoint using strict json_schema response formatting.
type openaiSummarizer struct {
	cfg    config.SummarizationConfig
	client *http.Client
}

func NewOpenAISummarizer(cfg config.SummarizationConfig) Summarizer {
	return &openaiSummarizer{cfg: cfg, client: http.DefaultClient}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []openaiMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat any             `json:"response_format"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *openaiSummarizer) Summarize(ctx context.Context, transcript string, tpl template.Template, opts Options) (Result, error) {
	schema, err := BuildSchema(tpl)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	messages := []openaiMessage{
		{Role: "system", Content: systemPrompt(opts)},
		{Role: "user", Content: userContent(transcript)},
	}
	content, err := s.complete(ctx, messages, "note_sections", schema, s.cfg.Temperature)
	if err != nil {
		return Result{}, err
	}
	return decodeResult(content, tpl)
}

// FixMermaidChart asks the model to rewrite a chart that fails to render,
// stripping the stray characters that usually break it.
func (s *openaiSummarizer) FixMermaidChart(ctx context.Context, chart string) (string, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			mermaidChartKey: map[string]any{
				"type":        "string",
				"description": "A fully valid unicode mermaid mindmap diagram",
			},
		},
		"required":             []string{mermaidChartKey},
		"additionalProperties": false,
	}
	messages := []openaiMessage{
		{Role: "system", Content: mermaidRepairPrompt(chart)},
	}
	content, err := s.complete(ctx, messages, "mermaid_chart", schema, mermaidRepairTemperature)
	if err != nil {
		return "", err
	}

	var decoded map[string]string
	if err := json.Unmarshal(content, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode structured output: %v", ErrSummarizationFailed, err)
	}
	fixed := strings.TrimSpace(decoded[mermaidChartKey])
	if fixed == "" {
		return "", fmt.Errorf("%w: provider omitted required field %q", ErrSummarizationFailed, mermaidChartKey)
	}
	return fixed, nil
}

// complete runs one structured-output chat completion and returns the raw
// message content.
func (s *openaiSummarizer) complete(ctx context.Context, messages []openaiMessage, schemaName string, schema map[string]any, temperature float64) ([]byte, error) {
	payload := openaiRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   s.cfg.MaxTokens,
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call chat endpoint: %v", ErrSummarizationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSummarizationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: chat endpoint returned %s: %s", ErrSummarizationFailed, resp.Status, strings.TrimSpace(string(respBody)))
	}

	var decoded openaiResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSummarizationFailed, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrSummarizationFailed, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", ErrSummarizationFailed)
	}
	return []byte(decoded.Choices[0].Message.Content), nil
}
