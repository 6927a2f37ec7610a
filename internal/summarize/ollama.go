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

// ollamaSummarizer extracts sections from a local Ollama instance via
// /api/chat with the schema passed as the response format.
type ollamaSummarizer struct {
	endpoint string
	cfg      config.SummarizationConfig
	client   *http.Client
}

func NewOllamaSummarizer(cfg config.SummarizationConfig) Summarizer {
	endpoint := cfg.BaseURL
	if endpoint == "" || strings.Contains(endpoint, "openai.com") {
		endpoint = "http://localhost:11434"
	}
	return &ollamaSummarizer{
		endpoint: strings.TrimRight(endpoint, "/"),
		cfg:      cfg,
		client:   http.DefaultClient,
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   any                 `json:"format"`
	Options  ollamaChatOptions   `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

func (s *ollamaSummarizer) Summarize(ctx context.Context, transcript string, tpl template.Template, opts Options) (Result, error) {
	schema, err := BuildSchema(tpl)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	payload := ollamaChatRequest{
		Model: s.cfg.Model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: systemPrompt(opts)},
			{Role: "user", Content: userContent(transcript)},
		},
		Stream: false,
		Format: schema,
		Options: ollamaChatOptions{
			Temperature: s.cfg.Temperature,
			NumPredict:  s.cfg.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: call ollama: %v", ErrSummarizationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrSummarizationFailed, err)
	}
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("%w: ollama returned %s: %s", ErrSummarizationFailed, resp.Status, strings.TrimSpace(string(respBody)))
	}

	var decoded ollamaChatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrSummarizationFailed, err)
	}
	if decoded.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrSummarizationFailed, decoded.Error)
	}

	return decodeResult([]byte(decoded.Message.Content), tpl)
}
