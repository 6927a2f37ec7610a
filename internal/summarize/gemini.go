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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// geminiSummarizer extracts sections through the Gemini generateContent
// endpoint, constraining the output with a response schema.
type geminiSummarizer struct {
	cfg    config.SummarizationConfig
	client *http.Client
}

func NewGeminiSummarizer(cfg config.SummarizationConfig) Summarizer {
	// The shared config default points at the OpenAI API.
	if cfg.BaseURL == "" || strings.Contains(cfg.BaseURL, "api.openai.com") {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	return &geminiSummarizer{cfg: cfg, client: http.DefaultClient}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *geminiSummarizer) Summarize(ctx context.Context, transcript string, tpl template.Template, opts Options) (Result, error) {
	schema, err := geminiSchema(tpl)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	payload := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt(opts)}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userContent(transcript)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      s.cfg.Temperature,
			MaxOutputTokens:  s.cfg.MaxTokens,
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}

	raw, err := s.generate(ctx, payload)
	if err != nil {
		return Result{}, err
	}
	return decodeResult(raw, tpl)
}

func (s *geminiSummarizer) generate(ctx context.Context, payload geminiRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call generate endpoint: %v", ErrSummarizationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSummarizationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: generate endpoint returned %s: %s", ErrSummarizationFailed, resp.Status, strings.TrimSpace(string(respBody)))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSummarizationFailed, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrSummarizationFailed, decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: response contained no candidates", ErrSummarizationFailed)
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return []byte(text.String()), nil
}

// geminiSchema adapts the extraction schema to Gemini's OpenAPI dialect:
// uppercase type names and no additionalProperties.
func geminiSchema(tpl template.Template) (map[string]any, error) {
	schema, err := BuildSchema(tpl)
	if err != nil {
		return nil, err
	}
	delete(schema, "additionalProperties")
	schema["type"] = "OBJECT"
	if properties, ok := schema["properties"].(map[string]any); ok {
		for _, property := range properties {
			if field, ok := property.(map[string]any); ok {
				field["type"] = "STRING"
			}
		}
	}
	return schema, nil
}
