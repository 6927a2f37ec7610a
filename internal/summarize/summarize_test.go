package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/template"
)

func testTemplate() template.Template {
	return template.Template{
		Name: "test",
		Sections: []template.Section{
			{ID: "summary", Header: "Summary", Instructions: "Summarize the transcript."},
			{ID: "mermaid", Header: "Mermaid Chart", Instructions: "Draw a chart."},
			{ID: "questions", Header: "Answered Questions", Instructions: "Answer questions.", Optional: true},
		},
	}
}

func TestBuildSchema(t *testing.T) {
	schema, err := BuildSchema(testTemplate())
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties map: %#v", schema)
	}
	for _, key := range []string{FileTitleKey, "summary", "mermaid_chart", "answered_questions"} {
		if _, ok := properties[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}

	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatalf("schema has no required list: %#v", schema)
	}
	want := []string{FileTitleKey, "summary", "mermaid_chart"}
	if len(required) != len(want) {
		t.Fatalf("required = %v, want %v", required, want)
	}
	for i, key := range want {
		if required[i] != key {
			t.Errorf("required[%d] = %q, want %q", i, required[i], key)
		}
	}

	if add, _ := schema["additionalProperties"].(bool); add {
		t.Error("schema must set additionalProperties to false")
	}
}

func TestBuildSchemaRejectsInvalidTemplate(t *testing.T) {
	tpl := template.Template{
		Name: "broken",
		Sections: []template.Section{
			{ID: "a", Header: "Key Points", Instructions: "x"},
			{ID: "b", Header: "Key  Points!", Instructions: "y"},
		},
	}
	if _, err := BuildSchema(tpl); err == nil {
		t.Fatal("expected error for colliding section slugs")
	}
}

func TestDecodeResult(t *testing.T) {
	tpl := testTemplate()

	t.Run("optional absent stays absent", func(t *testing.T) {
		raw := []byte(`{"fileTitle":"Standup Notes","summary":"short","mermaid_chart":"graph TD"}`)
		result, err := decodeResult(raw, tpl)
		if err != nil {
			t.Fatalf("decodeResult: %v", err)
		}
		if result.FileTitle != "Standup Notes" {
			t.Errorf("FileTitle = %q", result.FileTitle)
		}
		if _, ok := result.Sections["answered_questions"]; ok {
			t.Error("optional section must stay absent, not appear empty")
		}
	})

	t.Run("optional blank stays absent", func(t *testing.T) {
		raw := []byte(`{"fileTitle":"t","summary":"s","mermaid_chart":"m","answered_questions":"  "}`)
		result, err := decodeResult(raw, tpl)
		if err != nil {
			t.Fatalf("decodeResult: %v", err)
		}
		if _, ok := result.Sections["answered_questions"]; ok {
			t.Error("blank optional section must be dropped")
		}
	})

	t.Run("missing required field fails", func(t *testing.T) {
		raw := []byte(`{"fileTitle":"t","summary":"s"}`)
		if _, err := decodeResult(raw, tpl); !errors.Is(err, ErrSummarizationFailed) {
			t.Fatalf("err = %v, want ErrSummarizationFailed", err)
		}
	})

	t.Run("empty required field fails", func(t *testing.T) {
		raw := []byte(`{"fileTitle":"t","summary":"","mermaid_chart":"m"}`)
		if _, err := decodeResult(raw, tpl); !errors.Is(err, ErrSummarizationFailed) {
			t.Fatalf("err = %v, want ErrSummarizationFailed", err)
		}
	})

	t.Run("missing title fails", func(t *testing.T) {
		raw := []byte(`{"summary":"s","mermaid_chart":"m"}`)
		if _, err := decodeResult(raw, tpl); !errors.Is(err, ErrSummarizationFailed) {
			t.Fatalf("err = %v, want ErrSummarizationFailed", err)
		}
	})
}

func TestOpenAISummarizer(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		content := `{"fileTitle":"Planning Session","summary":"we planned","mermaid_chart":"graph TD"}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	defer server.Close()

	s := NewOpenAISummarizer(config.SummarizationConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Model:       "gpt-4o",
		Temperature: 0.5,
	})

	result, err := s.Summarize(context.Background(), "we talked about the plan", testTemplate(), Options{OutputLanguage: "German"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.FileTitle != "Planning Session" {
		t.Errorf("FileTitle = %q", result.FileTitle)
	}
	if result.Sections["summary"] != "we planned" {
		t.Errorf("summary = %q", result.Sections["summary"])
	}

	if captured.Model != "gpt-4o" {
		t.Errorf("request model = %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages %#v", captured.Messages)
	}
	if !strings.Contains(captured.Messages[0].Content, "German") {
		t.Error("system prompt must carry the output language")
	}
	if !strings.Contains(captured.Messages[1].Content, "<transcript>") {
		t.Error("user content must wrap the transcript")
	}
}

func TestOpenAISummarizerSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	}))
	defer server.Close()

	s := NewOpenAISummarizer(config.SummarizationConfig{APIKey: "x", BaseURL: server.URL, Model: "gpt-4o"})
	if _, err := s.Summarize(context.Background(), "t", testTemplate(), Options{}); !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("err = %v, want ErrSummarizationFailed", err)
	}
}

func TestOllamaSummarizer(t *testing.T) {
	var captured ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		content := `{"fileTitle":"Local Note","summary":"s","mermaid_chart":"m"}`
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	defer server.Close()

	s := NewOllamaSummarizer(config.SummarizationConfig{BaseURL: server.URL, Model: "llama3.2"})
	result, err := s.Summarize(context.Background(), "t", testTemplate(), Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.FileTitle != "Local Note" {
		t.Errorf("FileTitle = %q", result.FileTitle)
	}

	if captured.Stream {
		t.Error("ollama request must disable streaming")
	}
	if captured.Format == nil {
		t.Error("ollama request must carry the schema as format")
	}
}

func TestGeminiSummarizer(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("x-goog-api-key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		content := `{"fileTitle":"Gemini Note","summary":"s","mermaid_chart":"m"}`
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": content}}}},
			},
		})
	}))
	defer server.Close()

	s := NewGeminiSummarizer(config.SummarizationConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.0-flash",
	})
	result, err := s.Summarize(context.Background(), "t", testTemplate(), Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.FileTitle != "Gemini Note" {
		t.Errorf("FileTitle = %q", result.FileTitle)
	}

	if captured.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Errorf("responseMimeType = %q", captured.GenerationConfig.ResponseMIMEType)
	}
	if captured.GenerationConfig.ResponseSchema == nil {
		t.Fatal("request must carry the response schema")
	}
	if got := captured.GenerationConfig.ResponseSchema["type"]; got != "OBJECT" {
		t.Errorf("schema type = %v, want OBJECT", got)
	}
	if _, ok := captured.GenerationConfig.ResponseSchema["additionalProperties"]; ok {
		t.Error("gemini schema must not carry additionalProperties")
	}
	if captured.SystemInstruction == nil || len(captured.SystemInstruction.Parts) == 0 {
		t.Fatal("request must carry a system instruction")
	}
}

func TestOpenAIFixMermaidChart(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		content := `{"mermaidChart":"mindmap\n  root((clean))"}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	defer server.Close()

	s := NewOpenAISummarizer(config.SummarizationConfig{APIKey: "x", BaseURL: server.URL, Model: "gpt-4o"})
	fixer, ok := s.(MermaidFixer)
	if !ok {
		t.Fatal("openai summarizer must implement MermaidFixer")
	}

	fixed, err := fixer.FixMermaidChart(context.Background(), "broken((chart")
	if err != nil {
		t.Fatalf("FixMermaidChart: %v", err)
	}
	if fixed != "mindmap\n  root((clean))" {
		t.Errorf("fixed = %q", fixed)
	}

	if len(captured.Messages) != 1 || !strings.Contains(captured.Messages[0].Content, "broken((chart") {
		t.Fatalf("repair prompt must embed the broken chart: %#v", captured.Messages)
	}
	if captured.Temperature != mermaidRepairTemperature {
		t.Errorf("temperature = %v", captured.Temperature)
	}
}

func TestMockSummarizer(t *testing.T) {
	s := NewMockSummarizer()
	result, err := s.Summarize(context.Background(), "t", testTemplate(), Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.FileTitle == "" {
		t.Error("mock must produce a title")
	}
	if _, ok := result.Sections["summary"]; !ok {
		t.Error("mock must fill required sections")
	}
	if _, ok := result.Sections["answered_questions"]; ok {
		t.Error("mock must skip optional sections")
	}

	failing := NewMockSummarizer(WithMockSummarizeError(errors.New("boom")))
	if _, err := failing.Summarize(context.Background(), "t", testTemplate(), Options{}); !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("err = %v, want ErrSummarizationFailed", err)
	}
}
