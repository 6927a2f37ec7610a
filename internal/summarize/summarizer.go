package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/template"
)

// ErrSummarizationFailed wraps provider failures, including a provider
// returning output that violates the extraction schema.
var ErrSummarizationFailed = errors.New("summarization failed")

// Options tunes one summarization call.
type Options struct {
	OutputLanguage string
}

// Result is the structured output of one summarization call. Sections maps
// section keys to extracted values; optional sections the provider skipped
// are absent from the map, never present as empty strings.
type Result struct {
	FileTitle string
	Sections  map[string]string
}

// Summarizer abstracts structured-output summarization vendors.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, tpl template.Template, opts Options) (Result, error)
}

// MermaidFixer is implemented by providers that can repair a mermaid chart
// that fails to render.
type MermaidFixer interface {
	FixMermaidChart(ctx context.Context, chart string) (string, error)
}

// New builds the configured provider.
func New(cfg config.SummarizationConfig) (Summarizer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAISummarizer(cfg), nil
	case "gemini":
		return NewGeminiSummarizer(cfg), nil
	case "ollama":
		return NewOllamaSummarizer(cfg), nil
	case "mock":
		return NewMockSummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider %q", cfg.Provider)
	}
}

const systemPreamble = `You are a note-writing assistant turning a spoken transcript into a structured note.
The transcript comes from someone thinking aloud or from a conversation, so it may wander.
The speaker may address you directly and ask you a question; answer it where the template asks for answers.

Write every section in Markdown, and make it:
- Easy to understand
- Succinct
- Clean
- Logical

Rules:
- Do not include escaped newline characters.
- Do not mention "the speaker" anywhere in your response.
- Write the notes as if the author had written them.`

// systemPrompt assembles the fixed preamble plus the optional output
// language instruction.
func systemPrompt(opts Options) string {
	prompt := systemPreamble
	if opts.OutputLanguage != "" {
		prompt += fmt.Sprintf("\n\nRespond entirely in %s.", opts.OutputLanguage)
	}
	return prompt
}

// userContent wraps the transcript for the provider call.
func userContent(transcript string) string {
	return "The following is the transcribed audio:\n<transcript>\n" + strings.TrimSpace(transcript) + "\n</transcript>"
}

const (
	mermaidChartKey          = "mermaidChart"
	mermaidRepairTemperature = 0.3
)

func mermaidRepairPrompt(chart string) string {
	return `You are an expert in mermaid mindmaps.
Below is a <broken-mermaid-mindmap> that is not rendering correctly.
There may be stray newline characters, tab characters, or special characters.
Strip them out and return only a fully valid unicode mermaid mindmap.
Remove any special characters in the node text that are not valid.

<broken-mermaid-mindmap>
` + strings.TrimSpace(chart) + `
</broken-mermaid-mindmap>`
}
