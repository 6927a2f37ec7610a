package summarize

import (
	"context"
	"fmt"

	"github.com/scribelabs/scribe-core/internal/template"
)

type mockSummarizer struct {
	result     *Result
	mermaidFix string
	err        error
}

type MockSummarizerOption func(*mockSummarizer)

// WithMockResult pins the result the mock returns.
func WithMockResult(result Result) MockSummarizerOption {
	return func(m *mockSummarizer) { m.result = &result }
}

// WithMockMermaidFix pins the chart FixMermaidChart returns.
func WithMockMermaidFix(chart string) MockSummarizerOption {
	return func(m *mockSummarizer) { m.mermaidFix = chart }
}

// WithMockSummarizeError makes every call fail.
func WithMockSummarizeError(err error) MockSummarizerOption {
	return func(m *mockSummarizer) { m.err = err }
}

func NewMockSummarizer(opts ...MockSummarizerOption) Summarizer {
	m := &mockSummarizer{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Summarize fills every required section with a placeholder derived from the
// template and skips optional ones, unless a fixed result was configured.
func (m *mockSummarizer) Summarize(_ context.Context, _ string, tpl template.Template, _ Options) (Result, error) {
	if m.err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSummarizationFailed, m.err)
	}
	if m.result != nil {
		return *m.result, nil
	}

	result := Result{
		FileTitle: "Mock Note Title",
		Sections:  make(map[string]string, len(tpl.Sections)),
	}
	for _, section := range tpl.Sections {
		if section.Optional {
			continue
		}
		result.Sections[section.Key()] = fmt.Sprintf("[mock %s]", section.Key())
	}
	return result, nil
}

// FixMermaidChart returns the pinned fix, or the input unchanged.
func (m *mockSummarizer) FixMermaidChart(_ context.Context, chart string) (string, error) {
	if m.err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, m.err)
	}
	if m.mermaidFix != "" {
		return m.mermaidFix, nil
	}
	return chart, nil
}
