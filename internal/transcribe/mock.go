package transcribe

import (
	"context"
	"fmt"

	"github.com/scribelabs/scribe-core/internal/audio"
)

type mockTranscriber struct {
	texts []string
	err   error
	calls int
}

type MockTranscriberOption func(*mockTranscriber)

// WithMockTexts sets the per-chunk texts the mock returns, cycling when
// chunks outnumber texts.
func WithMockTexts(texts ...string) MockTranscriberOption {
	return func(m *mockTranscriber) { m.texts = texts }
}

// WithMockTranscribeError makes every call fail.
func WithMockTranscribeError(err error) MockTranscriberOption {
	return func(m *mockTranscriber) { m.err = err }
}

func NewMockTranscriber(opts ...MockTranscriberOption) Transcriber {
	m := &mockTranscriber{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *mockTranscriber) SupportsSpeakerLabels() bool { return false }
func (m *mockTranscriber) SupportsLanguageHint() bool  { return false }

func (m *mockTranscriber) Transcribe(ctx context.Context, chunks []audio.Chunk, _ Options) (Transcript, error) {
	parts, err := transcribeSequential(ctx, chunks, func(_ context.Context, chunk audio.Chunk) (string, error) {
		if m.err != nil {
			return "", m.err
		}
		m.calls++
		if len(m.texts) > 0 {
			return m.texts[chunk.Index%len(m.texts)], nil
		}
		return fmt.Sprintf("[mock transcript chunk=%d bytes=%d]", chunk.Index, len(chunk.Data)), nil
	})
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Text: stitch(parts)}, nil
}
