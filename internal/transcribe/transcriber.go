package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
)

// ErrTranscriptionFailed wraps provider failures. A failing chunk aborts the
// remaining chunks; there is no partial-transcript salvage.
var ErrTranscriptionFailed = errors.New("transcription failed")

// LanguageAuto disables language hinting.
const LanguageAuto = "auto"

// Options tunes one transcription call. Providers that do not support a
// field ignore it; callers must not assume both capabilities are available.
type Options struct {
	Language     string
	MultiSpeaker bool
}

// SpeakerSegment is one diarized utterance.
type SpeakerSegment struct {
	Speaker string
	Text    string
}

// Transcript is the ordered text for a whole recording. Segments is populated
// only when the provider returned speaker-attributed output.
type Transcript struct {
	Text     string
	Segments []SpeakerSegment
}

// Transcriber abstracts transcription vendors.
type Transcriber interface {
	// Transcribe submits chunks sequentially in order and returns the
	// stitched transcript.
	Transcribe(ctx context.Context, chunks []audio.Chunk, opts Options) (Transcript, error)
	SupportsSpeakerLabels() bool
	SupportsLanguageHint() bool
}

// New builds the configured provider.
func New(cfg config.TranscriptionConfig) (Transcriber, error) {
	switch cfg.Provider {
	case "whisper":
		return NewWhisperTranscriber(cfg), nil
	case "assembly":
		return NewAssemblyTranscriber(cfg), nil
	case "mock":
		return NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

// stitch joins per-chunk texts with a single separating space. Words spanning
// a chunk boundary are not deduplicated; this is a documented approximation.
func stitch(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

// transcribeSequential runs fn once per chunk, strictly in order, aborting on
// the first failure.
func transcribeSequential(ctx context.Context, chunks []audio.Chunk, fn func(context.Context, audio.Chunk) (string, error)) ([]string, error) {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := fn(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d/%d: %v", ErrTranscriptionFailed, chunk.Index+1, len(chunks), err)
		}
		parts = append(parts, text)
	}
	return parts, nil
}

// renderSegments formats diarized utterances the way they appear in a note.
func renderSegments(segments []SpeakerSegment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("**Speaker %s**: %s", s.Speaker, s.Text))
	}
	return strings.Join(lines, "\n")
}
