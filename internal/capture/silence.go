package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mattn/go-shellwords"

	"github.com/scribelabs/scribe-core/internal/config"
)

// SilenceTrimmer cuts silent stretches out of a finished recording by running
// it through ffmpeg's silenceremove filter. Shorter audio is cheaper to
// transcribe and easier to re-listen to.
type SilenceTrimmer struct {
	cfg config.CaptureConfig
	log *slog.Logger
}

func NewSilenceTrimmer(cfg config.CaptureConfig, logger *slog.Logger) *SilenceTrimmer {
	return &SilenceTrimmer{
		cfg: cfg,
		log: logger.With(slog.String("component", "silence-trimmer")),
	}
}

// Trim returns the trimmed audio, or the input unchanged when trimming is
// disabled or ffmpeg fails. Trimming is an optimization; a broken ffmpeg
// install must never lose a recording.
func (t *SilenceTrimmer) Trim(ctx context.Context, data []byte, ext string) []byte {
	if !t.cfg.TrimSilence || len(data) == 0 {
		return data
	}

	trimmed, err := t.run(ctx, data, ext)
	if err != nil {
		t.log.Warn("silence trimming failed, keeping original audio", slog.String("error", err.Error()))
		return data
	}
	if len(trimmed) == 0 {
		t.log.Warn("silence trimming produced no output, keeping original audio")
		return data
	}
	t.log.Info("silence trimmed",
		slog.Int("bytes_before", len(data)),
		slog.Int("bytes_after", len(trimmed)))
	return trimmed
}

func (t *SilenceTrimmer) run(ctx context.Context, data []byte, ext string) ([]byte, error) {
	parser := shellwords.NewParser()
	cmd, err := parser.Parse(t.cfg.FFmpegCommand)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("ffmpeg command is empty")
	}

	dir, err := os.MkdirTemp("", "scribe-trim-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "output"+ext)
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	args := append(cmd[1:], "-y", "-i", in, "-af", t.cfg.SilenceFilter, out)
	command := exec.CommandContext(ctx, cmd[0], args...)
	if output, err := command.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("run ffmpeg: %w: %s", err, output)
	}

	return os.ReadFile(out)
}
