package capture

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
)

func TestTrimDisabledReturnsInputUnchanged(t *testing.T) {
	trimmer := NewSilenceTrimmer(config.CaptureConfig{TrimSilence: false}, newLogger())

	in := []byte("untouched audio")
	if got := trimmer.Trim(context.Background(), in, ".webm"); !bytes.Equal(got, in) {
		t.Errorf("Trim = %q, want input unchanged", got)
	}
}

func TestTrimRunsConfiguredCommand(t *testing.T) {
	// Stand-in for ffmpeg: reads the -i argument, writes the output path.
	// Argument positions follow the real invocation: -y -i IN -af FILTER OUT.
	script := filepath.Join(t.TempDir(), "fake-ffmpeg")
	body := "#!/bin/sh\ntr 'a-z' 'A-Z' < \"$3\" > \"$6\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	trimmer := NewSilenceTrimmer(config.CaptureConfig{
		TrimSilence:   true,
		FFmpegCommand: script,
		SilenceFilter: "silenceremove=stop_periods=-1",
	}, newLogger())

	got := trimmer.Trim(context.Background(), []byte("quiet audio"), ".webm")
	if string(got) != "QUIET AUDIO" {
		t.Errorf("Trim = %q, want processed output", got)
	}
}

func TestTrimFallsBackWhenCommandMissing(t *testing.T) {
	trimmer := NewSilenceTrimmer(config.CaptureConfig{
		TrimSilence:   true,
		FFmpegCommand: "/nonexistent/ffmpeg",
		SilenceFilter: "silenceremove=stop_periods=-1",
	}, newLogger())

	in := []byte("keep me")
	if got := trimmer.Trim(context.Background(), in, ".webm"); !bytes.Equal(got, in) {
		t.Errorf("Trim = %q, want original audio on failure", got)
	}
}

func TestTrimFallsBackOnEmptyOutput(t *testing.T) {
	// A command that exits zero without writing the output file.
	trimmer := NewSilenceTrimmer(config.CaptureConfig{
		TrimSilence:   true,
		FFmpegCommand: "/bin/true",
		SilenceFilter: "silenceremove=stop_periods=-1",
	}, newLogger())

	in := []byte("keep me")
	if got := trimmer.Trim(context.Background(), in, ".webm"); !bytes.Equal(got, in) {
		t.Errorf("Trim = %q, want original audio when nothing was produced", got)
	}
}
