package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transcription.MaxChunkBytes != 25*1024*1024 {
		t.Fatalf("expected default chunk ceiling, got %d", cfg.Transcription.MaxChunkBytes)
	}
	if cfg.Templates.Active != "scribe" {
		t.Fatalf("expected built-in template active by default, got %q", cfg.Templates.Active)
	}
	if !cfg.Notes.KeepRecordings {
		t.Fatal("expected recordings retained by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCRIBE_TRANSCRIPTION_PROVIDER", "whisper")
	t.Setenv("SCRIBE_TRANSCRIPTION_API_KEY", "sk-test")
	t.Setenv("SCRIBE_TRANSCRIPTION_MAX_CHUNK_BYTES", "1048576")
	t.Setenv("SCRIBE_TRANSCRIPTION_MULTI_SPEAKER", "true")
	t.Setenv("SCRIBE_SUMMARIZATION_PROVIDER", "ollama")
	t.Setenv("SCRIBE_SUMMARIZATION_MODEL", "llama3.2:latest")
	t.Setenv("SCRIBE_SUMMARIZATION_TEMPERATURE", "0.2")
	t.Setenv("SCRIBE_NOTES_VAULT_DIRECTORY", "/tmp/vault")
	t.Setenv("SCRIBE_NOTES_KEEP_RECORDINGS", "false")
	t.Setenv("SCRIBE_RUN_STORE_RETENTION_MODE", "persistent")
	t.Setenv("SCRIBE_RUN_STORE_MAX_RUNS", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Transcription.Provider != "whisper" || cfg.Transcription.APIKey != "sk-test" {
		t.Fatalf("expected transcription overrides, got %+v", cfg.Transcription)
	}
	if cfg.Transcription.MaxChunkBytes != 1048576 {
		t.Fatalf("expected chunk ceiling override, got %d", cfg.Transcription.MaxChunkBytes)
	}
	if !cfg.Transcription.MultiSpeaker {
		t.Fatal("expected multi speaker override true")
	}
	if cfg.Summarization.Provider != "ollama" || cfg.Summarization.Model != "llama3.2:latest" {
		t.Fatalf("expected summarization overrides, got %+v", cfg.Summarization)
	}
	if cfg.Summarization.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %f", cfg.Summarization.Temperature)
	}
	if cfg.Notes.VaultDirectory != "/tmp/vault" {
		t.Fatalf("expected vault directory override")
	}
	if cfg.Notes.KeepRecordings {
		t.Fatal("expected keep recordings override false")
	}
	if cfg.RunStore.RetentionMode != "persistent" || cfg.RunStore.MaxRuns != 42 {
		t.Fatalf("expected run store overrides, got %+v", cfg.RunStore)
	}
}

func TestValidateRejectsMissingAPIKey(t *testing.T) {
	t.Setenv("SCRIBE_TRANSCRIPTION_PROVIDER", "assembly")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for assembly provider without api key")
	}
}

func TestValidateRejectsBadChunkCeiling(t *testing.T) {
	t.Setenv("SCRIBE_TRANSCRIPTION_MAX_CHUNK_BYTES", "0")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for zero chunk ceiling")
	}
}

func TestValidateRejectsGeminiWithoutAPIKey(t *testing.T) {
	t.Setenv("SCRIBE_SUMMARIZATION_PROVIDER", "gemini")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for gemini provider without api key")
	}
}

func TestTrimSilenceDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.TrimSilence {
		t.Fatal("expected silence trimming off by default")
	}
	if cfg.Capture.FFmpegCommand != "ffmpeg" {
		t.Fatalf("expected default ffmpeg command, got %q", cfg.Capture.FFmpegCommand)
	}
	if cfg.Capture.SilenceFilter == "" {
		t.Fatal("expected a default silence filter")
	}
}
