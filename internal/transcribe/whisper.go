package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
)

// whisperTranscriber talks to an OpenAI-compatible /audio/transcriptions
// endpoint, one multipart upload per chunk. Whisper does not attribute
// speakers, so MultiSpeaker requests fall back to plain text.
type whisperTranscriber struct {
	cfg    config.TranscriptionConfig
	client *http.Client
}

func NewWhisperTranscriber(cfg config.TranscriptionConfig) Transcriber {
	return &whisperTranscriber{cfg: cfg, client: http.DefaultClient}
}

func (t *whisperTranscriber) SupportsSpeakerLabels() bool { return false }
func (t *whisperTranscriber) SupportsLanguageHint() bool  { return true }

type whisperResponse struct {
	Text string `json:"text"`
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, chunks []audio.Chunk, opts Options) (Transcript, error) {
	parts, err := transcribeSequential(ctx, chunks, func(ctx context.Context, chunk audio.Chunk) (string, error) {
		return t.transcribeChunk(ctx, chunk, opts)
	})
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Text: stitch(parts)}, nil
}

func (t *whisperTranscriber) transcribeChunk(ctx context.Context, chunk audio.Chunk, opts Options) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", t.cfg.Model); err != nil {
		return "", err
	}
	if opts.Language != "" && opts.Language != LanguageAuto {
		if err := writer.WriteField("language", opts.Language); err != nil {
			return "", err
		}
	}
	part, err := writer.CreateFormFile("file", fmt.Sprintf("chunk-%d.audio", chunk.Index))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(chunk.Data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := strings.TrimRight(t.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call transcription endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var decoded whisperResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return decoded.Text, nil
}
