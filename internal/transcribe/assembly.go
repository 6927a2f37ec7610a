package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
)

// assemblyTranscriber drives the AssemblyAI flow: upload the chunk bytes,
// create a transcript job, poll it to completion. Speaker labels are
// supported and rendered as one utterance per line.
type assemblyTranscriber struct {
	cfg          config.TranscriptionConfig
	client       *http.Client
	baseURL      string
	pollInterval time.Duration
}

func NewAssemblyTranscriber(cfg config.TranscriptionConfig) Transcriber {
	base := cfg.BaseURL
	if base == "" || strings.Contains(base, "openai.com") {
		base = "https://api.assemblyai.com/v2"
	}
	return &assemblyTranscriber{
		cfg:          cfg,
		client:       http.DefaultClient,
		baseURL:      strings.TrimRight(base, "/"),
		pollInterval: 3 * time.Second,
	}
}

func (t *assemblyTranscriber) SupportsSpeakerLabels() bool { return true }
func (t *assemblyTranscriber) SupportsLanguageHint() bool  { return true }

type assemblyUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyJobRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels,omitempty"`
	LanguageCode  string `json:"language_code,omitempty"`
	FormatText    bool   `json:"format_text"`
}

type assemblyJobResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Text       string `json:"text"`
	Error      string `json:"error"`
	Utterances []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"utterances"`
}

func (t *assemblyTranscriber) Transcribe(ctx context.Context, chunks []audio.Chunk, opts Options) (Transcript, error) {
	var segments []SpeakerSegment
	parts, err := transcribeSequential(ctx, chunks, func(ctx context.Context, chunk audio.Chunk) (string, error) {
		job, err := t.transcribeChunk(ctx, chunk, opts)
		if err != nil {
			return "", err
		}
		if opts.MultiSpeaker && len(job.Utterances) > 0 {
			chunkSegments := make([]SpeakerSegment, 0, len(job.Utterances))
			for _, u := range job.Utterances {
				chunkSegments = append(chunkSegments, SpeakerSegment{Speaker: u.Speaker, Text: u.Text})
			}
			segments = append(segments, chunkSegments...)
			return renderSegments(chunkSegments), nil
		}
		return job.Text, nil
	})
	if err != nil {
		return Transcript{}, err
	}

	transcript := Transcript{Text: stitch(parts)}
	if opts.MultiSpeaker && len(segments) > 0 {
		transcript.Segments = segments
		// Diarized rendering reads better line-per-utterance than stitched.
		rendered := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				rendered = append(rendered, p)
			}
		}
		transcript.Text = strings.Join(rendered, "\n")
	}
	return transcript, nil
}

func (t *assemblyTranscriber) transcribeChunk(ctx context.Context, chunk audio.Chunk, opts Options) (*assemblyJobResponse, error) {
	uploadURL, err := t.upload(ctx, chunk.Data)
	if err != nil {
		return nil, err
	}

	jobReq := assemblyJobRequest{
		AudioURL:      uploadURL,
		SpeakerLabels: opts.MultiSpeaker,
		FormatText:    true,
	}
	if opts.Language != "" && opts.Language != LanguageAuto {
		jobReq.LanguageCode = opts.Language
	}

	job, err := t.createJob(ctx, jobReq)
	if err != nil {
		return nil, err
	}
	return t.poll(ctx, job.ID)
}

func (t *assemblyTranscriber) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var decoded assemblyUploadResponse
	if err := t.do(req, &decoded); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if decoded.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return decoded.UploadURL, nil
}

func (t *assemblyTranscriber) createJob(ctx context.Context, jobReq assemblyJobRequest) (*assemblyJobResponse, error) {
	payload, err := json.Marshal(jobReq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var decoded assemblyJobResponse
	if err := t.do(req, &decoded); err != nil {
		return nil, fmt.Errorf("create transcript job: %w", err)
	}
	return &decoded, nil
}

func (t *assemblyTranscriber) poll(ctx context.Context, jobID string) (*assemblyJobResponse, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/transcript/"+jobID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", t.cfg.APIKey)

		var decoded assemblyJobResponse
		if err := t.do(req, &decoded); err != nil {
			return nil, fmt.Errorf("poll transcript job: %w", err)
		}

		switch decoded.Status {
		case "completed":
			return &decoded, nil
		case "error":
			return nil, fmt.Errorf("provider reported: %s", decoded.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}

func (t *assemblyTranscriber) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
