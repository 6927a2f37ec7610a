package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/protocol"
	"github.com/scribelabs/scribe-core/internal/summarize"
	"github.com/scribelabs/scribe-core/internal/template"
	"github.com/scribelabs/scribe-core/internal/transcribe"
	"github.com/scribelabs/scribe-core/internal/vault"
)

// ErrNoAudioData is returned when a run starts with an empty audio buffer.
var ErrNoAudioData = errors.New("no audio data")

// ErrNoMermaidChart is returned when a repair is requested for a note with no
// fenced mermaid block.
var ErrNoMermaidChart = errors.New("note contains no mermaid chart")

// ErrMermaidFixUnsupported is returned when the configured summarization
// provider cannot repair charts.
var ErrMermaidFixUnsupported = errors.New("summarization provider cannot repair mermaid charts")

// Source is the audio input of one run. ExistingPath is set when scribing a
// file already in the vault; such files are referenced in place and never
// deleted by cleanup.
type Source struct {
	Data         []byte
	Extension    string
	Duration     time.Duration
	ExistingPath string
}

// Options tunes one assembly run.
type Options struct {
	RunID          string
	Template       template.Template
	Language       string
	MultiSpeaker   bool
	OnlyTranscribe bool
	// AppendToNote is the vault path of an already-open note; when set the
	// run appends instead of creating, and skips the rename.
	AppendToNote   string
	OutputLanguage string
}

// Outcome describes what a finished run left in the vault.
type Outcome struct {
	NotePath      string
	RecordingPath string
	Transcript    string
	Title         string
	Appended      bool
}

// Hooks lets the caller observe stage boundaries. Nil funcs are skipped.
type Hooks struct {
	StageStarted   func(stage string)
	StageCompleted func(stage string)
}

func (h Hooks) started(stage string) {
	if h.StageStarted != nil {
		h.StageStarted(stage)
	}
}

func (h Hooks) completed(stage string) {
	if h.StageCompleted != nil {
		h.StageCompleted(stage)
	}
}

// Assembler drives the document half of a pipeline run: it owns the
// destination note, the in-progress markers, and the final rename.
type Assembler struct {
	vault       vault.Vault
	transcriber transcribe.Transcriber
	summarizer  summarize.Summarizer
	cfg         config.NotesConfig
	chunkBytes  int
	log         *slog.Logger
	now         func() time.Time
}

func NewAssembler(v vault.Vault, t transcribe.Transcriber, s summarize.Summarizer, cfg config.NotesConfig, chunkBytes int, logger *slog.Logger) *Assembler {
	return &Assembler{
		vault:       v,
		transcriber: t,
		summarizer:  s,
		cfg:         cfg,
		chunkBytes:  chunkBytes,
		log:         logger.With("component", "assembler"),
		now:         time.Now,
	}
}

// Run executes the incremental build protocol. On stage failure the document
// keeps everything written so far, including the marker of the failed stage,
// and cleanup still runs. The returned Outcome is valid even on error: it
// names the note that holds the partial progress.
func (a *Assembler) Run(ctx context.Context, src Source, opts Options, hooks Hooks) (Outcome, error) {
	outcome := Outcome{}

	if len(src.Data) == 0 {
		return outcome, ErrNoAudioData
	}

	hooks.started(protocol.StageChunk)
	chunks, err := audio.Split(src.Data, a.chunkBytes, src.Duration)
	if err != nil {
		return outcome, fmt.Errorf("chunk audio: %w", err)
	}
	if len(chunks) == 0 {
		return outcome, ErrNoAudioData
	}
	hooks.completed(protocol.StageChunk)

	recordingPath, throwaway, err := a.storeRecording(src, opts)
	if err != nil {
		return outcome, err
	}
	outcome.RecordingPath = recordingPath
	defer a.cleanup(recordingPath, throwaway)

	transcriptMarker := NewMarker(protocol.StageTranscribe)
	notePath, appended, err := a.resolveDestination(opts, recordingPath, transcriptMarker)
	if err != nil {
		return outcome, err
	}
	outcome.NotePath = notePath
	outcome.Appended = appended

	hooks.started(protocol.StageTranscribe)
	transcript, err := a.transcriber.Transcribe(ctx, chunks, transcribe.Options{
		Language:     opts.Language,
		MultiSpeaker: opts.MultiSpeaker,
	})
	if err != nil {
		return outcome, err
	}
	outcome.Transcript = transcript.Text

	summaryMarker := NewMarker(protocol.StageSummarize)
	transcriptBlock := a.transcriptBlock(transcript.Text, recordingPath)
	if !opts.OnlyTranscribe {
		transcriptBlock += "\n\n" + summaryMarker.Token()
	}
	if err := a.vault.ProcessText(notePath, func(content string) string {
		return transcriptMarker.Replace(content, transcriptBlock)
	}); err != nil {
		return outcome, err
	}
	hooks.completed(protocol.StageTranscribe)

	// Transcript-only is a terminal success state, not a partial failure.
	if opts.OnlyTranscribe {
		return outcome, nil
	}

	hooks.started(protocol.StageSummarize)
	result, err := a.summarizer.Summarize(ctx, transcript.Text, opts.Template, summarize.Options{
		OutputLanguage: opts.OutputLanguage,
	})
	if err != nil {
		return outcome, err
	}
	hooks.completed(protocol.StageSummarize)

	hooks.started(protocol.StageAssemble)
	rendered := RenderSections(opts.Template, result.Sections)
	if err := a.vault.ProcessText(notePath, func(content string) string {
		return summaryMarker.Replace(content, rendered)
	}); err != nil {
		return outcome, err
	}
	outcome.Title = result.FileTitle

	if !appended && result.FileTitle != "" {
		renamed, err := a.rename(notePath, result.FileTitle)
		if err != nil {
			return outcome, err
		}
		outcome.NotePath = renamed
	}
	hooks.completed(protocol.StageAssemble)

	return outcome, nil
}

// RepairMermaid rewrites the first mermaid chart of an existing note through
// the provider's repair pass. The note is only touched after the provider
// returns a replacement.
func (a *Assembler) RepairMermaid(ctx context.Context, notePath string) error {
	fixer, ok := a.summarizer.(summarize.MermaidFixer)
	if !ok {
		return ErrMermaidFixUnsupported
	}

	content, err := a.vault.ReadText(notePath)
	if err != nil {
		return err
	}
	if _, found := ReplaceMermaidChart(content, ""); !found {
		return fmt.Errorf("%w: %s", ErrNoMermaidChart, notePath)
	}

	fixed, err := fixer.FixMermaidChart(ctx, ExtractMermaidChart(content))
	if err != nil {
		return err
	}

	if err := a.vault.ProcessText(notePath, func(current string) string {
		replaced, _ := ReplaceMermaidChart(current, fixed)
		return replaced
	}); err != nil {
		return err
	}
	a.log.Info("mermaid chart repaired", "path", notePath)
	return nil
}

// storeRecording writes the audio into the vault's recording directory. A
// source that already lives in the vault is referenced in place.
func (a *Assembler) storeRecording(src Source, opts Options) (path string, throwaway bool, err error) {
	if src.ExistingPath != "" {
		return src.ExistingPath, false, nil
	}

	prefix := ExpandPrefix(a.cfg.RecordingPrefix, a.cfg.DateFormat, a.now())
	base := prefix + shortID(opts.RunID)
	ext := src.Extension
	if ext == "" {
		ext = ".wav"
	}
	path, err = UniquePath(a.vault, a.cfg.RecordingDirectory, base, ext)
	if err != nil {
		return "", false, err
	}
	if err := a.vault.CreateBinary(path, src.Data); err != nil {
		return "", false, err
	}
	return path, !a.cfg.KeepRecordings, nil
}

// resolveDestination picks or creates the note and seeds it with the audio
// reference and the transcript marker. Append mode falls back to create-new
// when no open note was named or the named note is gone.
func (a *Assembler) resolveDestination(opts Options, recordingPath string, marker Marker) (path string, appended bool, err error) {
	seed := a.seedBlock(recordingPath, marker)

	if opts.AppendToNote != "" {
		exists, err := a.vault.Exists(opts.AppendToNote)
		if err != nil {
			return "", false, err
		}
		if exists {
			err := a.vault.ProcessText(opts.AppendToNote, func(content string) string {
				if content != "" && !strings.HasSuffix(content, "\n") {
					content += "\n"
				}
				return content + "\n" + seed + "\n"
			})
			if err != nil {
				return "", false, err
			}
			return opts.AppendToNote, true, nil
		}
		a.log.Warn("append target missing, creating a new note", "path", opts.AppendToNote)
	}

	prefix := ExpandPrefix(a.cfg.NotePrefix, a.cfg.DateFormat, a.now())
	path, err = UniquePath(a.vault, a.cfg.NoteDirectory, prefix+shortID(opts.RunID), ".md")
	if err != nil {
		return "", false, err
	}
	if err := a.vault.CreateText(path, seed+"\n"); err != nil {
		return "", false, err
	}
	if err := a.vault.ProcessFrontmatter(path, func(fm map[string]any) {
		fm["created"] = a.now().Format(time.RFC3339)
		if a.cfg.KeepRecordings {
			fm["recording"] = recordingPath
		}
	}); err != nil {
		return "", false, err
	}
	return path, false, nil
}

func (a *Assembler) seedBlock(recordingPath string, marker Marker) string {
	var b strings.Builder
	if a.cfg.KeepRecordings {
		b.WriteString(audioReference(recordingPath))
		b.WriteString("\n\n")
	}
	b.WriteString(marker.Token())
	return b.String()
}

// transcriptBlock renders the final transcript section, re-embedding the
// audio reference when recordings are retained.
func (a *Assembler) transcriptBlock(text, recordingPath string) string {
	var b strings.Builder
	b.WriteString("## Transcript\n")
	if a.cfg.KeepRecordings {
		b.WriteString(audioReference(recordingPath))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

func (a *Assembler) rename(notePath, title string) (string, error) {
	sanitized := SanitizeTitle(title)
	if sanitized == "" {
		return notePath, nil
	}
	prefix := ExpandPrefix(a.cfg.NotePrefix, a.cfg.DateFormat, a.now())
	target, err := UniquePath(a.vault, a.cfg.NoteDirectory, prefix+sanitized, ".md")
	if err != nil {
		return "", err
	}
	if target == notePath {
		return notePath, nil
	}
	if err := a.vault.Rename(notePath, target); err != nil {
		return "", err
	}
	return target, nil
}

// cleanup always runs, success or failure. Throwaway recordings are removed;
// retained or pre-existing ones stay.
func (a *Assembler) cleanup(recordingPath string, throwaway bool) {
	if !throwaway || recordingPath == "" {
		return
	}
	if err := a.vault.Delete(recordingPath); err != nil {
		a.log.Warn("failed to delete throwaway recording", "path", recordingPath, "error", err)
	}
}

// RenderSections renders the summary blocks in template order: an h2 header
// per section, the value wrapped in the section's prefix/postfix, optional
// sections with no value skipped entirely.
func RenderSections(tpl template.Template, sections map[string]string) string {
	blocks := make([]string, 0, len(tpl.Sections))
	for _, section := range tpl.Sections {
		value, ok := sections[section.Key()]
		if !ok {
			continue
		}
		if section.Prefix != "" || section.Postfix != "" {
			value = ExtractMermaidChart(value)
		}
		var b strings.Builder
		b.WriteString("## ")
		b.WriteString(section.Header)
		b.WriteString("\n")
		b.WriteString(section.Prefix)
		b.WriteString(value)
		b.WriteString(section.Postfix)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func audioReference(path string) string {
	return fmt.Sprintf("![[%s]]", path)
}

func shortID(id string) string {
	cleaned := strings.ReplaceAll(id, "-", "")
	if len(cleaned) > 8 {
		cleaned = cleaned[:8]
	}
	return cleaned
}
