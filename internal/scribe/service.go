// Package scribe is the orchestration service: it turns bus commands into
// capture session transitions and pipeline runs, and reports progress back
// onto the bus and into the run journal.
package scribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/capture"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/note"
	"github.com/scribelabs/scribe-core/internal/protocol"
	"github.com/scribelabs/scribe-core/internal/runstore"
	"github.com/scribelabs/scribe-core/internal/template"
	"github.com/scribelabs/scribe-core/internal/vault"
)

// ErrUnsupportedFileType rejects a file command before any work begins.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// supportedExtensions are the audio container formats the transcription
// vendors accept.
var supportedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".webm": true,
	".flac": true,
	".aac":  true,
}

type Service struct {
	cfg       config.Config
	bus       *bus.Client
	sessions  *capture.Manager
	trimmer   *capture.SilenceTrimmer
	assembler *note.Assembler
	vault     vault.Vault
	templates *template.Store
	runs      *runstore.Store
	logger    *slog.Logger

	tracer      trace.Tracer
	runCounter  metric.Int64Counter
	failCounter metric.Int64Counter
	runDuration metric.Float64Histogram

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	subs   []*nats.Subscription
	subMu  sync.Mutex
}

func NewService(parent context.Context, cfg config.Config, busClient *bus.Client, sessions *capture.Manager, assembler *note.Assembler, v vault.Vault, templates *template.Store, runs *runstore.Store, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	meter := otel.Meter("scribe")
	runCounter, _ := meter.Int64Counter("scribe_runs_total",
		metric.WithDescription("Pipeline runs started"))
	failCounter, _ := meter.Int64Counter("scribe_run_failures_total",
		metric.WithDescription("Pipeline runs aborted by a stage failure"))
	runDuration, _ := meter.Float64Histogram("scribe_run_duration_seconds",
		metric.WithDescription("Wall time of a pipeline run from dispatch to outcome"),
		metric.WithUnit("s"))
	return &Service{
		cfg:         cfg,
		bus:         busClient,
		sessions:    sessions,
		trimmer:     capture.NewSilenceTrimmer(cfg.Capture, logger),
		assembler:   assembler,
		vault:       v,
		templates:   templates,
		runs:        runs,
		logger:      logger.With(slog.String("component", "scribe")),
		tracer:      otel.Tracer("scribe"),
		runCounter:  runCounter,
		failCounter: failCounter,
		runDuration: runDuration,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Service) Start() error {
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectRecordStart:    s.handleStart,
		protocol.SubjectRecordToggle:   s.handleToggle,
		protocol.SubjectRecordStop:     s.handleStop,
		protocol.SubjectRecordCancel:   s.handleCancel,
		protocol.SubjectNoteFile:       s.handleFile,
		protocol.SubjectNoteFixMermaid: s.handleFixMermaid,
	}
	for subject, handler := range handlers {
		sub, err := s.bus.Conn().Subscribe(subject, handler)
		if err != nil {
			s.drainSubs()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subMu.Lock()
		s.subs = append(s.subs, sub)
		s.subMu.Unlock()
	}
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.drainSubs()
	s.wg.Wait()
}

func (s *Service) drainSubs() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.subs = nil
}

func (s *Service) Healthy() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs) > 0
}

// decodeSessionCommand tolerates a bare publish with no payload: an empty
// body is the zero-value command, not a decode error.
func decodeSessionCommand(data []byte) (protocol.SessionCommand, error) {
	var cmd protocol.SessionCommand
	if len(bytes.TrimSpace(data)) == 0 {
		return cmd, nil
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}

func (s *Service) handleStart(msg *nats.Msg) {
	cmd, err := decodeSessionCommand(msg.Data)
	if err != nil {
		s.logger.Warn("failed to decode start command", slog.String("error", err.Error()))
		return
	}

	deviceID := cmd.DeviceID
	if deviceID == "" {
		deviceID = s.cfg.Capture.DeviceID
	}
	session, err := s.sessions.Start(s.ctx, deviceID)
	if err != nil {
		s.logger.Warn("start recording rejected", slog.String("error", err.Error()))
		return
	}
	s.publishState(session.ID, string(session.State), session.StartedAt)
}

func (s *Service) handleToggle(_ *nats.Msg) {
	s.sessions.Toggle()
	if id, state := s.sessions.Current(); id != "" {
		s.publishState(id, string(state), time.Time{})
	}
}

func (s *Service) handleCancel(_ *nats.Msg) {
	// Cancel aborts capture only; an already-dispatched run keeps going.
	id, _ := s.sessions.Current()
	s.sessions.Cancel()
	if id != "" {
		s.publishState(id, string(capture.StateIdle), time.Time{})
	}
}

func (s *Service) handleStop(msg *nats.Msg) {
	cmd, err := decodeSessionCommand(msg.Data)
	if err != nil {
		s.logger.Warn("failed to decode stop command", slog.String("error", err.Error()))
		return
	}

	session, recording, err := s.sessions.Stop()
	if err != nil {
		s.logger.Warn("stop recording rejected", slog.String("error", err.Error()))
		return
	}
	s.publishState(session.ID, string(capture.StateStopped), session.StartedAt)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		src := note.Source{
			Data:      recording.Data,
			Extension: recording.Extension,
			Duration:  recording.Duration,
		}
		if trimmed := s.trimmer.Trim(s.ctx, src.Data, src.Extension); len(trimmed) != len(src.Data) {
			// The captured duration no longer describes the trimmed audio.
			src.Data = trimmed
			src.Duration = 0
		}
		s.runPipeline(session.ID, "recording", src, cmd)
	}()
}

func (s *Service) handleFile(msg *nats.Msg) {
	var cmd protocol.FileCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("failed to decode file command", slog.String("error", err.Error()))
		return
	}

	sessionID := uuid.NewString()
	ext := strings.ToLower(path.Ext(cmd.Path))
	if !supportedExtensions[ext] {
		s.reportFailure(sessionID, protocol.StageCapture, "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext))
		return
	}

	data, err := s.vault.ReadBinary(cmd.Path)
	if err != nil {
		s.reportFailure(sessionID, protocol.StageCapture, "", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPipeline(sessionID, "file", note.Source{
			Data:         data,
			Extension:    ext,
			ExistingPath: cmd.Path,
		}, protocol.SessionCommand{
			Template:       cmd.Template,
			Language:       cmd.Language,
			MultiSpeaker:   cmd.MultiSpeaker,
			OnlyTranscribe: cmd.OnlyTranscribe,
		})
	}()
}

// handleFixMermaid repairs the mermaid chart of an existing note in place.
// It is a standalone operation, not a pipeline run, so it reports through the
// done/failed subjects with the note path as the subject of the work.
func (s *Service) handleFixMermaid(msg *nats.Msg) {
	var cmd protocol.FileCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("failed to decode fix-mermaid command", slog.String("error", err.Error()))
		return
	}
	sessionID := uuid.NewString()
	if cmd.Path == "" {
		s.reportFailure(sessionID, protocol.StageSummarize, "", errors.New("fix-mermaid command carried no note path"))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout())
		defer cancel()

		if err := s.assembler.RepairMermaid(ctx, cmd.Path); err != nil {
			s.reportFailure(sessionID, protocol.StageSummarize, cmd.Path, err)
			return
		}
		s.publish(protocol.SubjectRunDone, protocol.RunDone{
			SessionID: sessionID,
			NotePath:  cmd.Path,
			Timestamp: time.Now().UTC(),
		})
	}()
}

// runPipeline executes one run end to end. Every stage failure lands here
// exactly once: it is journaled, published, and counted, then cleanup has
// already happened inside the assembler.
func (s *Service) runPipeline(sessionID, source string, src note.Source, cmd protocol.SessionCommand) {
	ctx, cancelTimeout := context.WithTimeout(s.ctx, s.runTimeout())
	defer cancelTimeout()

	ctx, span := s.tracer.Start(ctx, "scribe.run",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("source", source),
		))
	defer span.End()

	s.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	begun := time.Now()
	status := "completed"
	defer func() {
		s.runDuration.Record(ctx, time.Since(begun).Seconds(), metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status)))
	}()

	if err := s.runs.BeginRun(ctx, sessionID, source); err != nil {
		s.logger.Warn("failed to journal run start", slog.String("error", err.Error()))
	}

	tpl, err := s.resolveTemplate(cmd.Template)
	if err != nil {
		status = "failed"
		s.reportFailure(sessionID, protocol.StageSummarize, "", err)
		return
	}

	currentStage := protocol.StageChunk
	hooks := note.Hooks{
		StageStarted: func(stage string) {
			currentStage = stage
			span.AddEvent("stage started", trace.WithAttributes(attribute.String("stage", stage)))
			s.publishStage(sessionID, stage, runstore.StatusStarted)
			s.journalStage(ctx, sessionID, stage, runstore.StatusStarted, "")
		},
		StageCompleted: func(stage string) {
			span.AddEvent("stage completed", trace.WithAttributes(attribute.String("stage", stage)))
			s.publishStage(sessionID, stage, runstore.StatusCompleted)
			s.journalStage(ctx, sessionID, stage, runstore.StatusCompleted, "")
		},
	}

	outcome, err := s.assembler.Run(ctx, src, note.Options{
		RunID:          sessionID,
		Template:       tpl,
		Language:       s.pickLanguage(cmd.Language),
		MultiSpeaker:   cmd.MultiSpeaker || s.cfg.Transcription.MultiSpeaker,
		OnlyTranscribe: cmd.OnlyTranscribe || s.cfg.Notes.OnlyTranscribe,
		AppendToNote:   cmd.AppendToNote,
		OutputLanguage: s.cfg.Summarization.OutputLanguage,
	}, hooks)
	if err != nil {
		status = "failed"
		s.journalStage(ctx, sessionID, currentStage, runstore.StatusFailed, err.Error())
		s.reportFailure(sessionID, currentStage, outcome.NotePath, err)
		if jerr := s.runs.FinishRun(ctx, sessionID, runstore.StatusFailed, outcome.NotePath); jerr != nil {
			s.logger.Warn("failed to journal run failure", slog.String("error", jerr.Error()))
		}
		return
	}

	if err := s.runs.FinishRun(ctx, sessionID, runstore.StatusCompleted, outcome.NotePath); err != nil {
		s.logger.Warn("failed to journal run completion", slog.String("error", err.Error()))
	}
	s.publishDone(sessionID, outcome)
	s.logger.Info("run completed",
		slog.String("session_id", sessionID),
		slog.String("note", outcome.NotePath),
		slog.Bool("appended", outcome.Appended))
}

// resolveTemplate falls back from the per-command choice to the configured
// default to the built-in.
func (s *Service) resolveTemplate(name string) (template.Template, error) {
	if name == "" {
		name = s.cfg.Templates.Active
	}
	if name == "" || name == template.BuiltinName {
		return template.Builtin(), nil
	}
	tpl, err := s.templates.Get(name)
	if err != nil {
		return template.Template{}, fmt.Errorf("resolve template %q: %w", name, err)
	}
	return tpl, nil
}

func (s *Service) pickLanguage(override string) string {
	if override != "" {
		return override
	}
	return s.cfg.Transcription.Language
}

func (s *Service) runTimeout() time.Duration {
	total := s.cfg.Transcription.TimeoutMS + s.cfg.Summarization.TimeoutMS
	if total <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(total) * time.Millisecond
}

func (s *Service) publishState(sessionID, state string, startedAt time.Time) {
	s.publish(protocol.SubjectSessionState, protocol.SessionState{
		SessionID: sessionID,
		State:     state,
		StartedAt: startedAt,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Service) publishStage(sessionID, stage, status string) {
	s.publish(protocol.SubjectRunStage, protocol.RunStage{
		SessionID: sessionID,
		Stage:     stage,
		Detail:    status,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Service) publishDone(sessionID string, outcome note.Outcome) {
	s.publish(protocol.SubjectRunDone, protocol.RunDone{
		SessionID: sessionID,
		NotePath:  outcome.NotePath,
		Title:     outcome.Title,
		Timestamp: time.Now().UTC(),
	})
}

// reportFailure is the single user-visible error path of a run.
func (s *Service) reportFailure(sessionID, stage, notePath string, err error) {
	s.failCounter.Add(s.ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	s.logger.Error("run failed",
		slog.String("session_id", sessionID),
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	s.publish(protocol.SubjectRunFailed, protocol.RunFailed{
		SessionID: sessionID,
		Stage:     stage,
		Error:     err.Error(),
		NotePath:  notePath,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Service) journalStage(ctx context.Context, sessionID, stage, status, detail string) {
	err := s.runs.AppendStage(ctx, runstore.StageEvent{
		SessionID: sessionID,
		Stage:     stage,
		Status:    status,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Warn("failed to journal stage event", slog.String("error", err.Error()))
	}
}

func (s *Service) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode event", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
