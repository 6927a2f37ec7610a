package protocol

import "time"

// SessionCommand asks the daemon to change the recording session state.
type SessionCommand struct {
	DeviceID       string `json:"device_id,omitempty"`
	Template       string `json:"template,omitempty"`
	Language       string `json:"language,omitempty"`
	MultiSpeaker   bool   `json:"multi_speaker,omitempty"`
	OnlyTranscribe bool   `json:"only_transcribe,omitempty"`
	AppendToNote   string `json:"append_to_note,omitempty"`
}

// FileCommand asks the daemon to scribe an existing audio file in the vault.
type FileCommand struct {
	Path           string `json:"path"`
	Template       string `json:"template,omitempty"`
	Language       string `json:"language,omitempty"`
	MultiSpeaker   bool   `json:"multi_speaker,omitempty"`
	OnlyTranscribe bool   `json:"only_transcribe,omitempty"`
}

// SessionState is broadcast whenever the recording session changes state.
type SessionState struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStage reports progress of one pipeline stage within a run.
type RunStage struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunDone reports a completed run and the note it produced.
type RunDone struct {
	SessionID string    `json:"session_id"`
	NotePath  string    `json:"note_path"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunFailed reports a run aborted by a stage failure. Content written to the
// note before the failing stage is retained, not rolled back.
type RunFailed struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	NotePath  string    `json:"note_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectRecordStart    = "scribe.cmd.record.start"
	SubjectRecordToggle   = "scribe.cmd.record.toggle"
	SubjectRecordStop     = "scribe.cmd.record.stop"
	SubjectRecordCancel   = "scribe.cmd.record.cancel"
	SubjectNoteFile       = "scribe.cmd.note.file"
	SubjectNoteFixMermaid = "scribe.cmd.note.fixmermaid"

	SubjectSessionState = "scribe.session.state"
	SubjectRunStage     = "scribe.run.stage"
	SubjectRunDone      = "scribe.run.done"
	SubjectRunFailed    = "scribe.run.failed"
)

// Pipeline stage names used in RunStage/RunFailed and the run journal.
const (
	StageCapture    = "capture"
	StageChunk      = "chunk"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
	StageAssemble   = "assemble"
)
