package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the recording session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// Session is one recording session from start to stop or cancel.
type Session struct {
	ID        string
	State     State
	StartedAt time.Time
	device    Device
}

// Manager enforces the one-active-session invariant and drives the session
// state machine. A second Start while a session is live is rejected rather
// than superseding it, so device handles are never orphaned.
type Manager struct {
	newDevice func() (Device, error)
	log       *slog.Logger
	clock     func() time.Time

	mu      sync.Mutex
	session *Session
}

func NewManager(newDevice func() (Device, error), log *slog.Logger) *Manager {
	return &Manager{
		newDevice: newDevice,
		log:       log.With(slog.String("component", "capture")),
		clock:     time.Now,
	}
}

// Start acquires the capture device and moves Idle -> Recording. On device
// failure no session is retained and the manager stays Idle.
func (m *Manager) Start(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && (m.session.State == StateRecording || m.session.State == StatePaused) {
		return nil, ErrSessionActive
	}

	device, err := m.newDevice()
	if err != nil {
		return nil, fmt.Errorf("create capture device: %w", err)
	}
	if err := device.Start(ctx, deviceID); err != nil {
		device.Discard()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	session := &Session{
		ID:        uuid.NewString(),
		State:     StateRecording,
		StartedAt: m.clock(),
		device:    device,
	}
	m.session = session
	m.log.Info("recording started", slog.String("session_id", session.ID))
	return session, nil
}

// Pause moves Recording -> Paused. Calling it from any other state is a
// logged no-op, never an error.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.session.State != StateRecording {
		m.log.Debug("pause ignored outside recording state")
		return
	}
	if err := m.session.device.Pause(); err != nil {
		m.log.Warn("pause device failed", slog.String("error", err.Error()))
		return
	}
	m.session.State = StatePaused
	m.log.Info("recording paused", slog.String("session_id", m.session.ID))
}

// Resume moves Paused -> Recording, a logged no-op elsewhere.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.session.State != StatePaused {
		m.log.Debug("resume ignored outside paused state")
		return
	}
	if err := m.session.device.Resume(); err != nil {
		m.log.Warn("resume device failed", slog.String("error", err.Error()))
		return
	}
	m.session.State = StateRecording
	m.log.Info("recording resumed", slog.String("session_id", m.session.ID))
}

// Toggle pauses a recording session and resumes a paused one.
func (m *Manager) Toggle() {
	m.mu.Lock()
	state := StateIdle
	if m.session != nil {
		state = m.session.State
	}
	m.mu.Unlock()

	switch state {
	case StateRecording:
		m.Pause()
	case StatePaused:
		m.Resume()
	default:
		m.log.Debug("toggle ignored with no live session")
	}
}

// Stop flushes buffered audio, releases the device, and yields the final
// recording. Stopping with no live session returns ErrNoActiveSession.
func (m *Manager) Stop() (*Session, Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || (m.session.State != StateRecording && m.session.State != StatePaused) {
		return nil, Recording{}, ErrNoActiveSession
	}

	session := m.session
	recording, err := session.device.Stop()
	if err != nil {
		// The device contract releases handles even on a failed stop.
		session.device.Discard()
		session.State = StateStopped
		m.session = nil
		return nil, Recording{}, fmt.Errorf("stop capture device: %w", err)
	}

	session.State = StateStopped
	session.device = nil
	m.session = nil
	m.log.Info("recording stopped",
		slog.String("session_id", session.ID),
		slog.Int("bytes", len(recording.Data)))
	return session, recording, nil
}

// Cancel stops the device and discards the buffer, returning to Idle. It is
// distinguishable from Stop by the disposal of output.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || (m.session.State != StateRecording && m.session.State != StatePaused) {
		m.log.Debug("cancel ignored with no live session")
		return
	}
	m.session.device.Discard()
	m.log.Info("recording cancelled", slog.String("session_id", m.session.ID))
	m.session = nil
}

// Current reports the live session state, StateIdle when none.
func (m *Manager) Current() (string, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", StateIdle
	}
	return m.session.ID, m.session.State
}
