package capture

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeviceUnavailable means the capture device could not be acquired.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrNoActiveSession means the operation requires a live recording session.
	ErrNoActiveSession = errors.New("no active recording session")
	// ErrSessionActive means a recording session is already in progress.
	ErrSessionActive = errors.New("a recording session is already active")
)

// Recording is the encoded byte buffer a device yields when capture stops.
// Duration is a hint, zero when the device cannot measure it.
type Recording struct {
	Data      []byte
	Extension string
	MimeType  string
	Duration  time.Duration
}

// Device abstracts the platform recording device. Implementations own the
// underlying handle and must release it on Stop and Discard, error paths
// included.
type Device interface {
	Start(ctx context.Context, deviceID string) error
	Pause() error
	Resume() error
	Stop() (Recording, error)
	Discard()
}
