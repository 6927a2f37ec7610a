package capture

import (
	"context"
	"sync"
)

// mockDevice yields a caller-seeded byte buffer. Used in tests and as the
// default capture mode when no recorder command is configured.
type mockDevice struct {
	mu      sync.Mutex
	active  bool
	paused  bool
	data    []byte
	failure error
}

type MockOption func(*mockDevice)

// WithMockData seeds the bytes the device yields on Stop.
func WithMockData(data []byte) MockOption {
	return func(d *mockDevice) { d.data = append([]byte(nil), data...) }
}

// WithMockFailure makes Start fail, simulating a denied or missing device.
func WithMockFailure(err error) MockOption {
	return func(d *mockDevice) { d.failure = err }
}

func NewMockDevice(opts ...MockOption) Device {
	d := &mockDevice{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *mockDevice) Start(_ context.Context, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failure != nil {
		return d.failure
	}
	if d.active {
		return ErrSessionActive
	}
	d.active = true
	d.paused = false
	return nil
}

func (d *mockDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return ErrNoActiveSession
	}
	d.paused = true
	return nil
}

func (d *mockDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return ErrNoActiveSession
	}
	d.paused = false
	return nil
}

func (d *mockDevice) Stop() (Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return Recording{}, ErrNoActiveSession
	}
	d.active = false
	return Recording{
		Data:      append([]byte(nil), d.data...),
		Extension: ".webm",
		MimeType:  "audio/webm",
	}, nil
}

func (d *mockDevice) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
	d.paused = false
}
