package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
)

// execDevice shells out to a recorder command (arecord, ffmpeg, sox) that
// writes encoded audio to stdout until it receives SIGINT. Pause and resume
// map to SIGSTOP/SIGCONT on the recorder process.
type execDevice struct {
	cmd []string
	cfg config.CaptureConfig

	mu      sync.Mutex
	proc    *exec.Cmd
	buf     *bytes.Buffer
	done    chan struct{}
	waitErr error
}

func NewExecDevice(cfg config.CaptureConfig) (Device, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &execDevice{cmd: args, cfg: cfg}, nil
}

func (d *execDevice) Start(ctx context.Context, deviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc != nil {
		return ErrSessionActive
	}

	args := append([]string{}, d.cmd...)
	base := args[0]
	cmdArgs := args[1:]
	if deviceID != "" {
		cmdArgs = append(cmdArgs, "--device", deviceID)
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	buf := &bytes.Buffer{}
	var stderr bytes.Buffer
	command.Stdout = buf
	command.Stderr = &stderr

	if err := command.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	done := make(chan struct{})
	d.proc = command
	d.buf = buf
	d.done = done

	go func() {
		err := command.Wait()
		d.mu.Lock()
		d.waitErr = err
		d.mu.Unlock()
		close(done)
	}()

	return nil
}

func (d *execDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil || d.proc.Process == nil {
		return ErrNoActiveSession
	}
	return d.proc.Process.Signal(syscall.SIGSTOP)
}

func (d *execDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil || d.proc.Process == nil {
		return ErrNoActiveSession
	}
	return d.proc.Process.Signal(syscall.SIGCONT)
}

func (d *execDevice) Stop() (Recording, error) {
	d.mu.Lock()
	proc := d.proc
	done := d.done
	d.mu.Unlock()

	if proc == nil || proc.Process == nil {
		return Recording{}, ErrNoActiveSession
	}

	// SIGCONT first in case the recorder is paused, then ask it to flush.
	_ = proc.Process.Signal(syscall.SIGCONT)
	_ = proc.Process.Signal(syscall.SIGINT)
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()

	data := append([]byte(nil), d.buf.Bytes()...)
	d.release()

	return d.finalize(data)
}

// finalize packages the captured bytes. Recorders configured to emit raw PCM
// get encoded into a WAV container here so everything downstream sees a
// playable file.
func (d *execDevice) finalize(data []byte) (Recording, error) {
	if !isRawPCM(d.cfg.Extension) {
		return Recording{
			Data:      data,
			Extension: d.cfg.Extension,
			MimeType:  d.cfg.MimeType,
		}, nil
	}

	sampleRate := d.cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := d.cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	encoded, err := pcmToWav(data, sampleRate, channels)
	if err != nil {
		return Recording{}, fmt.Errorf("encode pcm capture: %w", err)
	}
	seconds := audio.PCMDuration(data, sampleRate, channels)
	return Recording{
		Data:      encoded,
		Extension: ".wav",
		MimeType:  "audio/wav",
		Duration:  time.Duration(seconds * float64(time.Second)),
	}, nil
}

func isRawPCM(ext string) bool {
	return ext == ".pcm" || ext == ".raw" || ext == ""
}

// pcmToWav round-trips through a temp file because the WAV encoder needs a
// seekable writer for its header.
func pcmToWav(pcm []byte, sampleRate, channels int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "scribe-capture-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := audio.WritePCMToWav(tmp, pcm, sampleRate, channels); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(tmp)
}

func (d *execDevice) Discard() {
	d.mu.Lock()
	proc := d.proc
	done := d.done
	d.mu.Unlock()

	if proc == nil || proc.Process == nil {
		return
	}
	_ = proc.Process.Signal(syscall.SIGCONT)
	_ = proc.Process.Kill()
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	d.release()
}

// release drops process state; caller must hold d.mu.
func (d *execDevice) release() {
	d.proc = nil
	d.buf = nil
	d.done = nil
	d.waitErr = nil
}
