package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestWritePCMToWav(t *testing.T) {
	pcm := make([]byte, 32000) // one second of 16kHz mono 16-bit silence
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WritePCMToWav(f, pcm, 16000, 1); err != nil {
		t.Fatalf("WritePCMToWav: %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("encoder produced an invalid wav file")
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("format = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func TestWritePCMToWavRejectsUnalignedPayload(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if err := WritePCMToWav(f, make([]byte, 3), 16000, 1); err == nil {
		t.Fatal("expected error for odd byte count")
	}
}

func TestPCMDuration(t *testing.T) {
	if got := PCMDuration(make([]byte, 32000), 16000, 1); got != 1.0 {
		t.Errorf("duration = %f, want 1.0", got)
	}
	if got := PCMDuration(make([]byte, 32000), 0, 1); got != 0 {
		t.Errorf("invalid rate duration = %f", got)
	}
}
