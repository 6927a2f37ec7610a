package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WritePCMToWav encodes little-endian 16-bit PCM into a WAV file. Capture
// modes that yield raw PCM go through this before the recording is retained
// in the vault.
func WritePCMToWav(file *os.File, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &gaudio.IntBuffer{Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// PCMDuration reports how long a 16-bit PCM payload plays for.
func PCMDuration(pcm []byte, sampleRate int, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := len(pcm) / 2 / channels
	return float64(samples) / float64(sampleRate)
}
