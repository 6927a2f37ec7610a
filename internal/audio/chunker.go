package audio

import (
	"errors"
	"time"
)

var (
	// ErrNoAudioData means a recording produced zero bytes.
	ErrNoAudioData = errors.New("recording contains no audio data")
	// ErrInvalidChunkSize means the chunk ceiling is not positive.
	ErrInvalidChunkSize = errors.New("max chunk bytes must be positive")
)

// Chunk is a size-bounded slice of the recording submitted to a
// transcription provider on its own.
type Chunk struct {
	Index    int
	Data     []byte
	Duration time.Duration
}

// Split cuts a recording into chunks no larger than maxChunkBytes, in order.
// Boundaries are byte-granular and do not align with audio frames; the
// provider is expected to be approximately accurate at chunk edges.
// totalDuration, when known, is spread across chunks by byte share as a hint.
// An empty buffer yields zero chunks.
func Split(buf []byte, maxChunkBytes int, totalDuration time.Duration) ([]Chunk, error) {
	if maxChunkBytes <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if len(buf) == 0 {
		return nil, nil
	}

	chunks := make([]Chunk, 0, (len(buf)+maxChunkBytes-1)/maxChunkBytes)
	for start := 0; start < len(buf); start += maxChunkBytes {
		end := start + maxChunkBytes
		if end > len(buf) {
			end = len(buf)
		}
		chunk := Chunk{
			Index: len(chunks),
			Data:  buf[start:end],
		}
		if totalDuration > 0 {
			chunk.Duration = totalDuration * time.Duration(end-start) / time.Duration(len(buf))
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
