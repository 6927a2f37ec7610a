package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestSplitRespectsCeilingAndReassembles(t *testing.T) {
	cases := []struct {
		name string
		size int
		max  int
		want int
	}{
		{"exact multiple", 100, 25, 4},
		{"trailing partial", 110, 25, 5},
		{"single chunk", 10, 25, 1},
		{"ceiling of one", 7, 1, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, tc.size)
			for i := range buf {
				buf[i] = byte(i % 251)
			}

			chunks, err := Split(buf, tc.max, 0)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if len(chunks) != tc.want {
				t.Fatalf("expected %d chunks, got %d", tc.want, len(chunks))
			}

			var rebuilt []byte
			for i, c := range chunks {
				if c.Index != i {
					t.Fatalf("chunk %d has index %d", i, c.Index)
				}
				if len(c.Data) == 0 {
					t.Fatalf("chunk %d is empty", i)
				}
				if len(c.Data) > tc.max {
					t.Fatalf("chunk %d exceeds ceiling: %d > %d", i, len(c.Data), tc.max)
				}
				rebuilt = append(rebuilt, c.Data...)
			}
			if !bytes.Equal(rebuilt, buf) {
				t.Fatal("concatenated chunks do not reproduce the input")
			}
		})
	}
}

func TestSplitSixtyMBIntoThree(t *testing.T) {
	mb := 1024 * 1024
	buf := make([]byte, 60*mb)

	chunks, err := Split(buf, 25*mb, 0)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Data) != 25*mb || len(chunks[1].Data) != 25*mb || len(chunks[2].Data) != 10*mb {
		t.Fatalf("unexpected chunk sizes: %d, %d, %d",
			len(chunks[0].Data), len(chunks[1].Data), len(chunks[2].Data))
	}
}

func TestSplitEmptyBufferYieldsZeroChunks(t *testing.T) {
	chunks, err := Split(nil, 1024, 0)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks, got %d", len(chunks))
	}
}

func TestSplitRejectsBadCeiling(t *testing.T) {
	if _, err := Split([]byte("abc"), 0, 0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Fatalf("expected ErrInvalidChunkSize, got %v", err)
	}
	if _, err := Split([]byte("abc"), -5, 0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Fatalf("expected ErrInvalidChunkSize, got %v", err)
	}
}

func TestSplitSpreadsDurationHint(t *testing.T) {
	buf := make([]byte, 100)
	chunks, err := Split(buf, 50, 10*time.Second)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Duration != 5*time.Second {
			t.Fatalf("chunk %d duration hint %s, want 5s", i, c.Duration)
		}
	}
}
