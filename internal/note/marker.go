// Package note assembles finished notes from pipeline stage output. The
// assembler writes progress markers into the destination document and
// replaces them as stages complete, so a half-finished run is readable and
// diagnosable in place.
package note

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Marker is a collision-resistant in-progress placeholder written into the
// document. The nonce keeps an exact-match replace from ever touching
// user-authored text.
type Marker struct {
	Stage string
	Nonce string
}

// NewMarker mints a marker for a pipeline stage.
func NewMarker(stage string) Marker {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return Marker{Stage: stage, Nonce: nonce}
}

// Token is the literal text written into the document.
func (m Marker) Token() string {
	return fmt.Sprintf("%%%%scribe:%s:%s%%%%", m.Stage, m.Nonce)
}

// Replace swaps the marker token for its final value, exactly once.
func (m Marker) Replace(content, value string) string {
	return strings.Replace(content, m.Token(), value, 1)
}
