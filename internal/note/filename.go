package note

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/scribelabs/scribe-core/internal/vault"
)

// ErrFilenameCollision is returned when suffixing cannot find a free name.
var ErrFilenameCollision = errors.New("could not find a free filename")

const (
	dateToken         = "{{date}}"
	maxTitleLength    = 100
	maxSuffixAttempts = 20
)

// illegal across the filesystems notes travel between (windows, mac, linux).
const illegalFilenameChars = `/\:*?"<>|#^[]`

// ExpandPrefix substitutes the {{date}} token using a Go reference layout.
func ExpandPrefix(prefix, dateFormat string, now time.Time) string {
	return strings.ReplaceAll(prefix, dateToken, now.Format(dateFormat))
}

// SanitizeTitle makes a provider-suggested title safe to use as a filename:
// illegal characters removed, whitespace collapsed to single spaces, trailing
// separators and periods trimmed, length capped.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if strings.ContainsRune(illegalFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	// Cap on rune boundaries; a byte slice could split a multibyte character.
	if runes := []rune(cleaned); len(runes) > maxTitleLength {
		cleaned = string(runes[:maxTitleLength])
	}
	return strings.TrimRight(cleaned, " .-_")
}

// UniquePath builds "<dir>/<base><ext>", probing the vault and inserting a
// short random numeric suffix on collision. Check-then-act, not atomic; fine
// for a single local writer.
func UniquePath(v vault.Vault, dir, base, ext string) (string, error) {
	candidate := joinPath(dir, base+ext)
	exists, err := v.Exists(candidate)
	if err != nil {
		return "", err
	}
	if !exists {
		return candidate, nil
	}

	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		suffixed := joinPath(dir, fmt.Sprintf("%s-%04d%s", base, rand.Intn(10000), ext))
		exists, err := v.Exists(suffixed)
		if err != nil {
			return "", err
		}
		if !exists {
			return suffixed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFilenameCollision, candidate)
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return strings.TrimRight(dir, "/") + "/" + name
}
