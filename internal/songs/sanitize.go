package songs

import (
	"strings"
)

const (
	maxKeyLength = 100
	untitled     = "untitled"
)

// Sanitize turns a recognized title into a filesystem-safe cache key. Only
// ASCII letters, digits, spaces and ()-., survive; runs of spaces collapse.
// The result never contains a path separator and never starts with a dot.
func Sanitize(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '(', r == ')', r == '-', r == '.', r == ',':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	key := strings.TrimLeft(strings.TrimSpace(b.String()), ". ")
	if len(key) > maxKeyLength {
		key = strings.TrimSpace(key[:maxKeyLength])
	}
	if key == "" {
		return untitled
	}
	return key
}
