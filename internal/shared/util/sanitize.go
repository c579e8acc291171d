package util

import (
	"errors"
	"strings"
)

const maxFileNameLen = 120

// SanitizeFileName replaces anything outside [A-Za-z0-9._-] with '_', caps the
// length and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	if s == "" {
		return "", errors.New("invalid file name")
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxFileNameLen {
			break
		}
	}
	return b.String(), nil
}
