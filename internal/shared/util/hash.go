package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashUserKey returns a filesystem-safe identifier for a user ID.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// OwnerPrefix is the blob key namespace for a user's objects.
func OwnerPrefix(userID string) string {
	return HashUserKey(userID) + "/"
}

// KeyOwnedBy reports whether key lives under userID's namespace.
func KeyOwnedBy(key, userID string) bool {
	if strings.TrimSpace(userID) == "" || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(key, "/"), OwnerPrefix(userID))
}
