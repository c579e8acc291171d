package object

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"credit-backend/internal/shared/util"
)

// UploadKey builds the key a client uploads a report document to.
func UploadKey(userID, sanitizedName string, now time.Time) string {
	stamp := now.UTC().Format("20060102T150405Z")
	return path.Join(util.HashUserKey(userID), "uploads", fmt.Sprintf("%s_%s_%s", stamp, randomHex(6), sanitizedName))
}

// LetterKey builds the key of a generated dispute letter PDF.
func LetterKey(userID, reportID, bureau string) string {
	return path.Join(util.HashUserKey(userID), "letters", fmt.Sprintf("%s_%s.pdf", reportID, strings.ToLower(bureau)))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
