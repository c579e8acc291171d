package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
)

// ErrUnsupportedType is returned for payloads that are neither PDF nor plain text.
var ErrUnsupportedType = errors.New("unsupported mime type")

// Service implements text extraction for uploaded credit reports.
type Service struct{}

// ExtractText extracts text from the payload. See the package-level ExtractText.
func (Service) ExtractText(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	return ExtractText(ctx, data, mimeType, fileName)
}

// ExtractText pulls text from an in-memory report. PDFs go through
// github.com/ledongthuc/pdf; plain text is passed through. An empty result is
// not an error.
func ExtractText(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized := NormalizeMimeType(mimeType, fileName, data)
	switch normalized {
	case mimePDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("pdf %s: %w", fileName, err)
		}
		return text, nil
	case mimeText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: text is not valid utf-8", fileName)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, normalized)
	}
}

// NormalizeMimeType resolves the effective type from the declared type, the
// file name and the payload itself. Reports are stored without a content
// type, so the magic bytes win over a generic declared type.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return mimePDF
	}
	if clean != "" && clean != "application/octet-stream" {
		return clean
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".txt", ".text":
		return mimeText
	}
	if len(data) == 0 {
		return mimeText
	}
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	return strings.TrimSpace(detected)
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
