package letters

import (
	"bytes"
	"errors"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Renderer turns letter text into a document.
type Renderer interface {
	Render(text string) ([]byte, error)
}

const (
	pageMargin = 50.0
	fontSize   = 11.0
	lineHeight = 14.0
)

// PDFRenderer renders plain text onto US Letter pages with wrapped Helvetica.
type PDFRenderer struct{}

// Render returns the PDF bytes for text.
func (PDFRenderer) Render(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("letter text is empty")
	}
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.AddPage()
	doc.SetFont("Helvetica", "", fontSize)

	// Core fonts are cp1252; characters outside it render as '?'.
	tr := doc.UnicodeTranslatorFromDescriptor("")
	width, _ := doc.GetPageSize()
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(para) == "" {
			doc.Ln(lineHeight)
			continue
		}
		doc.MultiCell(width-2*pageMargin, lineHeight, tr(para), "", "L", false)
	}

	if err := doc.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Renderer = PDFRenderer{}
