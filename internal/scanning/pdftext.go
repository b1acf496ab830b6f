package scanning

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText implements the Recognizer interface by reading the text layer of digital PDFs.
// It needs no model and fails for images and scanned PDFs without text.
type PDFText struct{}

// NewPDFText creates a PDFText recognizer
func NewPDFText() *PDFText {
	return &PDFText{}
}

// Recognize returns the PDF text row by row
func (p *PDFText) Recognize(data []byte, contentType string) (rec *Recognition, err error) {
	if normalizeMIME(contentType) != "application/pdf" {
		return nil, &OcrError{Reason: fmt.Sprintf("pdf text layer unavailable for %s", contentType)}
	}

	// the pdf package panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, &OcrError{Reason: fmt.Sprintf("reading pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ocrFailure("opening pdf", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, ocrFailure(fmt.Sprintf("reading page %d", i), err)
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			text.WriteString(strings.Join(words, " "))
			text.WriteString("\n")
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, &OcrError{Reason: "pdf has no text layer"}
	}
	return &Recognition{Text: text.String()}, nil
}

// Close is a no-op
func (p *PDFText) Close() error {
	return nil
}
