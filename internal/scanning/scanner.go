package scanning

import (
	"errors"
	"fmt"

	"github.com/zombor/gst-tracker/internal/invoice"
)

// Mode selects what a vision recognizer asks the model for
type Mode string

const (
	// ModeText asks for a verbatim transcription that the pattern extractor parses
	ModeText Mode = "text"
	// ModeStructured asks for the invoice fields as a JSON object
	ModeStructured Mode = "structured"
)

// ParseMode validates a mode name, defaulting to text
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeText:
		return ModeText, nil
	case ModeStructured:
		return ModeStructured, nil
	}
	return "", fmt.Errorf("unknown recognition mode %q", s)
}

// Recognition is what a recognizer read from one document
type Recognition struct {
	Text   string          `json:"text"`
	Fields *invoice.Fields `json:"fields,omitempty"` // set in structured mode
}

// Recognizer turns an image or PDF into text
type Recognizer interface {
	// Recognize reads a document. Failures are returned as *OcrError.
	Recognize(data []byte, contentType string) (*Recognition, error)
	// Close releases the recognizer's resources
	Close() error
}

// OcrError reports that no text could be obtained for a document
type OcrError struct {
	Reason string
	Err    error
}

func (e *OcrError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ocr failed: %s: %v", e.Reason, e.Err)
	}
	return "ocr failed: " + e.Reason
}

func (e *OcrError) Unwrap() error {
	return e.Err
}

// IsOcrError reports whether err is or wraps an *OcrError
func IsOcrError(err error) bool {
	var ocrErr *OcrError
	return errors.As(err, &ocrErr)
}

func ocrFailure(reason string, err error) error {
	var ocrErr *OcrError
	if errors.As(err, &ocrErr) {
		return err
	}
	return &OcrError{Reason: reason, Err: err}
}

// finish converts a model response into a Recognition for the given mode
func finish(text string, mode Mode) (*Recognition, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, &OcrError{Reason: "empty response"}
	}
	if mode != ModeStructured {
		return &Recognition{Text: text}, nil
	}

	fields, err := parseInvoiceJSON(text)
	if err != nil {
		return nil, ocrFailure("parsing structured response", err)
	}
	return &Recognition{Text: text, Fields: fields}, nil
}
