package scanning

import (
	"errors"
	"log/slog"
)

// Chain tries recognizers in order and returns the first successful reading
type Chain struct {
	recognizers []Recognizer
}

// NewChain creates a Chain. Typically PDFText goes first so digital PDFs skip the model.
func NewChain(recognizers ...Recognizer) *Chain {
	return &Chain{recognizers: recognizers}
}

// Recognize returns the first success, or the last failure
func (c *Chain) Recognize(data []byte, contentType string) (*Recognition, error) {
	if len(c.recognizers) == 0 {
		return nil, &OcrError{Reason: "no recognizers configured"}
	}

	var lastErr error
	for i, r := range c.recognizers {
		rec, err := r.Recognize(data, contentType)
		if err == nil {
			return rec, nil
		}
		slog.Debug("Recognizer failed, trying next", "index", i, "error", err)
		lastErr = err
	}
	return nil, ocrFailure("all recognizers failed", lastErr)
}

// Close closes every recognizer and joins their errors
func (c *Chain) Close() error {
	var errs []error
	for _, r := range c.recognizers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
