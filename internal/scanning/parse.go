package scanning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zombor/gst-tracker/internal/invoice"
)

// stripCodeFence removes markdown fences models wrap around answers
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// looseString accepts a JSON string, number or null
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*s = ""
	case strings.HasPrefix(raw, `"`):
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("expected string or number, got %s", raw)
		}
		*s = looseString(raw)
	}
	return nil
}

type invoiceJSON struct {
	InvoiceNumber looseString `json:"invoice_number"`
	Vendor        looseString `json:"vendor"`
	Date          looseString `json:"date"`
	Subtotal      looseString `json:"subtotal"`
	Tax           looseString `json:"tax"`
	GST           looseString `json:"gst"`
	TotalAmount   looseString `json:"total_amount"`
	Category      looseString `json:"category"`
}

// parseInvoiceJSON extracts the first JSON object in a model response
func parseInvoiceJSON(text string) (*invoice.Fields, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var raw invoiceJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	tax := raw.Tax
	if tax == "" {
		tax = raw.GST
	}
	return &invoice.Fields{
		InvoiceNumber: strings.TrimSpace(string(raw.InvoiceNumber)),
		Vendor:        strings.TrimSpace(string(raw.Vendor)),
		Date:          strings.TrimSpace(string(raw.Date)),
		Subtotal:      string(raw.Subtotal),
		Tax:           string(tax),
		TotalAmount:   string(raw.TotalAmount),
		Category:      strings.TrimSpace(string(raw.Category)),
	}, nil
}
