package scanning

import (
	"fmt"
	"strings"

	"github.com/zombor/gst-tracker/internal/invoice"
)

const transcribePrompt = `You are reading a scanned or photographed invoice. Transcribe every piece of text exactly as printed, line by line, top to bottom.

Rules:
- Keep labels and values on the same line when they are printed together, e.g. "Invoice No: INV-001".
- Keep currency symbols, commas and decimal points as printed.
- Do not summarize, translate, reorder or correct anything.
- Do not add commentary and do not use markdown code blocks.
- If the document has no readable text, return an empty response.`

// structuredPrompt asks for the invoice as a JSON object with every key present
func structuredPrompt() string {
	names := make([]string, 0, len(invoice.Categories))
	for _, c := range invoice.Categories {
		names = append(names, string(c))
	}

	return fmt.Sprintf(`You are an API reading an invoice image. Return ONLY valid JSON, no explanation and no markdown.

JSON format (all keys mandatory, use "" when a value cannot be read):
{
  "invoice_number": "",
  "vendor": "",
  "date": "YYYY-MM-DD",
  "subtotal": "",
  "tax": "",
  "total_amount": "",
  "category": ""
}

- "tax" is the GST or other tax amount, not the rate.
- Amounts are numbers as printed, without currency names.
- Category must be one of: %s`, strings.Join(names, ", "))
}

func promptFor(mode Mode) string {
	if mode == ModeStructured {
		return structuredPrompt()
	}
	return transcribePrompt
}
