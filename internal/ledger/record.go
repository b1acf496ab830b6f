// Package ledger holds each tenant's accepted invoices and reconciles new uploads against them.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/gst-tracker/internal/invoice"
	"github.com/zombor/gst-tracker/internal/report"
)

var (
	// ErrDuplicateInvoice is returned when the tenant already has a row with the same invoice number
	ErrDuplicateInvoice = errors.New("duplicate invoice")
	// ErrNotFound is returned for ids that do not exist or belong to another tenant
	ErrNotFound = errors.New("invoice not found")
	// ErrTenantLimitReached is returned once a tenant's ledger is at the free-tier cap
	ErrTenantLimitReached = errors.New("tenant invoice limit reached")
)

// Record is one accepted invoice in a tenant's ledger
type Record struct {
	ID            int64               `json:"id"`
	UserID        string              `json:"user_id"`
	InvoiceNumber string              `json:"invoice_number"`
	Vendor        string              `json:"vendor"`
	Date          string              `json:"date"`
	Subtotal      decimal.NullDecimal `json:"subtotal"`
	TaxAmount     decimal.NullDecimal `json:"tax_amount"`
	TaxPercent    decimal.Decimal     `json:"tax_percent"`
	TotalAmount   decimal.NullDecimal `json:"total_amount"`
	Category      invoice.Category    `json:"category"`
	SourceFile    string              `json:"source_file"`
	StoredFile    string              `json:"stored_file,omitempty"`
	ContentType   string              `json:"content_type,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// newRecord copies a derived candidate into a record owned by userID
func newRecord(userID string, c invoice.Candidate, now time.Time) *Record {
	category := c.Category
	if category == "" {
		category = invoice.CategoryOther
	}
	return &Record{
		UserID:        userID,
		InvoiceNumber: c.InvoiceNumber,
		Vendor:        c.Vendor,
		Date:          c.Date,
		Subtotal:      c.Subtotal,
		TaxAmount:     c.TaxAmount,
		TaxPercent:    c.TaxPercent,
		TotalAmount:   c.TotalAmount,
		Category:      category,
		SourceFile:    c.SourceFile,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Line returns the columns the reports read
func (r *Record) Line() report.Line {
	return report.Line{
		Date:        r.Date,
		Vendor:      r.Vendor,
		Category:    r.Category,
		Subtotal:    r.Subtotal,
		TaxAmount:   r.TaxAmount,
		TaxPercent:  r.TaxPercent,
		TotalAmount: r.TotalAmount,
	}
}

// TaxCheck runs the advisory expected-tax check against the recorded rate
func (r *Record) TaxCheck() invoice.TaxCheck {
	return invoice.CheckTax(r.Subtotal, r.TaxAmount, r.TaxPercent)
}

func lines(records []*Record) []report.Line {
	out := make([]report.Line, 0, len(records))
	for _, r := range records {
		out = append(out, r.Line())
	}
	return out
}
