// Package report rolls a tenant's ledger up into read-only summaries.
// Every function recomputes from the lines it is given; nothing is cached.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/gst-tracker/internal/invoice"
)

// UnknownVendor buckets rows without a vendor
const UnknownVendor = "Unknown"

// Line is the part of a ledger row the reports read
type Line struct {
	Date        string
	Vendor      string
	Category    invoice.Category
	Subtotal    decimal.NullDecimal
	TaxAmount   decimal.NullDecimal
	TaxPercent  decimal.Decimal
	TotalAmount decimal.NullDecimal
}

// MonthlyGST sums one calendar month
type MonthlyGST struct {
	Month       string          `json:"month"` // YYYY-MM
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// VendorSpend sums total spend per vendor
type VendorSpend struct {
	Vendor string          `json:"vendor"`
	Total  decimal.Decimal `json:"total_spend"`
}

// CategorySpend sums total spend per category
type CategorySpend struct {
	Category invoice.Category `json:"category"`
	Total    decimal.Decimal  `json:"total_spend"`
}

// RateTotal sums tax collected at one rate
type RateTotal struct {
	Rate decimal.Decimal `json:"gst_percent"`
	Tax  decimal.Decimal `json:"tax"`
}

// GSTSummary is the tax filing overview
type GSTSummary struct {
	InvoiceCount int             `json:"invoice_count"`
	TotalTaxable decimal.Decimal `json:"total_taxable"`
	TotalGST     decimal.Decimal `json:"total_gst"`
	ByRate       []RateTotal     `json:"gst_by_rate"`
}

func value(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// Monthly groups lines by the YYYY-MM of their date, ascending.
// Lines without a parseable ISO date are left out.
func Monthly(lines []Line) []MonthlyGST {
	byMonth := map[string]*MonthlyGST{}
	for _, l := range lines {
		d, ok := invoice.ParseISODate(l.Date)
		if !ok {
			continue
		}
		month := fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
		m, ok := byMonth[month]
		if !ok {
			m = &MonthlyGST{Month: month}
			byMonth[month] = m
		}
		m.Subtotal = m.Subtotal.Add(value(l.Subtotal))
		m.TaxAmount = m.TaxAmount.Add(value(l.TaxAmount))
		m.TotalAmount = m.TotalAmount.Add(value(l.TotalAmount))
	}

	out := make([]MonthlyGST, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b MonthlyGST) int {
		return cmp.Compare(a.Month, b.Month)
	})
	return out
}

// Vendors sums total spend per vendor, largest first
func Vendors(lines []Line) []VendorSpend {
	totals := map[string]decimal.Decimal{}
	for _, l := range lines {
		vendor := strings.TrimSpace(l.Vendor)
		if vendor == "" {
			vendor = UnknownVendor
		}
		totals[vendor] = totals[vendor].Add(value(l.TotalAmount))
	}

	out := make([]VendorSpend, 0, len(totals))
	for vendor, total := range totals {
		out = append(out, VendorSpend{Vendor: vendor, Total: total})
	}
	slices.SortFunc(out, func(a, b VendorSpend) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Vendor, b.Vendor)
	})
	return out
}

// Categories sums total spend per category, largest first
func Categories(lines []Line) []CategorySpend {
	totals := map[invoice.Category]decimal.Decimal{}
	for _, l := range lines {
		category := l.Category
		if category == "" {
			category = invoice.CategoryOther
		}
		totals[category] = totals[category].Add(value(l.TotalAmount))
	}

	out := make([]CategorySpend, 0, len(totals))
	for category, total := range totals {
		out = append(out, CategorySpend{Category: category, Total: total})
	}
	slices.SortFunc(out, func(a, b CategorySpend) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// GST summarizes taxable value and tax, with tax broken down by rate ascending
func GST(lines []Line) GSTSummary {
	summary := GSTSummary{InvoiceCount: len(lines), ByRate: []RateTotal{}}

	byRate := map[string]*RateTotal{}
	for _, l := range lines {
		summary.TotalTaxable = summary.TotalTaxable.Add(value(l.Subtotal))
		summary.TotalGST = summary.TotalGST.Add(value(l.TaxAmount))

		key := l.TaxPercent.String()
		r, ok := byRate[key]
		if !ok {
			r = &RateTotal{Rate: l.TaxPercent}
			byRate[key] = r
		}
		r.Tax = r.Tax.Add(value(l.TaxAmount))
	}

	for _, r := range byRate {
		summary.ByRate = append(summary.ByRate, *r)
	}
	slices.SortFunc(summary.ByRate, func(a, b RateTotal) int {
		return a.Rate.Cmp(b.Rate)
	})
	return summary
}
