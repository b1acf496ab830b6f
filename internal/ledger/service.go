package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/gst-tracker/internal/invoice"
	"github.com/zombor/gst-tracker/internal/report"
	"github.com/zombor/gst-tracker/internal/scanning"
)

// IDGenerator generates the prefix of stored file names
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now().UTC()
}

// Option configures a Service
type Option func(*Service)

// WithFreeTierLimit caps the number of rows each tenant may hold. Zero means unlimited.
func WithFreeTierLimit(n int) Option {
	return func(s *Service) {
		s.limit = n
	}
}

// WithExtractor replaces the default text extractor
func WithExtractor(e *invoice.Extractor) Option {
	return func(s *Service) {
		s.extractor = e
	}
}

// Service reconciles recognized invoices against each tenant's ledger
type Service struct {
	db          DB
	recognizer  scanning.Recognizer
	storage     Storage
	extractor   *invoice.Extractor
	limit       int
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with uuid file names and the system clock
func NewService(db DB, recognizer scanning.Recognizer, storage Storage, opts ...Option) *Service {
	return NewServiceWithDeps(db, recognizer, storage, uuidGenerator{}, systemTime{}, opts...)
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, idGen IDGenerator, timeSrc TimeSource, opts ...Option) *Service {
	s := &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		extractor:   invoice.NewExtractor(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename shortens phone-generated names and drops characters unsafe on disk
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return base + ext
}

// Upload is one file submitted for a tenant
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileError explains why one file of a batch was not inserted
type FileError struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// BatchResult summarizes one batch upload
type BatchResult struct {
	Inserted     int         `json:"inserted"`
	Skipped      int         `json:"skipped"`
	Failed       int         `json:"failed"`
	LimitReached bool        `json:"limit_reached"`
	Records      []*Record   `json:"records"`
	Errors       []FileError `json:"errors"`
}

func (b *BatchResult) fail(filename string, err error) {
	b.Failed++
	b.Errors = append(b.Errors, FileError{Filename: filename, Reason: err.Error()})
}

// admit checks the free-tier cap before any work is done for a file
func (s *Service) admit(userID string) error {
	if s.limit <= 0 {
		return nil
	}
	n, err := s.db.CountInvoices(userID)
	if err != nil {
		return fmt.Errorf("counting invoices: %w", err)
	}
	if n >= s.limit {
		return ErrTenantLimitReached
	}
	return nil
}

// candidate turns a recognition into a derived candidate
func (s *Service) candidate(rec *scanning.Recognition, sourceFile string) invoice.Candidate {
	var c invoice.Candidate
	if rec.Fields != nil {
		c = invoice.FromStructured(*rec.Fields, sourceFile)
	} else {
		c = s.extractor.Extract(rec.Text, sourceFile)
	}
	return invoice.Derive(c)
}

// discard removes a stored file that will not be referenced by any row
func (s *Service) discard(key string) {
	if err := s.storage.Delete(key); err != nil {
		slog.Warn("Failed to delete stored file", "file", key, "error", err)
	}
}

// ProcessFile stores, recognizes, extracts and inserts one file. A duplicate invoice number
// returns ErrDuplicateInvoice and leaves the ledger untouched.
func (s *Service) ProcessFile(userID string, u Upload) (*Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("tenant required")
	}
	if err := s.admit(userID); err != nil {
		return nil, err
	}

	sourceFile := sanitizeFilename(u.Filename)
	stored, err := s.storage.Save(fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sourceFile), u.Data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	rec, err := s.recognizer.Recognize(u.Data, u.ContentType)
	if err != nil {
		slog.Warn("Failed to recognize invoice",
			"tenant", userID,
			"filename", u.Filename,
			"content_type", u.ContentType,
			"file_size", len(u.Data),
			"error", err,
		)
		s.discard(stored)
		return nil, fmt.Errorf("recognizing invoice: %w", err)
	}

	record := newRecord(userID, s.candidate(rec, sourceFile), s.timeSource.Now())
	record.StoredFile = stored
	record.ContentType = u.ContentType

	if _, err := s.db.InsertInvoice(record); err != nil {
		s.discard(stored)
		if errors.Is(err, ErrDuplicateInvoice) {
			return nil, fmt.Errorf("invoice %s: %w", record.InvoiceNumber, ErrDuplicateInvoice)
		}
		slog.Error("Failed to save invoice", "tenant", userID, "filename", u.Filename, "error", err)
		return nil, fmt.Errorf("saving invoice: %w", err)
	}
	return record, nil
}

// ProcessBatch processes each file on its own; one file's failure never stops the rest.
// Once the tenant limit is hit the remaining files fail with ErrTenantLimitReached.
func (s *Service) ProcessBatch(userID string, uploads []Upload) *BatchResult {
	result := &BatchResult{Records: []*Record{}, Errors: []FileError{}}
	for _, u := range uploads {
		if result.LimitReached {
			result.fail(u.Filename, ErrTenantLimitReached)
			continue
		}

		record, err := s.ProcessFile(userID, u)
		switch {
		case err == nil:
			result.Inserted++
			result.Records = append(result.Records, record)
		case errors.Is(err, ErrDuplicateInvoice):
			result.Skipped++
		case errors.Is(err, ErrTenantLimitReached):
			result.LimitReached = true
			result.fail(u.Filename, err)
		default:
			result.fail(u.Filename, err)
		}
	}

	slog.Info("Processed batch",
		"tenant", userID,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result
}

// Edit is a full replacement of a record's mutable fields.
// An absent TaxPercent is derived from Subtotal and TaxAmount.
type Edit struct {
	InvoiceNumber string
	Vendor        string
	Date          string
	Subtotal      decimal.NullDecimal
	TaxAmount     decimal.NullDecimal
	TaxPercent    decimal.NullDecimal
	TotalAmount   decimal.NullDecimal
	Category      invoice.Category
}

// GetInvoice returns a tenant's record; records of other tenants are ErrNotFound
func (s *Service) GetInvoice(userID string, id int64) (*Record, error) {
	r, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	if r.UserID != userID {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// UpdateInvoice replaces every mutable column. id, owner, created_at and the stored file are kept.
func (s *Service) UpdateInvoice(userID string, id int64, e Edit) (*Record, error) {
	r, err := s.GetInvoice(userID, id)
	if err != nil {
		return nil, err
	}

	r.InvoiceNumber = strings.TrimSpace(e.InvoiceNumber)
	r.Vendor = strings.TrimSpace(e.Vendor)
	r.Date = strings.TrimSpace(e.Date)
	if iso, ok := invoice.NormalizeDate(r.Date); ok {
		r.Date = iso
	}
	r.Subtotal = e.Subtotal
	r.TaxAmount = e.TaxAmount
	r.TotalAmount = e.TotalAmount
	r.TaxPercent = invoice.TaxPercent(e.Subtotal, e.TaxAmount)
	if e.TaxPercent.Valid {
		r.TaxPercent = e.TaxPercent.Decimal
	}
	r.Category, _ = invoice.ParseCategory(string(e.Category))
	r.UpdatedAt = s.timeSource.Now()

	if err := s.db.UpdateInvoice(r); err != nil {
		return nil, fmt.Errorf("updating invoice: %w", err)
	}
	return r, nil
}

// DeleteInvoice removes the row first, then its stored file. A file that cannot be removed is logged.
func (s *Service) DeleteInvoice(userID string, id int64) error {
	r, err := s.GetInvoice(userID, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	if r.StoredFile != "" {
		s.discard(r.StoredFile)
	}
	return nil
}

// GetInvoiceFile returns the stored upload and its content type
func (s *Service) GetInvoiceFile(userID string, id int64) ([]byte, string, error) {
	r, err := s.GetInvoice(userID, id)
	if err != nil {
		return nil, "", err
	}
	if r.StoredFile == "" {
		return nil, "", fmt.Errorf("invoice %d has no file: %w", id, ErrNotFound)
	}
	data, err := s.storage.Get(r.StoredFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// Row is a ledger record with its advisory tax check flattened alongside
type Row struct {
	*Record
	ExpectedTax decimal.Decimal `json:"expected_tax"`
	Mismatch    bool            `json:"mismatch"`
}

func newRow(r *Record) Row {
	check := r.TaxCheck()
	return Row{Record: r, ExpectedTax: check.ExpectedTax, Mismatch: check.Mismatch}
}

// ListInvoices returns a tenant's rows, most recent first
func (s *Service) ListInvoices(userID string) ([]Row, error) {
	records, err := s.db.ListInvoices(userID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, newRow(r))
	}
	return rows, nil
}

func (s *Service) lines(userID string) ([]report.Line, error) {
	records, err := s.db.ListInvoices(userID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return lines(records), nil
}

// MonthlySummary reports a tenant's totals per month
func (s *Service) MonthlySummary(userID string) ([]report.MonthlyGST, error) {
	l, err := s.lines(userID)
	if err != nil {
		return nil, err
	}
	return report.Monthly(l), nil
}

// VendorSpend reports a tenant's spend per vendor
func (s *Service) VendorSpend(userID string) ([]report.VendorSpend, error) {
	l, err := s.lines(userID)
	if err != nil {
		return nil, err
	}
	return report.Vendors(l), nil
}

// CategorySpend reports a tenant's spend per category
func (s *Service) CategorySpend(userID string) ([]report.CategorySpend, error) {
	l, err := s.lines(userID)
	if err != nil {
		return nil, err
	}
	return report.Categories(l), nil
}

// GSTSummary reports a tenant's taxable value and tax by rate
func (s *Service) GSTSummary(userID string) (report.GSTSummary, error) {
	l, err := s.lines(userID)
	if err != nil {
		return report.GSTSummary{}, err
	}
	return report.GST(l), nil
}
