package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/zombor/gst-tracker/internal/invoice"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	invoice_number TEXT,
	vendor TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	subtotal TEXT,
	tax_amount TEXT,
	tax_percent TEXT NOT NULL DEFAULT '0',
	total_amount TEXT,
	category TEXT NOT NULL,
	source_file TEXT NOT NULL DEFAULT '',
	stored_file TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (user_id, invoice_number)
);

CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id, id);
`

const invoiceColumns = `id, user_id, invoice_number, vendor, date, subtotal, tax_amount, tax_percent,
	total_amount, category, source_file, stored_file, content_type, created_at, updated_at`

// SQLiteDB implements DB on SQLite. Absent invoice numbers are stored as NULL so the
// UNIQUE constraint never groups them.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=1000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timeLayout is fixed-width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// uniqueViolation maps the (user_id, invoice_number) constraint error to ErrDuplicateInvoice
func uniqueViolation(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateInvoice
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r                    Record
		number               sql.NullString
		category             string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.UserID, &number, &r.Vendor, &r.Date, &r.Subtotal, &r.TaxAmount,
		&r.TaxPercent, &r.TotalAmount, &category, &r.SourceFile, &r.StoredFile, &r.ContentType,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.InvoiceNumber = number.String
	r.Category = invoice.Category(category)
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &r, nil
}

// InsertInvoice relies on the UNIQUE constraint, so the check and the insert are one statement
func (s *SQLiteDB) InsertInvoice(r *Record) (int64, error) {
	if r.UserID == "" {
		return 0, fmt.Errorf("inserting invoice: user id required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO invoices (user_id, invoice_number, vendor, date, subtotal, tax_amount,
		tax_percent, total_amount, category, source_file, stored_file, content_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, nullString(r.InvoiceNumber), r.Vendor, r.Date, r.Subtotal, r.TaxAmount,
		r.TaxPercent, r.TotalAmount, string(r.Category), r.SourceFile, r.StoredFile, r.ContentType,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return 0, uniqueViolation(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}

	r.ID = id
	return id, nil
}

// UpdateInvoice replaces the mutable columns; id, user_id and created_at are left alone
func (s *SQLiteDB) UpdateInvoice(r *Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanRecord(tx.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, r.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("invoice %d: %w", r.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading invoice %d: %w", r.ID, err)
	}

	_, err = tx.Exec(`UPDATE invoices SET invoice_number = ?, vendor = ?, date = ?, subtotal = ?,
		tax_amount = ?, tax_percent = ?, total_amount = ?, category = ?, source_file = ?,
		stored_file = ?, content_type = ?, updated_at = ? WHERE id = ?`,
		nullString(r.InvoiceNumber), r.Vendor, r.Date, r.Subtotal, r.TaxAmount, r.TaxPercent,
		r.TotalAmount, string(r.Category), r.SourceFile, r.StoredFile, r.ContentType,
		formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return uniqueViolation(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}

	r.UserID = existing.UserID
	r.CreatedAt = existing.CreatedAt
	return nil
}

// GetInvoice retrieves an invoice by id
func (s *SQLiteDB) GetInvoice(id int64) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice %d: %w", id, err)
	}
	return r, nil
}

// ListInvoices returns a tenant's rows, most recent first
func (s *SQLiteDB) ListInvoices(userID string) ([]*Record, error) {
	rows, err := s.db.Query(`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountInvoices returns the number of rows a tenant owns
func (s *SQLiteDB) CountInvoices(userID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM invoices WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting invoices: %w", err)
	}
	return n, nil
}

// DeleteInvoice removes a row or returns ErrNotFound
func (s *SQLiteDB) DeleteInvoice(id int64) error {
	res, err := s.db.Exec(`DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting invoice %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting invoice %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
