package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	invoicesBucket = []byte("invoices")
	numbersBucket  = []byte("invoice_numbers")
	tenantsBucket  = []byte("tenants")
)

// DB is the persistence collaborator. Implementations enforce (user_id, invoice_number)
// uniqueness themselves; the service never relies on a prior read.
type DB interface {
	// InsertInvoice assigns r.ID and stores r, or returns ErrDuplicateInvoice
	InsertInvoice(r *Record) (int64, error)

	// UpdateInvoice replaces the mutable columns of the row with r.ID
	UpdateInvoice(r *Record) error

	// GetInvoice returns one row or ErrNotFound
	GetInvoice(id int64) (*Record, error)

	// ListInvoices returns a tenant's rows, most recent first
	ListInvoices(userID string) ([]*Record, error)

	// CountInvoices returns the number of rows a tenant owns
	CountInvoices(userID string) (int, error)

	// DeleteInvoice removes a row or returns ErrNotFound
	DeleteInvoice(id int64) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements DB on bbolt. Records live in one bucket keyed by id; a second bucket
// maps user_id\x00invoice_number to id and a nested bucket per tenant lists its ids.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{invoicesBucket, numbersBucket, tenantsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func numberKey(userID, invoiceNumber string) []byte {
	return []byte(userID + "\x00" + invoiceNumber)
}

func getRecord(tx *bbolt.Tx, id int64) (*Record, error) {
	data := tx.Bucket(invoicesBucket).Get(itob(id))
	if data == nil {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice %d: %w", id, err)
	}
	return &r, nil
}

func putRecord(tx *bbolt.Tx, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling invoice: %w", err)
	}
	return tx.Bucket(invoicesBucket).Put(itob(r.ID), data)
}

// InsertInvoice checks the number index and inserts in the same write transaction
func (b *BoltDB) InsertInvoice(r *Record) (int64, error) {
	if r.UserID == "" {
		return 0, fmt.Errorf("inserting invoice: user id required")
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		numbers := tx.Bucket(numbersBucket)
		if r.InvoiceNumber != "" && numbers.Get(numberKey(r.UserID, r.InvoiceNumber)) != nil {
			return ErrDuplicateInvoice
		}

		seq, err := tx.Bucket(invoicesBucket).NextSequence()
		if err != nil {
			return err
		}
		r.ID = int64(seq)

		if err := putRecord(tx, r); err != nil {
			return err
		}
		if r.InvoiceNumber != "" {
			if err := numbers.Put(numberKey(r.UserID, r.InvoiceNumber), itob(r.ID)); err != nil {
				return err
			}
		}
		tenant, err := tx.Bucket(tenantsBucket).CreateBucketIfNotExists([]byte(r.UserID))
		if err != nil {
			return err
		}
		return tenant.Put(itob(r.ID), []byte{})
	})
	if err != nil {
		r.ID = 0
		return 0, err
	}
	return r.ID, nil
}

// UpdateInvoice keeps id, owner and created_at from the stored row and moves the number index
// when the invoice number changes
func (b *BoltDB) UpdateInvoice(r *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getRecord(tx, r.ID)
		if err != nil {
			return err
		}
		r.UserID = existing.UserID
		r.CreatedAt = existing.CreatedAt

		numbers := tx.Bucket(numbersBucket)
		if r.InvoiceNumber != existing.InvoiceNumber {
			if r.InvoiceNumber != "" && numbers.Get(numberKey(r.UserID, r.InvoiceNumber)) != nil {
				return ErrDuplicateInvoice
			}
			if existing.InvoiceNumber != "" {
				if err := numbers.Delete(numberKey(r.UserID, existing.InvoiceNumber)); err != nil {
					return err
				}
			}
			if r.InvoiceNumber != "" {
				if err := numbers.Put(numberKey(r.UserID, r.InvoiceNumber), itob(r.ID)); err != nil {
					return err
				}
			}
		}
		return putRecord(tx, r)
	})
}

// GetInvoice retrieves an invoice by id
func (b *BoltDB) GetInvoice(id int64) (*Record, error) {
	var r *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		r, err = getRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListInvoices walks the tenant bucket backwards; ids are assigned in insertion order
func (b *BoltDB) ListInvoices(userID string) ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		tenant := tx.Bucket(tenantsBucket).Bucket([]byte(userID))
		if tenant == nil {
			return nil
		}
		c := tenant.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			r, err := getRecord(tx, int64(binary.BigEndian.Uint64(k)))
			if err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountInvoices returns the number of ids in the tenant bucket
func (b *BoltDB) CountInvoices(userID string) (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		tenant := tx.Bucket(tenantsBucket).Bucket([]byte(userID))
		if tenant == nil {
			return nil
		}
		n = tenant.Stats().KeyN
		return nil
	})
	return n, err
}

// DeleteInvoice removes the record and its index entries
func (b *BoltDB) DeleteInvoice(id int64) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		r, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		if r.InvoiceNumber != "" {
			if err := tx.Bucket(numbersBucket).Delete(numberKey(r.UserID, r.InvoiceNumber)); err != nil {
				return err
			}
		}
		if tenant := tx.Bucket(tenantsBucket).Bucket([]byte(r.UserID)); tenant != nil {
			if err := tenant.Delete(itob(id)); err != nil {
				return err
			}
		}
		return tx.Bucket(invoicesBucket).Delete(itob(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
