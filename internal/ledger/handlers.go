package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/gst-tracker/internal/invoice"
)

const maxUploadSize = int64(50 << 20)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// serviceError maps ledger sentinels to status codes
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(w, "Invoice not found", http.StatusNotFound)
	case errors.Is(err, ErrDuplicateInvoice):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Ledger operation failed", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// invoiceID parses the {id} path value
func invoiceID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// contentTypeOf prefers the part header and falls back to the file extension
func contentTypeOf(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

func readUpload(header *multipart.FileHeader) (Upload, error) {
	f, err := header.Open()
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, err
	}
	return Upload{Filename: header.Filename, ContentType: contentTypeOf(header), Data: data}, nil
}

// handleUploadInvoices processes every "file" part as one batch
func (s *Server) handleUploadInvoices(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "Upload is too large. Maximum size is 50MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		jsonError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	unreadable := make([]FileError, 0)
	for _, header := range headers {
		u, err := readUpload(header)
		if err != nil {
			slog.Warn("Error reading file data", "error", err, "filename", header.Filename)
			unreadable = append(unreadable, FileError{Filename: header.Filename, Reason: "could not read file"})
			continue
		}
		uploads = append(uploads, u)
	}

	result := s.service.ProcessBatch(tenant, uploads)
	result.Failed += len(unreadable)
	result.Errors = append(result.Errors, unreadable...)

	writeJSON(w, http.StatusOK, result)
}

// handleListInvoices returns the tenant's rows with their tax checks
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListInvoices(r.PathValue("tenant"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleGetInvoice returns a single record
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		jsonError(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}
	record, err := s.service.GetInvoice(r.PathValue("tenant"), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRow(record))
}

// handleGetInvoiceFile returns the uploaded file of a record
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		jsonError(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetInvoiceFile(r.PathValue("tenant"), id)
	if err != nil {
		serviceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// amountField accepts a JSON number, a currency-like string or null
type amountField struct {
	decimal.NullDecimal
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		a.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	a.NullDecimal = invoice.ParseNullAmount(raw)
	return nil
}

// editRequest is the PUT body; every field is replaced
type editRequest struct {
	InvoiceNumber string      `json:"invoice_number"`
	Vendor        string      `json:"vendor"`
	Date          string      `json:"date"`
	Subtotal      amountField `json:"subtotal"`
	TaxAmount     amountField `json:"tax_amount"`
	TaxPercent    amountField `json:"tax_percent"`
	TotalAmount   amountField `json:"total_amount"`
	Category      string      `json:"category"`
}

func (e editRequest) edit() Edit {
	return Edit{
		InvoiceNumber: e.InvoiceNumber,
		Vendor:        e.Vendor,
		Date:          e.Date,
		Subtotal:      e.Subtotal.NullDecimal,
		TaxAmount:     e.TaxAmount.NullDecimal,
		TaxPercent:    e.TaxPercent.NullDecimal,
		TotalAmount:   e.TotalAmount.NullDecimal,
		Category:      invoice.Category(e.Category),
	}
}

// handleUpdateInvoice replaces a record's fields
func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		jsonError(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.service.UpdateInvoice(r.PathValue("tenant"), id, req.edit())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRow(record))
}

// handleDeleteInvoice deletes a record and its file
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(r)
	if !ok {
		jsonError(w, "Invalid invoice ID", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteInvoice(r.PathValue("tenant"), id); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReport serves one of the aggregate views
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")

	var (
		body any
		err  error
	)
	switch r.PathValue("kind") {
	case "monthly":
		body, err = s.service.MonthlySummary(tenant)
	case "vendors":
		body, err = s.service.VendorSpend(tenant)
	case "categories":
		body, err = s.service.CategorySpend(tenant)
	case "gst":
		body, err = s.service.GSTSummary(tenant)
	default:
		jsonError(w, "Unknown report", http.StatusNotFound)
		return
	}
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
