package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nfe-import-backend/models"
	"nfe-import-backend/nfe"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Pipeline terminal states reported on the Summary.
const (
	StatusCompleted             = "completed"
	StatusCompletedWithWarnings = "completed_with_warnings"
)

// ExecutionContext identifies who is importing on behalf of which company.
// It is passed explicitly into every run; the pipeline reads no ambient user
// or company state.
type ExecutionContext struct {
	UserID    string
	CompanyID string
}

// Summary is the result of one document import.
type Summary struct {
	Status       string   `json:"status"`
	AccessKey    string   `json:"access_key"`
	CreatedCount int      `json:"created_count"`
	UpdatedCount int      `json:"updated_count"`
	Warnings     []string `json:"warnings"`
	TouchedIDs   []uint   `json:"touched_ids"`
	LogID        uint     `json:"log_id"`
}

// Service runs the NFe import pipeline. One call to Import handles exactly
// one XML document as a single database transaction: log write, product
// creation and stock updates either all commit or none do.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Import parses, deduplicates, logs and reconciles one NFe document.
//
// Fatal conditions (malformed XML, duplicate access key, missing default
// category or internal stock location) return an error from the taxonomy in
// errors.go and leave no mutation behind. Per-line problems are accumulated
// into Summary.Warnings and never abort the batch.
func (s *Service) Import(ctx context.Context, ec ExecutionContext, xmlData []byte, filename string) (*Summary, error) {
	if len(xmlData) == 0 {
		return nil, &MalformedInputError{Reason: "no XML file provided"}
	}

	doc, err := nfe.Parse(xmlData)
	if err != nil {
		return nil, &MalformedInputError{Reason: "could not parse document", Err: err}
	}
	if doc.Invoice.AccessKey == "" {
		return nil, &MalformedInputError{Reason: "document has no access key"}
	}

	var summary *Summary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stores := NewStores(tx)
		summary, err = run(stores, ec, doc, xmlData, filename)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("access_key", summary.AccessKey).
		Str("user_id", ec.UserID).
		Int("created", summary.CreatedCount).
		Int("updated", summary.UpdatedCount).
		Int("warnings", len(summary.Warnings)).
		Msg("NFe imported")
	return summary, nil
}

// run executes the pipeline against the given collaborators. Split from
// Import so tests can drive it with in-memory stores.
func run(stores Stores, ec ExecutionContext, doc *nfe.Document, xmlData []byte, filename string) (*Summary, error) {
	invoice := doc.Invoice

	// Duplicate gate: before any mutation.
	seen, err := stores.Log.ExistsByAccessKey(invoice.AccessKey)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, duplicateError(invoice)
	}

	// Configuration prerequisites, checked before any line is touched.
	category, err := stores.Catalog.DefaultCategory()
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, &MissingPrerequisiteError{Prerequisite: "no product category exists; create one before importing"}
	}
	location, err := stores.Locations.DefaultInternal()
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, &MissingPrerequisiteError{Prerequisite: "no internal stock location exists"}
	}

	// Issuer registry, then the write-once log entry. The unique index on
	// access_key catches a concurrent import of the same document here.
	supplier, err := stores.Issuers.Upsert(invoice)
	if err != nil {
		return nil, err
	}
	record := newLogRecord(invoice, supplier, ec, xmlData, filename)
	if err := stores.Log.Create(record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicateError(invoice)
		}
		return nil, err
	}

	summary := &Summary{
		Status:    StatusCompleted,
		AccessKey: invoice.AccessKey,
		Warnings:  append([]string{}, doc.Warnings...),
		LogID:     record.ID,
	}

	resolver := newProductResolver(stores.Catalog, category)
	touched := make(map[uint]bool)
	for _, item := range doc.Items {
		productID, err := resolver.resolveOrCreate(item)
		if err != nil {
			summary.Warnings = append(summary.Warnings, err.Error())
			continue
		}
		if productID == "" {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("product not found: %s (%s)", item.Description, item.InternalCode))
			continue
		}

		res, err := stores.Stock.ApplyDelta(productID, location.Id, item.Quantity, invoice.AccessKey)
		if err != nil {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("stock update failed for %s (%s): %v", item.Description, item.InternalCode, err))
			continue
		}
		if res.Created {
			summary.CreatedCount++
		} else {
			summary.UpdatedCount++
		}
		if !touched[res.RecordID] {
			touched[res.RecordID] = true
			summary.TouchedIDs = append(summary.TouchedIDs, res.RecordID)
		}
	}

	if len(summary.Warnings) > 0 {
		summary.Status = StatusCompletedWithWarnings
	}

	blob, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	if err := stores.Log.AttachSummary(record.ID, blob); err != nil {
		return nil, err
	}

	return summary, nil
}

func duplicateError(invoice nfe.Invoice) *DuplicateInvoiceError {
	return &DuplicateInvoiceError{
		Number:     invoice.Number,
		Series:     invoice.Series,
		IssuerName: invoice.IssuerName,
	}
}

func newLogRecord(invoice nfe.Invoice, supplier *models.Supplier, ec ExecutionContext, xmlData []byte, filename string) *models.ImportedInvoice {
	record := &models.ImportedInvoice{
		AccessKey:          invoice.AccessKey,
		Number:             invoice.Number,
		Series:             invoice.Series,
		IssueDate:          invoice.IssueDate,
		IssuerTaxID:        invoice.IssuerTaxID,
		IssuerName:         invoice.IssuerName,
		IssuerStreet:       invoice.IssuerAddress.Street,
		IssuerStreetNumber: invoice.IssuerAddress.Number,
		IssuerDistrict:     invoice.IssuerAddress.District,
		IssuerMunicipality: invoice.IssuerAddress.Municipality,
		IssuerState:        invoice.IssuerAddress.State,
		IssuerPostalCode:   invoice.IssuerAddress.PostalCode,
		TotalValue:         invoice.TotalValue,
		Status:             models.StatusPending,
		Direction:          models.DirectionInbound,
		RawXML:             xmlData,
		XMLFilename:        filename,
		UserID:             ec.UserID,
		CompanyID:          ec.CompanyID,
	}
	if supplier != nil {
		record.SupplierID = &supplier.Id
	}
	return record
}
