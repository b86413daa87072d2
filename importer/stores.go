package importer

import (
	"errors"

	"nfe-import-backend/models"
	"nfe-import-backend/nfe"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Collaborator interfaces the pipeline runs against. Production code binds
// them to GORM inside the per-document transaction; tests bind in-memory
// fakes.

type Catalog interface {
	// FindByCode and FindByName return (nil, nil) when no product matches.
	// Archived (inactive) products are invisible to resolution.
	FindByCode(code string) (*models.Product, error)
	FindByName(name string) (*models.Product, error)
	Create(product *models.Product) error
	// DefaultCategory returns (nil, nil) when no category exists at all.
	DefaultCategory() (*models.ProductCategory, error)
}

type Stock interface {
	// ApplyDelta atomically adds qty to the (product, location) record,
	// creating it with reserved_quantity = 0 when absent.
	ApplyDelta(productID string, locationID uint, qty float64, accessKey string) (StockResult, error)
}

// StockResult reports the touched record and whether it was newly created.
type StockResult struct {
	RecordID uint
	Created  bool
}

type ImportLog interface {
	ExistsByAccessKey(key string) (bool, error)
	Create(record *models.ImportedInvoice) error
	// AttachSummary fills in the pipeline result on the record created by
	// this same run. Called inside the creation transaction only.
	AttachSummary(id uint, summary []byte) error
}

type Locations interface {
	// DefaultInternal returns (nil, nil) when no internal location exists.
	DefaultInternal() (*models.StockLocation, error)
}

type Issuers interface {
	// Upsert registers or refreshes the document issuer, keyed by tax id.
	Upsert(invoice nfe.Invoice) (*models.Supplier, error)
}

// Stores bundles the collaborators for one pipeline run.
type Stores struct {
	Catalog   Catalog
	Stock     Stock
	Log       ImportLog
	Locations Locations
	Issuers   Issuers
}

// NewStores binds GORM-backed collaborators to db, typically the per-document
// transaction opened by Service.Import.
func NewStores(db *gorm.DB) Stores {
	return Stores{
		Catalog:   &gormCatalog{db: db},
		Stock:     &gormStock{db: db},
		Log:       &gormImportLog{db: db},
		Locations: &gormLocations{db: db},
		Issuers:   &gormIssuers{db: db},
	}
}

// ---- Catalog ---------------------------------------------------------------

type gormCatalog struct{ db *gorm.DB }

func (s *gormCatalog) FindByCode(code string) (*models.Product, error) {
	var product models.Product
	err := s.db.Where("internal_code = ? AND active", code).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *gormCatalog) FindByName(name string) (*models.Product, error) {
	var product models.Product
	err := s.db.Where("name = ? AND active", name).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Create runs in a nested transaction (a savepoint when already inside the
// per-document transaction) so a constraint failure on one product does not
// abort the surrounding Postgres transaction for the remaining lines.
func (s *gormCatalog) Create(product *models.Product) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(product).Error
	})
}

func (s *gormCatalog) DefaultCategory() (*models.ProductCategory, error) {
	var category models.ProductCategory
	err := s.db.Order("id").First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// ---- Stock -----------------------------------------------------------------

type gormStock struct{ db *gorm.DB }

// ApplyDelta is a single conditional upsert so that two documents touching the
// same (product, location) concurrently cannot lose an update. xmax = 0 only
// holds for a row inserted by the current transaction, which distinguishes
// created from updated without a second query.
func (s *gormStock) ApplyDelta(productID string, locationID uint, qty float64, accessKey string) (StockResult, error) {
	var res StockResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		row := tx.Raw(`
		INSERT INTO stock_records
			(product_id, location_id, quantity_on_hand, reserved_quantity, nfe_reference, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, NOW(), NOW())
		ON CONFLICT (product_id, location_id)
		DO UPDATE SET
			quantity_on_hand = stock_records.quantity_on_hand + EXCLUDED.quantity_on_hand,
			nfe_reference    = EXCLUDED.nfe_reference,
			updated_at       = NOW()
		RETURNING id, (xmax = 0) AS inserted`,
			productID, locationID, qty, accessKey).Row()
		return row.Scan(&res.RecordID, &res.Created)
	})
	if err != nil {
		return StockResult{}, err
	}
	return res, nil
}

// ---- Import log ------------------------------------------------------------

type gormImportLog struct{ db *gorm.DB }

func (s *gormImportLog) ExistsByAccessKey(key string) (bool, error) {
	var count int64
	err := s.db.Model(&models.ImportedInvoice{}).
		Where("access_key = ?", key).Count(&count).Error
	return count > 0, err
}

func (s *gormImportLog) Create(record *models.ImportedInvoice) error {
	return s.db.Create(record).Error
}

func (s *gormImportLog) AttachSummary(id uint, summary []byte) error {
	return s.db.Model(&models.ImportedInvoice{}).
		Where("id = ?", id).Update("summary", summary).Error
}

// ---- Locations -------------------------------------------------------------

type gormLocations struct{ db *gorm.DB }

func (s *gormLocations) DefaultInternal() (*models.StockLocation, error) {
	var location models.StockLocation
	err := s.db.Where("usage = ?", models.LocationUsageInternal).
		Order("id").First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// ---- Issuers ---------------------------------------------------------------

type gormIssuers struct{ db *gorm.DB }

func (s *gormIssuers) Upsert(invoice nfe.Invoice) (*models.Supplier, error) {
	if invoice.IssuerTaxID == "" {
		return nil, nil
	}
	supplier := models.Supplier{
		TaxID:        invoice.IssuerTaxID,
		Name:         invoice.IssuerName,
		Street:       invoice.IssuerAddress.Street,
		StreetNumber: invoice.IssuerAddress.Number,
		District:     invoice.IssuerAddress.District,
		Municipality: invoice.IssuerAddress.Municipality,
		State:        invoice.IssuerAddress.State,
		PostalCode:   invoice.IssuerAddress.PostalCode,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tax_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "street", "street_number", "district",
			"municipality", "state", "postal_code",
		}),
	}).Create(&supplier).Error
	if err != nil {
		return nil, err
	}
	if supplier.Id == 0 {
		// Conflict path on some drivers leaves the id unset; read it back.
		if err := s.db.Where("tax_id = ?", supplier.TaxID).First(&supplier).Error; err != nil {
			return nil, err
		}
	}
	return &supplier, nil
}
