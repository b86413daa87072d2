package models

import (
	"time"

	"gorm.io/datatypes"
)

// Import log status lifecycle. The import pipeline only ever creates records
// in StatusPending; the transitions below are driven by the platform UI.
const (
	StatusPending  = "pending"
	StatusViewed   = "viewed"
	StatusAnalyzed = "analyzed"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ImportedInvoice is the write-once log entry for one imported NFe document.
// AccessKey is the 44-digit fiscal key and is globally unique: a second import
// with the same key is rejected by the unique index even if two requests race
// past the in-pipeline duplicate check.
type ImportedInvoice struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccessKey string    `json:"access_key" gorm:"size:44;not null;uniqueIndex"`
	Number    string    `json:"number" gorm:"not null;index"`
	Series    string    `json:"series" gorm:"not null"`
	IssueDate time.Time `json:"issue_date" gorm:"type:date"`

	IssuerTaxID        string `json:"issuer_tax_id"`
	IssuerName         string `json:"issuer_name"`
	IssuerStreet       string `json:"issuer_street"`
	IssuerStreetNumber string `json:"issuer_street_number"`
	IssuerDistrict     string `json:"issuer_district"`
	IssuerMunicipality string `json:"issuer_municipality"`
	IssuerState        string `json:"issuer_state"`
	IssuerPostalCode   string `json:"issuer_postal_code"`

	SupplierID *uint     `json:"supplier_id" gorm:"index"`
	Supplier   *Supplier `json:"-" gorm:"foreignKey:SupplierID;references:Id"`

	TotalValue float64 `json:"total_value" gorm:"type:numeric(12,2)"`

	Status    string `json:"status" gorm:"type:VARCHAR(20);not null;default:pending"`
	Direction string `json:"direction" gorm:"type:VARCHAR(20);not null;default:inbound"`

	// Original document, kept byte-for-byte for later download.
	RawXML      []byte `json:"-" gorm:"type:bytea"`
	XMLFilename string `json:"xml_filename"`

	// Result of the pipeline run that created this record.
	Summary datatypes.JSON `json:"summary" gorm:"type:jsonb"`

	UserID    string    `json:"user_id" gorm:"size:128"`
	CompanyID string    `json:"company_id" gorm:"size:128;index"`
	CreatedAt time.Time `json:"imported_at"`
}
