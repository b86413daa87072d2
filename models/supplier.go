package models

// Supplier is the registry of NFe issuers, keyed by CNPJ. Entries are created
// on first import of a document from that issuer and refreshed with the
// address data carried in enderEmit.
type Supplier struct {
	Id           uint   `json:"id" gorm:"primaryKey"`
	TaxID        string `json:"tax_id" gorm:"size:14;not null;uniqueIndex"`
	Name         string `json:"name" gorm:"not null"`
	Street       string `json:"street"`
	StreetNumber string `json:"street_number"`
	District     string `json:"district"`
	Municipality string `json:"municipality"`
	State        string `json:"state" gorm:"size:2"`
	PostalCode   string `json:"postal_code" gorm:"size:8"`
}
