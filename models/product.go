package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product types and tracking modes are fixed constants: imported goods are
// always created as consumables without lot/serial tracking.
const (
	ProductTypeConsumable = "consu"
	TrackingNone          = "none"
)

type ProductCategory struct {
	Id   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;unique"`
}

// Product is a catalog entry. InternalCode is the issuer-assigned SKU taken
// from the NFe line (cProd); it is unique when present but may be empty for
// products created from description only.
type Product struct {
	Id            string          `json:"id" gorm:"primaryKey"`
	InternalCode  string          `json:"internal_code" gorm:"index"`
	Name          string          `json:"name" gorm:"not null"`
	NcmCode       string          `json:"ncm_code"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	Type          string          `json:"type" gorm:"type:VARCHAR(20)"`
	Tracking      string          `json:"tracking" gorm:"type:VARCHAR(20)"`
	ListPrice     float64         `json:"list_price" gorm:"type:numeric(12,2)"`
	CostPrice     float64         `json:"cost_price" gorm:"type:numeric(12,2)"`
	CategoryID    uint            `json:"-" gorm:"not null"`
	Category      ProductCategory `json:"category" gorm:"foreignKey:CategoryID;references:Id"`
	Active        bool            `json:"-"`
}

func (product *Product) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if product.Id == "" {
		product.Id = uuid.NewString()
	}
	return
}
