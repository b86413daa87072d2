package models

import "time"

const LocationUsageInternal = "internal"

type StockLocation struct {
	Id    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"not null"`
	Usage string `json:"usage" gorm:"type:VARCHAR(20);index"`
}

// StockRecord tracks quantity on hand for one product at one location.
// The (product, location) pair is unique; all quantity changes from imports
// go through the additive upsert in the importer, never a plain write.
type StockRecord struct {
	Id               uint          `json:"id" gorm:"primaryKey"`
	ProductID        string        `json:"product_id" gorm:"not null;index:idx_stock_records_product_location,unique,priority:1"`
	Product          Product       `json:"-" gorm:"foreignKey:ProductID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	LocationID       uint          `json:"location_id" gorm:"not null;index:idx_stock_records_product_location,unique,priority:2"`
	Location         StockLocation `json:"-" gorm:"foreignKey:LocationID;references:Id"`
	QuantityOnHand   float64       `json:"quantity_on_hand" gorm:"type:numeric(14,3)"`
	ReservedQuantity float64       `json:"reserved_quantity" gorm:"type:numeric(14,3)"`
	NfeReference     string        `json:"nfe_reference"` // access key of the last NFe that touched this record
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
