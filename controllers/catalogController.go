package controllers

import (
	"nfe-import-backend/database"
	"nfe-import-backend/models"
	"nfe-import-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// GetProducts lists active catalog products, including those auto-created by
// imports. Optional filters: code (exact), name (substring),
// include_inactive=true to also list archived products.
func GetProducts(c *fiber.Ctx) error {
	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	q := database.DB.Model(&models.Product{}).Preload("Category")
	if c.Query("include_inactive") != "true" {
		q = q.Where("active")
	}
	if code := c.Query("code"); code != "" {
		q = q.Where("internal_code = ?", code)
	}
	if name := c.Query("name"); name != "" {
		q = q.Where("name ILIKE ?", "%"+name+"%")
	}

	var products []models.Product
	if err := q.Order("name").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		return err
	}
	return c.JSON(products)
}

// GetStock lists stock-on-hand records. Optional filter: product_id.
func GetStock(c *fiber.Ctx) error {
	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	q := database.DB.Model(&models.StockRecord{}).Preload("Product").Preload("Location")
	if productID := c.Query("product_id"); productID != "" {
		q = q.Where("product_id = ?", productID)
	}

	var records []models.StockRecord
	if err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return err
	}
	return c.JSON(records)
}

// GetSuppliers lists the NFe issuer registry.
func GetSuppliers(c *fiber.Ctx) error {
	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	var suppliers []models.Supplier
	if err := database.DB.Order("name").Limit(limit).Offset(offset).
		Find(&suppliers).Error; err != nil {
		return err
	}
	return c.JSON(suppliers)
}
