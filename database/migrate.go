package database

import (
	"fmt"

	"nfe-import-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations beyond AutoMigrate:
// - Money/quantity column types (NUMERIC)
// - Unique index on imported_invoices.access_key (duplicate-import guard)
// - Partial unique index on products.internal_code (unique when present,
//   among active products; archived products release their code)
// - Unique index on stock_records (product_id, location_id) backing the upsert
// - Basic CHECK constraints
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		// --- Enforce numeric column types (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE products          ALTER COLUMN list_price        TYPE numeric(12,2)`,
			`ALTER TABLE products          ALTER COLUMN cost_price        TYPE numeric(12,2)`,
			`ALTER TABLE imported_invoices ALTER COLUMN total_value       TYPE numeric(12,2)`,
			`ALTER TABLE stock_records     ALTER COLUMN quantity_on_hand  TYPE numeric(14,3)`,
			`ALTER TABLE stock_records     ALTER COLUMN reserved_quantity TYPE numeric(14,3)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("numeric type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_imported_invoices_access_key ON imported_invoices (access_key)`,
			`DROP INDEX IF EXISTS idx_products_internal_code`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_internal_code_active ON products (internal_code) WHERE internal_code <> '' AND active`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_records_product_location ON stock_records (product_id, location_id)`,
			`CREATE INDEX IF NOT EXISTS idx_imported_invoices_company ON imported_invoices (company_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Foreign key: stock_records.product_id -> products.id (RESTRICT/RESTRICT) ---
		fk := `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1
		FROM pg_constraint
		WHERE conrelid = 'stock_records'::regclass
		  AND conname  = 'fk_stock_records_product'
	) THEN
		ALTER TABLE stock_records
		ADD CONSTRAINT fk_stock_records_product
		FOREIGN KEY (product_id)
		REFERENCES products(id)
		ON UPDATE RESTRICT
		ON DELETE RESTRICT;
	END IF;
END $$;`
		if err := tx.Exec(fk).Error; err != nil {
			return fmt.Errorf("foreign key migration failed: %w", err)
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			// Reserved quantity never negative
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'stock_records'::regclass
					  AND conname  = 'chk_stock_records_reserved_nonneg'
				) THEN
					ALTER TABLE stock_records
					ADD CONSTRAINT chk_stock_records_reserved_nonneg
					CHECK (reserved_quantity >= 0);
				END IF;
			END $$;`,
			// Access key never blank (blank keys abort before the log write)
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'imported_invoices'::regclass
					  AND conname  = 'chk_imported_invoices_access_key_nonblank'
				) THEN
					ALTER TABLE imported_invoices
					ADD CONSTRAINT chk_imported_invoices_access_key_nonblank
					CHECK (access_key <> '');
				END IF;
			END $$;`,
			// Non-negative catalog prices
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'products'::regclass
					  AND conname  = 'chk_products_list_price_nonneg'
				) THEN
					ALTER TABLE products
					ADD CONSTRAINT chk_products_list_price_nonneg
					CHECK (list_price >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}

// Seed makes sure the prerequisites the importer treats as fatal when absent
// actually exist on a fresh install: one default product category and one
// internal stock location.
func Seed() error {
	category := models.ProductCategory{Name: "All"}
	if err := DB.Where(models.ProductCategory{Name: category.Name}).
		FirstOrCreate(&category).Error; err != nil {
		return fmt.Errorf("seed default category: %w", err)
	}

	location := models.StockLocation{Name: "Stock", Usage: models.LocationUsageInternal}
	if err := DB.Where(models.StockLocation{Usage: models.LocationUsageInternal}).
		FirstOrCreate(&location).Error; err != nil {
		return fmt.Errorf("seed internal stock location: %w", err)
	}
	return nil
}
