package database

import (
	"fmt"
	"os"

	"nfe-import-backend/models"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=America/Sao_Paulo",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), port)

	var err error
	// TranslateError maps Postgres unique violations (23505) onto
	// gorm.ErrDuplicatedKey, which the importer relies on to detect a
	// racing duplicate import at write time.
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
}

func AutoMigrate() {
	if err := DB.AutoMigrate(
		&models.Company{}, &models.User{},
		&models.ProductCategory{}, &models.Product{},
		&models.StockLocation{}, &models.StockRecord{},
		&models.Supplier{}, &models.ImportedInvoice{},
		&models.IdempotencyKey{},
	); err != nil {
		log.Fatal().Err(err).Msg("automigrate failed")
	}
}
