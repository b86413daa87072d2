package routes

import (
	"github.com/gofiber/fiber/v2"

	"nfe-import-backend/controllers"
	"nfe-import-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard for mutating requests (import retries in particular)
	protected.Use(middlewares.Idempotency())

	// NFe import pipeline
	protected.Post("/nfe/import", controllers.ImportNFe)
	protected.Get("/nfe/imports", controllers.ListImports)
	protected.Get("/nfe/imports/:id", controllers.GetImport)
	protected.Get("/nfe/imports/:id/xml", controllers.DownloadImportXML)
	protected.Put("/nfe/imports/:id/status", controllers.UpdateImportStatus)

	// Catalog and stock, read-only
	protected.Get("/products", controllers.GetProducts)
	protected.Get("/stock", controllers.GetStock)
	protected.Get("/suppliers", controllers.GetSuppliers)
}
