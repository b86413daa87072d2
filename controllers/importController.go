package controllers

import (
	"io"

	"nfe-import-backend/database"
	"nfe-import-backend/importer"
	"nfe-import-backend/middlewares"
	"nfe-import-backend/models"
	"nfe-import-backend/nfe"
	"nfe-import-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ImportNFe receives one NFe XML document (multipart field "xml_file") and
// runs the import pipeline for it. Fatal pipeline errors are translated by
// the global error handler; per-line warnings come back inside the summary.
func ImportNFe(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("xml_file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "no XML file provided (multipart field xml_file)")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not open uploaded file")
	}
	defer file.Close()

	xmlData, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file")
	}

	ec := importer.ExecutionContext{
		UserID:    c.Locals("userID").(string),
		CompanyID: c.Locals("companyID").(string),
	}

	summary, err := importer.NewService(database.DB).
		Import(c.UserContext(), ec, xmlData, fileHeader.Filename)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

// ListImports returns the import log for the caller's company, newest first.
// Supports limit/offset pagination and an access_key filter.
func ListImports(c *fiber.Ctx) error {
	companyID := c.Locals("companyID").(string)

	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	q := database.DB.Model(&models.ImportedInvoice{}).
		Where("company_id = ?", companyID)

	if key := c.Query("access_key"); key != "" {
		q = q.Where("access_key = ?", nfe.OnlyDigits(key))
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var records []models.ImportedInvoice
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&records).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"total":   total,
		"imports": records,
	})
}

func GetImport(c *fiber.Ctx) error {
	record, err := findCompanyImport(c)
	if err != nil {
		return err
	}
	return c.JSON(record)
}

// DownloadImportXML serves the original document bytes, unmodified, as
// stored at import time.
func DownloadImportXML(c *fiber.Ctx) error {
	record, err := findCompanyImport(c)
	if err != nil {
		return err
	}
	if len(record.RawXML) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no XML file stored for this import")
	}

	filename := record.XMLFilename
	if filename == "" {
		filename = "nfe-" + record.AccessKey + ".xml"
	}
	c.Set(fiber.HeaderContentType, "application/xml")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(record.RawXML)
}

type statusUpdateInput struct {
	Status string `json:"status" validate:"required,oneof=pending viewed analyzed"`
}

// UpdateImportStatus moves a log entry through its review lifecycle
// (pending → viewed → analyzed). This is a platform concern: the pipeline
// itself never touches a record after creating it.
func UpdateImportStatus(c *fiber.Ctx) error {
	var input statusUpdateInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}

	record, err := findCompanyImport(c)
	if err != nil {
		return err
	}

	if err := database.DB.Model(record).Update("status", input.Status).Error; err != nil {
		return err
	}
	return c.JSON(record)
}

func findCompanyImport(c *fiber.Ctx) (*models.ImportedInvoice, error) {
	companyID := c.Locals("companyID").(string)

	var record models.ImportedInvoice
	err := database.DB.
		Where("id = ? AND company_id = ?", c.Params("id"), companyID).
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fiber.NewError(fiber.StatusNotFound, "import not found")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
