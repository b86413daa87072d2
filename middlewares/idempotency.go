package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"nfe-import-backend/database"
	"nfe-import-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// KeyStore persists idempotency records. FindOrCreate returns the stored
// record for the key, creating a pending one when none exists yet.
type KeyStore interface {
	FindOrCreate(rec *models.IdempotencyKey) (*models.IdempotencyKey, error)
	Complete(key string, status int, body []byte) error
}

// Idempotency processes Idempotency-Key for mutating HTTP methods. Import
// uploads are the main beneficiary: a client retrying a timed-out POST gets
// the stored response instead of a DuplicateInvoice error from the pipeline.
func Idempotency() fiber.Handler {
	return IdempotencyWithStore(&gormKeyStore{})
}

// IdempotencyWithStore is Idempotency with an explicit record store.
func IdempotencyWithStore(store KeyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Idempotency-Key too long"})
		}

		companyID, _ := c.Locals("companyID").(string)
		userID, _ := c.Locals("userID").(string)
		if companyID == "" || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		path := c.OriginalURL() // includes query string
		body := c.Body()

		// Build deterministic request hash: method|path|body|company|user
		h := sha256.New()
		h.Write([]byte(method))
		h.Write([]byte{'\n'})
		h.Write([]byte(path))
		h.Write([]byte{'\n'})
		h.Write(body)
		h.Write([]byte{'\n'})
		h.Write([]byte(companyID))
		h.Write([]byte{'\n'})
		h.Write([]byte(userID))
		reqHash := hex.EncodeToString(h.Sum(nil))

		existing, err := store.FindOrCreate(&models.IdempotencyKey{
			Key:            key,
			RequestHash:    reqHash,
			Method:         method,
			Path:           path,
			CompanyID:      companyID,
			UserID:         userID,
			ResponseStatus: 0,
		})
		if err != nil {
			return err
		}

		if existing.RequestHash != reqHash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if existing.ResponseStatus != 0 && existing.ResponseBody != nil {
			// Completed response stored. Replay it and stop here; the
			// handler must not run a second time for this key.
			c.Status(existing.ResponseStatus)
			return c.Send(existing.ResponseBody)
		}

		// Pending/in-progress: run the handler once.
		if err := c.Next(); err != nil {
			return err
		}

		// Store the response (best-effort).
		status := c.Response().StatusCode()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		_ = store.Complete(key, status, blob)

		return nil
	}
}

type gormKeyStore struct{}

func (s *gormKeyStore) FindOrCreate(rec *models.IdempotencyKey) (*models.IdempotencyKey, error) {
	var existing models.IdempotencyKey
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ?", rec.Key).First(&existing).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			if e2 := tx.Create(rec).Error; e2 != nil {
				// Unique race: another request inserted first, read it back.
				return tx.Where("key = ?", rec.Key).First(&existing).Error
			}
			existing = *rec
		}
		return nil
	})
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
	}
	return &existing, nil
}

func (s *gormKeyStore) Complete(key string, status int, body []byte) error {
	now := time.Now().UTC()
	return database.DB.Model(&models.IdempotencyKey{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"response_status": status,
			"response_body":   body,
			"completed_at":    &now,
		}).Error
}
