package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestLogoutSetsNoCookie(t *testing.T) {
	app := fiber.New()
	app.Post("/api/logout", Logout)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/logout", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if sc := resp.Header.Get("Set-Cookie"); sc != "" {
		t.Errorf("unexpected Set-Cookie header: %q", sc)
	}
}
