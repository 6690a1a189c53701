package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	auth_handlers "github.com/stgeorges/biolms/handlers/auth"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/utils/auth"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var adminTestDBCounter int

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	adminTestDBCounter++
	dsn := fmt.Sprintf("file:admin_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), adminTestDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.JWTTokenBlacklist{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "biolms-test",
	})
	blacklist := auth.NewBlacklistService(db)
	adminHandler := NewHandler(db, nil, blacklist, nil)
	authHandler := auth_handlers.NewHandler(db, jwtManager, blacklist, nil)

	app := fiber.New()
	app.Post("/admin/users", adminHandler.CreateUser)
	app.Post("/auth/login", authHandler.Login)

	return app, db
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	return resp
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	app, db := newTestApp(t)

	resp := postJSON(t, app, "/admin/users", map[string]interface{}{
		"email":      "  Teacher@Example.com ",
		"password":   "Password123!",
		"first_name": "Grace",
		"last_name":  "Mwangi",
		"role":       "teacher",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d", resp.StatusCode)
	}

	var user model.User
	if err := db.Where("email = ?", "teacher@example.com").First(&user).Error; err != nil {
		t.Fatalf("expected lower-cased email row: %v", err)
	}
	if user.Role != model.RoleTeacher {
		t.Fatalf("expected teacher role, got %s", user.Role)
	}

	// Login uses the same normalization, so the original casing works
	login := postJSON(t, app, "/auth/login", map[string]interface{}{
		"email":    "Teacher@Example.com",
		"password": "Password123!",
	})
	if login.StatusCode != http.StatusOK {
		t.Fatalf("login with mixed-case email: expected 200, got %d", login.StatusCode)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	app, _ := newTestApp(t)

	body := map[string]interface{}{
		"email":      "dup@example.com",
		"password":   "Password123!",
		"first_name": "A",
		"last_name":  "B",
		"role":       "student",
	}
	if resp := postJSON(t, app, "/admin/users", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", resp.StatusCode)
	}
	// Same address with different casing hits the same account
	body["email"] = "DUP@example.com"
	if resp := postJSON(t, app, "/admin/users", body); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", resp.StatusCode)
	}
}
