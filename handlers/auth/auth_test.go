package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/utils/auth"
	"github.com/stgeorges/biolms/utils/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var authTestDBCounter int

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	authTestDBCounter++
	dsn := fmt.Sprintf("file:auth_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), authTestDBCounter)
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
	handler := NewHandler(db, jwtManager, blacklist, nil)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	app := fiber.New()
	app.Post("/auth/register", handler.Register)
	app.Post("/auth/login", handler.Login)
	app.Post("/auth/refresh", handler.Refresh)
	app.Post("/auth/logout", authMiddleware.Required(), handler.Logout)
	app.Get("/auth/profile", authMiddleware.Required(), handler.Profile)

	return app, db
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, token string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if dest != nil {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
}

func registerBody() map[string]interface{} {
	return map[string]interface{}{
		"email":         "student@example.com",
		"password":      "Password123!",
		"first_name":    "Daniel",
		"last_name":     "Mensah",
		"date_of_birth": "2008-03-14",
	}
}

func TestRegisterCreatesStudent(t *testing.T) {
	app, db := newTestApp(t)

	resp := postJSON(t, app, "/auth/register", registerBody(), "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var user model.User
	if err := db.Where("email = ?", "student@example.com").First(&user).Error; err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	// Self-registration never grants elevated roles
	if user.Role != model.RoleStudent {
		t.Fatalf("expected student role, got %s", user.Role)
	}
	if user.HasPaid {
		t.Fatal("new accounts must start unpaid")
	}
	if user.PasswordHash == "Password123!" {
		t.Fatal("password stored in plain text")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app, _ := newTestApp(t)

	if resp := postJSON(t, app, "/auth/register", registerBody(), ""); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, app, "/auth/register", registerBody(), ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newTestApp(t)

	bad := registerBody()
	bad["password"] = "short"
	if resp := postJSON(t, app, "/auth/register", bad, ""); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("short password: expected 422, got %d", resp.StatusCode)
	}

	bad = registerBody()
	bad["date_of_birth"] = "14/03/2008"
	if resp := postJSON(t, app, "/auth/register", bad, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", resp.StatusCode)
	}
}

func TestLoginAndProfile(t *testing.T) {
	app, _ := newTestApp(t)
	postJSON(t, app, "/auth/register", registerBody(), "")

	resp := postJSON(t, app, "/auth/login", map[string]interface{}{
		"email":    "student@example.com",
		"password": "Password123!",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}

	var tokens TokenResponse
	decodeData(t, resp, &tokens)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected both tokens in login response")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	profileResp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("profile request failed: %v", err)
	}
	if profileResp.StatusCode != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", profileResp.StatusCode)
	}

	var profile model.UserResponse
	decodeData(t, profileResp, &profile)
	if profile.Email != "student@example.com" {
		t.Fatalf("unexpected profile email %q", profile.Email)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	app, _ := newTestApp(t)
	postJSON(t, app, "/auth/register", registerBody(), "")

	resp := postJSON(t, app, "/auth/login", map[string]interface{}{
		"email":    "student@example.com",
		"password": "WrongPassword1!",
	}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	app, _ := newTestApp(t)
	postJSON(t, app, "/auth/register", registerBody(), "")

	resp := postJSON(t, app, "/auth/login", map[string]interface{}{
		"email":    "student@example.com",
		"password": "Password123!",
	}, "")
	var tokens TokenResponse
	decodeData(t, resp, &tokens)

	if resp := postJSON(t, app, "/auth/logout", nil, tokens.AccessToken); resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	// The revoked access token no longer works
	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	profileResp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("profile request failed: %v", err)
	}
	if profileResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", profileResp.StatusCode)
	}
}

func TestRefreshRotation(t *testing.T) {
	app, _ := newTestApp(t)
	postJSON(t, app, "/auth/register", registerBody(), "")

	resp := postJSON(t, app, "/auth/login", map[string]interface{}{
		"email":    "student@example.com",
		"password": "Password123!",
	}, "")
	var tokens TokenResponse
	decodeData(t, resp, &tokens)

	refreshResp := postJSON(t, app, "/auth/refresh", map[string]interface{}{
		"refresh_token": tokens.RefreshToken,
	}, "")
	if refreshResp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", refreshResp.StatusCode)
	}
	var rotated TokenResponse
	decodeData(t, refreshResp, &rotated)
	if rotated.AccessToken == "" {
		t.Fatal("expected a new access token")
	}

	// A used refresh token is revoked
	reused := postJSON(t, app, "/auth/refresh", map[string]interface{}{
		"refresh_token": tokens.RefreshToken,
	}, "")
	if reused.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: expected 401, got %d", reused.StatusCode)
	}

	// An access token is not accepted as a refresh token
	wrongType := postJSON(t, app, "/auth/refresh", map[string]interface{}{
		"refresh_token": rotated.AccessToken,
	}, "")
	if wrongType.StatusCode != http.StatusUnauthorized {
		t.Fatalf("access token as refresh: expected 401, got %d", wrongType.StatusCode)
	}
}
