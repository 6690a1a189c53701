package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/services/filestore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var libraryTestDBCounter int

func newTestService(t *testing.T) (*services.LibraryService, *gorm.DB) {
	t.Helper()

	libraryTestDBCounter++
	dsn := fmt.Sprintf("file:library_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), libraryTestDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.LibraryResource{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	files, err := filestore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to prepare file store: %v", err)
	}
	return services.NewLibraryService(db, files, []string{"pdf"}, 1024), db
}

// appAs mounts the delete route with the given user injected the way
// the auth middleware does.
func appAs(h *Handler, user *model.User) *fiber.App {
	app := fiber.New()
	app.Delete("/library/:id", func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	}, h.Delete)
	return app
}

func TestDeleteIsAdminOnly(t *testing.T) {
	svc, db := newTestService(t)
	handler := NewHandler(svc)
	ctx := context.Background()

	teacher := model.User{Email: "grace@example.com", PasswordHash: "x", FirstName: "Grace", LastName: "Mwangi", Role: model.RoleTeacher}
	admin := model.User{Email: "root@example.com", PasswordHash: "x", FirstName: "Ada", LastName: "Okafor", Role: model.RoleAdmin}
	for _, u := range []*model.User{&teacher, &admin} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	resource, err := svc.Upload(ctx, teacher.ID, &model.LibraryResource{Title: "Notes"},
		"notes.pdf", 3, strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	// The uploading teacher cannot delete their own resource
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/library/%d", resource.ID), nil)
	resp, err := appAs(handler, &teacher).Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("teacher delete: expected 403, got %d", resp.StatusCode)
	}
	if _, err := svc.Get(ctx, resource.ID); err != nil {
		t.Fatalf("resource should survive a forbidden delete: %v", err)
	}

	// An admin can
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/library/%d", resource.ID), nil)
	resp, err = appAs(handler, &admin).Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete: expected 200, got %d", resp.StatusCode)
	}
	if _, err := svc.Get(ctx, resource.ID); !errors.Is(err, services.ErrResourceNotFound) {
		t.Fatalf("expected resource gone, got %v", err)
	}
}
