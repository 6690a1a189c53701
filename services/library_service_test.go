package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services/filestore"
	"gorm.io/gorm"
)

func newLibraryService(t *testing.T, db *gorm.DB) (*LibraryService, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := filestore.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return NewLibraryService(db, files, []string{"pdf", "mp4"}, 2048), dir
}

func uploadResource(t *testing.T, svc *LibraryService, uploaderID uint, title, fileName, tags, category string) *model.LibraryResource {
	t.Helper()
	resource, err := svc.Upload(context.Background(), uploaderID, &model.LibraryResource{
		Title:    title,
		Author:   "C. Darwin",
		Tags:     tags,
		Category: category,
	}, fileName, 12, strings.NewReader("file content"))
	if err != nil {
		t.Fatalf("upload %s failed: %v", fileName, err)
	}
	return resource
}

func TestLibraryUploadValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, dir := newLibraryService(t, db)
	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)

	_, err := svc.Upload(ctx, teacher.ID, &model.LibraryResource{Title: "Bad"}, "notes.exe", 10, strings.NewReader("x"))
	if !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Fatalf("expected ErrFileTypeNotAllowed, got %v", err)
	}

	_, err = svc.Upload(ctx, teacher.ID, &model.LibraryResource{Title: "Big"}, "huge.pdf", 1<<20, strings.NewReader("x"))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	// Rejected uploads leave neither rows nor files
	var count int64
	if err := db.Model(&model.LibraryResource{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows after rejections, got %d", count)
	}
	entries, err := os.ReadDir(filepath.Join(dir, filestore.SubdirLibrary))
	if err != nil {
		t.Fatalf("failed to read library dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files after rejections, got %d", len(entries))
	}
}

func TestLibraryUploadAndDownloadPath(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newLibraryService(t, db)
	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)

	resource := uploadResource(t, svc, teacher.ID, "Cell Diagrams", "cells.pdf", "cells,diagrams", "handouts")

	if resource.StoredName == "" || resource.StoredName == "cells.pdf" {
		t.Fatalf("expected generated stored name, got %q", resource.StoredName)
	}
	if resource.FileName != "cells.pdf" {
		t.Fatalf("expected original name kept, got %q", resource.FileName)
	}
	if resource.FileSize != int64(len("file content")) {
		t.Fatalf("expected recorded size %d, got %d", len("file content"), resource.FileSize)
	}
	if _, err := os.Stat(svc.FilePath(resource)); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
}

func TestLibrarySearchAndFilter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newLibraryService(t, db)
	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)

	uploadResource(t, svc, teacher.ID, "Mitosis Notes", "mitosis.pdf", "cells,division", "notes")
	uploadResource(t, svc, teacher.ID, "Ecology Field Guide", "ecology.pdf", "ecosystems", "guides")
	uploadResource(t, svc, teacher.ID, "Mitosis Video", "mitosis.mp4", "cells,video", "videos")

	bySearch, err := svc.List(ctx, LibraryFilter{Search: "mitosis"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(bySearch) != 2 {
		t.Fatalf("expected 2 search hits, got %d", len(bySearch))
	}

	byCategory, err := svc.List(ctx, LibraryFilter{Category: "guides"})
	if err != nil {
		t.Fatalf("category filter failed: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].Title != "Ecology Field Guide" {
		t.Fatalf("unexpected category result: %+v", byCategory)
	}

	byTag, err := svc.List(ctx, LibraryFilter{Tag: "cells"})
	if err != nil {
		t.Fatalf("tag filter failed: %v", err)
	}
	if len(byTag) != 2 {
		t.Fatalf("expected 2 tag hits, got %d", len(byTag))
	}

	categories, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("categories failed: %v", err)
	}
	if len(categories) != 3 {
		t.Fatalf("expected 3 categories, got %v", categories)
	}
}

func TestLibraryDeleteRemovesFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newLibraryService(t, db)
	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)

	resource := uploadResource(t, svc, teacher.ID, "Old Notes", "old.pdf", "", "")
	path := svc.FilePath(resource)

	if err := svc.Delete(ctx, resource.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, resource.ID); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err = %v", err)
	}
}
