package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services/filestore"
	"gorm.io/gorm"
)

func newEssayService(t *testing.T, db *gorm.DB) (*EssayService, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := filestore.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return NewEssayService(db, files, []string{"pdf", "docx"}, 1024), dir
}

func createEssay(t *testing.T, svc *EssayService, courseID uint, allowsUpload bool, dueDate *time.Time) *model.Essay {
	t.Helper()
	essay, err := svc.Create(context.Background(), &model.Essay{
		CourseID:         courseID,
		Title:            "Photosynthesis",
		QuestionText:     "Explain the light-dependent reactions.",
		AllowsFileUpload: allowsUpload,
		MaxPoints:        20,
		DueDate:          dueDate,
	})
	if err != nil {
		t.Fatalf("failed to create essay: %v", err)
	}
	return essay
}

func TestEssaySubmitTextOnly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newEssayService(t, db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)
	essay := createEssay(t, svc, course.ID, false, nil)

	submission, err := svc.Submit(ctx, student.ID, essay.ID, "Chlorophyll absorbs light.", "", 0, nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submission.Graded {
		t.Error("new submission must start ungraded")
	}
	if submission.Score != nil {
		t.Error("new submission must have no score")
	}
}

func TestEssaySubmitOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newEssayService(t, db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)
	essay := createEssay(t, svc, course.ID, false, nil)

	if _, err := svc.Submit(ctx, student.ID, essay.ID, "first", "", 0, nil); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, student.ID, essay.ID, "second", "", 0, nil); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestEssaySubmitAfterDueDate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newEssayService(t, db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	yesterday := time.Now().Add(-24 * time.Hour)
	essay := createEssay(t, svc, course.ID, false, &yesterday)

	_, err := svc.Submit(ctx, student.ID, essay.ID, "too late", "", 0, nil)
	if !errors.Is(err, ErrPastDueDate) {
		t.Fatalf("expected ErrPastDueDate, got %v", err)
	}
}

func TestEssaySubmitFileRules(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, uploadDir := newEssayService(t, db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	noUpload := createEssay(t, svc, course.ID, false, nil)
	if _, err := svc.Submit(ctx, student.ID, noUpload.ID, "", "essay.pdf", 10, strings.NewReader("x")); !errors.Is(err, ErrUploadNotAllowed) {
		t.Fatalf("expected ErrUploadNotAllowed, got %v", err)
	}

	withUpload := createEssay(t, svc, course.ID, true, nil)

	if _, err := svc.Submit(ctx, student.ID, withUpload.ID, "", "virus.exe", 10, strings.NewReader("x")); !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Fatalf("expected ErrFileTypeNotAllowed, got %v", err)
	}
	if _, err := svc.Submit(ctx, student.ID, withUpload.ID, "", "big.pdf", 4096, strings.NewReader("x")); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	// Rejected uploads must leave no file behind
	entries, err := os.ReadDir(filepath.Join(uploadDir, filestore.SubdirEssays))
	if err != nil {
		t.Fatalf("failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty upload dir after rejections, found %d files", len(entries))
	}

	// A valid upload is stored under a generated name
	submission, err := svc.Submit(ctx, student.ID, withUpload.ID, "", "essay.pdf", 10, strings.NewReader("body text"))
	if err != nil {
		t.Fatalf("valid submit failed: %v", err)
	}
	if submission.UploadedFile == "" || submission.UploadedFile == "essay.pdf" {
		t.Fatalf("expected a generated stored name, got %q", submission.UploadedFile)
	}
	if submission.OriginalName != "essay.pdf" {
		t.Fatalf("expected original name to be kept, got %q", submission.OriginalName)
	}

	path, hasFile := svc.SubmissionFilePath(submission)
	if !hasFile {
		t.Fatal("expected submission to have a file")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	if _, err := svc.Submit(ctx, student.ID, withUpload.ID, "", "", 0, nil); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestEssaySubmitRequiresContent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newEssayService(t, db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)
	essay := createEssay(t, svc, course.ID, true, nil)

	_, err := svc.Submit(ctx, student.ID, essay.ID, "", "", 0, nil)
	if !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
}

func TestEssayGrade(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc, _ := newEssayService(t, db)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)
	essay := createEssay(t, svc, course.ID, false, nil) // MaxPoints 20

	submission, err := svc.Submit(ctx, student.ID, essay.ID, "answer", "", 0, nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if _, err := svc.Grade(ctx, submission.ID, 25, ""); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("expected ErrScoreOutOfRange above max, got %v", err)
	}
	if _, err := svc.Grade(ctx, submission.ID, -1, ""); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("expected ErrScoreOutOfRange below zero, got %v", err)
	}

	graded, err := svc.Grade(ctx, submission.ID, 18, "Well argued")
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if !graded.Graded || graded.Score == nil || *graded.Score != 18 {
		t.Fatalf("unexpected graded state: graded=%v score=%v", graded.Graded, graded.Score)
	}
	if graded.GradedAt == nil {
		t.Fatal("expected GradedAt to be set")
	}

	// Regrading overwrites
	regraded, err := svc.Grade(ctx, submission.ID, 12, "Recounted")
	if err != nil {
		t.Fatalf("regrade failed: %v", err)
	}
	if *regraded.Score != 12 {
		t.Fatalf("expected regraded score 12, got %d", *regraded.Score)
	}
}
