package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stgeorges/biolms/model"
)

func TestLiveClassSingleActive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLiveClassService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	other := createCourse(t, db, "Chemistry", 10, nil)

	first, err := svc.Start(ctx, course.ID, "Monday session", "", "https://stream.example.com/1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !first.IsActive() {
		t.Fatal("new session must be active")
	}

	// Second session on the same course is rejected
	if _, err := svc.Start(ctx, course.ID, "Clash", "", "https://stream.example.com/2"); !errors.Is(err, ErrLiveClassActive) {
		t.Fatalf("expected ErrLiveClassActive, got %v", err)
	}

	// A different course is unaffected
	if _, err := svc.Start(ctx, other.ID, "Other course", "", "https://stream.example.com/3"); err != nil {
		t.Fatalf("start on other course failed: %v", err)
	}

	// Ending frees the slot
	ended, err := svc.End(ctx, first.ID)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if ended.IsActive() {
		t.Fatal("ended session must not be active")
	}
	if _, err := svc.End(ctx, first.ID); !errors.Is(err, ErrLiveClassEnded) {
		t.Fatalf("expected ErrLiveClassEnded on double end, got %v", err)
	}

	if _, err := svc.Start(ctx, course.ID, "Tuesday session", "", "https://stream.example.com/4"); err != nil {
		t.Fatalf("start after end failed: %v", err)
	}
}

func TestLiveClassActiveForCourse(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLiveClassService(db)
	course := createCourse(t, db, "Biology", 10, nil)

	active, err := svc.ActiveForCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active != nil {
		t.Fatal("expected no active session")
	}

	started, err := svc.Start(ctx, course.ID, "Session", "", "https://stream.example.com/1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	active, err = svc.ActiveForCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active == nil || active.ID != started.ID {
		t.Fatal("expected the started session to be active")
	}
}

func TestLiveClassEndStale(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewLiveClassService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	other := createCourse(t, db, "Chemistry", 10, nil)

	stale := &model.LiveClass{
		CourseID:  course.ID,
		Title:     "Forgotten session",
		StreamURL: "https://stream.example.com/old",
		StartedAt: time.Now().Add(-13 * time.Hour),
	}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("failed to create stale session: %v", err)
	}
	fresh, err := svc.Start(ctx, other.ID, "Recent session", "", "https://stream.example.com/new")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ended, err := svc.EndStale(ctx, 12*time.Hour)
	if err != nil {
		t.Fatalf("EndStale failed: %v", err)
	}
	if ended != 1 {
		t.Fatalf("expected 1 stale session ended, got %d", ended)
	}

	reloaded, err := svc.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("failed to reload stale session: %v", err)
	}
	if reloaded.IsActive() {
		t.Fatal("stale session should be ended")
	}

	stillActive, err := svc.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("failed to reload fresh session: %v", err)
	}
	if !stillActive.IsActive() {
		t.Fatal("fresh session should remain active")
	}
}
