package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stgeorges/biolms/model"
)

func TestCurriculumTreeOrdering(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCurriculumService(db)
	course := createCourse(t, db, "Biology", 10, nil)

	// Created without explicit order, modules append sequentially
	m1, err := svc.CreateModule(ctx, course.ID, "Cells", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}
	m2, err := svc.CreateModule(ctx, course.ID, "Genetics", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}
	if m1.Order != 1 || m2.Order != 2 {
		t.Fatalf("expected orders 1,2 got %d,%d", m1.Order, m2.Order)
	}

	// Explicit order wins
	topicB, err := svc.CreateTopic(ctx, course.ID, m1.ID, "Organelles", "", 2)
	if err != nil {
		t.Fatalf("create topic failed: %v", err)
	}
	topicA, err := svc.CreateTopic(ctx, course.ID, m1.ID, "Membranes", "", 1)
	if err != nil {
		t.Fatalf("create topic failed: %v", err)
	}

	if _, err := svc.CreateLesson(ctx, course.ID, topicA.ID, &model.Lesson{Title: "Diffusion"}); err != nil {
		t.Fatalf("create lesson failed: %v", err)
	}

	tree, err := svc.CourseTree(ctx, course.ID)
	if err != nil {
		t.Fatalf("course tree failed: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(tree))
	}
	if tree[0].ID != m1.ID {
		t.Fatal("modules out of order")
	}
	if len(tree[0].Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(tree[0].Topics))
	}
	if tree[0].Topics[0].ID != topicA.ID || tree[0].Topics[1].ID != topicB.ID {
		t.Fatal("topics not sorted by order column")
	}
	if len(tree[0].Topics[0].Lessons) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(tree[0].Topics[0].Lessons))
	}
}

func TestCurriculumParentValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCurriculumService(db)

	courseA := createCourse(t, db, "Biology", 10, nil)
	courseB := createCourse(t, db, "Chemistry", 10, nil)

	moduleA, err := svc.CreateModule(ctx, courseA.ID, "Cells", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}

	// A topic cannot be attached under another course's module
	if _, err := svc.CreateTopic(ctx, courseB.ID, moduleA.ID, "Stolen", "", 0); !errors.Is(err, ErrWrongParent) {
		t.Fatalf("expected ErrWrongParent, got %v", err)
	}

	topicA, err := svc.CreateTopic(ctx, courseA.ID, moduleA.ID, "Organelles", "", 0)
	if err != nil {
		t.Fatalf("create topic failed: %v", err)
	}
	if _, err := svc.CreateLesson(ctx, courseB.ID, topicA.ID, &model.Lesson{Title: "Stolen"}); !errors.Is(err, ErrWrongParent) {
		t.Fatalf("expected ErrWrongParent, got %v", err)
	}

	if _, err := svc.CreateModule(ctx, 99999, "Ghost", "", 0); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestCurriculumCascadeDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCurriculumService(db)
	course := createCourse(t, db, "Biology", 10, nil)

	module, err := svc.CreateModule(ctx, course.ID, "Cells", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}
	topic, err := svc.CreateTopic(ctx, course.ID, module.ID, "Organelles", "", 0)
	if err != nil {
		t.Fatalf("create topic failed: %v", err)
	}
	lesson, err := svc.CreateLesson(ctx, course.ID, topic.ID, &model.Lesson{Title: "Nucleus"})
	if err != nil {
		t.Fatalf("create lesson failed: %v", err)
	}

	if err := svc.DeleteModule(ctx, module.ID); err != nil {
		t.Fatalf("delete module failed: %v", err)
	}

	if _, _, err := svc.GetLesson(ctx, lesson.ID); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected lesson to be gone, got %v", err)
	}
	if _, err := svc.CourseIDForTopic(ctx, topic.ID); !errors.Is(err, ErrTopicNotFound) {
		t.Fatalf("expected topic to be gone, got %v", err)
	}

	tree, err := svc.CourseTree(ctx, course.ID)
	if err != nil {
		t.Fatalf("course tree failed: %v", err)
	}
	if len(tree) != 0 {
		t.Fatalf("expected empty tree, got %d modules", len(tree))
	}
}

func TestCurriculumMoveReordersSiblings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCurriculumService(db)
	course := createCourse(t, db, "Biology", 10, nil)

	var modules [3]*model.CourseModule
	for i, title := range []string{"Cells", "Genetics", "Ecology"} {
		m, err := svc.CreateModule(ctx, course.ID, title, "", 0)
		if err != nil {
			t.Fatalf("create module failed: %v", err)
		}
		modules[i] = m
	}

	// Move the last module to the front
	moved, err := svc.MoveModule(ctx, modules[2].ID, 1)
	if err != nil {
		t.Fatalf("move module failed: %v", err)
	}
	if moved.Order != 1 {
		t.Fatalf("expected order 1, got %d", moved.Order)
	}

	tree, err := svc.CourseTree(ctx, course.ID)
	if err != nil {
		t.Fatalf("course tree failed: %v", err)
	}
	got := []uint{tree[0].ID, tree[1].ID, tree[2].ID}
	want := []uint{modules[2].ID, modules[0].ID, modules[1].ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected module %d, got %d", i+1, want[i], got[i])
		}
	}
	// Positions stay dense after the shuffle
	for i := range tree {
		if tree[i].Order != i+1 {
			t.Fatalf("expected dense orders, module at index %d has order %d", i, tree[i].Order)
		}
	}

	// Out-of-range positions clamp to the end
	if moved, err = svc.MoveModule(ctx, modules[2].ID, 99); err != nil {
		t.Fatalf("move module failed: %v", err)
	}
	if moved.Order != 3 {
		t.Fatalf("expected clamp to 3, got %d", moved.Order)
	}
}

func TestCurriculumMoveReparent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCurriculumService(db)
	course := createCourse(t, db, "Biology", 10, nil)
	other := createCourse(t, db, "Chemistry", 10, nil)

	m1, err := svc.CreateModule(ctx, course.ID, "Cells", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}
	m2, err := svc.CreateModule(ctx, course.ID, "Genetics", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}
	foreign, err := svc.CreateModule(ctx, other.ID, "Atoms", "", 0)
	if err != nil {
		t.Fatalf("create module failed: %v", err)
	}

	topic, err := svc.CreateTopic(ctx, course.ID, m1.ID, "Organelles", "", 0)
	if err != nil {
		t.Fatalf("create topic failed: %v", err)
	}
	stay, err := svc.CreateTopic(ctx, course.ID, m1.ID, "Membranes", "", 0)
	if err != nil {
		t.Fatalf("create topic failed: %v", err)
	}

	// Reparenting into another course's module is rejected
	if _, err := svc.MoveTopic(ctx, topic.ID, &foreign.ID, 1); !errors.Is(err, ErrWrongParent) {
		t.Fatalf("expected ErrWrongParent, got %v", err)
	}

	moved, err := svc.MoveTopic(ctx, topic.ID, &m2.ID, 1)
	if err != nil {
		t.Fatalf("move topic failed: %v", err)
	}
	if moved.ModuleID != m2.ID || moved.Order != 1 {
		t.Fatalf("expected topic under module %d at order 1, got module %d order %d", m2.ID, moved.ModuleID, moved.Order)
	}

	// The old parent closes the gap
	var remaining model.Topic
	if err := db.First(&remaining, stay.ID).Error; err != nil {
		t.Fatalf("load remaining topic: %v", err)
	}
	if remaining.Order != 1 {
		t.Fatalf("expected old sibling shifted to order 1, got %d", remaining.Order)
	}
}
