package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stgeorges/biolms/model"
)

func TestNotificationFanOutAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNotificationService(db)

	admin := createUser(t, db, "admin@example.com", model.RoleAdmin, true)
	createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
	s1 := createUser(t, db, "s1@example.com", model.RoleStudent, true)
	s2 := createUser(t, db, "s2@example.com", model.RoleStudent, false)

	notification, err := svc.Send(ctx, admin.ID, model.NotificationScopeAll, nil, nil, "Term dates", "Term starts Monday.", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var recipients []model.NotificationRecipient
	if err := db.Where("notification_id = ?", notification.ID).Find(&recipients).Error; err != nil {
		t.Fatalf("failed to load recipients: %v", err)
	}
	// Students only; the teacher and admin are not notified
	if len(recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(recipients))
	}
	got := map[uint]bool{}
	for _, r := range recipients {
		got[r.UserID] = true
	}
	if !got[s1.ID] || !got[s2.ID] {
		t.Fatal("expected both students to be recipients")
	}
}

func TestNotificationFanOutCourse(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNotificationService(db)

	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
	enrolled := createUser(t, db, "enrolled@example.com", model.RoleStudent, true)
	pending := createUser(t, db, "pending@example.com", model.RoleStudent, true)
	course := createCourse(t, db, "Biology", 10, &teacher.ID)

	approveEnrollment(t, db, enrolled.ID, course.ID)
	if err := db.Create(&model.Enrollment{
		StudentID: pending.ID,
		CourseID:  course.ID,
		Status:    model.EnrollmentStatusPending,
	}).Error; err != nil {
		t.Fatalf("failed to create pending enrollment: %v", err)
	}

	notification, err := svc.Send(ctx, teacher.ID, model.NotificationScopeCourse, &course.ID, nil, "Quiz Friday", "Revision quiz this Friday.", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var recipients []model.NotificationRecipient
	if err := db.Where("notification_id = ?", notification.ID).Find(&recipients).Error; err != nil {
		t.Fatalf("failed to load recipients: %v", err)
	}
	// Only approved enrollees receive course-scoped notifications
	if len(recipients) != 1 || recipients[0].UserID != enrolled.ID {
		t.Fatalf("expected only the approved student, got %+v", recipients)
	}

	// Enrolling after the send does not deliver retroactively
	late := createUser(t, db, "late@example.com", model.RoleStudent, true)
	approveEnrollment(t, db, late.ID, course.ID)
	count, err := svc.UnreadCount(ctx, late.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("late enrollee should have no notifications, got %d", count)
	}
}

func TestNotificationScopeValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNotificationService(db)
	admin := createUser(t, db, "admin@example.com", model.RoleAdmin, true)
	course := createCourse(t, db, "Biology", 10, nil)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	cases := []struct {
		name     string
		scope    model.NotificationScope
		courseID *uint
		userID   *uint
	}{
		{"course scope without course", model.NotificationScopeCourse, nil, nil},
		{"user scope without user", model.NotificationScopeUser, nil, nil},
		{"all scope with course", model.NotificationScopeAll, &course.ID, nil},
		{"user scope with course", model.NotificationScopeUser, &course.ID, &student.ID},
	}
	for _, tc := range cases {
		_, err := svc.Send(ctx, admin.ID, tc.scope, tc.courseID, tc.userID, "t", "m", nil)
		if !errors.Is(err, ErrScopeTarget) {
			t.Errorf("%s: expected ErrScopeTarget, got %v", tc.name, err)
		}
	}

	if _, err := svc.Send(ctx, admin.ID, model.NotificationScope("bogus"), nil, nil, "t", "m", nil); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestNotificationMarkAsReadIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNotificationService(db)

	admin := createUser(t, db, "admin@example.com", model.RoleAdmin, true)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	if _, err := svc.Send(ctx, admin.ID, model.NotificationScopeUser, nil, &student.ID, "Fees", "Please settle fees.", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	list, err := svc.ListForUser(ctx, student.ID, true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 unread notification, got %d", len(list))
	}

	first, err := svc.MarkAsRead(ctx, student.ID, list[0].ID)
	if err != nil {
		t.Fatalf("mark as read failed: %v", err)
	}
	if first.ReadAt == nil {
		t.Fatal("expected ReadAt to be set")
	}
	firstReadAt := *first.ReadAt

	time.Sleep(10 * time.Millisecond)
	second, err := svc.MarkAsRead(ctx, student.ID, list[0].ID)
	if err != nil {
		t.Fatalf("second mark as read failed: %v", err)
	}
	if !second.ReadAt.Equal(firstReadAt) {
		t.Fatalf("re-reading shifted the timestamp: %v -> %v", firstReadAt, second.ReadAt)
	}

	count, err := svc.UnreadCount(ctx, student.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread, got %d", count)
	}

	// A user cannot mark someone else's notification
	other := createUser(t, db, "other@example.com", model.RoleStudent, true)
	if _, err := svc.MarkAsRead(ctx, other.ID, list[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound for foreign recipient, got %v", err)
	}
}

func TestNotificationPruneRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNotificationService(db)

	admin := createUser(t, db, "admin@example.com", model.RoleAdmin, true)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)

	if _, err := svc.Send(ctx, admin.ID, model.NotificationScopeUser, nil, &student.ID, "Old", "Old message.", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := svc.Send(ctx, admin.ID, model.NotificationScopeUser, nil, &student.ID, "New", "New message.", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	list, err := svc.ListForUser(ctx, student.ID, false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	// Mark both read, then age one past the retention window
	for _, r := range list {
		if _, err := svc.MarkAsRead(ctx, student.ID, r.ID); err != nil {
			t.Fatalf("mark as read failed: %v", err)
		}
	}
	old := time.Now().Add(-100 * 24 * time.Hour)
	if err := db.Model(&model.NotificationRecipient{}).
		Where("id = ?", list[0].ID).
		Update("read_at", old).Error; err != nil {
		t.Fatalf("failed to age recipient: %v", err)
	}

	pruned, err := svc.PruneRead(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned recipient, got %d", pruned)
	}

	remaining, err := svc.ListForUser(ctx, student.ID, false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining notification, got %d", len(remaining))
	}
}
