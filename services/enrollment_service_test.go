package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stgeorges/biolms/model"
)

func TestEnrollmentRequestRequiresPayment(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	student := createUser(t, db, "unpaid@example.com", model.RoleStudent, false)
	course := createCourse(t, db, "Genetics", 10, nil)

	_, err := svc.Request(context.Background(), student, course.ID)
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
}

func TestEnrollmentRequestDuplicate(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	student := createUser(t, db, "student@example.com", model.RoleStudent, true)
	course := createCourse(t, db, "Genetics", 10, nil)

	if _, err := svc.Request(context.Background(), student, course.ID); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	_, err := svc.Request(context.Background(), student, course.ID)
	if !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
}

func TestEnrollmentRequestCapacity(t *testing.T) {
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	course := createCourse(t, db, "Ecology", 1, nil)
	first := createUser(t, db, "first@example.com", model.RoleStudent, true)
	approveEnrollment(t, db, first.ID, course.ID)

	second := createUser(t, db, "second@example.com", model.RoleStudent, true)
	_, err := svc.Request(context.Background(), second, course.ID)
	if !errors.Is(err, ErrCourseFull) {
		t.Fatalf("expected ErrCourseFull, got %v", err)
	}
}

func TestEnrollmentGateOrder(t *testing.T) {
	// A full course still reports the payment failure first for an
	// unpaid student.
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	course := createCourse(t, db, "Ecology", 1, nil)
	first := createUser(t, db, "first@example.com", model.RoleStudent, true)
	approveEnrollment(t, db, first.ID, course.ID)

	unpaid := createUser(t, db, "unpaid@example.com", model.RoleStudent, false)
	_, err := svc.Request(context.Background(), unpaid, course.ID)
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired before capacity check, got %v", err)
	}
}

func TestEnrollmentDeclinedRetryPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("retry allowed", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewEnrollmentService(db, true)

		student := createUser(t, db, "student@example.com", model.RoleStudent, true)
		teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
		course := createCourse(t, db, "Botany", 10, &teacher.ID)

		enrollment, err := svc.Request(ctx, student, course.ID)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if _, err := svc.Respond(ctx, teacher, enrollment.ID, false); err != nil {
			t.Fatalf("decline failed: %v", err)
		}

		if _, err := svc.Request(ctx, student, course.ID); err != nil {
			t.Fatalf("expected retry after decline to succeed, got %v", err)
		}
	})

	t.Run("retry forbidden", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewEnrollmentService(db, false)

		student := createUser(t, db, "student@example.com", model.RoleStudent, true)
		teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
		course := createCourse(t, db, "Botany", 10, &teacher.ID)

		enrollment, err := svc.Request(ctx, student, course.ID)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if _, err := svc.Respond(ctx, teacher, enrollment.ID, false); err != nil {
			t.Fatalf("decline failed: %v", err)
		}

		_, err = svc.Request(ctx, student, course.ID)
		if !errors.Is(err, ErrRetryNotAllowed) {
			t.Fatalf("expected ErrRetryNotAllowed, got %v", err)
		}
	})
}

func TestEnrollmentRespond(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
	other := createUser(t, db, "other@example.com", model.RoleTeacher, true)
	student := createUser(t, db, "student@example.com", model.RoleStudent, true)
	course := createCourse(t, db, "Zoology", 10, &teacher.ID)

	enrollment, err := svc.Request(ctx, student, course.ID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// A teacher who does not own the course cannot respond
	if _, err := svc.Respond(ctx, other, enrollment.ID, true); !errors.Is(err, ErrNotCourseOwner) {
		t.Fatalf("expected ErrNotCourseOwner, got %v", err)
	}

	approved, err := svc.Respond(ctx, teacher, enrollment.ID, true)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != model.EnrollmentStatusApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}
	if approved.RespondedAt == nil {
		t.Fatal("expected RespondedAt to be set")
	}

	// Responding twice is rejected
	if _, err := svc.Respond(ctx, teacher, enrollment.ID, false); !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}
}

func TestEnrollmentApproveRechecksCapacity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
	course := createCourse(t, db, "Anatomy", 1, &teacher.ID)

	a := createUser(t, db, "a@example.com", model.RoleStudent, true)
	b := createUser(t, db, "b@example.com", model.RoleStudent, true)

	enrollA, err := svc.Request(ctx, a, course.ID)
	if err != nil {
		t.Fatalf("request a failed: %v", err)
	}
	enrollB, err := svc.Request(ctx, b, course.ID)
	if err != nil {
		t.Fatalf("request b failed: %v", err)
	}

	if _, err := svc.Respond(ctx, teacher, enrollA.ID, true); err != nil {
		t.Fatalf("approve a failed: %v", err)
	}
	if _, err := svc.Respond(ctx, teacher, enrollB.ID, true); !errors.Is(err, ErrCourseFull) {
		t.Fatalf("expected ErrCourseFull on second approval, got %v", err)
	}
}

func TestCanAccessCourse(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewEnrollmentService(db, true)

	admin := createUser(t, db, "admin@example.com", model.RoleAdmin, true)
	teacher := createUser(t, db, "teacher@example.com", model.RoleTeacher, true)
	other := createUser(t, db, "other@example.com", model.RoleTeacher, true)
	enrolled := createUser(t, db, "enrolled@example.com", model.RoleStudent, true)
	outsider := createUser(t, db, "outsider@example.com", model.RoleStudent, true)

	course := createCourse(t, db, "Microbiology", 10, &teacher.ID)
	approveEnrollment(t, db, enrolled.ID, course.ID)

	cases := []struct {
		name string
		user *model.User
		want bool
	}{
		{"admin", admin, true},
		{"owning teacher", teacher, true},
		{"other teacher", other, false},
		{"approved student", enrolled, true},
		{"unenrolled student", outsider, false},
	}
	for _, tc := range cases {
		got, err := svc.CanAccessCourse(ctx, tc.user, course.ID)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: access = %v, want %v", tc.name, got, tc.want)
		}
	}
}
