package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stgeorges/biolms/model"
	"gorm.io/gorm"
)

var (
	ErrPaymentRequired  = errors.New("payment required before enrolling")
	ErrAlreadyEnrolled  = errors.New("an enrollment request already exists for this course")
	ErrRetryNotAllowed  = errors.New("a declined enrollment cannot be re-requested")
	ErrCourseFull       = errors.New("course is full")
	ErrCourseNotFound   = errors.New("course not found")
	ErrNotCourseOwner   = errors.New("you do not own this course")
	ErrAlreadyResponded = errors.New("enrollment request has already been responded to")
)

// EnrollmentService handles enrollment requests and their approve/decline
// transitions. All gate checks run inside the same transaction as the
// write; the partial unique index on open enrollments backs the duplicate
// check under concurrency.
type EnrollmentService struct {
	db *gorm.DB
	// Whether a declined enrollment permits a new request
	allowRetryAfterDecline bool
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB, allowRetryAfterDecline bool) *EnrollmentService {
	return &EnrollmentService{db: db, allowRetryAfterDecline: allowRetryAfterDecline}
}

// Request creates a pending enrollment for a student. The gate, in
// order: payment flag, duplicate request, course capacity.
func (s *EnrollmentService) Request(ctx context.Context, student *model.User, courseID uint) (*model.Enrollment, error) {
	if !student.HasPaid {
		return nil, ErrPaymentRequired
	}

	var enrollment *model.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course model.Course
		if err := tx.First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCourseNotFound
			}
			return err
		}

		// Duplicate check. Declined rows only block when the retry
		// policy forbids re-requests.
		var existing model.Enrollment
		err := tx.Where("student_id = ? AND course_id = ?", student.ID, courseID).
			Order("created_at DESC").
			First(&existing).Error
		if err == nil {
			if existing.Status != model.EnrollmentStatusDeclined {
				return ErrAlreadyEnrolled
			}
			if !s.allowRetryAfterDecline {
				return ErrRetryNotAllowed
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Capacity check against approved enrollments
		var approved int64
		if err := tx.Model(&model.Enrollment{}).
			Where("course_id = ? AND status = ?", courseID, model.EnrollmentStatusApproved).
			Count(&approved).Error; err != nil {
			return err
		}
		if approved >= int64(course.MaxStudents) {
			return ErrCourseFull
		}

		enrollment = &model.Enrollment{
			StudentID: student.ID,
			CourseID:  courseID,
			Status:    model.EnrollmentStatusPending,
		}
		if err := tx.Create(enrollment).Error; err != nil {
			if isUniqueViolation(err) {
				// Lost a race with a concurrent request
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("failed to create enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return enrollment, nil
}

// Respond transitions a pending enrollment to approved or declined.
// Only the owning teacher or an admin may respond; approval re-checks
// capacity inside the transaction.
func (s *EnrollmentService) Respond(ctx context.Context, actor *model.User, enrollmentID uint, approve bool) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Course").Preload("Student").First(&enrollment, enrollmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gorm.ErrRecordNotFound
			}
			return err
		}

		if !actor.IsAdmin() {
			if enrollment.Course.TeacherID == nil || *enrollment.Course.TeacherID != actor.ID {
				return ErrNotCourseOwner
			}
		}

		if enrollment.Status != model.EnrollmentStatusPending {
			return ErrAlreadyResponded
		}

		if approve {
			var approved int64
			if err := tx.Model(&model.Enrollment{}).
				Where("course_id = ? AND status = ?", enrollment.CourseID, model.EnrollmentStatusApproved).
				Count(&approved).Error; err != nil {
				return err
			}
			if approved >= int64(enrollment.Course.MaxStudents) {
				return ErrCourseFull
			}
			enrollment.Status = model.EnrollmentStatusApproved
		} else {
			enrollment.Status = model.EnrollmentStatusDeclined
		}

		now := time.Now()
		enrollment.RespondedAt = &now
		return tx.Save(&enrollment).Error
	})
	if err != nil {
		return nil, err
	}

	return &enrollment, nil
}

// ListForCourse returns all enrollments of a course, optionally filtered by status
func (s *EnrollmentService) ListForCourse(ctx context.Context, courseID uint, status model.EnrollmentStatus) ([]model.Enrollment, error) {
	query := s.db.WithContext(ctx).
		Preload("Student").
		Where("course_id = ?", courseID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var enrollments []model.Enrollment
	err := query.Order("requested_at ASC").Find(&enrollments).Error
	return enrollments, err
}

// ListForStudent returns a student's enrollments with their courses
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ?", studentID).
		Order("requested_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

// CanAccessCourse reports whether the user may view course content:
// admins always, the owning teacher, or a student with an approved
// enrollment.
func (s *EnrollmentService) CanAccessCourse(ctx context.Context, user *model.User, courseID uint) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}

	if user.IsTeacher() {
		var course model.Course
		if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		return course.TeacherID != nil && *course.TeacherID == user.ID, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ? AND course_id = ? AND status = ?",
			user.ID, courseID, model.EnrollmentStatusApproved).
		Count(&count).Error
	return count > 0, err
}

// isUniqueViolation reports whether err is a unique constraint failure.
// Matches both the Postgres driver message and GORM's translated error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
