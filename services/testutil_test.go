package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stgeorges/biolms/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int

// newTestDB opens a fresh in-memory SQLite database with the full
// schema migrated. The shared-cache DSN keeps the schema visible across
// pooled connections.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:svc_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.JWTTokenBlacklist{},
		&model.Course{},
		&model.Enrollment{},
		&model.CourseModule{},
		&model.Topic{},
		&model.Lesson{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizSubmission{},
		&model.QuizAnswer{},
		&model.Essay{},
		&model.EssaySubmission{},
		&model.LiveClass{},
		&model.Discussion{},
		&model.Reply{},
		&model.Notification{},
		&model.NotificationRecipient{},
		&model.LibraryResource{},
		&model.CronJobLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, role model.Role, hasPaid bool) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		DateOfBirth:  time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:         role,
		HasPaid:      hasPaid,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

func createCourse(t *testing.T, db *gorm.DB, title string, maxStudents int, teacherID *uint) *model.Course {
	t.Helper()
	course := &model.Course{
		Title:       title,
		Level:       model.CourseLevelLowerSecondary,
		MaxStudents: maxStudents,
		TeacherID:   teacherID,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to create course %s: %v", title, err)
	}
	return course
}

func approveEnrollment(t *testing.T, db *gorm.DB, studentID, courseID uint) {
	t.Helper()
	now := time.Now()
	enrollment := &model.Enrollment{
		StudentID:   studentID,
		CourseID:    courseID,
		Status:      model.EnrollmentStatusApproved,
		RespondedAt: &now,
	}
	if err := db.Create(enrollment).Error; err != nil {
		t.Fatalf("failed to create approved enrollment: %v", err)
	}
}
