package model

import (
	"time"

	"gorm.io/gorm"
)

// CourseLevel is the target audience of a course
type CourseLevel string

const (
	CourseLevelLowerSecondary CourseLevel = "lower_secondary"
	CourseLevelAdvanced       CourseLevel = "advanced"
)

// Valid reports whether l is a known course level.
func (l CourseLevel) Valid() bool {
	return l == CourseLevelLowerSecondary || l == CourseLevelAdvanced
}

// Course represents a biology course in the catalog
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Level       CourseLevel    `gorm:"type:varchar(50);not null" json:"level"`
	MaxStudents int            `gorm:"not null;default:50" json:"max_students"`
	TeacherID   *uint          `gorm:"index" json:"teacher_id,omitempty"`

	// Relationships
	Teacher     *User          `gorm:"foreignKey:TeacherID;constraint:OnDelete:SET NULL" json:"teacher,omitempty"`
	Modules     []CourseModule `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
	Enrollments []Enrollment   `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Quizzes     []Quiz         `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Essays      []Essay        `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	LiveClasses []LiveClass    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Discussions []Discussion   `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// EnrollmentStatus is the lifecycle state of an enrollment request
type EnrollmentStatus string

const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusDeclined EnrollmentStatus = "declined"
)

// Enrollment represents a student's enrollment request for a course.
// At most one non-declined row may exist per (student, course); the
// database enforces this with a partial unique index.
type Enrollment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
	StudentID   uint             `gorm:"not null;index" json:"student_id"`
	CourseID    uint             `gorm:"not null;index" json:"course_id"`
	Status      EnrollmentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RequestedAt time.Time        `gorm:"autoCreateTime" json:"requested_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`

	// Relationships
	Student User   `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Course  Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}
