package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of user roles. Authorization checks compare
// against these constants only; free-form role strings are rejected at
// the boundary via Valid.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	FirstName    string         `gorm:"not null" json:"first_name"`
	LastName     string         `gorm:"not null" json:"last_name"`
	DateOfBirth  time.Time      `gorm:"type:date" json:"date_of_birth"`
	Role         Role           `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	HasPaid      bool           `gorm:"not null;default:false" json:"has_paid"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	TaughtCourses    []Course          `gorm:"foreignKey:TeacherID" json:"-"`
	Enrollments      []Enrollment      `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	QuizSubmissions  []QuizSubmission  `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	EssaySubmissions []EssaySubmission `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Discussions      []Discussion      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Replies          []Reply           `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist   []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// FullName returns the user's display name
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsTeacher reports whether the user has the teacher role
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

// IsStudent reports whether the user has the student role
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// UserResponse represents user data in API responses
type UserResponse struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Role        Role      `json:"role"`
	HasPaid     bool      `json:"has_paid"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToResponse converts a User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DateOfBirth: u.DateOfBirth,
		Role:        u.Role,
		HasPaid:     u.HasPaid,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
