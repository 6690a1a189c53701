package model

import (
	"time"

	"gorm.io/gorm"
)

// LiveClass represents a live broadcast session for a course. A class is
// active while EndedAt is nil; at most one active row may exist per
// course, enforced by a partial unique index on (course_id) created in
// database init.
type LiveClass struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	StreamURL   string         `gorm:"type:varchar(500);not null" json:"stream_url"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the class is currently broadcasting
func (lc *LiveClass) IsActive() bool {
	return lc.EndedAt == nil
}
