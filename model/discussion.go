package model

import (
	"time"

	"gorm.io/gorm"
)

// Discussion represents a course discussion thread
type Discussion struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	AuthorID  uint           `gorm:"not null;index" json:"author_id"`
	Title     string         `gorm:"not null" json:"title"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	IsPinned  bool           `gorm:"not null;default:false" json:"is_pinned"`

	// Relationships
	Course  Course  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Author  User    `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Replies []Reply `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
}

// Reply represents a reply within a discussion thread, one level deep,
// ordered by creation time.
type Reply struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	DiscussionID uint           `gorm:"not null;index" json:"discussion_id"`
	AuthorID     uint           `gorm:"not null;index" json:"author_id"`
	Content      string         `gorm:"type:text;not null" json:"content"`

	// Relationships
	Discussion Discussion `gorm:"foreignKey:DiscussionID;constraint:OnDelete:CASCADE" json:"-"`
	Author     User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
}
