package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// CourseModule represents a module within a course. Named CourseModule to
// avoid clashing with Go's notion of a module; the table stays "modules".
type CourseModule struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Order       int            `gorm:"not null;default:0" json:"order"`

	// Relationships
	Course Course  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Topics []Topic `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"topics,omitempty"`
}

// TableName keeps the original table name for the module level
func (CourseModule) TableName() string {
	return "modules"
}

// Topic represents a topic within a module
type Topic struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	ModuleID    uint           `gorm:"not null;index" json:"module_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Order       int            `gorm:"not null;default:0" json:"order"`

	// Relationships
	Module  CourseModule `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
	Lessons []Lesson     `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
}

// Lesson represents a lesson within a topic. Content is free form:
// theory text, an external video URL or an uploaded video file, diagram
// images, and a flag marking practical lab lessons.
type Lesson struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	TopicID     uint           `gorm:"not null;index" json:"topic_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	TheoryText  string         `gorm:"type:text" json:"theory_text"`
	VideoURL    string         `gorm:"type:varchar(500)" json:"video_url"`
	VideoFile   string         `gorm:"type:varchar(200)" json:"video_file"`
	ImageFiles  string         `gorm:"type:text" json:"image_files"` // Comma-separated stored file names
	IsLabLesson bool           `gorm:"not null;default:false" json:"is_lab_lesson"`
	Order       int            `gorm:"not null;default:0" json:"order"`

	// Relationships
	Topic Topic `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"-"`
}

// ImageList returns the lesson's stored image file names
func (l *Lesson) ImageList() []string {
	if l.ImageFiles == "" {
		return nil
	}
	parts := strings.Split(l.ImageFiles, ",")
	images := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			images = append(images, p)
		}
	}
	return images
}
