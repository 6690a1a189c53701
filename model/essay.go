package model

import (
	"time"

	"gorm.io/gorm"
)

// Essay represents a written assignment for a course
type Essay struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID         uint           `gorm:"not null;index" json:"course_id"`
	Title            string         `gorm:"not null" json:"title"`
	QuestionText     string         `gorm:"type:text;not null" json:"question_text"`
	AllowsFileUpload bool           `gorm:"not null;default:false" json:"allows_file_upload"`
	MaxPoints        int            `gorm:"not null;default:100" json:"max_points"`
	DueDate          *time.Time     `json:"due_date,omitempty"`

	// Relationships
	Course      Course            `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Submissions []EssaySubmission `gorm:"foreignKey:EssayID;constraint:OnDelete:CASCADE" json:"-"`
}

// EssaySubmission represents a student's submission for an essay.
// Score stays nil until a teacher grades it; once set it lies in
// [0, essay.MaxPoints].
type EssaySubmission struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	StudentID    uint           `gorm:"not null;index;uniqueIndex:idx_essay_submission_once" json:"student_id"`
	EssayID      uint           `gorm:"not null;index;uniqueIndex:idx_essay_submission_once" json:"essay_id"`
	TextContent  string         `gorm:"type:text" json:"text_content"`
	UploadedFile string         `gorm:"type:varchar(200)" json:"uploaded_file"` // Server-generated stored name
	OriginalName string         `gorm:"type:varchar(255)" json:"original_name"`
	Score        *int           `json:"score,omitempty"`
	Feedback     string         `gorm:"type:text" json:"feedback"`
	Graded       bool           `gorm:"not null;default:false" json:"graded"`
	GradedAt     *time.Time     `json:"graded_at,omitempty"`
	SubmittedAt  time.Time      `gorm:"autoCreateTime" json:"submitted_at"`

	// Relationships
	Student User  `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Essay   Essay `gorm:"foreignKey:EssayID;constraint:OnDelete:CASCADE" json:"essay,omitempty"`
}
