package model

import (
	"time"

	"gorm.io/gorm"
)

// QuizOption identifies one of the four answer options of a question
type QuizOption string

const (
	QuizOptionA QuizOption = "A"
	QuizOptionB QuizOption = "B"
	QuizOptionC QuizOption = "C"
	QuizOptionD QuizOption = "D"
)

// Valid reports whether o is one of the four options.
func (o QuizOption) Valid() bool {
	switch o {
	case QuizOptionA, QuizOptionB, QuizOptionC, QuizOptionD:
		return true
	}
	return false
}

// Quiz represents a multiple-choice quiz assignment for a course
type Quiz struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	TotalPoints int            `gorm:"not null;default:0" json:"total_points"` // Sum of all question points

	// Relationships
	Course      Course           `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Questions   []QuizQuestion   `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Submissions []QuizSubmission `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
}

// QuizQuestion represents a question within a quiz
type QuizQuestion struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	QuizID        uint           `gorm:"not null;index" json:"quiz_id"`
	QuestionText  string         `gorm:"type:text;not null" json:"question_text"`
	OptionA       string         `gorm:"type:varchar(500);not null" json:"option_a"`
	OptionB       string         `gorm:"type:varchar(500);not null" json:"option_b"`
	OptionC       string         `gorm:"type:varchar(500);not null" json:"option_c"`
	OptionD       string         `gorm:"type:varchar(500);not null" json:"option_d"`
	CorrectOption QuizOption     `gorm:"type:varchar(1);not null" json:"-"` // Hidden from students
	Points        int            `gorm:"not null;default:1" json:"points"`
	Order         int            `gorm:"not null;default:0" json:"order"`

	// Relationships
	Quiz Quiz `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
}

// QuizSubmission represents a student's submission for a quiz.
// One submission per (student, quiz); grading happens at submit time.
type QuizSubmission struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	StudentID   uint           `gorm:"not null;index;uniqueIndex:idx_quiz_submission_once" json:"student_id"`
	QuizID      uint           `gorm:"not null;index;uniqueIndex:idx_quiz_submission_once" json:"quiz_id"`
	TotalScore  int            `gorm:"not null;default:0" json:"total_score"`
	Percentage  float64        `gorm:"not null;default:0" json:"percentage"`
	SubmittedAt time.Time      `gorm:"autoCreateTime" json:"submitted_at"`

	// Relationships
	Student User         `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Quiz    Quiz         `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
	Answers []QuizAnswer `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

// QuizAnswer represents a student's answer to one question
type QuizAnswer struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SubmissionID   uint       `gorm:"not null;index" json:"submission_id"`
	QuestionID     uint       `gorm:"not null;index" json:"question_id"`
	SelectedOption QuizOption `gorm:"type:varchar(1);not null" json:"selected_option"`
	PointsEarned   int        `gorm:"not null;default:0" json:"points_earned"`

	// Relationships
	Submission QuizSubmission `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"-"`
	Question   QuizQuestion   `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
}
