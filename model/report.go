package model

// CourseEnrollmentReport is an aggregate row for the admin enrollment report
type CourseEnrollmentReport struct {
	CourseID      uint   `json:"course_id"`
	Title         string `json:"title"`
	MaxStudents   int    `json:"max_students"`
	ApprovedCount int64  `json:"approved_count"`
	PendingCount  int64  `json:"pending_count"`
	DeclinedCount int64  `json:"declined_count"`
}

// QuizScoreReport is an aggregate row for the admin quiz score report
type QuizScoreReport struct {
	QuizID          uint    `json:"quiz_id"`
	Title           string  `json:"title"`
	CourseID        uint    `json:"course_id"`
	SubmissionCount int64   `json:"submission_count"`
	AveragePercent  float64 `json:"average_percent"`
}
