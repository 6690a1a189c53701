package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services/filestore"
	"gorm.io/gorm"
)

var (
	ErrEssayNotFound      = errors.New("essay not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrPastDueDate        = errors.New("essay due date has passed")
	ErrUploadNotAllowed   = errors.New("this essay does not accept file uploads")
	ErrEmptySubmission    = errors.New("submission needs text content or a file")
	ErrScoreOutOfRange    = errors.New("score must be between 0 and the essay's max points")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
	ErrFileTooLarge       = errors.New("file exceeds the size limit")
)

// EssayService manages essay assignments, student submissions and
// teacher grading.
type EssayService struct {
	db      *gorm.DB
	files   *filestore.LocalStore
	allowed []string
	maxSize int64
}

// NewEssayService creates a new essay service. maxSize is the upload
// cap in bytes; allowed lists acceptable file extensions.
func NewEssayService(db *gorm.DB, files *filestore.LocalStore, allowed []string, maxSize int64) *EssayService {
	return &EssayService{db: db, files: files, allowed: allowed, maxSize: maxSize}
}

// Create stores a new essay assignment for a course
func (s *EssayService) Create(ctx context.Context, essay *model.Essay) (*model.Essay, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, essay.CourseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if essay.MaxPoints <= 0 {
		essay.MaxPoints = 100
	}
	if err := s.db.WithContext(ctx).Create(essay).Error; err != nil {
		return nil, err
	}
	return essay, nil
}

// Get returns an essay by ID
func (s *EssayService) Get(ctx context.Context, essayID uint) (*model.Essay, error) {
	var essay model.Essay
	if err := s.db.WithContext(ctx).First(&essay, essayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEssayNotFound
		}
		return nil, err
	}
	return &essay, nil
}

// ListForCourse returns all essays of a course
func (s *EssayService) ListForCourse(ctx context.Context, courseID uint) ([]model.Essay, error) {
	var essays []model.Essay
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Find(&essays).Error
	return essays, err
}

// Submit stores a student's essay submission. Text and file are both
// optional but at least one must be present; the file is only accepted
// when the essay allows uploads. Submissions after the due date, or a
// second submission by the same student, are rejected.
func (s *EssayService) Submit(ctx context.Context, studentID, essayID uint, text string, fileName string, fileSize int64, file io.Reader) (*model.EssaySubmission, error) {
	essay, err := s.Get(ctx, essayID)
	if err != nil {
		return nil, err
	}

	if essay.DueDate != nil && time.Now().After(*essay.DueDate) {
		return nil, ErrPastDueDate
	}
	if fileName != "" && !essay.AllowsFileUpload {
		return nil, ErrUploadNotAllowed
	}
	if text == "" && fileName == "" {
		return nil, ErrEmptySubmission
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&model.EssaySubmission{}).
		Where("student_id = ? AND essay_id = ?", studentID, essayID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadySubmitted
	}

	// Validate and store the file before touching the database so a
	// rejected upload leaves nothing behind.
	storedName := ""
	if fileName != "" {
		if !filestore.ExtensionAllowed(fileName, s.allowed) {
			return nil, ErrFileTypeNotAllowed
		}
		if fileSize > s.maxSize {
			return nil, ErrFileTooLarge
		}
		storedName, _, err = s.files.Save(filestore.SubdirEssays, fileName, file)
		if err != nil {
			return nil, err
		}
	}

	submission := &model.EssaySubmission{
		StudentID:    studentID,
		EssayID:      essayID,
		TextContent:  text,
		UploadedFile: storedName,
		OriginalName: fileName,
		SubmittedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(submission).Error; err != nil {
		if storedName != "" {
			s.files.Remove(filestore.SubdirEssays, storedName)
		}
		if isUniqueViolation(err) {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}
	return submission, nil
}

// Grade records a score and feedback on a submission. The score must
// lie in [0, essay.MaxPoints]. Regrading overwrites the previous score.
func (s *EssayService) Grade(ctx context.Context, submissionID uint, score int, feedback string) (*model.EssaySubmission, error) {
	var submission model.EssaySubmission
	err := s.db.WithContext(ctx).Preload("Essay").First(&submission, submissionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	if score < 0 || score > submission.Essay.MaxPoints {
		return nil, ErrScoreOutOfRange
	}

	now := time.Now()
	submission.Score = &score
	submission.Feedback = feedback
	submission.Graded = true
	submission.GradedAt = &now
	if err := s.db.WithContext(ctx).Save(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// SubmissionForStudent returns a student's submission for an essay
func (s *EssayService) SubmissionForStudent(ctx context.Context, studentID, essayID uint) (*model.EssaySubmission, error) {
	var submission model.EssaySubmission
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND essay_id = ?", studentID, essayID).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// GetSubmission returns a submission with its essay and student
func (s *EssayService) GetSubmission(ctx context.Context, submissionID uint) (*model.EssaySubmission, error) {
	var submission model.EssaySubmission
	err := s.db.WithContext(ctx).
		Preload("Essay").
		Preload("Student").
		First(&submission, submissionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// Submissions returns every submission of an essay for teacher review
func (s *EssayService) Submissions(ctx context.Context, essayID uint) ([]model.EssaySubmission, error) {
	var submissions []model.EssaySubmission
	err := s.db.WithContext(ctx).
		Preload("Student").
		Where("essay_id = ?", essayID).
		Order("submitted_at ASC").
		Find(&submissions).Error
	return submissions, err
}

// SubmissionFilePath resolves the on-disk path of a submission's file
func (s *EssayService) SubmissionFilePath(submission *model.EssaySubmission) (string, bool) {
	if submission.UploadedFile == "" {
		return "", false
	}
	return s.files.Path(filestore.SubdirEssays, submission.UploadedFile), true
}
