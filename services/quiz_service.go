package services

import (
	"context"
	"errors"
	"time"

	"github.com/stgeorges/biolms/model"
	"gorm.io/gorm"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNoQuestions  = errors.New("quiz must have at least one question")
	ErrAlreadySubmitted = errors.New("quiz has already been submitted")
	ErrAnswerMismatch   = errors.New("answers must cover every quiz question exactly once")
)

// QuestionInput is one question of a quiz being created
type QuestionInput struct {
	Text          string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectOption model.QuizOption
	Points        int
}

// QuizService creates quizzes and grades submissions. Grading is
// immediate and deterministic: a submission's score is fixed at submit
// time and never recomputed, even if the quiz is edited afterwards.
type QuizService struct {
	db *gorm.DB
}

// NewQuizService creates a new quiz service
func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{db: db}
}

// Create stores a quiz with its questions in one transaction and
// derives total_points from the question points.
func (s *QuizService) Create(ctx context.Context, courseID uint, title, description string, questions []QuestionInput) (*model.Quiz, error) {
	if len(questions) == 0 {
		return nil, ErrQuizNoQuestions
	}

	quiz := &model.Quiz{
		CourseID:    courseID,
		Title:       title,
		Description: description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course model.Course
		if err := tx.First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCourseNotFound
			}
			return err
		}

		total := 0
		for i, q := range questions {
			points := q.Points
			if points <= 0 {
				points = 1
			}
			total += points
			quiz.Questions = append(quiz.Questions, model.QuizQuestion{
				QuestionText:  q.Text,
				OptionA:       q.OptionA,
				OptionB:       q.OptionB,
				OptionC:       q.OptionC,
				OptionD:       q.OptionD,
				CorrectOption: q.CorrectOption,
				Points:        points,
				Order:         i + 1,
			})
		}
		quiz.TotalPoints = total

		return tx.Create(quiz).Error
	})
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

// Get returns a quiz with its questions in order
func (s *QuizService) Get(ctx context.Context, quizID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"order\" ASC, id ASC")
		}).
		First(&quiz, quizID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// ListForCourse returns all quizzes of a course
func (s *QuizService) ListForCourse(ctx context.Context, courseID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Find(&quizzes).Error
	return quizzes, err
}

// Submit grades a student's answers and stores the submission. answers
// maps question ID to the selected option; it must cover every question
// of the quiz exactly once. Each student submits at most once per quiz.
func (s *QuizService) Submit(ctx context.Context, studentID, quizID uint, answers map[uint]model.QuizOption) (*model.QuizSubmission, error) {
	var submission *model.QuizSubmission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz model.Quiz
		err := tx.Preload("Questions").First(&quiz, quizID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuizNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&model.QuizSubmission{}).
			Where("student_id = ? AND quiz_id = ?", studentID, quizID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadySubmitted
		}

		if len(answers) != len(quiz.Questions) {
			return ErrAnswerMismatch
		}

		earned := 0
		total := 0
		graded := make([]model.QuizAnswer, 0, len(quiz.Questions))
		for _, q := range quiz.Questions {
			selected, ok := answers[q.ID]
			if !ok || !selected.Valid() {
				return ErrAnswerMismatch
			}
			total += q.Points
			points := 0
			if selected == q.CorrectOption {
				points = q.Points
			}
			earned += points
			graded = append(graded, model.QuizAnswer{
				QuestionID:     q.ID,
				SelectedOption: selected,
				PointsEarned:   points,
			})
		}

		percentage := 0.0
		if total > 0 {
			percentage = float64(earned) / float64(total) * 100
		}

		submission = &model.QuizSubmission{
			StudentID:   studentID,
			QuizID:      quizID,
			TotalScore:  earned,
			Percentage:  percentage,
			SubmittedAt: time.Now(),
			Answers:     graded,
		}
		if err := tx.Create(submission).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySubmitted
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return submission, nil
}

// SubmissionForStudent returns a student's submission for a quiz, with
// its graded answers, or gorm.ErrRecordNotFound if none exists.
func (s *QuizService) SubmissionForStudent(ctx context.Context, studentID, quizID uint) (*model.QuizSubmission, error) {
	var submission model.QuizSubmission
	err := s.db.WithContext(ctx).
		Preload("Answers").
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// Submissions returns every submission of a quiz for teacher review
func (s *QuizService) Submissions(ctx context.Context, quizID uint) ([]model.QuizSubmission, error) {
	var submissions []model.QuizSubmission
	err := s.db.WithContext(ctx).
		Preload("Student").
		Where("quiz_id = ?", quizID).
		Order("submitted_at ASC").
		Find(&submissions).Error
	return submissions, err
}

// CourseIDForQuiz resolves the owning course of a quiz
func (s *QuizService) CourseIDForQuiz(ctx context.Context, quizID uint) (uint, error) {
	var quiz model.Quiz
	if err := s.db.WithContext(ctx).First(&quiz, quizID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrQuizNotFound
		}
		return 0, err
	}
	return quiz.CourseID, nil
}

// Delete removes a quiz with its questions, submissions and answers
func (s *QuizService) Delete(ctx context.Context, quizID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz model.Quiz
		if err := tx.First(&quiz, quizID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuizNotFound
			}
			return err
		}

		var submissionIDs []uint
		if err := tx.Model(&model.QuizSubmission{}).Where("quiz_id = ?", quizID).Pluck("id", &submissionIDs).Error; err != nil {
			return err
		}
		if len(submissionIDs) > 0 {
			if err := tx.Where("submission_id IN ?", submissionIDs).Delete(&model.QuizAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", quizID).Delete(&model.QuizSubmission{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("quiz_id = ?", quizID).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&quiz).Error
	})
}
