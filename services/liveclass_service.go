package services

import (
	"context"
	"errors"
	"time"

	"github.com/stgeorges/biolms/model"
	"gorm.io/gorm"
)

var (
	ErrLiveClassNotFound = errors.New("live class not found")
	ErrLiveClassActive   = errors.New("course already has an active live class")
	ErrLiveClassEnded    = errors.New("live class has already ended")
)

// LiveClassService starts and ends live class sessions. A course has at
// most one active session at a time; the partial unique index on
// (course_id) where ended_at is null backs the in-transaction check.
type LiveClassService struct {
	db *gorm.DB
}

// NewLiveClassService creates a new live class service
func NewLiveClassService(db *gorm.DB) *LiveClassService {
	return &LiveClassService{db: db}
}

// Start opens a live class for a course, rejecting it when another
// session of the same course is still active.
func (s *LiveClassService) Start(ctx context.Context, courseID uint, title, description, streamURL string) (*model.LiveClass, error) {
	var liveClass *model.LiveClass
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course model.Course
		if err := tx.First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCourseNotFound
			}
			return err
		}

		var active int64
		if err := tx.Model(&model.LiveClass{}).
			Where("course_id = ? AND ended_at IS NULL", courseID).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrLiveClassActive
		}

		liveClass = &model.LiveClass{
			CourseID:    courseID,
			Title:       title,
			Description: description,
			StreamURL:   streamURL,
			StartedAt:   time.Now(),
		}
		if err := tx.Create(liveClass).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrLiveClassActive
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return liveClass, nil
}

// End closes a live class. Ending an already-ended session is an error
// so clients do not silently shift the recorded end time.
func (s *LiveClassService) End(ctx context.Context, liveClassID uint) (*model.LiveClass, error) {
	var liveClass model.LiveClass
	if err := s.db.WithContext(ctx).First(&liveClass, liveClassID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLiveClassNotFound
		}
		return nil, err
	}

	if !liveClass.IsActive() {
		return nil, ErrLiveClassEnded
	}

	now := time.Now()
	liveClass.EndedAt = &now
	if err := s.db.WithContext(ctx).Save(&liveClass).Error; err != nil {
		return nil, err
	}
	return &liveClass, nil
}

// Get returns a live class by ID
func (s *LiveClassService) Get(ctx context.Context, liveClassID uint) (*model.LiveClass, error) {
	var liveClass model.LiveClass
	if err := s.db.WithContext(ctx).First(&liveClass, liveClassID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLiveClassNotFound
		}
		return nil, err
	}
	return &liveClass, nil
}

// ActiveForCourse returns the course's active session, or nil when none
// is running.
func (s *LiveClassService) ActiveForCourse(ctx context.Context, courseID uint) (*model.LiveClass, error) {
	var liveClass model.LiveClass
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND ended_at IS NULL", courseID).
		First(&liveClass).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &liveClass, nil
}

// History returns all sessions of a course, newest first
func (s *LiveClassService) History(ctx context.Context, courseID uint) ([]model.LiveClass, error) {
	var classes []model.LiveClass
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("started_at DESC").
		Find(&classes).Error
	return classes, err
}

// EndStale closes sessions that have been running longer than maxAge.
// Used by the cron sweep to clean up after teachers who never pressed
// the end button.
func (s *LiveClassService) EndStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result := s.db.WithContext(ctx).Model(&model.LiveClass{}).
		Where("ended_at IS NULL AND started_at < ?", cutoff).
		Update("ended_at", time.Now())
	return result.RowsAffected, result.Error
}
