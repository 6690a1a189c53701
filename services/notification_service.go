package services

import (
	"context"
	"errors"
	"time"

	"github.com/stgeorges/biolms/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidScope         = errors.New("invalid notification scope")
	ErrScopeTarget          = errors.New("scope target does not match the notification scope")
	ErrNoRecipients         = errors.New("notification resolved to no recipients")
)

// NotificationService sends notifications and fans them out to recipient
// rows at send time. Recipients are resolved once; users who enroll
// after a course-wide send do not receive it retroactively.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Send creates a notification and its recipient rows in one
// transaction. courseID is required for scope=course, userID for
// scope=user; both must be absent otherwise.
func (s *NotificationService) Send(ctx context.Context, senderID uint, scope model.NotificationScope, courseID, userID *uint, title, message string, metadata datatypes.JSON) (*model.Notification, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	switch scope {
	case model.NotificationScopeCourse:
		if courseID == nil || userID != nil {
			return nil, ErrScopeTarget
		}
	case model.NotificationScopeUser:
		if userID == nil || courseID != nil {
			return nil, ErrScopeTarget
		}
	default:
		if courseID != nil || userID != nil {
			return nil, ErrScopeTarget
		}
	}

	var notification *model.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipientIDs, err := s.resolveRecipients(tx, scope, courseID, userID)
		if err != nil {
			return err
		}
		if len(recipientIDs) == 0 {
			return ErrNoRecipients
		}

		notification = &model.Notification{
			SenderID: senderID,
			Scope:    scope,
			CourseID: courseID,
			Title:    title,
			Message:  message,
			Metadata: metadata,
		}
		if err := tx.Create(notification).Error; err != nil {
			return err
		}

		recipients := make([]model.NotificationRecipient, 0, len(recipientIDs))
		for _, id := range recipientIDs {
			recipients = append(recipients, model.NotificationRecipient{
				NotificationID: notification.ID,
				UserID:         id,
			})
		}
		return tx.CreateInBatches(recipients, 200).Error
	})
	if err != nil {
		return nil, err
	}
	return notification, nil
}

// resolveRecipients returns the user IDs a scope fans out to
func (s *NotificationService) resolveRecipients(tx *gorm.DB, scope model.NotificationScope, courseID, userID *uint) ([]uint, error) {
	var ids []uint
	switch scope {
	case model.NotificationScopeAll:
		err := tx.Model(&model.User{}).
			Where("role = ?", model.RoleStudent).
			Pluck("id", &ids).Error
		return ids, err
	case model.NotificationScopeCourse:
		var course model.Course
		if err := tx.First(&course, *courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCourseNotFound
			}
			return nil, err
		}
		err := tx.Model(&model.Enrollment{}).
			Where("course_id = ? AND status = ?", *courseID, model.EnrollmentStatusApproved).
			Pluck("student_id", &ids).Error
		return ids, err
	case model.NotificationScopeUser:
		var count int64
		if err := tx.Model(&model.User{}).Where("id = ?", *userID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return []uint{*userID}, nil
	}
	return nil, ErrInvalidScope
}

// ListForUser returns a user's delivered notifications, newest first,
// optionally limited to unread ones.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, unreadOnly bool) ([]model.NotificationRecipient, error) {
	query := s.db.WithContext(ctx).
		Preload("Notification").
		Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var recipients []model.NotificationRecipient
	err := query.Order("created_at DESC").Find(&recipients).Error
	return recipients, err
}

// UnreadCount returns the number of unread notifications for a user
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.NotificationRecipient{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// MarkAsRead sets a recipient row's read timestamp. The transition is
// one way and idempotent; re-reading keeps the original timestamp.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, recipientID uint) (*model.NotificationRecipient, error) {
	var recipient model.NotificationRecipient
	err := s.db.WithContext(ctx).
		Preload("Notification").
		Where("id = ? AND user_id = ?", recipientID, userID).
		First(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	if recipient.ReadAt == nil {
		now := time.Now()
		if err := s.db.WithContext(ctx).Model(&recipient).Update("read_at", now).Error; err != nil {
			return nil, err
		}
		recipient.ReadAt = &now
	}
	return &recipient, nil
}

// MarkAllAsRead marks every unread notification of a user as read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.NotificationRecipient{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// PruneRead deletes recipient rows read more than maxAge ago, then
// removes notifications left without any recipients. Used by the daily
// cron sweep.
func (s *NotificationService) PruneRead(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	var pruned int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("read_at IS NOT NULL AND read_at < ?", cutoff).
			Delete(&model.NotificationRecipient{})
		if result.Error != nil {
			return result.Error
		}
		pruned = result.RowsAffected

		return tx.Where("id NOT IN (?)",
			tx.Model(&model.NotificationRecipient{}).Select("notification_id"),
		).Delete(&model.Notification{}).Error
	})
	return pruned, err
}
