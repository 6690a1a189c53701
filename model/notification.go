package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationScope is the recipient-selection mode of a notification
type NotificationScope string

const (
	NotificationScopeAll    NotificationScope = "all"    // Every student
	NotificationScopeCourse NotificationScope = "course" // A course's approved students
	NotificationScopeUser   NotificationScope = "user"   // One specific user
)

// Valid reports whether s is a known scope.
func (s NotificationScope) Valid() bool {
	switch s {
	case NotificationScopeAll, NotificationScopeCourse, NotificationScopeUser:
		return true
	}
	return false
}

// Notification represents a message sent by a teacher or admin. Recipient
// rows carry the per-user read state and are fanned out at send time.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	DeletedAt gorm.DeletedAt    `gorm:"index" json:"-"`
	SenderID  uint              `gorm:"not null;index" json:"sender_id"`
	Scope     NotificationScope `gorm:"type:varchar(20);not null" json:"scope"`
	CourseID  *uint             `gorm:"index" json:"course_id,omitempty"` // Set for scope=course
	Title     string            `gorm:"type:varchar(255);not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Metadata  datatypes.JSON    `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Relationships
	Sender     User                    `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	Course     *Course                 `gorm:"foreignKey:CourseID;constraint:OnDelete:SET NULL" json:"-"`
	Recipients []NotificationRecipient `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"-"`
}

// NotificationRecipient is the per-user delivery record. ReadAt is set at
// most once; marking a read notification read again is a no-op.
type NotificationRecipient struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	NotificationID uint       `gorm:"not null;index;uniqueIndex:idx_notification_recipient" json:"notification_id"`
	UserID         uint       `gorm:"not null;index;uniqueIndex:idx_notification_recipient" json:"user_id"`
	ReadAt         *time.Time `json:"read_at,omitempty"`

	// Relationships
	Notification Notification `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"notification,omitempty"`
	User         User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsRead reports whether the recipient has read the notification
func (r *NotificationRecipient) IsRead() bool {
	return r.ReadAt != nil
}

// NotificationResponse represents the API response format for a delivered notification
type NotificationResponse struct {
	ID       uint              `json:"id"` // Recipient row ID, used for mark-as-read
	Scope    NotificationScope `json:"scope"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Read     bool              `json:"read"`
	ReadAt   *time.Time        `json:"read_at,omitempty"`
	SentAt   time.Time         `json:"sent_at"`
	Metadata datatypes.JSON    `json:"metadata,omitempty"`
}

// ToResponse converts a recipient row (with its Notification preloaded)
// to the API response format.
func (r *NotificationRecipient) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:       r.ID,
		Scope:    r.Notification.Scope,
		Title:    r.Notification.Title,
		Message:  r.Notification.Message,
		Read:     r.IsRead(),
		ReadAt:   r.ReadAt,
		SentAt:   r.Notification.CreatedAt,
		Metadata: r.Notification.Metadata,
	}
}
