package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// LibraryResource represents an uploaded file in the digital library.
// StoredName is server generated to avoid collisions; FileName keeps the
// uploader's original name for downloads.
type LibraryResource struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Author      string         `gorm:"type:varchar(200)" json:"author"`
	Tags        string         `gorm:"type:varchar(500)" json:"tags"` // Comma-separated tags
	Category    string         `gorm:"type:varchar(100)" json:"category"`
	FileName    string         `gorm:"not null" json:"file_name"`
	StoredName  string         `gorm:"type:varchar(200);not null" json:"-"`
	FileSize    int64          `gorm:"not null;default:0" json:"file_size"` // Size in bytes
	UploadedBy  uint           `gorm:"index" json:"uploaded_by"`

	// Relationships
	Uploader User `gorm:"foreignKey:UploadedBy;constraint:OnDelete:SET NULL" json:"-"`
}

// TagsList returns the resource tags as a slice
func (r *LibraryResource) TagsList() []string {
	if r.Tags == "" {
		return nil
	}
	parts := strings.Split(r.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// FileExtension returns the lower-cased extension of the original file name
func (r *LibraryResource) FileExtension() string {
	if i := strings.LastIndex(r.FileName, "."); i >= 0 && i < len(r.FileName)-1 {
		return strings.ToLower(r.FileName[i+1:])
	}
	return ""
}
