package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services/filestore"
	"gorm.io/gorm"
)

var ErrResourceNotFound = errors.New("library resource not found")

// LibraryFilter narrows library listings
type LibraryFilter struct {
	Search   string // Matches title, description, author and tags
	Category string
	Tag      string
}

// LibraryService manages the shared file library. Validation happens
// before anything touches the disk, so a rejected upload leaves neither
// a row nor a file behind.
type LibraryService struct {
	db      *gorm.DB
	files   *filestore.LocalStore
	allowed []string
	maxSize int64
}

// NewLibraryService creates a new library service
func NewLibraryService(db *gorm.DB, files *filestore.LocalStore, allowed []string, maxSize int64) *LibraryService {
	return &LibraryService{db: db, files: files, allowed: allowed, maxSize: maxSize}
}

// Upload validates and stores a library file with its metadata
func (s *LibraryService) Upload(ctx context.Context, uploaderID uint, resource *model.LibraryResource, fileName string, fileSize int64, file io.Reader) (*model.LibraryResource, error) {
	if !filestore.ExtensionAllowed(fileName, s.allowed) {
		return nil, ErrFileTypeNotAllowed
	}
	if fileSize > s.maxSize {
		return nil, ErrFileTooLarge
	}

	storedName, size, err := s.files.Save(filestore.SubdirLibrary, fileName, file)
	if err != nil {
		return nil, err
	}

	resource.UploadedBy = uploaderID
	resource.FileName = fileName
	resource.StoredName = storedName
	resource.FileSize = size
	if err := s.db.WithContext(ctx).Create(resource).Error; err != nil {
		s.files.Remove(filestore.SubdirLibrary, storedName)
		return nil, err
	}
	return resource, nil
}

// List returns library resources matching the filter, newest first
func (s *LibraryService) List(ctx context.Context, filter LibraryFilter) ([]model.LibraryResource, error) {
	query := s.db.WithContext(ctx).Model(&model.LibraryResource{})

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Tag != "" {
		query = query.Where("tags LIKE ?", "%"+filter.Tag+"%")
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(author) LIKE ? OR LOWER(tags) LIKE ?",
			like, like, like, like,
		)
	}

	var resources []model.LibraryResource
	err := query.Order("created_at DESC").Find(&resources).Error
	return resources, err
}

// Get returns a single library resource
func (s *LibraryService) Get(ctx context.Context, resourceID uint) (*model.LibraryResource, error) {
	var resource model.LibraryResource
	if err := s.db.WithContext(ctx).First(&resource, resourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &resource, nil
}

// FilePath resolves the on-disk path of a resource's file
func (s *LibraryService) FilePath(resource *model.LibraryResource) string {
	return s.files.Path(filestore.SubdirLibrary, resource.StoredName)
}

// Update applies metadata changes; the stored file is untouched
func (s *LibraryService) Update(ctx context.Context, resourceID uint, updates map[string]interface{}) (*model.LibraryResource, error) {
	resource, err := s.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(resource).Updates(updates).Error; err != nil {
		return nil, err
	}
	return resource, nil
}

// Delete removes the database row and then the file. A missing file is
// not an error; the row is authoritative.
func (s *LibraryService) Delete(ctx context.Context, resourceID uint) error {
	resource, err := s.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(resource).Error; err != nil {
		return err
	}
	return s.files.Remove(filestore.SubdirLibrary, resource.StoredName)
}

// Categories returns the distinct non-empty categories in use
func (s *LibraryService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).Model(&model.LibraryResource{}).
		Where("category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}
