package discussion

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
	"gorm.io/gorm"
)

// Handler handles per-course discussion threads and replies. Everything
// is scoped to course participants: the owning teacher, admins, and
// students with an approved enrollment.
type Handler struct {
	db          *gorm.DB
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewHandler creates a new discussion handler
func NewHandler(db *gorm.DB, enrollments *services.EnrollmentService) *Handler {
	return &Handler{
		db:          db,
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// CreateDiscussionRequest represents the thread creation payload
type CreateDiscussionRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Content string `json:"content" validate:"required,min=1"`
}

// ReplyRequest represents the reply payload
type ReplyRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

// List returns a course's threads, pinned ones first
func (h *Handler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}
	if err := h.requireAccess(c, user, uint(courseID)); err != nil {
		return err
	}

	var discussions []model.Discussion
	err = h.db.
		Preload("Author").
		Where("course_id = ?", courseID).
		Order("is_pinned DESC, created_at DESC").
		Find(&discussions).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list discussions")
	}
	return response.Success(c, discussions)
}

// Create opens a new thread in a course
func (h *Handler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}
	if err := h.requireAccess(c, user, uint(courseID)); err != nil {
		return err
	}

	var req CreateDiscussionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	discussion := model.Discussion{
		CourseID: uint(courseID),
		AuthorID: user.ID,
		Title:    validation.SanitizeString(req.Title),
		Content:  req.Content,
	}
	if err := h.db.Create(&discussion).Error; err != nil {
		return response.InternalServerError(c, "Failed to create discussion")
	}
	return response.Created(c, discussion)
}

// Get returns a thread with its replies in chronological order
func (h *Handler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	discussion, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.requireAccess(c, user, discussion.CourseID); err != nil {
		return err
	}

	err = h.db.
		Preload("Author").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Replies.Author").
		First(discussion, discussion.ID).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load discussion")
	}
	return response.Success(c, discussion)
}

// Reply adds a reply to a thread
func (h *Handler) Reply(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	discussion, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.requireAccess(c, user, discussion.CourseID); err != nil {
		return err
	}

	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	reply := model.Reply{
		DiscussionID: discussion.ID,
		AuthorID:     user.ID,
		Content:      req.Content,
	}
	if err := h.db.Create(&reply).Error; err != nil {
		return response.InternalServerError(c, "Failed to create reply")
	}
	return response.Created(c, reply)
}

// Pin toggles a thread's pinned flag. Teachers and admins only.
func (h *Handler) Pin(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	discussion, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.requireManage(c, user, discussion.CourseID); err != nil {
		return err
	}

	if err := h.db.Model(discussion).Update("is_pinned", !discussion.IsPinned).Error; err != nil {
		return response.InternalServerError(c, "Failed to update discussion")
	}
	discussion.IsPinned = !discussion.IsPinned
	return response.Success(c, discussion)
}

// Delete removes a thread and its replies. Allowed for the author, the
// course teacher and admins.
func (h *Handler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	discussion, err := h.load(c)
	if err != nil {
		return err
	}

	if discussion.AuthorID != user.ID {
		if err := h.requireManage(c, user, discussion.CourseID); err != nil {
			return err
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("discussion_id = ?", discussion.ID).Delete(&model.Reply{}).Error; err != nil {
			return err
		}
		return tx.Delete(discussion).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to delete discussion")
	}
	return response.SuccessWithMessage(c, "Discussion deleted", nil)
}

func (h *Handler) load(c *fiber.Ctx) (*model.Discussion, error) {
	discussionID, err := c.ParamsInt("id")
	if err != nil || discussionID <= 0 {
		return nil, response.BadRequest(c, "Invalid discussion ID")
	}

	var discussion model.Discussion
	if err := h.db.First(&discussion, discussionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "Discussion not found")
		}
		return nil, response.InternalServerError(c, "Failed to load discussion")
	}
	return &discussion, nil
}

func (h *Handler) requireAccess(c *fiber.Ctx, user *model.User, courseID uint) error {
	allowed, err := h.enrollments.CanAccessCourse(c.Context(), user, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check course access")
	}
	if !allowed {
		return response.Forbidden(c, "Course discussions require an approved enrollment")
	}
	return nil
}

func (h *Handler) requireManage(c *fiber.Ctx, user *model.User, courseID uint) error {
	if user.IsStudent() {
		return response.Forbidden(c, "Only teachers and admins may moderate discussions")
	}
	return h.requireAccess(c, user, courseID)
}
