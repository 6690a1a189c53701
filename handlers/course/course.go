package course

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
	"gorm.io/gorm"
)

// Handler handles the course catalog and course administration
type Handler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewHandler creates a new course handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, validator: validation.NewValidator()}
}

// CreateCourseRequest represents the course creation payload
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Level       string `json:"level" validate:"required,oneof=lower_secondary advanced"`
	MaxStudents int    `json:"max_students" validate:"omitempty,min=1,max=1000"`
	TeacherID   *uint  `json:"teacher_id"`
}

// UpdateCourseRequest represents the course update payload
type UpdateCourseRequest struct {
	Title       string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Level       string `json:"level" validate:"omitempty,oneof=lower_secondary advanced"`
	MaxStudents int    `json:"max_students" validate:"omitempty,min=1,max=1000"`
}

// AssignTeacherRequest represents the teacher assignment payload
type AssignTeacherRequest struct {
	TeacherID *uint `json:"teacher_id"` // nil unassigns
}

// CourseSummary is the catalog listing format
type CourseSummary struct {
	model.Course
	ApprovedCount int64 `json:"approved_count"`
	SeatsLeft     int64 `json:"seats_left"`
}

// List returns the course catalog with optional level and search
// filters, paginated.
func (h *Handler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.Course{}).Preload("Teacher")

	if level := c.Query("level"); level != "" {
		if !model.CourseLevel(level).Valid() {
			return response.BadRequest(c, "Invalid course level")
		}
		query = query.Where("level = ?", level)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if teacherID := c.QueryInt("teacher_id", 0); teacherID > 0 {
		query = query.Where("teacher_id = ?", teacherID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	var courses []model.Course
	err := query.Order("title ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&courses).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}

	summaries := make([]CourseSummary, 0, len(courses))
	for _, course := range courses {
		var approved int64
		h.db.Model(&model.Enrollment{}).
			Where("course_id = ? AND status = ?", course.ID, model.EnrollmentStatusApproved).
			Count(&approved)
		seatsLeft := int64(course.MaxStudents) - approved
		if seatsLeft < 0 {
			seatsLeft = 0
		}
		summaries = append(summaries, CourseSummary{
			Course:        course,
			ApprovedCount: approved,
			SeatsLeft:     seatsLeft,
		})
	}

	return response.Paginated(c, summaries, response.CalculatePagination(page, limit, total))
}

// Get returns a single course with its teacher
func (h *Handler) Get(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	if err := h.db.Preload("Teacher").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	var approved int64
	h.db.Model(&model.Enrollment{}).
		Where("course_id = ? AND status = ?", course.ID, model.EnrollmentStatusApproved).
		Count(&approved)
	seatsLeft := int64(course.MaxStudents) - approved
	if seatsLeft < 0 {
		seatsLeft = 0
	}

	return response.Success(c, CourseSummary{
		Course:        course,
		ApprovedCount: approved,
		SeatsLeft:     seatsLeft,
	})
}

// Create adds a course to the catalog
func (h *Handler) Create(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.TeacherID != nil {
		if err := h.checkTeacher(*req.TeacherID); err != nil {
			return response.BadRequest(c, err.Error())
		}
	}

	course := model.Course{
		Title:       validation.SanitizeString(req.Title),
		Description: req.Description,
		Level:       model.CourseLevel(req.Level),
		MaxStudents: req.MaxStudents,
		TeacherID:   req.TeacherID,
	}
	if course.MaxStudents == 0 {
		course.MaxStudents = 50
	}
	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course)
}

// Update applies partial changes to a course
func (h *Handler) Update(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = validation.SanitizeString(req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Level != "" {
		updates["level"] = req.Level
	}
	if req.MaxStudents > 0 {
		updates["max_students"] = req.MaxStudents
	}
	if len(updates) == 0 {
		return response.BadRequest(c, "No fields to update")
	}

	if err := h.db.Model(&course).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}
	return response.Success(c, course)
}

// AssignTeacher sets or clears a course's teacher
func (h *Handler) AssignTeacher(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req AssignTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var course model.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	if req.TeacherID != nil {
		if err := h.checkTeacher(*req.TeacherID); err != nil {
			return response.BadRequest(c, err.Error())
		}
	}

	if err := h.db.Model(&course).Update("teacher_id", req.TeacherID).Error; err != nil {
		return response.InternalServerError(c, "Failed to assign teacher")
	}
	course.TeacherID = req.TeacherID

	return response.Success(c, course)
}

// Delete soft-deletes a course
func (h *Handler) Delete(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	result := h.db.Delete(&model.Course{}, courseID)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Course not found")
	}
	return response.SuccessWithMessage(c, "Course deleted", nil)
}

func (h *Handler) checkTeacher(teacherID uint) error {
	var teacher model.User
	if err := h.db.First(&teacher, teacherID).Error; err != nil {
		return errors.New("teacher not found")
	}
	if !teacher.IsTeacher() {
		return errors.New("assigned user does not have the teacher role")
	}
	return nil
}
