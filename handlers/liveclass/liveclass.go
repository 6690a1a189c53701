package liveclass

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
)

// Handler handles live class sessions
type Handler struct {
	liveClasses *services.LiveClassService
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewHandler creates a new live class handler
func NewHandler(liveClasses *services.LiveClassService, enrollments *services.EnrollmentService) *Handler {
	return &Handler{
		liveClasses: liveClasses,
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// StartRequest represents the session start payload
type StartRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=5000"`
	StreamURL   string `json:"stream_url" validate:"required,url,max=500"`
}

// Start opens a live class for a course
func (h *Handler) Start(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}
	if err := h.requireManage(c, user, uint(courseID)); err != nil {
		return err
	}

	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	liveClass, err := h.liveClasses.Start(c.Context(), uint(courseID),
		validation.SanitizeString(req.Title), req.Description, req.StreamURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, services.ErrLiveClassActive):
			return response.Conflict(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to start live class")
	}
	return response.Created(c, liveClass)
}

// End closes a running live class
func (h *Handler) End(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	liveClassID, err := c.ParamsInt("id")
	if err != nil || liveClassID <= 0 {
		return response.BadRequest(c, "Invalid live class ID")
	}

	liveClass, err := h.liveClasses.Get(c.Context(), uint(liveClassID))
	if err != nil {
		if errors.Is(err, services.ErrLiveClassNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load live class")
	}
	if err := h.requireManage(c, user, liveClass.CourseID); err != nil {
		return err
	}

	ended, err := h.liveClasses.End(c.Context(), uint(liveClassID))
	if err != nil {
		if errors.Is(err, services.ErrLiveClassEnded) {
			return response.Conflict(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to end live class")
	}
	return response.Success(c, ended)
}

// Active returns the course's running session, if any. The stream URL
// is only visible to users with course access.
func (h *Handler) Active(c *fiber.Ctx) error {
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

	liveClass, err := h.liveClasses.ActiveForCourse(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to load live class")
	}
	if liveClass == nil {
		return response.Success(c, fiber.Map{"active": false})
	}
	return response.Success(c, fiber.Map{"active": true, "live_class": liveClass})
}

// History returns past and current sessions of a course
func (h *Handler) History(c *fiber.Ctx) error {
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

	classes, err := h.liveClasses.History(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to load live class history")
	}
	return response.Success(c, classes)
}

func (h *Handler) requireAccess(c *fiber.Ctx, user *model.User, courseID uint) error {
	allowed, err := h.enrollments.CanAccessCourse(c.Context(), user, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check course access")
	}
	if !allowed {
		return response.Forbidden(c, "Course content requires an approved enrollment")
	}
	return nil
}

func (h *Handler) requireManage(c *fiber.Ctx, user *model.User, courseID uint) error {
	if user.IsStudent() {
		return response.Forbidden(c, "Only teachers and admins may manage live classes")
	}
	return h.requireAccess(c, user, courseID)
}
