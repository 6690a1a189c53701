package enrollment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"gorm.io/gorm"
)

// Handler handles enrollment requests and teacher/admin responses
type Handler struct {
	enrollments *services.EnrollmentService
}

// NewHandler creates a new enrollment handler
func NewHandler(enrollments *services.EnrollmentService) *Handler {
	return &Handler{enrollments: enrollments}
}

// Request creates a pending enrollment for the authenticated student
func (h *Handler) Request(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	enrollment, err := h.enrollments.Request(c.Context(), user, uint(courseID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentRequired):
			return response.Error(c, fiber.StatusPaymentRequired, err.Error(), "PAYMENT_REQUIRED")
		case errors.Is(err, services.ErrAlreadyEnrolled), errors.Is(err, services.ErrRetryNotAllowed):
			return response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrCourseFull):
			return response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to create enrollment request")
	}

	return response.Created(c, enrollment)
}

// Mine returns the authenticated student's enrollments
func (h *Handler) Mine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	enrollments, err := h.enrollments.ListForStudent(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list enrollments")
	}
	return response.Success(c, enrollments)
}

// ListForCourse returns a course's enrollments for its teacher or an
// admin, optionally filtered by status.
func (h *Handler) ListForCourse(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	allowed, err := h.enrollments.CanAccessCourse(c.Context(), user, uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to check course access")
	}
	if !allowed || user.IsStudent() {
		return response.Forbidden(c, "Only the course teacher or an admin may view enrollments")
	}

	status := model.EnrollmentStatus(c.Query("status"))
	if status != "" && status != model.EnrollmentStatusPending &&
		status != model.EnrollmentStatusApproved && status != model.EnrollmentStatusDeclined {
		return response.BadRequest(c, "Invalid enrollment status filter")
	}

	enrollments, err := h.enrollments.ListForCourse(c.Context(), uint(courseID), status)
	if err != nil {
		return response.InternalServerError(c, "Failed to list enrollments")
	}
	return response.Success(c, enrollments)
}

// Approve approves a pending enrollment
func (h *Handler) Approve(c *fiber.Ctx) error {
	return h.respond(c, true)
}

// Decline declines a pending enrollment
func (h *Handler) Decline(c *fiber.Ctx) error {
	return h.respond(c, false)
}

func (h *Handler) respond(c *fiber.Ctx, approve bool) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	enrollmentID, err := c.ParamsInt("id")
	if err != nil || enrollmentID <= 0 {
		return response.BadRequest(c, "Invalid enrollment ID")
	}

	enrollment, err := h.enrollments.Respond(c.Context(), user, uint(enrollmentID), approve)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return response.NotFound(c, "Enrollment not found")
		case errors.Is(err, services.ErrNotCourseOwner):
			return response.Forbidden(c, err.Error())
		case errors.Is(err, services.ErrAlreadyResponded):
			return response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrCourseFull):
			return response.Conflict(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to respond to enrollment")
	}

	return response.Success(c, enrollment)
}
