package notification

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler handles sending and reading notifications
type Handler struct {
	notifications *services.NotificationService
	enrollments   *services.EnrollmentService
	validator     *validation.Validator
}

// NewHandler creates a new notification handler
func NewHandler(notifications *services.NotificationService, enrollments *services.EnrollmentService) *Handler {
	return &Handler{
		notifications: notifications,
		enrollments:   enrollments,
		validator:     validation.NewValidator(),
	}
}

// SendRequest represents the notification send payload
type SendRequest struct {
	Scope    string         `json:"scope" validate:"required,oneof=all course user"`
	CourseID *uint          `json:"course_id"`
	UserID   *uint          `json:"user_id"`
	Title    string         `json:"title" validate:"required,min=1,max=255"`
	Message  string         `json:"message" validate:"required,min=1"`
	Metadata datatypes.JSON `json:"metadata"`
}

// Send creates a notification and fans it out. Admins may use any
// scope; teachers may only target courses they own or single users.
func (h *Handler) Send(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	scope := model.NotificationScope(req.Scope)
	if !user.IsAdmin() {
		if scope == model.NotificationScopeAll {
			return response.Forbidden(c, "Only admins may notify all students")
		}
		if scope == model.NotificationScopeCourse && req.CourseID != nil {
			owns, err := h.enrollments.CanAccessCourse(c.Context(), user, *req.CourseID)
			if err != nil {
				return response.InternalServerError(c, "Failed to check course access")
			}
			if !owns {
				return response.Forbidden(c, "You do not own this course")
			}
		}
	}

	notification, err := h.notifications.Send(c.Context(), user.ID, scope,
		req.CourseID, req.UserID,
		validation.SanitizeString(req.Title), req.Message, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidScope),
			errors.Is(err, services.ErrScopeTarget):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrNoRecipients):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return response.NotFound(c, "Target user not found")
		}
		return response.InternalServerError(c, "Failed to send notification")
	}
	return response.Created(c, notification)
}

// List returns the authenticated user's notifications; ?unread=true
// narrows to unread ones.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	unreadOnly := c.QueryBool("unread", false)
	recipients, err := h.notifications.ListForUser(c.Context(), userID, unreadOnly)
	if err != nil {
		return response.InternalServerError(c, "Failed to list notifications")
	}

	result := make([]model.NotificationResponse, 0, len(recipients))
	for i := range recipients {
		result = append(result, recipients[i].ToResponse())
	}
	return response.Success(c, result)
}

// UnreadCount returns the user's unread notification count
func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	count, err := h.notifications.UnreadCount(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to count notifications")
	}
	return response.Success(c, fiber.Map{"unread": count})
}

// MarkAsRead marks one delivered notification as read
func (h *Handler) MarkAsRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	recipientID, err := c.ParamsInt("id")
	if err != nil || recipientID <= 0 {
		return response.BadRequest(c, "Invalid notification ID")
	}

	recipient, err := h.notifications.MarkAsRead(c.Context(), userID, uint(recipientID))
	if err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to mark notification as read")
	}
	return response.Success(c, recipient.ToResponse())
}

// MarkAllAsRead marks every unread notification as read
func (h *Handler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	marked, err := h.notifications.MarkAllAsRead(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to mark notifications as read")
	}
	return response.Success(c, fiber.Map{"marked": marked})
}
