package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
	"gorm.io/gorm"
)

// Handler handles the payment flow. The card payment is simulated: no
// gateway is called, the card fields are only validated for shape and
// the account's paid flag is flipped, which is what the enrollment
// gate checks. An admin can also set the flag directly.
type Handler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewHandler creates a new payment handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, validator: validation.NewValidator()}
}

// PayRequest represents the simulated card payment payload
type PayRequest struct {
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	CardHolder string `json:"card_holder" validate:"required,min=2,max=100"`
	Expiry     string `json:"expiry" validate:"required,min=4,max=7"` // MM/YY
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// SetPaidRequest represents the payment flag update payload
type SetPaidRequest struct {
	HasPaid bool `json:"has_paid"`
}

// Pay processes a student's course fee payment and unlocks enrollment
// requests. Paying twice is rejected.
func (h *Handler) Pay(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req PayRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if user.HasPaid {
		return response.Conflict(c, "Payment has already been made")
	}

	if err := h.db.Model(user).Update("has_paid", true).Error; err != nil {
		return response.InternalServerError(c, "Failed to record payment")
	}
	user.HasPaid = true

	return response.SuccessWithMessage(c, "Payment successful", user.ToResponse())
}

// SetPaid records a user's payment status. Clearing the flag does not
// touch existing enrollments; it only blocks new requests.
func (h *Handler) SetPaid(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return response.BadRequest(c, "Invalid user ID")
	}

	var req SetPaidRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var user model.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to look up user")
	}

	if err := h.db.Model(&user).Update("has_paid", req.HasPaid).Error; err != nil {
		return response.InternalServerError(c, "Failed to update payment status")
	}
	user.HasPaid = req.HasPaid

	return response.Success(c, user.ToResponse())
}

// ListUnpaid returns students who have not paid yet
func (h *Handler) ListUnpaid(c *fiber.Ctx) error {
	var users []model.User
	err := h.db.
		Where("role = ? AND has_paid = ?", model.RoleStudent, false).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	result := make([]model.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, users[i].ToResponse())
	}
	return response.Success(c, result)
}
