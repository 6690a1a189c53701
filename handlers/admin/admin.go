package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/database"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services/cron"
	"github.com/stgeorges/biolms/utils/auth"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
	"gorm.io/gorm"
)

// Handler handles admin-only operations: user management, reports and
// cron job inspection.
type Handler struct {
	db        *gorm.DB
	store     database.Storage
	blacklist *auth.BlacklistService
	cron      *cron.Manager
	validator *validation.Validator
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, store database.Storage, blacklist *auth.BlacklistService, cronManager *cron.Manager) *Handler {
	return &Handler{
		db:        db,
		store:     store,
		blacklist: blacklist,
		cron:      cronManager,
		validator: validation.NewValidator(),
	}
}

// SetRoleRequest represents the role change payload
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin teacher student"`
}

// CreateUserRequest represents the admin user creation payload. Unlike
// self-registration, any role may be assigned here.
type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FirstName   string `json:"first_name" validate:"required,min=1,max=100"`
	LastName    string `json:"last_name" validate:"required,min=1,max=100"`
	Role        string `json:"role" validate:"required,oneof=admin teacher student"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty"` // YYYY-MM-DD
}

// ListUsers returns accounts, filtered by ?role and ?search, paginated
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.User{})
	if role := c.Query("role"); role != "" {
		if !model.Role(role).Valid() {
			return response.BadRequest(c, "Invalid role filter")
		}
		query = query.Where("role = ?", role)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count users")
	}

	var users []model.User
	err := query.Order("created_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	result := make([]model.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, users[i].ToResponse())
	}
	return response.Paginated(c, result, response.CalculatePagination(page, limit, total))
}

// GetUser returns a single account
func (h *Handler) GetUser(c *fiber.Ctx) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}
	return response.Success(c, user.ToResponse())
}

// CreateUser creates an account with an explicit role
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Same normalization as self-registration, so login lookups match
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = validation.SanitizeString(req.FirstName)
	req.LastName = validation.SanitizeString(req.LastName)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var dob time.Time
	if req.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return response.BadRequest(c, "date_of_birth must be in YYYY-MM-DD format")
		}
		dob = parsed
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  dob,
		Role:         model.Role(req.Role),
	}
	if err := h.db.Create(&user).Error; err != nil {
		var existing model.User
		if h.db.Where("email = ?", req.Email).First(&existing).Error == nil {
			return response.Conflict(c, "An account with this email already exists")
		}
		return response.InternalServerError(c, "Failed to create user")
	}

	return response.Created(c, user.ToResponse())
}

// SetRole changes an account's role. Role changes invalidate the
// account's outstanding tokens so stale role claims cannot be replayed.
func (h *Handler) SetRole(c *fiber.Ctx) error {
	actor, _ := middleware.GetUser(c)

	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	var req SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if actor != nil && actor.ID == user.ID {
		return response.BadRequest(c, "You cannot change your own role")
	}

	if err := h.db.Model(user).Update("role", req.Role).Error; err != nil {
		return response.InternalServerError(c, "Failed to change role")
	}
	if err := h.blacklist.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}
	user.Role = model.Role(req.Role)

	return response.Success(c, user.ToResponse())
}

// DeleteUser soft-deletes an account
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	actor, _ := middleware.GetUser(c)

	user, err := h.loadUser(c)
	if err != nil {
		return err
	}
	if actor != nil && actor.ID == user.ID {
		return response.BadRequest(c, "You cannot delete your own account")
	}

	if err := h.db.Delete(user).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete user")
	}
	if err := h.blacklist.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}
	return response.SuccessWithMessage(c, "User deleted", nil)
}

// EnrollmentReport returns per-course enrollment counts
func (h *Handler) EnrollmentReport(c *fiber.Ctx) error {
	report, err := h.store.CourseEnrollmentReport()
	if err != nil {
		return response.InternalServerError(c, "Failed to build enrollment report")
	}
	return response.Success(c, report)
}

// QuizReport returns per-quiz submission counts and score averages
func (h *Handler) QuizReport(c *fiber.Ctx) error {
	report, err := h.store.QuizScoreReport()
	if err != nil {
		return response.InternalServerError(c, "Failed to build quiz report")
	}
	return response.Success(c, report)
}

// CronLogs returns recent cron job runs
func (h *Handler) CronLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	logs, err := h.cron.RecentLogs(c.Context(), limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to load cron logs")
	}
	return response.Success(c, logs)
}

// TriggerCron runs a registered cron job immediately
func (h *Handler) TriggerCron(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return response.BadRequest(c, "Job name is required")
	}
	if err := h.cron.RunNow(name); err != nil {
		return response.NotFound(c, "Unknown cron job")
	}
	return response.SuccessWithMessage(c, "Job triggered", nil)
}

func (h *Handler) loadUser(c *fiber.Ctx) (*model.User, error) {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return nil, response.BadRequest(c, "Invalid user ID")
	}

	var user model.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "User not found")
		}
		return nil, response.InternalServerError(c, "Failed to load user")
	}
	return &user, nil
}
