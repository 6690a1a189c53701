package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/utils/auth"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
	"gorm.io/gorm"
)

// Handler handles authentication endpoints
type Handler struct {
	db         *gorm.DB
	jwtManager *auth.JWTManager
	blacklist  *auth.BlacklistService
	bruteForce *middleware.BruteForceProtection // nil when Redis is unavailable
	validator  *validation.Validator
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, jwtManager *auth.JWTManager, blacklist *auth.BlacklistService, bruteForce *middleware.BruteForceProtection) *Handler {
	return &Handler{
		db:         db,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		bruteForce: bruteForce,
		validator:  validation.NewValidator(),
	}
}

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FirstName   string `json:"first_name" validate:"required,min=1,max=100"`
	LastName    string `json:"last_name" validate:"required,min=1,max=100"`
	DateOfBirth string `json:"date_of_birth" validate:"required"` // YYYY-MM-DD
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest represents the password change payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// UpdateProfileRequest represents the profile update payload
type UpdateProfileRequest struct {
	FirstName   string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName    string `json:"last_name" validate:"omitempty,min=1,max=100"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty"`
}

// TokenResponse carries a freshly issued token pair
type TokenResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	TokenType    string             `json:"token_type"`
	ExpiresIn    int64              `json:"expires_in"` // Seconds
	User         model.UserResponse `json:"user"`
}

// Register creates a new student account. Elevated roles are only
// assigned later by an admin.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = validation.SanitizeString(req.FirstName)
	req.LastName = validation.SanitizeString(req.LastName)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return response.BadRequest(c, "date_of_birth must be in YYYY-MM-DD format")
	}
	if dob.After(time.Now()) {
		return response.BadRequest(c, "date_of_birth cannot be in the future")
	}

	var existing int64
	if err := h.db.Model(&model.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return response.InternalServerError(c, "Failed to check existing users")
	}
	if existing > 0 {
		return response.Conflict(c, "An account with this email already exists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  dob,
		Role:         model.RoleStudent,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create account")
	}

	return response.Created(c, user.ToResponse())
}

// Login verifies credentials and issues a token pair
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	ip := c.IP()
	var user model.User
	err := h.db.Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.recordFailure(c, ip, req.Email)
			return response.Unauthorized(c, "Invalid email or password")
		}
		return response.InternalServerError(c, "Failed to look up account")
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.recordFailure(c, ip, req.Email)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if h.bruteForce != nil {
		h.bruteForce.RecordSuccessfulAttempt(c, ip)
	}

	return h.issueTokens(c, &user)
}

// Refresh exchanges a valid refresh token for a new token pair. The
// used refresh token is revoked so each one works exactly once.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}
	if claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Token is not a refresh token")
	}

	revoked, err := h.blacklist.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to verify token")
	}
	if revoked {
		return response.Unauthorized(c, "Refresh token has been revoked")
	}

	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "Account no longer exists")
	}
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Refresh token has been invalidated")
	}

	if claims.ExpiresAt != nil {
		h.blacklist.RevokeToken(c.Context(), claims.ID, user.ID, claims.ExpiresAt.Time, "refresh rotation")
	}

	return h.issueTokens(c, &user)
}

// Logout revokes the current access token
func (h *Handler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	expiresAt := time.Now().Add(h.jwtManager.AccessTokenExpiry())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.blacklist.RevokeToken(c.Context(), claims.ID, claims.UserID, expiresAt, "logout"); err != nil {
		return response.InternalServerError(c, "Failed to log out")
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}

// Profile returns the authenticated user's account
func (h *Handler) Profile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}
	return response.Success(c, user.ToResponse())
}

// UpdateProfile applies partial changes to the authenticated user's
// name and date of birth. Email and role are not editable here.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{}
	if req.FirstName != "" {
		updates["first_name"] = validation.SanitizeString(req.FirstName)
	}
	if req.LastName != "" {
		updates["last_name"] = validation.SanitizeString(req.LastName)
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return response.BadRequest(c, "date_of_birth must be in YYYY-MM-DD format")
		}
		updates["date_of_birth"] = dob
	}
	if len(updates) == 0 {
		return response.BadRequest(c, "No fields to update")
	}

	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}
	return response.Success(c, user.ToResponse())
}

// ChangePassword verifies the current password, stores the new hash and
// invalidates every outstanding token for the account.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return response.Unauthorized(c, "Current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	if err := h.db.Model(user).Update("password_hash", hash).Error; err != nil {
		return response.InternalServerError(c, "Failed to change password")
	}
	if err := h.blacklist.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}

	return response.SuccessWithMessage(c, "Password changed; please log in again", nil)
}

func (h *Handler) issueTokens(c *fiber.Ctx, user *model.User) error {
	accessToken, _, err := h.jwtManager.GenerateAccessToken(user)
	if err != nil {
		return response.InternalServerError(c, "Failed to issue tokens")
	}
	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user)
	if err != nil {
		return response.InternalServerError(c, "Failed to issue tokens")
	}

	return response.Success(c, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.jwtManager.AccessTokenExpiry().Seconds()),
		User:         user.ToResponse(),
	})
}

func (h *Handler) recordFailure(c *fiber.Ctx, ip, email string) {
	if h.bruteForce != nil {
		h.bruteForce.RecordFailedAttempt(c, ip, email)
	}
}
