package essay

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
)

// Handler handles essay assignments, submissions and grading
type Handler struct {
	essays      *services.EssayService
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewHandler creates a new essay handler
func NewHandler(essays *services.EssayService, enrollments *services.EnrollmentService) *Handler {
	return &Handler{
		essays:      essays,
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// CreateEssayRequest represents the essay creation payload
type CreateEssayRequest struct {
	Title            string `json:"title" validate:"required,min=1,max=255"`
	QuestionText     string `json:"question_text" validate:"required,min=1"`
	AllowsFileUpload bool   `json:"allows_file_upload"`
	MaxPoints        int    `json:"max_points" validate:"omitempty,min=1,max=1000"`
	DueDate          string `json:"due_date" validate:"omitempty"` // RFC 3339
}

// GradeRequest represents the grading payload
type GradeRequest struct {
	Score    int    `json:"score" validate:"min=0"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

// Create adds an essay assignment to a course
func (h *Handler) Create(c *fiber.Ctx) error {
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

	var req CreateEssayRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	essay := &model.Essay{
		CourseID:         uint(courseID),
		Title:            validation.SanitizeString(req.Title),
		QuestionText:     req.QuestionText,
		AllowsFileUpload: req.AllowsFileUpload,
		MaxPoints:        req.MaxPoints,
	}
	if req.DueDate != "" {
		dueDate, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return response.BadRequest(c, "due_date must be an RFC 3339 timestamp")
		}
		essay.DueDate = &dueDate
	}

	essay, err = h.essays.Create(c.Context(), essay)
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to create essay")
	}
	return response.Created(c, essay)
}

// ListForCourse returns a course's essay assignments
func (h *Handler) ListForCourse(c *fiber.Ctx) error {
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

	essays, err := h.essays.ListForCourse(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list essays")
	}
	return response.Success(c, essays)
}

// Get returns an essay assignment
func (h *Handler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	essayID, err := c.ParamsInt("id")
	if err != nil || essayID <= 0 {
		return response.BadRequest(c, "Invalid essay ID")
	}

	essay, err := h.essays.Get(c.Context(), uint(essayID))
	if err != nil {
		if errors.Is(err, services.ErrEssayNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load essay")
	}
	if err := h.requireAccess(c, user, essay.CourseID); err != nil {
		return err
	}

	return response.Success(c, essay)
}

// Submit stores the authenticated student's submission. Accepts a
// multipart form with "text" and an optional "file" part, or a plain
// JSON body with "text" when no file is attached.
func (h *Handler) Submit(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	essayID, err := c.ParamsInt("id")
	if err != nil || essayID <= 0 {
		return response.BadRequest(c, "Invalid essay ID")
	}

	essay, err := h.essays.Get(c.Context(), uint(essayID))
	if err != nil {
		if errors.Is(err, services.ErrEssayNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load essay")
	}
	if err := h.requireAccess(c, user, essay.CourseID); err != nil {
		return err
	}

	text := ""
	fileName := ""
	var fileSize int64
	var fileReader io.Reader

	if form, formErr := c.MultipartForm(); formErr == nil {
		if values := form.Value["text"]; len(values) > 0 {
			text = values[0]
		}
		if files := form.File["file"]; len(files) > 0 {
			header := files[0]
			opened, err := header.Open()
			if err != nil {
				return response.InternalServerError(c, "Failed to read uploaded file")
			}
			defer opened.Close()
			fileName = header.Filename
			fileSize = header.Size
			fileReader = opened
		}
	} else {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
		text = req.Text
	}

	submission, err := h.essays.Submit(c.Context(), user.ID, uint(essayID), text, fileName, fileSize, fileReader)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPastDueDate),
			errors.Is(err, services.ErrUploadNotAllowed),
			errors.Is(err, services.ErrEmptySubmission),
			errors.Is(err, services.ErrFileTypeNotAllowed),
			errors.Is(err, services.ErrFileTooLarge):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrAlreadySubmitted):
			return response.Conflict(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to submit essay")
	}
	return response.Created(c, submission)
}

// MySubmission returns the student's own submission with grade
func (h *Handler) MySubmission(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	essayID, err := c.ParamsInt("id")
	if err != nil || essayID <= 0 {
		return response.BadRequest(c, "Invalid essay ID")
	}

	submission, err := h.essays.SubmissionForStudent(c.Context(), user.ID, uint(essayID))
	if err != nil {
		if errors.Is(err, services.ErrSubmissionNotFound) {
			return response.NotFound(c, "No submission for this essay")
		}
		return response.InternalServerError(c, "Failed to load submission")
	}
	return response.Success(c, submission)
}

// Submissions returns every submission of an essay for its teacher
func (h *Handler) Submissions(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	essayID, err := c.ParamsInt("id")
	if err != nil || essayID <= 0 {
		return response.BadRequest(c, "Invalid essay ID")
	}

	essay, err := h.essays.Get(c.Context(), uint(essayID))
	if err != nil {
		if errors.Is(err, services.ErrEssayNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load essay")
	}
	if err := h.requireManage(c, user, essay.CourseID); err != nil {
		return err
	}

	submissions, err := h.essays.Submissions(c.Context(), uint(essayID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list submissions")
	}
	return response.Success(c, submissions)
}

// Grade records a score and feedback on a submission
func (h *Handler) Grade(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	submissionID, err := c.ParamsInt("id")
	if err != nil || submissionID <= 0 {
		return response.BadRequest(c, "Invalid submission ID")
	}

	submission, err := h.essays.GetSubmission(c.Context(), uint(submissionID))
	if err != nil {
		if errors.Is(err, services.ErrSubmissionNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load submission")
	}
	if err := h.requireManage(c, user, submission.Essay.CourseID); err != nil {
		return err
	}

	var req GradeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	graded, err := h.essays.Grade(c.Context(), uint(submissionID), req.Score, req.Feedback)
	if err != nil {
		if errors.Is(err, services.ErrScoreOutOfRange) {
			return response.BadRequest(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to grade submission")
	}
	return response.Success(c, graded)
}

// DownloadSubmission streams a submission's uploaded file to the
// student who owns it or the course teacher.
func (h *Handler) DownloadSubmission(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	submissionID, err := c.ParamsInt("id")
	if err != nil || submissionID <= 0 {
		return response.BadRequest(c, "Invalid submission ID")
	}

	submission, err := h.essays.GetSubmission(c.Context(), uint(submissionID))
	if err != nil {
		if errors.Is(err, services.ErrSubmissionNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load submission")
	}

	if submission.StudentID != user.ID {
		if err := h.requireManage(c, user, submission.Essay.CourseID); err != nil {
			return err
		}
	}

	path, hasFile := h.essays.SubmissionFilePath(submission)
	if !hasFile {
		return response.NotFound(c, "Submission has no uploaded file")
	}
	return c.Download(path, submission.OriginalName)
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
		return response.Forbidden(c, "Only teachers and admins may manage essays")
	}
	return h.requireAccess(c, user, courseID)
}
