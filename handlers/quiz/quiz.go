package quiz

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

// Handler handles quiz creation, taking and review
type Handler struct {
	quizzes     *services.QuizService
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewHandler creates a new quiz handler
func NewHandler(quizzes *services.QuizService, enrollments *services.EnrollmentService) *Handler {
	return &Handler{
		quizzes:     quizzes,
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// QuestionRequest represents one question in a quiz creation payload
type QuestionRequest struct {
	Text          string `json:"text" validate:"required,min=1"`
	OptionA       string `json:"option_a" validate:"required,max=500"`
	OptionB       string `json:"option_b" validate:"required,max=500"`
	OptionC       string `json:"option_c" validate:"required,max=500"`
	OptionD       string `json:"option_d" validate:"required,max=500"`
	CorrectOption string `json:"correct_option" validate:"required,oneof=A B C D"`
	Points        int    `json:"points" validate:"omitempty,min=1,max=100"`
}

// CreateQuizRequest represents the quiz creation payload
type CreateQuizRequest struct {
	Title       string            `json:"title" validate:"required,min=1,max=255"`
	Description string            `json:"description" validate:"max=5000"`
	Questions   []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// SubmitQuizRequest represents a student's answers
type SubmitQuizRequest struct {
	Answers map[uint]string `json:"answers" validate:"required,min=1"`
}

// Create adds a quiz with its questions to a course
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

	var req CreateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	questions := make([]services.QuestionInput, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, services.QuestionInput{
			Text:          q.Text,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectOption: model.QuizOption(q.CorrectOption),
			Points:        q.Points,
		})
	}

	quiz, err := h.quizzes.Create(c.Context(), uint(courseID),
		validation.SanitizeString(req.Title), req.Description, questions)
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return response.NotFound(c, err.Error())
		}
		if errors.Is(err, services.ErrQuizNoQuestions) {
			return response.BadRequest(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to create quiz")
	}
	return response.Created(c, quiz)
}

// ListForCourse returns a course's quizzes
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

	quizzes, err := h.quizzes.ListForCourse(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list quizzes")
	}
	return response.Success(c, quizzes)
}

// Get returns a quiz with its questions. Correct options are never
// serialized, so students can safely fetch the quiz to take it.
func (h *Handler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	quiz, err := h.quizzes.Get(c.Context(), uint(quizID))
	if err != nil {
		if errors.Is(err, services.ErrQuizNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load quiz")
	}
	if err := h.requireAccess(c, user, quiz.CourseID); err != nil {
		return err
	}

	return response.Success(c, quiz)
}

// Submit grades the authenticated student's answers
func (h *Handler) Submit(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	courseID, err := h.quizzes.CourseIDForQuiz(c.Context(), uint(quizID))
	if err != nil {
		if errors.Is(err, services.ErrQuizNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load quiz")
	}
	if err := h.requireAccess(c, user, courseID); err != nil {
		return err
	}

	var req SubmitQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	answers := make(map[uint]model.QuizOption, len(req.Answers))
	for questionID, option := range req.Answers {
		answers[questionID] = model.QuizOption(option)
	}

	submission, err := h.quizzes.Submit(c.Context(), user.ID, uint(quizID), answers)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadySubmitted):
			return response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrAnswerMismatch):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrQuizNotFound):
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to submit quiz")
	}
	return response.Created(c, submission)
}

// MySubmission returns the student's own graded submission
func (h *Handler) MySubmission(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	submission, err := h.quizzes.SubmissionForStudent(c.Context(), user.ID, uint(quizID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "No submission for this quiz")
		}
		return response.InternalServerError(c, "Failed to load submission")
	}
	return response.Success(c, submission)
}

// Submissions returns every submission of a quiz for its teacher
func (h *Handler) Submissions(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	courseID, err := h.quizzes.CourseIDForQuiz(c.Context(), uint(quizID))
	if err != nil {
		if errors.Is(err, services.ErrQuizNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load quiz")
	}
	if err := h.requireManage(c, user, courseID); err != nil {
		return err
	}

	submissions, err := h.quizzes.Submissions(c.Context(), uint(quizID))
	if err != nil {
		return response.InternalServerError(c, "Failed to list submissions")
	}
	return response.Success(c, submissions)
}

// Delete removes a quiz with everything under it
func (h *Handler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	quizID, err := c.ParamsInt("id")
	if err != nil || quizID <= 0 {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	courseID, err := h.quizzes.CourseIDForQuiz(c.Context(), uint(quizID))
	if err != nil {
		if errors.Is(err, services.ErrQuizNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to load quiz")
	}
	if err := h.requireManage(c, user, courseID); err != nil {
		return err
	}

	if err := h.quizzes.Delete(c.Context(), uint(quizID)); err != nil {
		return response.InternalServerError(c, "Failed to delete quiz")
	}
	return response.SuccessWithMessage(c, "Quiz deleted", nil)
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
		return response.Forbidden(c, "Only teachers and admins may manage quizzes")
	}
	return h.requireAccess(c, user, courseID)
}
