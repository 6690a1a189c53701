package curriculum

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/services/filestore"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
)

// Handler handles the course curriculum tree: modules, topics, lessons
// and lesson media uploads.
type Handler struct {
	curriculum  *services.CurriculumService
	enrollments *services.EnrollmentService
	files       *filestore.LocalStore
	allowed     []string
	maxSize     int64
	validator   *validation.Validator
}

// NewHandler creates a new curriculum handler
func NewHandler(curriculum *services.CurriculumService, enrollments *services.EnrollmentService, files *filestore.LocalStore, allowed []string, maxSize int64) *Handler {
	return &Handler{
		curriculum:  curriculum,
		enrollments: enrollments,
		files:       files,
		allowed:     allowed,
		maxSize:     maxSize,
		validator:   validation.NewValidator(),
	}
}

// NodeRequest represents a module or topic create/update payload
type NodeRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Order       int    `json:"order" validate:"omitempty,min=1"`
}

// LessonRequest represents a lesson create payload
type LessonRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=5000"`
	TheoryText  string `json:"theory_text"`
	VideoURL    string `json:"video_url" validate:"omitempty,url,max=500"`
	IsLabLesson bool   `json:"is_lab_lesson"`
	Order       int    `json:"order" validate:"omitempty,min=1"`
}

// MoveRequest represents a reposition payload. ParentID reparents the
// node under a new module (for topics) or topic (for lessons) of the
// same course; modules ignore it.
type MoveRequest struct {
	Position int   `json:"position" validate:"required,min=1"`
	ParentID *uint `json:"parent_id"`
}

// Tree returns the full curriculum of a course. Students need an
// approved enrollment to see it.
func (h *Handler) Tree(c *fiber.Ctx) error {
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
	if !allowed {
		return response.Forbidden(c, "Course content requires an approved enrollment")
	}

	modules, err := h.curriculum.CourseTree(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to load curriculum")
	}
	return response.Success(c, modules)
}

// CreateModule adds a module to a course
func (h *Handler) CreateModule(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}
	if err := h.requireManage(c, uint(courseID)); err != nil {
		return err
	}

	var req NodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	module, err := h.curriculum.CreateModule(c.Context(), uint(courseID),
		validation.SanitizeString(req.Title), req.Description, req.Order)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Created(c, module)
}

// UpdateModule applies partial changes to a module
func (h *Handler) UpdateModule(c *fiber.Ctx) error {
	moduleID, err := c.ParamsInt("id")
	if err != nil || moduleID <= 0 {
		return response.BadRequest(c, "Invalid module ID")
	}

	courseID, err := h.curriculum.CourseIDForModule(c.Context(), uint(moduleID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	updates, err := h.nodeUpdates(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	module, err := h.curriculum.UpdateModule(c.Context(), uint(moduleID), updates)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, module)
}

// MoveModule re-inserts a module at an explicit sibling position
func (h *Handler) MoveModule(c *fiber.Ctx) error {
	moduleID, err := c.ParamsInt("id")
	if err != nil || moduleID <= 0 {
		return response.BadRequest(c, "Invalid module ID")
	}

	courseID, err := h.curriculum.CourseIDForModule(c.Context(), uint(moduleID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	req, err := h.moveRequest(c)
	if err != nil {
		return err
	}

	module, err := h.curriculum.MoveModule(c.Context(), uint(moduleID), req.Position)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, module)
}

// DeleteModule removes a module and its subtree
func (h *Handler) DeleteModule(c *fiber.Ctx) error {
	moduleID, err := c.ParamsInt("id")
	if err != nil || moduleID <= 0 {
		return response.BadRequest(c, "Invalid module ID")
	}

	courseID, err := h.curriculum.CourseIDForModule(c.Context(), uint(moduleID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	if err := h.curriculum.DeleteModule(c.Context(), uint(moduleID)); err != nil {
		return h.serviceError(c, err)
	}
	return response.SuccessWithMessage(c, "Module deleted", nil)
}

// CreateTopic adds a topic under a module
func (h *Handler) CreateTopic(c *fiber.Ctx) error {
	moduleID, err := c.ParamsInt("id")
	if err != nil || moduleID <= 0 {
		return response.BadRequest(c, "Invalid module ID")
	}

	courseID, err := h.curriculum.CourseIDForModule(c.Context(), uint(moduleID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	var req NodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	topic, err := h.curriculum.CreateTopic(c.Context(), courseID, uint(moduleID),
		validation.SanitizeString(req.Title), req.Description, req.Order)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Created(c, topic)
}

// UpdateTopic applies partial changes to a topic
func (h *Handler) UpdateTopic(c *fiber.Ctx) error {
	topicID, err := c.ParamsInt("id")
	if err != nil || topicID <= 0 {
		return response.BadRequest(c, "Invalid topic ID")
	}

	courseID, err := h.curriculum.CourseIDForTopic(c.Context(), uint(topicID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	updates, err := h.nodeUpdates(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	topic, err := h.curriculum.UpdateTopic(c.Context(), uint(topicID), updates)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, topic)
}

// MoveTopic re-inserts a topic, optionally under a different module
func (h *Handler) MoveTopic(c *fiber.Ctx) error {
	topicID, err := c.ParamsInt("id")
	if err != nil || topicID <= 0 {
		return response.BadRequest(c, "Invalid topic ID")
	}

	courseID, err := h.curriculum.CourseIDForTopic(c.Context(), uint(topicID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	req, err := h.moveRequest(c)
	if err != nil {
		return err
	}

	topic, err := h.curriculum.MoveTopic(c.Context(), uint(topicID), req.ParentID, req.Position)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, topic)
}

// DeleteTopic removes a topic and its lessons
func (h *Handler) DeleteTopic(c *fiber.Ctx) error {
	topicID, err := c.ParamsInt("id")
	if err != nil || topicID <= 0 {
		return response.BadRequest(c, "Invalid topic ID")
	}

	courseID, err := h.curriculum.CourseIDForTopic(c.Context(), uint(topicID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	if err := h.curriculum.DeleteTopic(c.Context(), uint(topicID)); err != nil {
		return h.serviceError(c, err)
	}
	return response.SuccessWithMessage(c, "Topic deleted", nil)
}

// CreateLesson adds a lesson under a topic
func (h *Handler) CreateLesson(c *fiber.Ctx) error {
	topicID, err := c.ParamsInt("id")
	if err != nil || topicID <= 0 {
		return response.BadRequest(c, "Invalid topic ID")
	}

	courseID, err := h.curriculum.CourseIDForTopic(c.Context(), uint(topicID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	var req LessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	lesson := &model.Lesson{
		Title:       validation.SanitizeString(req.Title),
		Description: req.Description,
		TheoryText:  req.TheoryText,
		VideoURL:    req.VideoURL,
		IsLabLesson: req.IsLabLesson,
		Order:       req.Order,
	}
	lesson, err = h.curriculum.CreateLesson(c.Context(), courseID, uint(topicID), lesson)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Created(c, lesson)
}

// GetLesson returns a lesson, enforcing course access for students
func (h *Handler) GetLesson(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	lesson, courseID, err := h.curriculum.GetLesson(c.Context(), uint(lessonID))
	if err != nil {
		return h.serviceError(c, err)
	}

	allowed, err := h.enrollments.CanAccessCourse(c.Context(), user, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check course access")
	}
	if !allowed {
		return response.Forbidden(c, "Course content requires an approved enrollment")
	}

	return response.Success(c, lesson)
}

// UpdateLesson applies partial changes to a lesson's text fields
func (h *Handler) UpdateLesson(c *fiber.Ctx) error {
	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	_, courseID, err := h.curriculum.GetLesson(c.Context(), uint(lessonID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		TheoryText  *string `json:"theory_text"`
		VideoURL    *string `json:"video_url"`
		IsLabLesson *bool   `json:"is_lab_lesson"`
		Order       *int    `json:"order"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Title != nil && *req.Title != "" {
		updates["title"] = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.TheoryText != nil {
		updates["theory_text"] = *req.TheoryText
	}
	if req.VideoURL != nil {
		updates["video_url"] = *req.VideoURL
	}
	if req.IsLabLesson != nil {
		updates["is_lab_lesson"] = *req.IsLabLesson
	}
	if req.Order != nil && *req.Order > 0 {
		updates["order"] = *req.Order
	}
	if len(updates) == 0 {
		return response.BadRequest(c, "No fields to update")
	}

	lesson, err := h.curriculum.UpdateLesson(c.Context(), uint(lessonID), updates)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, lesson)
}

// MoveLesson re-inserts a lesson, optionally under a different topic
func (h *Handler) MoveLesson(c *fiber.Ctx) error {
	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	_, courseID, err := h.curriculum.GetLesson(c.Context(), uint(lessonID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	req, err := h.moveRequest(c)
	if err != nil {
		return err
	}

	lesson, err := h.curriculum.MoveLesson(c.Context(), uint(lessonID), req.ParentID, req.Position)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, lesson)
}

// UploadLessonMedia attaches an uploaded video and/or diagram images to
// a lesson. Multipart fields: "video" (single) and "images" (repeated).
func (h *Handler) UploadLessonMedia(c *fiber.Ctx) error {
	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	lesson, courseID, err := h.curriculum.GetLesson(c.Context(), uint(lessonID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return response.BadRequest(c, "Expected a multipart form")
	}

	updates := map[string]interface{}{}

	if videos := form.File["video"]; len(videos) > 0 {
		storedName, err := h.saveUpload(videos[0].Filename, videos[0])
		if err != nil {
			return response.BadRequest(c, err.Error())
		}
		updates["video_file"] = storedName
	}

	if images := form.File["images"]; len(images) > 0 {
		stored := lesson.ImageList()
		for _, image := range images {
			storedName, err := h.saveUpload(image.Filename, image)
			if err != nil {
				return response.BadRequest(c, err.Error())
			}
			stored = append(stored, storedName)
		}
		updates["image_files"] = strings.Join(stored, ",")
	}

	if len(updates) == 0 {
		return response.BadRequest(c, "No files in request")
	}

	lesson, err = h.curriculum.UpdateLesson(c.Context(), uint(lessonID), updates)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.Success(c, lesson)
}

// DeleteLesson removes a lesson
func (h *Handler) DeleteLesson(c *fiber.Ctx) error {
	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	_, courseID, err := h.curriculum.GetLesson(c.Context(), uint(lessonID))
	if err != nil {
		return h.serviceError(c, err)
	}
	if err := h.requireManage(c, courseID); err != nil {
		return err
	}

	if err := h.curriculum.DeleteLesson(c.Context(), uint(lessonID)); err != nil {
		return h.serviceError(c, err)
	}
	return response.SuccessWithMessage(c, "Lesson deleted", nil)
}

// LessonMedia streams a stored lesson file to an enrolled student
func (h *Handler) LessonMedia(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	lessonID, err := c.ParamsInt("id")
	if err != nil || lessonID <= 0 {
		return response.BadRequest(c, "Invalid lesson ID")
	}
	fileName := c.Params("file")

	lesson, courseID, err := h.curriculum.GetLesson(c.Context(), uint(lessonID))
	if err != nil {
		return h.serviceError(c, err)
	}

	allowed, err := h.enrollments.CanAccessCourse(c.Context(), user, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check course access")
	}
	if !allowed {
		return response.Forbidden(c, "Course content requires an approved enrollment")
	}

	// Only files actually attached to this lesson are served
	owned := fileName == lesson.VideoFile
	if !owned {
		for _, image := range lesson.ImageList() {
			if image == fileName {
				owned = true
				break
			}
		}
	}
	if !owned || !h.files.Exists(filestore.SubdirLessons, fileName) {
		return response.NotFound(c, "File not found")
	}

	return c.SendFile(h.files.Path(filestore.SubdirLessons, fileName))
}

func (h *Handler) saveUpload(fileName string, header *multipart.FileHeader) (string, error) {
	if !filestore.ExtensionAllowed(fileName, h.allowed) {
		return "", services.ErrFileTypeNotAllowed
	}
	if header.Size > h.maxSize {
		return "", services.ErrFileTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	storedName, _, err := h.files.Save(filestore.SubdirLessons, fileName, file)
	return storedName, err
}

// requireManage allows only the owning teacher or an admin to modify
// course content. Returns nil after writing nothing, or writes the
// error response and returns it.
func (h *Handler) requireManage(c *fiber.Ctx, courseID uint) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}
	if user.IsStudent() {
		return response.Forbidden(c, "Only teachers and admins may manage course content")
	}

	allowed, err := h.enrollments.CanAccessCourse(c.Context(), user, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check course access")
	}
	if !allowed {
		return response.Forbidden(c, "You do not manage this course")
	}
	return nil
}

func (h *Handler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrModuleNotFound),
		errors.Is(err, services.ErrTopicNotFound),
		errors.Is(err, services.ErrLessonNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrWrongParent):
		return response.BadRequest(c, err.Error())
	}
	return response.InternalServerError(c, "Curriculum operation failed")
}

func (h *Handler) moveRequest(c *fiber.Ctx) (*MoveRequest, error) {
	var req MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return nil, response.ValidationError(c, err)
	}
	return &req, nil
}

func (h *Handler) nodeUpdates(c *fiber.Ctx) (map[string]interface{}, error) {
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Order       *int    `json:"order"`
	}
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Title != nil && *req.Title != "" {
		updates["title"] = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Order != nil && *req.Order > 0 {
		updates["order"] = *req.Order
	}
	if len(updates) == 0 {
		return nil, errors.New("no fields to update")
	}
	return updates, nil
}
