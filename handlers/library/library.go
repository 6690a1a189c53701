package library

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stgeorges/biolms/model"
	"github.com/stgeorges/biolms/services"
	"github.com/stgeorges/biolms/utils/middleware"
	"github.com/stgeorges/biolms/utils/response"
	"github.com/stgeorges/biolms/utils/validation"
)

// Handler handles the shared file library
type Handler struct {
	library   *services.LibraryService
	validator *validation.Validator
}

// NewHandler creates a new library handler
func NewHandler(library *services.LibraryService) *Handler {
	return &Handler{library: library, validator: validation.NewValidator()}
}

// UpdateResourceRequest represents the metadata update payload
type UpdateResourceRequest struct {
	Title       string `json:"title" validate:"omitempty,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Author      string `json:"author" validate:"omitempty,max=255"`
	Tags        string `json:"tags" validate:"omitempty,max=500"`
	Category    string `json:"category" validate:"omitempty,max=100"`
}

// Upload stores a library file with its metadata. Multipart form with a
// "file" part plus title/description/author/tags/category fields.
func (h *Handler) Upload(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "A file part is required")
	}

	title := validation.SanitizeString(c.FormValue("title"))
	if title == "" {
		title = header.Filename
	}

	file, err := header.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	resource := &model.LibraryResource{
		Title:       title,
		Description: c.FormValue("description"),
		Author:      validation.SanitizeString(c.FormValue("author")),
		Tags:        c.FormValue("tags"),
		Category:    validation.SanitizeString(c.FormValue("category")),
	}

	resource, err = h.library.Upload(c.Context(), user.ID, resource, header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTypeNotAllowed),
			errors.Is(err, services.ErrFileTooLarge):
			return response.BadRequest(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to store file")
	}
	return response.Created(c, resource)
}

// List returns library resources, filtered by ?search, ?category, ?tag
func (h *Handler) List(c *fiber.Ctx) error {
	resources, err := h.library.List(c.Context(), services.LibraryFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to list resources")
	}
	return response.Success(c, resources)
}

// Categories returns the categories currently in use
func (h *Handler) Categories(c *fiber.Ctx) error {
	categories, err := h.library.Categories(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list categories")
	}
	return response.Success(c, categories)
}

// Get returns a resource's metadata
func (h *Handler) Get(c *fiber.Ctx) error {
	resource, err := h.loadResource(c)
	if err != nil {
		return err
	}
	return response.Success(c, resource)
}

// Download streams a resource's file under its original name
func (h *Handler) Download(c *fiber.Ctx) error {
	resource, err := h.loadResource(c)
	if err != nil {
		return err
	}
	return c.Download(h.library.FilePath(resource), resource.FileName)
}

// Update applies metadata changes to a resource. Allowed for the
// uploader and admins.
func (h *Handler) Update(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}

	resource, err := h.loadResource(c)
	if err != nil {
		return err
	}
	if resource.UploadedBy != user.ID && !user.IsAdmin() {
		return response.Forbidden(c, "Only the uploader or an admin may edit this resource")
	}

	var req UpdateResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = validation.SanitizeString(req.Title)
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Author != "" {
		updates["author"] = validation.SanitizeString(req.Author)
	}
	if req.Tags != "" {
		updates["tags"] = req.Tags
	}
	if req.Category != "" {
		updates["category"] = validation.SanitizeString(req.Category)
	}
	if len(updates) == 0 {
		return response.BadRequest(c, "No fields to update")
	}

	updated, err := h.library.Update(c.Context(), resource.ID, updates)
	if err != nil {
		return response.InternalServerError(c, "Failed to update resource")
	}
	return response.Success(c, updated)
}

// Delete removes a resource and its file. Admin only; uploaders cannot
// remove shared material once published.
func (h *Handler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Authentication required")
	}
	if !user.IsAdmin() {
		return response.Forbidden(c, "Only an admin may delete library resources")
	}

	resource, err := h.loadResource(c)
	if err != nil {
		return err
	}

	if err := h.library.Delete(c.Context(), resource.ID); err != nil {
		return response.InternalServerError(c, "Failed to delete resource")
	}
	return response.SuccessWithMessage(c, "Resource deleted", nil)
}

func (h *Handler) loadResource(c *fiber.Ctx) (*model.LibraryResource, error) {
	resourceID, err := c.ParamsInt("id")
	if err != nil || resourceID <= 0 {
		return nil, response.BadRequest(c, "Invalid resource ID")
	}

	resource, err := h.library.Get(c.Context(), uint(resourceID))
	if err != nil {
		if errors.Is(err, services.ErrResourceNotFound) {
			return nil, response.NotFound(c, err.Error())
		}
		return nil, response.InternalServerError(c, "Failed to load resource")
	}
	return resource, nil
}
