package handlers

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
)

type blogApplicationService interface {
	ListPublished(ctx context.Context, page int, limit int) ([]models.BlogPost, int, error)
	GetPublished(ctx context.Context, slug string) (*models.BlogPost, error)
	List(ctx context.Context, role string, status string, page int, limit int) ([]models.BlogPost, int, error)
	Get(ctx context.Context, role string, postID int64) (*models.BlogPost, error)
	Create(ctx context.Context, authorID int64, role string, input services.BlogPostInput) (*models.BlogPost, error)
	Update(ctx context.Context, role string, postID int64, input services.BlogPostInput) (*models.BlogPost, error)
	Publish(ctx context.Context, role string, postID int64) (*models.BlogPost, error)
	UploadCover(ctx context.Context, role string, postID int64, file io.Reader, filename string) (*models.BlogPost, error)
	Delete(ctx context.Context, role string, postID int64) error
}

type BlogHandler struct {
	service blogApplicationService
}

type blogPostRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Slug    string `json:"slug" validate:"omitempty,max=200"`
	Excerpt string `json:"excerpt" validate:"omitempty,max=500"`
	Content string `json:"content" validate:"required"`
}

func (r blogPostRequest) input() services.BlogPostInput {
	return services.BlogPostInput{
		Title:   r.Title,
		Slug:    r.Slug,
		Excerpt: r.Excerpt,
		Content: r.Content,
	}
}

func NewBlogHandler(service blogApplicationService) *BlogHandler {
	return &BlogHandler{service: service}
}

func (h *BlogHandler) ListPublished(c *fiber.Ctx) error {
	page, limit := pageParams(c)

	posts, total, err := h.service.ListPublished(c.Context(), page, limit)
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{
		"posts":      posts,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *BlogHandler) GetPublished(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid slug"})
	}

	post, err := h.service.GetPublished(c.Context(), slug)
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{"post": post})
}

func (h *BlogHandler) List(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	page, limit := pageParams(c)

	posts, total, err := h.service.List(c.Context(), session.Role, strings.TrimSpace(c.Query("status")), page, limit)
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{
		"posts":      posts,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *BlogHandler) Get(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	post, err := h.service.Get(c.Context(), session.Role, postID)
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{"post": post})
}

func (h *BlogHandler) Create(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	var req blogPostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	post, err := h.service.Create(c.Context(), session.UserID, session.Role, req.input())
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}

func (h *BlogHandler) Update(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	var req blogPostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	post, err := h.service.Update(c.Context(), session.Role, postID, req.input())
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{"post": post})
}

func (h *BlogHandler) Publish(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	post, err := h.service.Publish(c.Context(), session.Role, postID)
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{"post": post})
}

func (h *BlogHandler) UploadCover(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	file, filename, err := optionalUpload(c, "cover")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if file == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cover file is required"})
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cover must be a jpg, jpeg, png, or webp file"})
	}

	post, err := h.service.UploadCover(c.Context(), session.Role, postID, file, filename)
	if err != nil {
		return mapBlogError(c, err)
	}

	return c.JSON(fiber.Map{"post": post})
}

func (h *BlogHandler) Delete(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	if err := h.service.Delete(c.Context(), session.Role, postID); err != nil {
		return mapBlogError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func mapBlogError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A post with this slug already exists"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Post not found"})
	default:
		return respondInternal(c, "Failed to process blog request", err)
	}
}
