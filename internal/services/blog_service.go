package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/unicode/norm"
)

// Raw HTML in posts is escaped because WithUnsafe is not set.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

type blogPostStore interface {
	Create(ctx context.Context, authorID int64, input repository.BlogPostInput) (*models.BlogPost, error)
	GetByID(ctx context.Context, id int64) (*models.BlogPost, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	List(ctx context.Context, filter repository.BlogPostListFilter) ([]models.BlogPost, int, error)
	Update(ctx context.Context, id int64, input repository.BlogPostInput) (*models.BlogPost, error)
	Publish(ctx context.Context, id int64) (*models.BlogPost, error)
	SetCoverImage(ctx context.Context, id int64, url string) (*models.BlogPost, error)
	Delete(ctx context.Context, id int64) error
}

type BlogService struct {
	posts   blogPostStore
	storage StorageService
	events  realtime.Publisher
}

func NewBlogService(posts *repository.BlogPostRepository, storage StorageService, events realtime.Publisher) *BlogService {
	return &BlogService{posts: posts, storage: storage, events: publisherOrNoop(events)}
}

type BlogPostInput struct {
	Title   string
	Slug    string
	Excerpt string
	Content string
}

// ListPublished pages the public blog.
func (s *BlogService) ListPublished(ctx context.Context, page int, limit int) ([]models.BlogPost, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.posts.List(ctx, repository.BlogPostListFilter{
		Status: models.PostStatusPublished,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
}

// GetPublished returns a published post with its markdown rendered to HTML.
func (s *BlogService) GetPublished(ctx context.Context, slug string) (*models.BlogPost, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrInvalidInput
	}
	post, err := s.posts.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	html, err := RenderMarkdown(post.Content)
	if err != nil {
		return nil, err
	}
	post.ContentHTML = html
	return post, nil
}

func (s *BlogService) List(ctx context.Context, role string, status string, page int, limit int) ([]models.BlogPost, int, error) {
	if !models.IsStaffRole(role) {
		return nil, 0, ErrForbidden
	}
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.posts.List(ctx, repository.BlogPostListFilter{
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
}

func (s *BlogService) Get(ctx context.Context, role string, postID int64) (*models.BlogPost, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	return s.posts.GetByID(ctx, postID)
}

func (s *BlogService) Create(ctx context.Context, authorID int64, role string, input BlogPostInput) (*models.BlogPost, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	normalized, err := s.normalizePost(ctx, input, 0)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.Create(ctx, authorID, normalized)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.ActionCreated, post)
	return post, nil
}

func (s *BlogService) Update(ctx context.Context, role string, postID int64, input BlogPostInput) (*models.BlogPost, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	normalized, err := s.normalizePost(ctx, input, postID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.Update(ctx, postID, normalized)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.ActionUpdated, post)
	return post, nil
}

func (s *BlogService) Publish(ctx context.Context, role string, postID int64) (*models.BlogPost, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	post, err := s.posts.Publish(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.publish(realtime.ActionUpdated, post)
	return post, nil
}

func (s *BlogService) UploadCover(
	ctx context.Context,
	role string,
	postID int64,
	file io.Reader,
	filename string,
) (*models.BlogPost, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if file == nil {
		return nil, ErrInvalidInput
	}

	current, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	fileURL, err := s.storage.UploadFile(ctx, file, filename, fmt.Sprintf("blog/%d", postID))
	if err != nil {
		return nil, err
	}
	post, err := s.posts.SetCoverImage(ctx, postID, fileURL)
	if err != nil {
		_ = s.storage.DeleteFile(ctx, fileURL)
		return nil, err
	}
	if current.CoverImageURL != nil {
		_ = s.storage.DeleteFile(ctx, *current.CoverImageURL)
	}

	s.publish(realtime.ActionUpdated, post)
	return post, nil
}

func (s *BlogService) Delete(ctx context.Context, role string, postID int64) error {
	if !models.IsStaffRole(role) {
		return ErrForbidden
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	if post.CoverImageURL != nil && s.storage != nil {
		_ = s.storage.DeleteFile(ctx, *post.CoverImageURL)
	}
	s.publish(realtime.ActionDeleted, post)
	return nil
}

func (s *BlogService) normalizePost(ctx context.Context, input BlogPostInput, postID int64) (repository.BlogPostInput, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return repository.BlogPostInput{}, ErrInvalidInput
	}

	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return repository.BlogPostInput{}, fmt.Errorf("%w: slug cannot be derived from title", ErrInvalidInput)
	}

	exists, err := s.posts.SlugExists(ctx, slug, postID)
	if err != nil {
		return repository.BlogPostInput{}, err
	}
	if exists {
		return repository.BlogPostInput{}, fmt.Errorf("%w: slug %q is already used", ErrConflict, slug)
	}

	excerpt := strings.TrimSpace(input.Excerpt)
	if excerpt == "" {
		excerpt = deriveExcerpt(content, 200)
	}

	return repository.BlogPostInput{
		Title:   title,
		Slug:    slug,
		Excerpt: excerpt,
		Content: content,
	}, nil
}

func (s *BlogService) publish(action string, post *models.BlogPost) {
	s.events.Publish(realtime.Event{
		Entity: realtime.TopicBlogPosts,
		Action: action,
		ID:     post.ID,
		Status: post.Status,
		Public: true,
	})
}

// RenderMarkdown converts post markdown to HTML with raw HTML escaped.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Slugify lowercases, strips accents and joins words with dashes.
func Slugify(value string) string {
	decomposed := norm.NFKD.String(strings.ToLower(strings.TrimSpace(value)))
	ascii := strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, decomposed)
	return strings.Trim(slugInvalidChars.ReplaceAllString(ascii, "-"), "-")
}

func deriveExcerpt(content string, limit int) string {
	plain := strings.Join(strings.Fields(content), " ")
	runes := []rune(plain)
	if len(runes) <= limit {
		return plain
	}
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
