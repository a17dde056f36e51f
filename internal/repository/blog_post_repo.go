package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tutordesk/backend/internal/models"
)

const blogPostColumns = `id, author_id, title, slug, excerpt, content, cover_image_url, status, published_at,
	created_at, updated_at`

type BlogPostInput struct {
	Title   string
	Slug    string
	Excerpt string
	Content string
}

type BlogPostListFilter struct {
	Status string
	Limit  int
	Offset int
}

type BlogPostRepository struct {
	db DBTX
}

func NewBlogPostRepository(db DBTX) *BlogPostRepository {
	return &BlogPostRepository{db: db}
}

func scanBlogPost(row rowScanner) (*models.BlogPost, error) {
	var post models.BlogPost
	err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Slug,
		&post.Excerpt,
		&post.Content,
		&post.CoverImageURL,
		&post.Status,
		&post.PublishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *BlogPostRepository) Create(ctx context.Context, authorID int64, input BlogPostInput) (*models.BlogPost, error) {
	query := `
		INSERT INTO blog_posts (author_id, title, slug, excerpt, content, status)
		VALUES ($1, $2, $3, $4, $5, 'draft')
		RETURNING ` + blogPostColumns
	return scanBlogPost(r.db.QueryRow(ctx, query, authorID, input.Title, input.Slug, input.Excerpt, input.Content))
}

func (r *BlogPostRepository) GetByID(ctx context.Context, id int64) (*models.BlogPost, error) {
	query := `SELECT ` + blogPostColumns + ` FROM blog_posts WHERE id = $1`
	return scanBlogPost(r.db.QueryRow(ctx, query, id))
}

func (r *BlogPostRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	query := `SELECT ` + blogPostColumns + ` FROM blog_posts WHERE slug = $1 AND status = 'published'`
	return scanBlogPost(r.db.QueryRow(ctx, query, slug))
}

func (r *BlogPostRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blog_posts WHERE slug = $1 AND id <> $2)`, slug, excludeID).
		Scan(&exists)
	return exists, err
}

func (r *BlogPostRepository) List(ctx context.Context, filter BlogPostListFilter) ([]models.BlogPost, int, error) {
	args := []any{}
	where := "TRUE"
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		where = fmt.Sprintf("status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM blog_posts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM blog_posts
		WHERE %s
		ORDER BY COALESCE(published_at, created_at) DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, blogPostColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]models.BlogPost, 0)
	for rows.Next() {
		post, err := scanBlogPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *BlogPostRepository) Update(ctx context.Context, id int64, input BlogPostInput) (*models.BlogPost, error) {
	query := `
		UPDATE blog_posts
		SET title = $2, slug = $3, excerpt = $4, content = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + blogPostColumns
	return scanBlogPost(r.db.QueryRow(ctx, query, id, input.Title, input.Slug, input.Excerpt, input.Content))
}

// Publish keeps the first publication time when a post is republished.
func (r *BlogPostRepository) Publish(ctx context.Context, id int64) (*models.BlogPost, error) {
	query := `
		UPDATE blog_posts
		SET status = 'published', published_at = COALESCE(published_at, NOW()), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + blogPostColumns
	return scanBlogPost(r.db.QueryRow(ctx, query, id))
}

func (r *BlogPostRepository) SetCoverImage(ctx context.Context, id int64, url string) (*models.BlogPost, error) {
	query := `
		UPDATE blog_posts
		SET cover_image_url = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + blogPostColumns
	return scanBlogPost(r.db.QueryRow(ctx, query, id, url))
}

func (r *BlogPostRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
