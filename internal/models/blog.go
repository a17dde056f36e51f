package models

import "time"

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

type BlogPost struct {
	ID            int64      `json:"id"`
	AuthorID      int64      `json:"author_id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Excerpt       string     `json:"excerpt"`
	Content       string     `json:"content"`
	ContentHTML   string     `json:"content_html,omitempty"`
	CoverImageURL *string    `json:"cover_image_url"`
	Status        string     `json:"status"`
	PublishedAt   *time.Time `json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Subscriber struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	IsActive         bool      `json:"is_active"`
	UnsubscribeToken string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// NotifyResult is the per-recipient tally of a newsletter send.
type NotifyResult struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Failed  int  `json:"failed"`
	Total   int  `json:"total"`
}
