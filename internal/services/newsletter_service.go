package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tutordesk/backend/internal/metrics"
	"github.com/tutordesk/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const newsletterWorkers = 4

var newsletterTemplate = template.Must(template.New("newsletter").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; line-height: 1.5; color: #222;">
  <h2>{{.Title}}</h2>
  {{if .Excerpt}}<p>{{.Excerpt}}</p>{{end}}
  <p><a href="{{.PostURL}}">Read the full post</a></p>
  <hr>
  <p style="font-size: 12px; color: #777;">
    You receive this email because you subscribed to our blog.
    <a href="{{.UnsubscribeURL}}">Unsubscribe</a>
  </p>
</body>
</html>`))

type subscriberStore interface {
	Upsert(ctx context.Context, email string, token string) (*models.Subscriber, error)
	ListActive(ctx context.Context) ([]models.Subscriber, error)
	DeactivateByToken(ctx context.Context, token string) (*models.Subscriber, error)
}

type NewsletterService struct {
	subscribers subscriberStore
	sender      EmailSender
	siteURL     string
	log         *zap.Logger
}

func NewNewsletterService(subscribers subscriberStore, sender EmailSender, siteURL string, log *zap.Logger) *NewsletterService {
	return &NewsletterService{
		subscribers: subscribers,
		sender:      sender,
		siteURL:     strings.TrimRight(siteURL, "/"),
		log:         log.Named("newsletter"),
	}
}

// PostAnnouncement is the body of the notify-subscribers call.
type PostAnnouncement struct {
	PostID      int64
	PostTitle   string
	PostSlug    string
	PostExcerpt string
}

func (s *NewsletterService) Subscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	address, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return s.subscribers.Upsert(ctx, address.Address, uuid.NewString())
}

func (s *NewsletterService) Unsubscribe(ctx context.Context, token string) error {
	if _, err := uuid.Parse(strings.TrimSpace(token)); err != nil {
		return ErrInvalidInput
	}
	_, err := s.subscribers.DeactivateByToken(ctx, strings.TrimSpace(token))
	return err
}

// NotifySubscribers emails every active subscriber about a post. Each send is counted as a
// success or a failure; one failing address never stops the others.
func (s *NewsletterService) NotifySubscribers(
	ctx context.Context,
	role string,
	post PostAnnouncement,
) (models.NotifyResult, error) {
	if !models.IsStaffRole(role) {
		return models.NotifyResult{}, ErrForbidden
	}
	if post.PostID <= 0 || strings.TrimSpace(post.PostTitle) == "" || strings.TrimSpace(post.PostSlug) == "" {
		return models.NotifyResult{}, fmt.Errorf("%w: postId, postTitle and postSlug are required", ErrInvalidInput)
	}
	if s.sender == nil {
		return models.NotifyResult{}, ErrEmailUnavailable
	}

	subscribers, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return models.NotifyResult{}, fmt.Errorf("list subscribers: %w", err)
	}

	var sent, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(newsletterWorkers)

	for _, subscriber := range subscribers {
		subscriber := subscriber
		group.Go(func() error {
			message, err := s.buildMessage(post, subscriber)
			if err == nil {
				err = s.sender.Send(groupCtx, message)
			}
			if err != nil {
				failed.Add(1)
				metrics.NewsletterEmails.WithLabelValues("failed").Inc()
				s.log.Warn("newsletter email failed",
					zap.Int64("subscriber_id", subscriber.ID),
					zap.Int64("post_id", post.PostID),
					zap.Error(err),
				)
				return nil
			}
			sent.Add(1)
			metrics.NewsletterEmails.WithLabelValues("sent").Inc()
			return nil
		})
	}
	_ = group.Wait()

	result := models.NotifyResult{
		Success: true,
		Count:   int(sent.Load()),
		Failed:  int(failed.Load()),
		Total:   len(subscribers),
	}
	s.log.Info("newsletter sent",
		zap.Int64("post_id", post.PostID),
		zap.Int("count", result.Count),
		zap.Int("failed", result.Failed),
		zap.Int("total", result.Total),
	)
	return result, nil
}

func (s *NewsletterService) buildMessage(post PostAnnouncement, subscriber models.Subscriber) (EmailMessage, error) {
	data := struct {
		Title          string
		Excerpt        string
		PostURL        string
		UnsubscribeURL string
	}{
		Title:          post.PostTitle,
		Excerpt:        post.PostExcerpt,
		PostURL:        fmt.Sprintf("%s/blog/%s", s.siteURL, url.PathEscape(post.PostSlug)),
		UnsubscribeURL: fmt.Sprintf("%s/api/blog/unsubscribe?token=%s", s.siteURL, url.QueryEscape(subscriber.UnsubscribeToken)),
	}

	var html bytes.Buffer
	if err := newsletterTemplate.Execute(&html, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render newsletter: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\nRead the full post: %s\n\nUnsubscribe: %s\n",
		data.Title, data.Excerpt, data.PostURL, data.UnsubscribeURL)

	return EmailMessage{
		ToAddress:   subscriber.Email,
		Subject:     "New post: " + post.PostTitle,
		TextContent: text,
		HTMLContent: html.String(),
	}, nil
}
