package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
)

var testTime = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

type stubStorage struct {
	uploadURL     string
	uploadErr     error
	signedURL     string
	signedErr     error
	deleteErr     error
	uploads       int
	lastContent   []byte
	lastFilename  string
	lastFolder    string
	deletedURLs   []string
	lastSignedURL string
}

func (s *stubStorage) UploadFile(_ context.Context, file io.Reader, filename string, folder string) (string, error) {
	s.uploads++
	s.lastContent, _ = io.ReadAll(file)
	s.lastFilename = filename
	s.lastFolder = folder
	return s.uploadURL, s.uploadErr
}

func (s *stubStorage) DeleteFile(_ context.Context, fileURL string) error {
	s.deletedURLs = append(s.deletedURLs, fileURL)
	return s.deleteErr
}

func (s *stubStorage) GetSignedURL(_ context.Context, fileURL string) (string, error) {
	s.lastSignedURL = fileURL
	return s.signedURL, s.signedErr
}

type stubUsers struct {
	users map[int64]*models.User
}

func newStubUsers(users ...*models.User) *stubUsers {
	s := &stubUsers{users: make(map[int64]*models.User)}
	for _, user := range users {
		s.users[user.ID] = user
	}
	return s
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) last() (realtime.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return realtime.Event{}, false
	}
	return p.events[len(p.events)-1], true
}

func stringPtr(value string) *string {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
