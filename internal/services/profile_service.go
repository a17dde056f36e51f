package services

import (
	"context"
	"fmt"
	"io"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
)

type userProfileStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListByRoles(ctx context.Context, roles ...string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int64, input repository.UpdateUserProfileInput) (*models.User, error)
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) (*models.User, error)
}

type ProfileService struct {
	users   userProfileStore
	storage StorageService
}

func NewProfileService(users *repository.UserRepository, storage StorageService) *ProfileService {
	return &ProfileService{
		users:   users,
		storage: storage,
	}
}

func (s *ProfileService) Get(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *ProfileService) Update(ctx context.Context, userID int64, input repository.UpdateUserProfileInput) (*models.User, error) {
	fullName, err := trimOptional(input.FullName)
	if err != nil {
		return nil, err
	}
	if input.TelegramChatID != nil && *input.TelegramChatID == 0 {
		return nil, ErrInvalidInput
	}
	return s.users.UpdateProfile(ctx, userID, repository.UpdateUserProfileInput{
		FullName:       fullName,
		TelegramChatID: input.TelegramChatID,
	})
}

// UploadAvatar replaces the avatar, deleting the previous file once the new URL is stored.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID int64, file io.Reader, filename string) (*models.User, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if file == nil {
		return nil, ErrInvalidInput
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	fileURL, err := s.storage.UploadFile(ctx, file, filename, fmt.Sprintf("avatars/%d", userID))
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateAvatar(ctx, userID, fileURL)
	if err != nil {
		_ = s.storage.DeleteFile(ctx, fileURL)
		return nil, err
	}
	if current.AvatarURL != nil && *current.AvatarURL != fileURL {
		_ = s.storage.DeleteFile(ctx, *current.AvatarURL)
	}
	return updated, nil
}

func (s *ProfileService) ListTeachers(ctx context.Context) ([]models.User, error) {
	return s.users.ListByRoles(ctx, models.RoleTeacher, models.RoleAdmin)
}

func (s *ProfileService) ListStudents(ctx context.Context, role string) ([]models.User, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	return s.users.ListByRoles(ctx, models.RoleStudent)
}
