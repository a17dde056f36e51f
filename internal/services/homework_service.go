package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
)

const homeworkFolder = "homework"

type homeworkStore interface {
	Create(ctx context.Context, input repository.CreateHomeworkInput) (*models.Homework, error)
	GetByID(ctx context.Context, id int64) (*models.Homework, error)
	List(ctx context.Context, filter repository.HomeworkListFilter) ([]models.Homework, error)
	Submit(ctx context.Context, id int64, text *string, url *string) (*models.Homework, error)
	Review(ctx context.Context, id int64, feedback *string) (*models.Homework, error)
	Complete(ctx context.Context, id int64, feedback *string) (*models.Homework, error)
	Delete(ctx context.Context, id int64) error
}

type classReader interface {
	GetByID(ctx context.Context, classID int64) (*models.Class, error)
}

type HomeworkService struct {
	homework homeworkStore
	classes  classReader
	users    userReader
	storage  StorageService
	events   realtime.Publisher
}

type AssignHomeworkInput struct {
	StudentID   int64
	ClassID     *int64
	Title       string
	Description *string
	DueDate     time.Time
	File        io.Reader
	Filename    string
}

type SubmitHomeworkInput struct {
	Text     *string
	File     io.Reader
	Filename string
}

func NewHomeworkService(
	homework *repository.HomeworkRepository,
	classes *repository.ClassRepository,
	users userReader,
	storage StorageService,
	events realtime.Publisher,
) *HomeworkService {
	return &HomeworkService{
		homework: homework,
		classes:  classes,
		users:    users,
		storage:  storage,
		events:   publisherOrNoop(events),
	}
}

// Assign creates homework for a student, uploading the optional attachment first. A failed
// insert removes the uploaded file again.
func (s *HomeworkService) Assign(
	ctx context.Context,
	teacherID int64,
	role string,
	input AssignHomeworkInput,
) (*models.Homework, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	if input.StudentID <= 0 || input.DueDate.IsZero() {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrInvalidInput
	}
	description, err := trimOptional(input.Description)
	if err != nil {
		return nil, err
	}

	if _, err := requireStudent(ctx, s.users, input.StudentID); err != nil {
		return nil, err
	}
	if input.ClassID != nil {
		class, err := s.classes.GetByID(ctx, *input.ClassID)
		if err != nil {
			return nil, err
		}
		if class.StudentID != input.StudentID || !canManage(role, teacherID, class.TeacherID) {
			return nil, ErrForbidden
		}
	}

	var attachmentURL *string
	if input.File != nil {
		if s.storage == nil {
			return nil, ErrStorageUnavailable
		}
		fileURL, err := s.storage.UploadFile(ctx, input.File, input.Filename, homeworkFolder)
		if err != nil {
			return nil, err
		}
		attachmentURL = &fileURL
	}

	homework, err := s.homework.Create(ctx, repository.CreateHomeworkInput{
		TeacherID:     teacherID,
		StudentID:     input.StudentID,
		ClassID:       input.ClassID,
		Title:         title,
		Description:   description,
		DueDate:       input.DueDate,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		return nil, s.cleanupUpload(ctx, err, attachmentURL)
	}

	s.publish(realtime.ActionCreated, homework)
	return homework, nil
}

func (s *HomeworkService) List(
	ctx context.Context,
	actorID int64,
	role string,
	status string,
) ([]models.Homework, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	return s.homework.List(ctx, repository.HomeworkListFilter{
		ActorID: actorID,
		Role:    role,
		Status:  status,
	})
}

func (s *HomeworkService) Get(
	ctx context.Context,
	actorID int64,
	role string,
	homeworkID int64,
) (*models.Homework, error) {
	homework, err := s.homework.GetByID(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if !canAccess(role, actorID, homework.StudentID, homework.TeacherID) {
		return nil, ErrForbidden
	}
	return homework, nil
}

func (s *HomeworkService) Submit(
	ctx context.Context,
	studentID int64,
	role string,
	homeworkID int64,
	input SubmitHomeworkInput,
) (*models.Homework, error) {
	if role != models.RoleStudent {
		return nil, ErrForbidden
	}
	homework, err := s.homework.GetByID(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if homework.StudentID != studentID {
		return nil, ErrForbidden
	}
	if homework.Status == models.HomeworkCompleted {
		return nil, ErrInvalidStateTransition
	}

	text := optionalText(input.Text)
	if text == nil && input.File == nil {
		return nil, ErrInvalidInput
	}

	var submissionURL *string
	if input.File != nil {
		if s.storage == nil {
			return nil, ErrStorageUnavailable
		}
		folder := fmt.Sprintf("%s/%d", homeworkFolder, homeworkID)
		fileURL, err := s.storage.UploadFile(ctx, input.File, input.Filename, folder)
		if err != nil {
			return nil, err
		}
		submissionURL = &fileURL
	}

	submitted, err := s.homework.Submit(ctx, homeworkID, text, submissionURL)
	if err != nil {
		return nil, s.cleanupUpload(ctx, mapNoRows(err, ErrInvalidStateTransition), submissionURL)
	}

	s.publish(realtime.ActionUpdated, submitted)
	return submitted, nil
}

// Review records feedback on a submission; complete closes the homework.
func (s *HomeworkService) Review(
	ctx context.Context,
	actorID int64,
	role string,
	homeworkID int64,
	feedback *string,
	complete bool,
) (*models.Homework, error) {
	homework, err := s.homework.GetByID(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, homework.TeacherID) {
		return nil, ErrForbidden
	}

	text := optionalText(feedback)
	var reviewed *models.Homework
	if complete {
		reviewed, err = s.homework.Complete(ctx, homeworkID, text)
	} else {
		if text == nil {
			return nil, ErrInvalidInput
		}
		reviewed, err = s.homework.Review(ctx, homeworkID, text)
	}
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	s.publish(realtime.ActionUpdated, reviewed)
	return reviewed, nil
}

func (s *HomeworkService) Delete(
	ctx context.Context,
	actorID int64,
	role string,
	homeworkID int64,
) error {
	homework, err := s.homework.GetByID(ctx, homeworkID)
	if err != nil {
		return err
	}
	if !canManage(role, actorID, homework.TeacherID) {
		return ErrForbidden
	}
	if err := s.homework.Delete(ctx, homeworkID); err != nil {
		return err
	}

	if s.storage != nil {
		for _, fileURL := range []*string{homework.AttachmentURL, homework.SubmissionURL} {
			if fileURL != nil {
				_ = s.storage.DeleteFile(ctx, *fileURL)
			}
		}
	}

	s.publish(realtime.ActionDeleted, homework)
	return nil
}

// AttachmentURL returns a short-lived link to the teacher's attachment.
func (s *HomeworkService) AttachmentURL(
	ctx context.Context,
	actorID int64,
	role string,
	homeworkID int64,
) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	homework, err := s.Get(ctx, actorID, role, homeworkID)
	if err != nil {
		return "", err
	}
	if homework.AttachmentURL == nil {
		return "", ErrInvalidInput
	}
	return s.storage.GetSignedURL(ctx, *homework.AttachmentURL)
}

func (s *HomeworkService) cleanupUpload(ctx context.Context, err error, fileURL *string) error {
	if fileURL == nil || s.storage == nil {
		return err
	}
	if cleanupErr := s.storage.DeleteFile(ctx, *fileURL); cleanupErr != nil {
		return errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
	}
	return err
}

func (s *HomeworkService) publish(action string, homework *models.Homework) {
	s.events.Publish(realtime.Event{
		Entity:    realtime.TopicHomework,
		Action:    action,
		ID:        homework.ID,
		StudentID: homework.StudentID,
		TeacherID: homework.TeacherID,
		Status:    homework.Status,
	})
}
