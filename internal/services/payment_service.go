package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"go.uber.org/zap"
)

const receiptsFolder = "receipts"

type paymentNotificationReader interface {
	GetByID(ctx context.Context, id int64) (*models.PaymentNotification, error)
	List(ctx context.Context, filter repository.PaymentNotificationListFilter) ([]models.PaymentNotification, error)
}

type PaymentService struct {
	db            txBeginner
	notifications paymentNotificationReader
	storage       StorageService
	events        realtime.Publisher
	log           *zap.Logger
}

type SubmitPaymentInput struct {
	ClassID        *int64
	ClassRequestID *int64
	Amount         float64
	Method         string
	Reference      *string
	Note           *string
	File           io.Reader
	Filename       string
}

func NewPaymentService(
	db txBeginner,
	notifications *repository.PaymentNotificationRepository,
	storage StorageService,
	events realtime.Publisher,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		db:            db,
		notifications: notifications,
		storage:       storage,
		events:        publisherOrNoop(events),
		log:           log.Named("payments"),
	}
}

// Submit records a student's payment claim for one class or a whole package and marks the
// covered classes as pending review.
func (s *PaymentService) Submit(
	ctx context.Context,
	studentID int64,
	role string,
	input SubmitPaymentInput,
) (*models.PaymentNotification, error) {
	if role != models.RoleStudent {
		return nil, ErrForbidden
	}
	if (input.ClassID == nil) == (input.ClassRequestID == nil) {
		return nil, fmt.Errorf("%w: exactly one of class_id and class_request_id is required", ErrInvalidInput)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrInvalidInput)
	}
	if input.File != nil && s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txClasses := repository.NewClassRepository(tx)
	teacherID, classIDs, err := s.coveredClasses(ctx, tx, studentID, input.ClassID, input.ClassRequestID)
	if err != nil {
		return nil, err
	}

	var receiptURL *string
	if input.File != nil {
		folder := fmt.Sprintf("%s/%d", receiptsFolder, studentID)
		fileURL, err := s.storage.UploadFile(ctx, input.File, input.Filename, folder)
		if err != nil {
			return nil, err
		}
		receiptURL = &fileURL
	}

	notification, err := repository.NewPaymentNotificationRepository(tx).Create(ctx, repository.CreatePaymentNotificationInput{
		StudentID:      studentID,
		TeacherID:      teacherID,
		ClassID:        input.ClassID,
		ClassRequestID: input.ClassRequestID,
		Amount:         input.Amount,
		Method:         method,
		Reference:      optionalText(input.Reference),
		ReceiptURL:     receiptURL,
		Note:           optionalText(input.Note),
	})
	if err == nil {
		err = txClasses.SetPaymentStatus(ctx, classIDs, models.PaymentStatusUnpaid, models.PaymentStatusPending)
	}
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		return nil, s.cleanupReceipt(ctx, err, receiptURL)
	}

	s.publish(realtime.ActionCreated, notification)
	return notification, nil
}

// coveredClasses resolves the teacher and the class ids a claim pays for, checking that the
// student owns them and that something is still unpaid.
func (s *PaymentService) coveredClasses(
	ctx context.Context,
	tx pgx.Tx,
	studentID int64,
	classID *int64,
	requestID *int64,
) (int64, []int64, error) {
	classes := repository.NewClassRepository(tx)

	if classID != nil {
		class, err := classes.GetByID(ctx, *classID)
		if err != nil {
			return 0, nil, err
		}
		if class.StudentID != studentID {
			return 0, nil, ErrForbidden
		}
		if class.PaymentStatus == models.PaymentStatusPaid || class.Status == models.ClassStatusCancelled {
			return 0, nil, ErrInvalidStateTransition
		}
		return class.TeacherID, []int64{class.ID}, nil
	}

	request, err := repository.NewClassRequestRepository(tx).GetByID(ctx, *requestID)
	if err != nil {
		return 0, nil, err
	}
	if request.StudentID != studentID {
		return 0, nil, ErrForbidden
	}
	if request.Status != models.RequestStatusAwaitingPayment {
		return 0, nil, ErrInvalidStateTransition
	}
	generated, err := classes.ListByRequestID(ctx, request.ID)
	if err != nil {
		return 0, nil, err
	}
	ids := make([]int64, 0, len(generated))
	for _, class := range generated {
		ids = append(ids, class.ID)
	}
	return request.TeacherID, ids, nil
}

func (s *PaymentService) List(
	ctx context.Context,
	actorID int64,
	role string,
	status string,
) ([]models.PaymentNotification, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	return s.notifications.List(ctx, repository.PaymentNotificationListFilter{
		ActorID: actorID,
		Role:    role,
		Status:  status,
	})
}

// Confirm accepts a claim. The covered classes become paid and, for a package, the request
// moves from awaiting_payment to payment_confirmed, all in one transaction.
func (s *PaymentService) Confirm(
	ctx context.Context,
	actorID int64,
	role string,
	notificationID int64,
) (*models.PaymentNotification, error) {
	return s.review(ctx, actorID, role, notificationID, models.PaymentNotificationConfirmed)
}

// Reject declines a claim and returns the covered classes to unpaid, except those another
// pending claim still covers.
func (s *PaymentService) Reject(
	ctx context.Context,
	actorID int64,
	role string,
	notificationID int64,
) (*models.PaymentNotification, error) {
	return s.review(ctx, actorID, role, notificationID, models.PaymentNotificationRejected)
}

func (s *PaymentService) review(
	ctx context.Context,
	actorID int64,
	role string,
	notificationID int64,
	decision string,
) (*models.PaymentNotification, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txNotifications := repository.NewPaymentNotificationRepository(tx)
	txClasses := repository.NewClassRepository(tx)
	txRequests := repository.NewClassRequestRepository(tx)

	notification, err := txNotifications.GetByIDForUpdate(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, notification.TeacherID) {
		return nil, ErrForbidden
	}
	if notification.Status != models.PaymentNotificationPending {
		return nil, ErrInvalidStateTransition
	}

	reviewed, err := txNotifications.Review(ctx, notificationID, decision)
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	var touched []models.Class
	var request *models.ClassRequest
	switch {
	case decision == models.PaymentNotificationConfirmed && notification.ClassID != nil:
		class, err := txClasses.MarkPaid(ctx, *notification.ClassID)
		if err != nil {
			return nil, err
		}
		touched = append(touched, *class)
	case decision == models.PaymentNotificationConfirmed:
		touched, err = txClasses.MarkRequestPaid(ctx, *notification.ClassRequestID)
		if err != nil {
			return nil, err
		}
		request, err = txRequests.UpdateStatusIfCurrent(
			ctx,
			*notification.ClassRequestID,
			models.RequestStatusAwaitingPayment,
			models.RequestStatusPaymentConfirmed,
		)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	default:
		ids := []int64{}
		if notification.ClassID != nil {
			ids = append(ids, *notification.ClassID)
		} else {
			generated, err := txClasses.ListByRequestID(ctx, *notification.ClassRequestID)
			if err != nil {
				return nil, err
			}
			for _, class := range generated {
				ids = append(ids, class.ID)
			}
		}
		if err := txClasses.ReleasePendingPayment(ctx, ids); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("payment notification reviewed",
		zap.Int64("notification_id", notificationID),
		zap.String("decision", decision),
		zap.Int("classes_paid", len(touched)),
	)

	s.publish(realtime.ActionUpdated, reviewed)
	for i := range touched {
		s.events.Publish(classEvent(realtime.ActionUpdated, &touched[i]))
	}
	if request != nil {
		s.events.Publish(realtime.Event{
			Entity:    realtime.TopicClassRequests,
			Action:    realtime.ActionUpdated,
			ID:        request.ID,
			StudentID: request.StudentID,
			TeacherID: request.TeacherID,
			Status:    request.Status,
		})
	}
	return reviewed, nil
}

// ReceiptURL returns a short-lived link to the uploaded receipt.
func (s *PaymentService) ReceiptURL(
	ctx context.Context,
	actorID int64,
	role string,
	notificationID int64,
) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	notification, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return "", err
	}
	if !canAccess(role, actorID, notification.StudentID, notification.TeacherID) {
		return "", ErrForbidden
	}
	if notification.ReceiptURL == nil {
		return "", ErrInvalidInput
	}
	return s.storage.GetSignedURL(ctx, *notification.ReceiptURL)
}

func (s *PaymentService) cleanupReceipt(ctx context.Context, err error, fileURL *string) error {
	if fileURL == nil {
		return err
	}
	if cleanupErr := s.storage.DeleteFile(ctx, *fileURL); cleanupErr != nil {
		return errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
	}
	return err
}

func (s *PaymentService) publish(action string, notification *models.PaymentNotification) {
	s.events.Publish(realtime.Event{
		Entity:    realtime.TopicPayments,
		Action:    action,
		ID:        notification.ID,
		StudentID: notification.StudentID,
		TeacherID: notification.TeacherID,
		Status:    notification.Status,
	})
}
