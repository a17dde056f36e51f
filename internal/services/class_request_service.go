package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tutordesk/backend/internal/metrics"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/scheduling"
	"go.uber.org/zap"
)

type classRequestStore interface {
	Create(ctx context.Context, input repository.CreateClassRequestInput) (*models.ClassRequest, error)
	GetByID(ctx context.Context, requestID int64) (*models.ClassRequest, error)
	List(ctx context.Context, filter repository.ClassRequestListFilter) ([]models.ClassRequest, error)
	Reject(ctx context.Context, requestID int64, currentStatus string, reason *string) (*models.ClassRequest, error)
	SaveTeacherEdits(ctx context.Context, requestID int64, edits models.TeacherEdits) (*models.ClassRequest, error)
	ApplyTeacherEdits(ctx context.Context, requestID int64, schedule []models.WeeklySlot, lessonsPerWeek int, totalLessons int) (*models.ClassRequest, error)
}

type requestClassLister interface {
	ListByRequestID(ctx context.Context, requestID int64) ([]models.Class, error)
}

type ClassRequestService struct {
	db       txBeginner
	requests classRequestStore
	classes  requestClassLister
	users    userReader
	settings settingsReader
	events   realtime.Publisher
	location *time.Location
	now      func() time.Time
	log      *zap.Logger
}

func NewClassRequestService(
	db txBeginner,
	requests *repository.ClassRequestRepository,
	classes *repository.ClassRepository,
	users userReader,
	settings settingsReader,
	events realtime.Publisher,
	location *time.Location,
	log *zap.Logger,
) *ClassRequestService {
	if location == nil {
		location = time.UTC
	}
	return &ClassRequestService{
		db:       db,
		requests: requests,
		classes:  classes,
		users:    users,
		settings: settings,
		events:   publisherOrNoop(events),
		location: location,
		now:      time.Now,
		log:      log.Named("class_requests"),
	}
}

type CreateClassRequestInput struct {
	TeacherID         int64
	WeeklySchedule    []models.WeeklySlot
	LessonsPerWeek    int
	TotalLessons      int
	FirstClassFree    *bool
	PaymentPreference string
	Notes             *string
}

type TeacherEditsInput struct {
	WeeklySchedule []models.WeeklySlot
	LessonsPerWeek *int
	TotalLessons   *int
	Message        *string
}

func (s *ClassRequestService) Create(
	ctx context.Context,
	studentID int64,
	role string,
	input CreateClassRequestInput,
) (*models.ClassRequest, error) {
	if role != models.RoleStudent {
		return nil, ErrForbidden
	}
	if input.TeacherID <= 0 || input.TeacherID == studentID {
		return nil, ErrInvalidInput
	}
	if _, err := requireTeacher(ctx, s.users, input.TeacherID); err != nil {
		return nil, err
	}

	settings, err := loadSettings(ctx, s.settings)
	if err != nil {
		return nil, err
	}

	schedule, err := scheduling.NormalizeSchedule(input.WeeklySchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if input.TotalLessons < settings.MinTotalLessons {
		return nil, fmt.Errorf("%w: total_lessons must be at least %d", ErrInvalidInput, settings.MinTotalLessons)
	}

	lessonsPerWeek := input.LessonsPerWeek
	if lessonsPerWeek == 0 {
		lessonsPerWeek = len(schedule)
	}
	if lessonsPerWeek < 0 {
		return nil, ErrInvalidInput
	}

	preference := strings.TrimSpace(input.PaymentPreference)
	switch preference {
	case "":
		preference = models.PaymentPreferencePackage
	case models.PaymentPreferencePackage, models.PaymentPreferencePerClass:
	default:
		return nil, fmt.Errorf("%w: payment_preference must be per_class or package", ErrInvalidInput)
	}

	firstClassFree := settings.FirstClassFreeDefault
	if input.FirstClassFree != nil {
		firstClassFree = *input.FirstClassFree
	}

	request, err := s.requests.Create(ctx, repository.CreateClassRequestInput{
		StudentID:         studentID,
		TeacherID:         input.TeacherID,
		WeeklySchedule:    schedule,
		LessonsPerWeek:    lessonsPerWeek,
		TotalLessons:      input.TotalLessons,
		FirstClassFree:    firstClassFree,
		PaymentPreference: preference,
		Notes:             optionalText(input.Notes),
	})
	if err != nil {
		return nil, err
	}

	s.publish(realtime.ActionCreated, request)
	return request, nil
}

func (s *ClassRequestService) List(
	ctx context.Context,
	actorID int64,
	role string,
	status string,
) ([]models.ClassRequest, error) {
	if role != models.RoleStudent && !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}
	return s.requests.List(ctx, repository.ClassRequestListFilter{
		ActorID: actorID,
		Role:    role,
		Status:  status,
	})
}

func (s *ClassRequestService) Get(
	ctx context.Context,
	actorID int64,
	role string,
	requestID int64,
) (*models.ClassRequestDetail, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !canAccess(role, actorID, request.StudentID, request.TeacherID) {
		return nil, ErrForbidden
	}

	classes, err := s.classes.ListByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &models.ClassRequestDetail{ClassRequest: *request, Classes: classes}, nil
}

// Approve turns a pending request into dated classes. Every class is inserted and the
// request moved to awaiting_payment in one transaction holding the teacher's schedule lock,
// so either all total_lessons classes exist afterwards or none do.
func (s *ClassRequestService) Approve(
	ctx context.Context,
	actorID int64,
	role string,
	requestID int64,
) (*models.ClassRequestDetail, error) {
	if !models.IsStaffRole(role) {
		return nil, ErrForbidden
	}

	settings, err := loadSettings(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(settings.ClassDurationMinutes) * time.Minute

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRequests := repository.NewClassRequestRepository(tx)
	txClasses := repository.NewClassRepository(tx)
	txAvailability := repository.NewAvailabilityRepository(tx)

	request, err := txRequests.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, request.TeacherID) {
		return nil, ErrForbidden
	}
	if request.Status != models.RequestStatusPending {
		return nil, ErrInvalidStateTransition
	}

	if err := repository.LockTeacherSchedule(ctx, tx, request.TeacherID); err != nil {
		return nil, err
	}

	now := s.now()
	horizon := planningHorizon(now, request, duration)
	calendar, err := loadCalendar(ctx, txAvailability, txClasses, s.location, request.TeacherID, now, horizon)
	if err != nil {
		return nil, err
	}

	planned, err := scheduling.PlanClasses(scheduling.PlanInput{
		Schedule:       request.WeeklySchedule,
		TotalLessons:   request.TotalLessons,
		FirstClassFree: request.FirstClassFree,
		Duration:       duration,
		Now:            now,
		Calendar:       calendar,
	})
	if err != nil {
		var conflict *scheduling.SlotConflict
		if errors.As(err, &conflict) {
			metrics.ClassRequestApprovals.WithLabelValues("conflict").Inc()
			s.log.Info("class request approval blocked",
				zap.Int64("request_id", requestID),
				zap.Int("day_of_week", conflict.DayOfWeek),
				zap.String("time", conflict.Time),
				zap.Time("date", conflict.Date),
				zap.String("reason", conflict.Reason),
			)
			return nil, conflict
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	inputs := make([]repository.CreateClassInput, 0, len(planned))
	for _, plan := range planned {
		status, paymentStatus := models.ClassStatusPendingPayment, models.PaymentStatusUnpaid
		if plan.IsFree {
			status, paymentStatus = models.ClassStatusScheduled, models.PaymentStatusPaid
		}
		inputs = append(inputs, repository.CreateClassInput{
			StudentID:       request.StudentID,
			TeacherID:       request.TeacherID,
			ClassRequestID:  &request.ID,
			ClassDate:       plan.Start,
			DurationMinutes: settings.ClassDurationMinutes,
			Title:           fmt.Sprintf("Lesson %d of %d", plan.Sequence, request.TotalLessons),
			IsFree:          plan.IsFree,
			Status:          status,
			PaymentStatus:   paymentStatus,
		})
	}

	classes, err := txClasses.CreateMany(ctx, inputs)
	if err != nil {
		metrics.ClassRequestApprovals.WithLabelValues("error").Inc()
		return nil, err
	}

	approved, err := txRequests.MarkApproved(ctx, requestID)
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.ClassRequestApprovals.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ClassRequestApprovals.WithLabelValues("approved").Inc()
	metrics.ClassesGenerated.Add(float64(len(classes)))
	s.log.Info("class request approved",
		zap.Int64("request_id", requestID),
		zap.Int64("teacher_id", approved.TeacherID),
		zap.Int("classes", len(classes)),
	)

	s.publish(realtime.ActionUpdated, approved)
	for _, class := range classes {
		s.events.Publish(classEvent(realtime.ActionCreated, &class))
	}

	return &models.ClassRequestDetail{ClassRequest: *approved, Classes: classes}, nil
}

// planningHorizon bounds the class lookup to the weeks a plan can reach.
func planningHorizon(now time.Time, request *models.ClassRequest, duration time.Duration) time.Time {
	slots := len(request.WeeklySchedule)
	if slots == 0 {
		slots = 1
	}
	weeks := (request.TotalLessons+slots-1)/slots + 1
	return now.AddDate(0, 0, 7*weeks).Add(duration)
}

func (s *ClassRequestService) Reject(
	ctx context.Context,
	actorID int64,
	role string,
	requestID int64,
	reason *string,
) (*models.ClassRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, request.TeacherID) {
		return nil, ErrForbidden
	}
	if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusTeacherEdited {
		return nil, ErrInvalidStateTransition
	}

	rejected, err := s.requests.Reject(ctx, requestID, request.Status, optionalText(reason))
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	s.publish(realtime.ActionUpdated, rejected)
	return rejected, nil
}

// Edit stores a counter proposal the student must accept or decline.
func (s *ClassRequestService) Edit(
	ctx context.Context,
	actorID int64,
	role string,
	requestID int64,
	input TeacherEditsInput,
) (*models.ClassRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !canManage(role, actorID, request.TeacherID) {
		return nil, ErrForbidden
	}
	if request.Status != models.RequestStatusPending {
		return nil, ErrInvalidStateTransition
	}

	settings, err := loadSettings(ctx, s.settings)
	if err != nil {
		return nil, err
	}

	edits := models.TeacherEdits{Message: optionalText(input.Message)}
	if len(input.WeeklySchedule) > 0 {
		schedule, err := scheduling.NormalizeSchedule(input.WeeklySchedule)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		edits.WeeklySchedule = schedule
	}
	if input.TotalLessons != nil {
		if *input.TotalLessons < settings.MinTotalLessons {
			return nil, fmt.Errorf("%w: total_lessons must be at least %d", ErrInvalidInput, settings.MinTotalLessons)
		}
		total := *input.TotalLessons
		edits.TotalLessons = &total
	}
	if input.LessonsPerWeek != nil {
		if *input.LessonsPerWeek <= 0 {
			return nil, ErrInvalidInput
		}
		perWeek := *input.LessonsPerWeek
		edits.LessonsPerWeek = &perWeek
	}
	if edits.WeeklySchedule == nil && edits.TotalLessons == nil && edits.LessonsPerWeek == nil {
		return nil, fmt.Errorf("%w: nothing to change", ErrInvalidInput)
	}

	edited, err := s.requests.SaveTeacherEdits(ctx, requestID, edits)
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	s.publish(realtime.ActionUpdated, edited)
	return edited, nil
}

// Respond applies or declines the teacher's proposal. Accepting sends the updated request
// back to pending; declining rejects it.
func (s *ClassRequestService) Respond(
	ctx context.Context,
	actorID int64,
	role string,
	requestID int64,
	accept bool,
) (*models.ClassRequest, error) {
	if role != models.RoleStudent {
		return nil, ErrForbidden
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.StudentID != actorID {
		return nil, ErrForbidden
	}
	if request.Status != models.RequestStatusTeacherEdited || request.TeacherEdits == nil {
		return nil, ErrInvalidStateTransition
	}

	var updated *models.ClassRequest
	if accept {
		edits := request.TeacherEdits
		schedule := request.WeeklySchedule
		if len(edits.WeeklySchedule) > 0 {
			schedule = edits.WeeklySchedule
		}
		perWeek := request.LessonsPerWeek
		if edits.LessonsPerWeek != nil {
			perWeek = *edits.LessonsPerWeek
		} else if len(edits.WeeklySchedule) > 0 {
			perWeek = len(edits.WeeklySchedule)
		}
		total := request.TotalLessons
		if edits.TotalLessons != nil {
			total = *edits.TotalLessons
		}
		updated, err = s.requests.ApplyTeacherEdits(ctx, requestID, schedule, perWeek, total)
	} else {
		reason := "student declined the proposed changes"
		updated, err = s.requests.Reject(ctx, requestID, models.RequestStatusTeacherEdited, &reason)
	}
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidStateTransition)
	}

	s.publish(realtime.ActionUpdated, updated)
	return updated, nil
}

func (s *ClassRequestService) publish(action string, request *models.ClassRequest) {
	s.events.Publish(realtime.Event{
		Entity:    realtime.TopicClassRequests,
		Action:    action,
		ID:        request.ID,
		StudentID: request.StudentID,
		TeacherID: request.TeacherID,
		Status:    request.Status,
	})
}
