package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"go.uber.org/zap"
)

func TestPaymentServicePackageConfirmFlow(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	requests := newIntegrationClassRequestService(pool)
	payments := newIntegrationPaymentService(pool)

	studentID := createTestAccount(t, ctx, pool, models.RoleStudent)
	teacherID := createTestAccount(t, ctx, pool, models.RoleTeacher)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, studentID, teacherID) })

	requestID := approvedTestRequest(t, ctx, requests, studentID, teacherID)

	notification, err := payments.Submit(ctx, studentID, models.RoleStudent, SubmitPaymentInput{
		ClassRequestID: &requestID,
		Amount:         120,
		Method:         "bank transfer",
		Reference:      stringPtr("TRX-1"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if notification.Status != models.PaymentNotificationPending || notification.TeacherID != teacherID {
		t.Fatalf("unexpected notification %+v", notification)
	}

	if _, err := payments.Confirm(ctx, studentID, models.RoleStudent, notification.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected students to be unable to confirm, got %v", err)
	}

	confirmed, err := payments.Confirm(ctx, teacherID, models.RoleTeacher, notification.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != models.PaymentNotificationConfirmed || confirmed.ReviewedAt == nil {
		t.Fatalf("expected confirmed notification, got %+v", confirmed)
	}

	detail, err := requests.Get(ctx, studentID, models.RoleStudent, requestID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Status != models.RequestStatusPaymentConfirmed {
		t.Fatalf("expected payment_confirmed, got %q", detail.Status)
	}
	for _, class := range detail.Classes {
		if class.PaymentStatus != models.PaymentStatusPaid || class.Status != models.ClassStatusScheduled {
			t.Fatalf("expected paid scheduled class, got %+v", class)
		}
	}

	if _, err := payments.Confirm(ctx, teacherID, models.RoleTeacher, notification.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second review to fail, got %v", err)
	}
}

func TestPaymentServiceRejectReturnsClassesToUnpaid(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	requests := newIntegrationClassRequestService(pool)
	payments := newIntegrationPaymentService(pool)

	studentID := createTestAccount(t, ctx, pool, models.RoleStudent)
	teacherID := createTestAccount(t, ctx, pool, models.RoleTeacher)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, studentID, teacherID) })

	requestID := approvedTestRequest(t, ctx, requests, studentID, teacherID)
	detail, err := requests.Get(ctx, studentID, models.RoleStudent, requestID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	classID := detail.Classes[1].ID

	notification, err := payments.Submit(ctx, studentID, models.RoleStudent, SubmitPaymentInput{
		ClassID: &classID,
		Amount:  30,
		Method:  "cash",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	class, err := repository.NewClassRepository(pool).GetByID(ctx, classID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if class.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("expected pending payment status after claim, got %q", class.PaymentStatus)
	}

	if _, err := payments.Reject(ctx, teacherID, models.RoleTeacher, notification.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	class, err = repository.NewClassRepository(pool).GetByID(ctx, classID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if class.PaymentStatus != models.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid after rejection, got %q", class.PaymentStatus)
	}
}

func TestPaymentServiceRejectKeepsClassesOfOtherPendingClaims(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	requests := newIntegrationClassRequestService(pool)
	payments := newIntegrationPaymentService(pool)
	classes := repository.NewClassRepository(pool)

	studentID := createTestAccount(t, ctx, pool, models.RoleStudent)
	teacherID := createTestAccount(t, ctx, pool, models.RoleTeacher)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, studentID, teacherID) })

	requestID := approvedTestRequest(t, ctx, requests, studentID, teacherID)
	detail, err := requests.Get(ctx, studentID, models.RoleStudent, requestID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	singleID, otherID := detail.Classes[1].ID, detail.Classes[0].ID

	single, err := payments.Submit(ctx, studentID, models.RoleStudent, SubmitPaymentInput{ClassID: &singleID, Amount: 30, Method: "cash"})
	if err != nil {
		t.Fatalf("Submit class claim: %v", err)
	}
	pkg, err := payments.Submit(ctx, studentID, models.RoleStudent, SubmitPaymentInput{ClassRequestID: &requestID, Amount: 120, Method: "bank transfer"})
	if err != nil {
		t.Fatalf("Submit package claim: %v", err)
	}

	if _, err := payments.Reject(ctx, teacherID, models.RoleTeacher, pkg.ID); err != nil {
		t.Fatalf("Reject package: %v", err)
	}
	expectPaymentStatus(t, ctx, classes, singleID, models.PaymentStatusPending)
	expectPaymentStatus(t, ctx, classes, otherID, models.PaymentStatusUnpaid)

	if _, err := payments.Reject(ctx, teacherID, models.RoleTeacher, single.ID); err != nil {
		t.Fatalf("Reject class claim: %v", err)
	}
	expectPaymentStatus(t, ctx, classes, singleID, models.PaymentStatusUnpaid)
}

func expectPaymentStatus(t *testing.T, ctx context.Context, classes *repository.ClassRepository, classID int64, want string) {
	t.Helper()

	class, err := classes.GetByID(ctx, classID)
	if err != nil {
		t.Fatalf("GetByID(%d): %v", classID, err)
	}
	if class.PaymentStatus != want {
		t.Fatalf("class %d payment status = %q, want %q", classID, class.PaymentStatus, want)
	}
}

func TestPaymentServiceSubmitValidation(t *testing.T) {
	payments := &PaymentService{events: noopPublisher{}, log: zap.NewNop()}
	ctx := context.Background()

	classID, requestID := int64(1), int64(2)
	cases := []struct {
		name  string
		role  string
		input SubmitPaymentInput
		want  error
	}{
		{name: "teacher", role: models.RoleTeacher, input: SubmitPaymentInput{ClassID: &classID, Amount: 1, Method: "cash"}, want: ErrForbidden},
		{name: "both ids", role: models.RoleStudent, input: SubmitPaymentInput{ClassID: &classID, ClassRequestID: &requestID, Amount: 1, Method: "cash"}, want: ErrInvalidInput},
		{name: "no ids", role: models.RoleStudent, input: SubmitPaymentInput{Amount: 1, Method: "cash"}, want: ErrInvalidInput},
		{name: "zero amount", role: models.RoleStudent, input: SubmitPaymentInput{ClassID: &classID, Method: "cash"}, want: ErrInvalidInput},
		{name: "no method", role: models.RoleStudent, input: SubmitPaymentInput{ClassID: &classID, Amount: 1, Method: " "}, want: ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := payments.Submit(ctx, 42, tc.role, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func newIntegrationPaymentService(pool *pgxpool.Pool) *PaymentService {
	return NewPaymentService(pool, repository.NewPaymentNotificationRepository(pool), nil, nil, zap.NewNop())
}

func approvedTestRequest(t *testing.T, ctx context.Context, service *ClassRequestService, studentID, teacherID int64) int64 {
	t.Helper()

	request, err := service.Create(ctx, studentID, models.RoleStudent, CreateClassRequestInput{
		TeacherID:      teacherID,
		WeeklySchedule: []models.WeeklySlot{{DayOfWeek: 1, Time: "12:00"}},
		TotalLessons:   4,
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}
	if _, err := service.Approve(ctx, teacherID, models.RoleTeacher, request.ID); err != nil {
		t.Fatalf("Approve request: %v", err)
	}
	return request.ID
}
