package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"go.uber.org/zap"
)

type sentMessage struct {
	chatID int64
	text   string
}

type stubSender struct {
	sent []sentMessage
	err  error
}

func (s *stubSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

type stubUsers map[int64]*models.User

func (s stubUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := s[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func chatID(id int64) *int64 { return &id }

func testUsers() stubUsers {
	return stubUsers{
		1: {ID: 1, Role: models.RoleTeacher, TelegramChatID: chatID(1001)},
		2: {ID: 2, Role: models.RoleStudent, TelegramChatID: chatID(2002)},
		3: {ID: 3, Role: models.RoleStudent},
	}
}

func TestDescribeRoutesEvents(t *testing.T) {
	cases := []struct {
		name      string
		event     realtime.Event
		recipient int64
		contains  string
	}{
		{
			name:      "new request goes to teacher",
			event:     realtime.Event{Entity: realtime.TopicClassRequests, Action: realtime.ActionCreated, ID: 9, StudentID: 2, TeacherID: 1},
			recipient: 1,
			contains:  "#9",
		},
		{
			name:      "approval goes to student",
			event:     realtime.Event{Entity: realtime.TopicClassRequests, Action: realtime.ActionUpdated, ID: 9, StudentID: 2, TeacherID: 1, Status: models.RequestStatusAwaitingPayment},
			recipient: 2,
			contains:  "approved",
		},
		{
			name:      "payment claim goes to teacher",
			event:     realtime.Event{Entity: realtime.TopicPayments, Action: realtime.ActionCreated, ID: 4, StudentID: 2, TeacherID: 1, Status: models.PaymentNotificationPending},
			recipient: 1,
			contains:  "payment #4",
		},
		{
			name:      "student cancellation goes to teacher",
			event:     realtime.Event{Entity: realtime.TopicClasses, Action: realtime.ActionUpdated, ID: 5, StudentID: 2, TeacherID: 1, ActorID: 2, Status: models.ClassStatusCancelled},
			recipient: 1,
			contains:  "by the student",
		},
		{
			name:      "teacher message goes to student",
			event:     realtime.Event{Entity: realtime.TopicMessages, Action: realtime.ActionCreated, StudentID: 2, TeacherID: 1, ActorID: 1},
			recipient: 2,
			contains:  "from your teacher",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recipient, text, ok := describe(tc.event)
			if !ok || recipient != tc.recipient || !strings.Contains(text, tc.contains) {
				t.Fatalf("describe = (%d, %q, %v), want recipient %d containing %q", recipient, text, ok, tc.recipient, tc.contains)
			}
		})
	}

	if _, _, ok := describe(realtime.Event{Entity: realtime.TopicSettings, Action: realtime.ActionUpdated}); ok {
		t.Fatal("expected settings events to be ignored")
	}
	if _, _, ok := describe(realtime.Event{Entity: realtime.TopicClasses, Action: realtime.ActionUpdated, Status: models.ClassStatusScheduled}); ok {
		t.Fatal("expected non-cancellation class updates to be ignored")
	}
}

func TestNotifierHandleSendsToLinkedChats(t *testing.T) {
	sender := &stubSender{}
	notifier := NewNotifier(sender, testUsers(), zap.NewNop())
	ctx := context.Background()

	notifier.Handle(ctx, realtime.Event{Entity: realtime.TopicHomework, Action: realtime.ActionCreated, ID: 7, StudentID: 2, TeacherID: 1})
	if len(sender.sent) != 1 || sender.sent[0].chatID != 2002 {
		t.Fatalf("expected one message to chat 2002, got %+v", sender.sent)
	}

	notifier.Handle(ctx, realtime.Event{Entity: realtime.TopicHomework, Action: realtime.ActionCreated, ID: 8, StudentID: 3, TeacherID: 1})
	notifier.Handle(ctx, realtime.Event{Entity: realtime.TopicHomework, Action: realtime.ActionCreated, ID: 9, StudentID: 99, TeacherID: 1})
	if len(sender.sent) != 1 {
		t.Fatalf("expected users without a chat id to be skipped, got %+v", sender.sent)
	}
}

func TestNotifierRunStopsWhenChannelCloses(t *testing.T) {
	sender := &stubSender{err: errors.New("telegram down")}
	notifier := NewNotifier(sender, testUsers(), zap.NewNop())

	events := make(chan realtime.Event, 2)
	events <- realtime.Event{Entity: realtime.TopicPayments, Action: realtime.ActionUpdated, ID: 1, StudentID: 2, TeacherID: 1, Status: models.PaymentNotificationConfirmed}
	close(events)

	done := make(chan struct{})
	go func() {
		notifier.Run(context.Background(), events)
		close(done)
	}()
	<-done

	if len(sender.sent) != 0 {
		t.Fatalf("expected failed send to record nothing, got %+v", sender.sent)
	}
}
