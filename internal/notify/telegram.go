package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/metrics"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"go.uber.org/zap"
)

// MessageSender is the part of the Telegram client the notifier uses.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Notifier turns hub events into Telegram messages for users who linked a chat id.
type Notifier struct {
	sender MessageSender
	users  userReader
	log    *zap.Logger
}

func NewNotifier(sender MessageSender, users userReader, log *zap.Logger) *Notifier {
	return &Notifier{sender: sender, users: users, log: log.Named("notify")}
}

// Run consumes events until the channel closes or ctx is done.
func (n *Notifier) Run(ctx context.Context, events <-chan realtime.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			n.Handle(ctx, event)
		}
	}
}

func (n *Notifier) Handle(ctx context.Context, event realtime.Event) {
	recipient, text, ok := describe(event)
	if !ok || recipient == 0 {
		return
	}

	user, err := n.users.GetByID(ctx, recipient)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			n.log.Warn("load notification recipient", zap.Int64("user_id", recipient), zap.Error(err))
		}
		return
	}
	if user.TelegramChatID == nil {
		return
	}

	if err := n.sender.SendMessage(ctx, *user.TelegramChatID, text); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		n.log.Warn("telegram notification failed",
			zap.Int64("user_id", recipient),
			zap.String("entity", event.Entity),
			zap.Int64("id", event.ID),
			zap.Error(err),
		)
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
}

// describe picks who hears about an event and what they are told.
func describe(event realtime.Event) (int64, string, bool) {
	switch event.Entity {
	case realtime.TopicClassRequests:
		if event.Action == realtime.ActionCreated {
			return event.TeacherID, fmt.Sprintf("New class request #%d is waiting for your review.", event.ID), true
		}
		switch event.Status {
		case models.RequestStatusAwaitingPayment:
			return event.StudentID, fmt.Sprintf("Your class request #%d was approved. Your lessons are on the calendar.", event.ID), true
		case models.RequestStatusTeacherEdited:
			return event.StudentID, fmt.Sprintf("Your teacher proposed changes to class request #%d.", event.ID), true
		case models.RequestStatusRejected:
			return event.StudentID, fmt.Sprintf("Class request #%d was declined.", event.ID), true
		case models.RequestStatusPending:
			return event.TeacherID, fmt.Sprintf("Class request #%d was updated and needs another look.", event.ID), true
		}
	case realtime.TopicPayments:
		switch event.Status {
		case models.PaymentNotificationPending:
			return event.TeacherID, fmt.Sprintf("A student reported payment #%d.", event.ID), true
		case models.PaymentNotificationConfirmed:
			return event.StudentID, fmt.Sprintf("Payment #%d was confirmed. Thank you!", event.ID), true
		case models.PaymentNotificationRejected:
			return event.StudentID, fmt.Sprintf("Payment #%d could not be confirmed. Please contact your teacher.", event.ID), true
		}
	case realtime.TopicHomework:
		if event.Action == realtime.ActionCreated {
			return event.StudentID, fmt.Sprintf("You have new homework (#%d).", event.ID), true
		}
		switch event.Status {
		case models.HomeworkSubmitted:
			return event.TeacherID, fmt.Sprintf("Homework #%d was submitted.", event.ID), true
		case models.HomeworkReviewed, models.HomeworkCompleted:
			return event.StudentID, fmt.Sprintf("Your teacher reviewed homework #%d.", event.ID), true
		}
	case realtime.TopicClasses:
		if event.Action == realtime.ActionUpdated && event.Status == models.ClassStatusCancelled {
			if event.ActorID == event.StudentID {
				return event.TeacherID, fmt.Sprintf("Class #%d was cancelled by the student.", event.ID), true
			}
			return event.StudentID, fmt.Sprintf("Class #%d was cancelled.", event.ID), true
		}
	case realtime.TopicMessages:
		if event.ActorID == event.StudentID {
			return event.TeacherID, "You have a new message from a student.", true
		}
		return event.StudentID, "You have a new message from your teacher.", true
	}
	return 0, "", false
}

// BotSender adapts *bot.Bot to MessageSender.
type BotSender struct {
	bot *bot.Bot
}

func NewBotSender(token string) (*BotSender, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &BotSender{bot: b}, nil
}

func (s *BotSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}
