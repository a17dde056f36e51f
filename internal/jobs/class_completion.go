package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tutordesk/backend/internal/metrics"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"go.uber.org/zap"
)

const completionTimeout = 2 * time.Minute

type classCompleter interface {
	CompleteFinished(ctx context.Context, now time.Time) ([]models.Class, error)
}

// ClassCompletion marks scheduled classes completed once their end time has passed.
type ClassCompletion struct {
	classes classCompleter
	events  realtime.Publisher
	log     *zap.Logger
	now     func() time.Time
}

func NewClassCompletion(classes classCompleter, events realtime.Publisher, log *zap.Logger) *ClassCompletion {
	return &ClassCompletion{
		classes: classes,
		events:  events,
		log:     log.Named("jobs.class_completion"),
		now:     time.Now,
	}
}

// RunOnce completes every finished class and reports how many changed.
func (j *ClassCompletion) RunOnce(ctx context.Context) (int, error) {
	completed, err := j.classes.CompleteFinished(ctx, j.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete finished classes: %w", err)
	}

	for _, class := range completed {
		if j.events != nil {
			j.events.Publish(realtime.Event{
				Entity:    realtime.TopicClasses,
				Action:    realtime.ActionUpdated,
				ID:        class.ID,
				StudentID: class.StudentID,
				TeacherID: class.TeacherID,
				Status:    class.Status,
				At:        j.now().UTC(),
			})
		}
	}
	metrics.ClassesAutoCompleted.Add(float64(len(completed)))
	return len(completed), nil
}

// Scheduler owns the cron runner for background jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:  log.Named("jobs"),
	}
}

func (s *Scheduler) AddClassCompletion(spec string, job *ClassCompletion) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()

		count, err := job.RunOnce(ctx)
		if err != nil {
			s.log.Error("class completion failed", zap.Error(err))
			return
		}
		if count > 0 {
			s.log.Info("classes auto-completed", zap.Int("count", count))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule class completion %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
