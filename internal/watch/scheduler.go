package watch

import (
	"context"
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/logfields"
)

// Scheduler triggers a rebuild on a cron schedule.
type Scheduler struct {
	scheduler gocron.Scheduler
	schedule  string
	logger    *slog.Logger
}

// NewScheduler creates a scheduler calling trigger at every tick of the
// five field cron expression schedule. Ticks that arrive while the previous
// run is still going are skipped.
func NewScheduler(ctx context.Context, schedule string, trigger TriggerFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create scheduler").Build()
	}
	_, err = s.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() { trigger(ctx, "schedule: "+schedule) }),
		gocron.WithName("publish"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, ferrors.ValidationError("invalid schedule").
			WithCause(err).
			WithContext("schedule", schedule).
			Build()
	}
	return &Scheduler{scheduler: s, schedule: schedule, logger: logger}, nil
}

// Start begins scheduling.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", logfields.Schedule(s.schedule))
	s.scheduler.Start()
}

// Stop waits for a running job and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
