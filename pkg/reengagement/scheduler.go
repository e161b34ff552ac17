package reengagement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a pass at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Scheduler runs reengagement passes on a cron schedule. A pass still
// running when the next one is due is not overlapped.
type Scheduler struct {
	runner *Runner
	spec   string
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(runner *Runner, spec string, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}

	_, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	logger = logger.With("module", "reengagement_scheduler", "cron", spec)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))

	return &Scheduler{
		runner: runner,
		spec:   spec,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
		logger: logger,
	}, nil
}

// Run schedules the passes and blocks until ctx is done. Passes started
// before cancellation finish first.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.pass(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add reengagement job: %w", err)
	}

	s.logger.InfoContext(ctx, "Starting reengagement scheduler", "job_id", id)
	s.cron.Start()

	<-ctx.Done()

	s.logger.Info("Stopping reengagement scheduler")
	<-s.cron.Stop().Done()

	return nil
}

func (s *Scheduler) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := s.runner.RunOnce(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Reengagement pass failed", "error", err)
	}
}
