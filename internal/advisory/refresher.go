package advisory

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher re-evaluates the advisory on a fixed interval so the score
// gauges and the stored day scores stay current between page views.
type Refresher struct {
	scheduler *gocron.Scheduler
	evaluator *Evaluator
	interval  time.Duration
	logger    *slog.Logger
}

func NewRefresher(evaluator *Evaluator, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		scheduler: gocron.NewScheduler(evaluator.Location()),
		evaluator: evaluator,
		interval:  interval,
		logger:    logger.With("component", "refresher"),
	}
}

// Start schedules the job, running it once immediately.
func (r *Refresher) Start() error {
	minutes := int(r.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := r.scheduler.Every(minutes).Minutes().SingletonMode().Do(r.run)
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()
	r.logger.Info("refresh scheduled", "every_minutes", minutes)
	return nil
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := r.evaluator.Evaluate(ctx)
	if err != nil {
		r.logger.Error("scheduled evaluation failed", "error", err)
		return
	}

	if today, ok := report.Today(); ok {
		r.logger.Info("advisory refreshed", "today", today.Tier.Name, "score", today.Total)
	}
}

func (r *Refresher) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}
