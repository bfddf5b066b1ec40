package digest

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler sends a digest on a fixed interval in the background.
type Scheduler struct {
	collector *Collector
	notifier  *Notifier
	interval  time.Duration
	lookback  time.Duration
	now       func() time.Time
}

// NewScheduler creates a background digest sender. A non-positive interval
// defaults to one week.
func NewScheduler(collector *Collector, notifier *Notifier, interval, lookback time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}
	return &Scheduler{
		collector: collector,
		notifier:  notifier,
		interval:  interval,
		lookback:  lookback,
		now:       time.Now,
	}
}

// Run starts the send loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "digest.scheduler"))
	log.Info("starting digest scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("lookback", s.lookback),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("digest scheduler stopped")
			return
		case <-ticker.C:
			s.send(ctx, log)
		}
	}
}

func (s *Scheduler) send(ctx context.Context, log *zap.Logger) {
	stats, err := s.collector.Collect(ctx, s.now(), s.lookback)
	if err != nil {
		log.Error("digest: failed to collect stats", zap.Error(err))
		return
	}
	if err := s.notifier.Send(ctx, stats); err != nil {
		log.Error("digest: failed to send", zap.Error(err))
		return
	}
	log.Info("digest: scheduled send complete", zap.Int("total_assessments", stats.TotalAssessments))
}
