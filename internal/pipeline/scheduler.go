package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Run rebuilds the report every interval, starting immediately, until ctx is
// cancelled. A build never overlaps the previous one; failed builds are
// logged and retried at the next tick.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", interval)
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(interval).StartImmediately().Do(func() {
		if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	p.logger.Info("scheduler started", "interval", interval)
	s.StartAsync()
	p.metrics.SchedulerRunning.Set(1)
	defer p.metrics.SchedulerRunning.Set(0)

	<-ctx.Done()
	p.logger.Info("scheduler stopping", "reason", ctx.Err())
	s.Stop()
	return nil
}
