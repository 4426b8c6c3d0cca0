package settlementQueue

import (
	"context"
	"time"

	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const DefaultSchedulerInterval = 10 * time.Minute

func NewScheduler(cfg *SchedulerConfig, queue *SettlementQueue, clock clockwork.Clock, ms metricsTypes.IMetricsClient, l *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerInterval
	}
	return &Scheduler{
		config:  cfg,
		queue:   queue,
		clock:   clock,
		metrics: ms,
		logger:  l,
	}
}

// Run enqueues a close of the pending periods on every tick until ctx is done. A tick is
// skipped while the previous scheduled request has not finished.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Sugar().Infow("Starting settlement scheduler", zap.Duration("interval", s.config.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Sugar().Infow("Stopping settlement scheduler")
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Sugar().Debugw("Previous scheduled settlement still running, skipping tick")
		return
	}
	go func() {
		defer s.inFlight.Store(false)
		res, err := s.queue.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePendingPeriods})
		if err != nil {
			s.logger.Sugar().Warnw("Scheduled settlement finished with errors", zap.Error(err))
		}
		if res != nil && len(res.ClosedQuests) > 0 {
			s.logger.Sugar().Infow("Scheduled settlement closed periods", zap.Int("periods", len(res.ClosedQuests)))
		}
	}()
}
