package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var closePeriodsCmd = &cobra.Command{
	Use:   "close-periods",
	Short: "Close every ended period that still has active quests, then exit",
	Run: func(cmd *cobra.Command, args []string) {
		bindSubcommandFlags(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		svc, err := newServices(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer svc.Close(l)

		if err := closePendingPeriods(ctx, svc, cfg.ShowProgress, l); err != nil {
			l.Sugar().Errorw("Some periods could not be closed", zap.Error(err))
		}
	},
}

// pendingPeriodIds reads the pending periods from the database when there is one.
func pendingPeriodIds(ctx context.Context, svc *services) ([]uint64, error) {
	if svc.gormStore != nil {
		return svc.gormStore.ListPendingPeriodIds(ctx, svc.board.GetCurrentPeriod())
	}
	return svc.board.GetPendingPeriods(), nil
}

func closePendingPeriods(ctx context.Context, svc *services, showProgress bool, l *zap.Logger) error {
	periodIds, err := pendingPeriodIds(ctx, svc)
	if err != nil {
		return err
	}
	if len(periodIds) == 0 {
		l.Sugar().Infow("No pending periods")
		return nil
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(periodIds)), "closing periods")
	}

	operator := svc.operator()
	var errs error
	for _, periodId := range periodIds {
		closed, err := svc.board.ClosePeriod(ctx, operator, periodId)
		if err != nil {
			l.Sugar().Errorw("Failed to close period", zap.Uint64("periodId", periodId), zap.Error(err))
			errs = errors.Join(errs, fmt.Errorf("period %d: %w", periodId, err))
		} else {
			l.Sugar().Infow("Closed period",
				zap.Uint64("periodId", periodId),
				zap.Uint64s("questIds", closed),
			)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return errs
}
