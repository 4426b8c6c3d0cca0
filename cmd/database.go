package cmd

import (
	"context"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Migrate the database and seed it from the genesis file, then exit",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		if cfg.DatabaseConfig.Driver == config.DatabaseDriver_Memory {
			l.Sugar().Fatalw("The database command needs a persistent driver", zap.String("driver", string(cfg.DatabaseConfig.Driver)))
		}

		svc, err := newServices(context.Background(), cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup database", zap.Error(err))
		}
		defer svc.Close(l)

		l.Sugar().Infow("Database is up to date",
			zap.Uint64("quests", svc.board.GetQuestCount()),
			zap.Int("pendingPeriods", len(svc.board.GetPendingPeriods())),
		)
	},
}
