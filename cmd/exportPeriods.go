package cmd

import (
	"context"
	"io"
	"os"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/reports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportPeriodsCmd = &cobra.Command{
	Use:   "export-periods",
	Short: "Write the periods of a quest as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		bindSubcommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		svc, err := newServices(context.Background(), cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer svc.Close(l)

		periods, err := svc.board.GetAllQuestPeriodsForQuestId(cfg.ExportConfig.QuestId)
		if err != nil {
			l.Sugar().Errorw("Failed to load quest periods", zap.Uint64("questId", cfg.ExportConfig.QuestId), zap.Error(err))
			return
		}

		var out io.Writer = os.Stdout
		if cfg.ExportConfig.OutputFile != "" {
			f, err := os.Create(cfg.ExportConfig.OutputFile)
			if err != nil {
				l.Sugar().Errorw("Failed to create output file", zap.String("path", cfg.ExportConfig.OutputFile), zap.Error(err))
				return
			}
			defer f.Close()
			out = f
		}

		if err := reports.WriteQuestPeriods(out, periods); err != nil {
			l.Sugar().Errorw("Failed to export quest periods", zap.Error(err))
			return
		}
		l.Sugar().Infow("Exported quest periods",
			zap.Uint64("questId", cfg.ExportConfig.QuestId),
			zap.Int("periods", len(periods)),
		)
	},
}
