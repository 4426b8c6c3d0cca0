package main

import (
	"context"
	"log"
	"os"

	"github.com/Layr-Labs/questboard/internal/sqlite"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/postgres/migrations"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/storage/gormStore"
	"go.uber.org/zap"
)

// Prints a summary of the board stored in a sqlite file, e.g.
//
//	go run ./cmd/debugger ./questboard.db
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <sqlite file>", os.Args[0])
	}

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})

	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(os.Args[1]))
	if err != nil {
		l.Error("Failed to create gorm instance", zap.Error(err))
		panic(err)
	}
	rawDb, err := grm.DB()
	if err != nil {
		panic(err)
	}

	migrator := migrations.NewMigrator(rawDb, grm, l, nil)
	if err = migrator.MigrateAll(); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	store := gormStore.NewGormBoardStore(grm, l)
	state, err := store.Load(context.Background())
	if err != nil {
		log.Fatalf("Failed to load board: %v", err)
	}
	if state.Settings == nil {
		l.Sugar().Infow("Board has not been initialized")
		return
	}

	l.Sugar().Infow("Board",
		zap.String("owner", state.Settings.Owner.Hex()),
		zap.String("distributor", state.Settings.Distributor.Hex()),
		zap.Uint64("nextId", state.Settings.NextId),
		zap.Bool("killed", state.Settings.IsKilled),
		zap.Int("managers", len(state.Managers)),
		zap.Int("tokens", len(state.Whitelist)),
	)

	for questId, quest := range state.Quests {
		counts := map[questBoardTypes.PeriodState]int{}
		for _, qp := range state.QuestPeriods[questId] {
			counts[qp.State]++
		}
		l.Sugar().Infow("Quest",
			zap.Uint64("questId", questId),
			zap.String("gauge", quest.Gauge.Hex()),
			zap.String("rewardToken", quest.RewardToken.Hex()),
			zap.Int("active", counts[questBoardTypes.PeriodState_Active]),
			zap.Int("closed", counts[questBoardTypes.PeriodState_Closed]),
			zap.Int("distributed", counts[questBoardTypes.PeriodState_Distributed]),
			zap.Int("blacklisted", len(state.Blacklists[questId])),
		)
	}
}
