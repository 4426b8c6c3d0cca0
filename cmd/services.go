package cmd

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/Layr-Labs/questboard/internal/sqlite"
	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/biasOracle"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus"
	"github.com/Layr-Labs/questboard/pkg/gaugeController"
	"github.com/Layr-Labs/questboard/pkg/genesis"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/metrics"
	"github.com/Layr-Labs/questboard/pkg/postgres"
	"github.com/Layr-Labs/questboard/pkg/postgres/migrations"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/Layr-Labs/questboard/pkg/storage"
	"github.com/Layr-Labs/questboard/pkg/storage/gormStore"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// services holds everything a command needs to drive the board.
type services struct {
	clock       clockwork.Clock
	sink        *metrics.MetricsSink
	eventBus    *eventBus.EventBus
	store       storage.Store
	gormStore   *gormStore.GormBoardStore
	ledger      *ledger.Ledger
	distributor *distributor.MultiMerkleDistributor
	board       *questBoard.Board
	closers     []func() error
}

func (s *services) Close(l *zap.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			l.Sugar().Errorw("Failed to close resource", zap.Error(err))
		}
	}
	if s.sink != nil {
		s.sink.Flush()
	}
}

// operator is the account automated settlement acts as.
func (s *services) operator() common.Address {
	return s.board.GetSettings().Owner
}

func newServices(ctx context.Context, cfg *config.Config, l *zap.Logger) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &services{
		clock: clockwork.NewRealClock(),
	}

	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics clients: %w", err)
	}
	s.sink, err = metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}

	s.eventBus = eventBus.NewEventBus(l)

	var gen *genesis.Genesis
	if cfg.GenesisFile != "" {
		gen, err = genesis.ParseFile(cfg.GenesisFile)
		if err != nil {
			return nil, err
		}
	}

	if err := s.openStore(cfg, l); err != nil {
		s.Close(l)
		return nil, err
	}
	if err := s.openLedger(cfg, l); err != nil {
		s.Close(l)
		return nil, err
	}

	controller, err := newGaugeController(cfg, gen, l)
	if err != nil {
		s.Close(l)
		return nil, err
	}
	oracle, err := biasOracle.NewBiasOracle(&biasOracle.BiasOracleConfig{
		CacheSize: cfg.EthereumConfig.OracleCacheSize,
	}, controller, s.clock, s.sink, l)
	if err != nil {
		s.Close(l)
		return nil, err
	}

	distributors := make([]questBoard.Distributor, 0)
	distributorAddress, err := resolveDistributorAddress(cfg, gen)
	if err != nil {
		s.Close(l)
		return nil, err
	}
	if !utils.IsZeroAddress(distributorAddress) {
		s.distributor, err = distributor.NewMultiMerkleDistributor(ctx, distributorAddress, s.ledger, s.store, s.sink, l)
		if err != nil {
			s.Close(l)
			return nil, err
		}
		distributors = append(distributors, s.distributor)
	}

	boardConfig, err := newBoardConfig(cfg, s.clock)
	if err != nil {
		s.Close(l)
		return nil, err
	}
	s.board, err = questBoard.NewBoard(ctx, boardConfig, s.store, oracle, s.ledger, distributors, s.eventBus, s.sink, l)
	if err != nil {
		s.Close(l)
		return nil, err
	}

	if gen != nil {
		if err := gen.ApplyToLedger(s.ledger, l); err != nil {
			s.Close(l)
			return nil, err
		}
		if err := gen.ApplyToBoard(ctx, s.board, s.operator(), l); err != nil {
			s.Close(l)
			return nil, err
		}
	}
	return s, nil
}

func (s *services) openStore(cfg *config.Config, l *zap.Logger) error {
	var grm *gorm.DB
	switch cfg.DatabaseConfig.Driver {
	case config.DatabaseDriver_Memory:
		s.store = storage.NewMemoryBoardStore()
		l.Sugar().Infow("Using in-memory board store")
		return nil
	case config.DatabaseDriver_Sqlite:
		db, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(cfg.SqliteConfig.GetSqlitePath()))
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		grm = db
	case config.DatabaseDriver_Postgres:
		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true
		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			return fmt.Errorf("failed to setup postgres connection: %w", err)
		}
		db, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			return fmt.Errorf("failed to create gorm instance: %w", err)
		}
		grm = db
	}

	rawDb, err := grm.DB()
	if err != nil {
		return err
	}
	s.closers = append(s.closers, rawDb.Close)

	migrator := migrations.NewMigrator(rawDb, grm, l, cfg)
	if err := migrator.MigrateAll(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	s.gormStore = gormStore.NewGormBoardStore(grm, l)
	s.store = s.gormStore
	l.Sugar().Infow("Using database board store", zap.String("driver", string(cfg.DatabaseConfig.Driver)))
	return nil
}

func (s *services) openLedger(cfg *config.Config, l *zap.Logger) error {
	var store ledger.BalanceStore
	if cfg.LedgerDbPath != "" {
		ldb, err := ledger.NewLevelDBBalanceStore(cfg.LedgerDbPath)
		if err != nil {
			return fmt.Errorf("failed to open ledger database: %w", err)
		}
		store = ldb
	}
	lg, err := ledger.NewLedger(store, l)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return err
	}
	s.ledger = lg
	s.closers = append(s.closers, lg.Close)
	return nil
}

func newGaugeController(cfg *config.Config, gen *genesis.Genesis, l *zap.Logger) (gaugeController.GaugeController, error) {
	if cfg.EthereumConfig.UseMemoryGauges {
		gc := gaugeController.NewMemoryGaugeController()
		if gen != nil {
			gen.ApplyToGaugeController(gc)
		}
		l.Sugar().Infow("Using in-memory gauge controller")
		return gc, nil
	}

	address, err := utils.ParseAddress(cfg.EthereumConfig.GaugeController)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.EthereumGaugeController, err)
	}
	return gaugeController.NewEthereumGaugeController(&gaugeController.EthereumGaugeControllerConfig{
		RpcUrl:  cfg.EthereumConfig.RpcUrl,
		Address: address,
	}, gaugeController.DefaultHttpClient(), l)
}

func resolveDistributorAddress(cfg *config.Config, gen *genesis.Genesis) (common.Address, error) {
	if cfg.BoardConfig.Distributor != "" {
		address, err := utils.ParseAddress(cfg.BoardConfig.Distributor)
		if err != nil {
			return common.Address{}, fmt.Errorf("%s: %w", config.BoardDistributor, err)
		}
		return address, nil
	}
	if gen != nil {
		return gen.DistributorAddress(), nil
	}
	return common.Address{}, nil
}

func newBoardConfig(cfg *config.Config, clock clockwork.Clock) (*questBoard.BoardConfig, error) {
	bc := cfg.BoardConfig

	address, err := utils.ParseAddress(bc.Address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.BoardAddress, err)
	}
	owner, err := utils.ParseAddress(bc.Owner)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.BoardOwner, err)
	}
	chest, err := utils.ParseAddress(bc.Chest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.BoardChest, err)
	}
	managers := make([]common.Address, 0, len(bc.Managers))
	for _, m := range bc.Managers {
		manager, err := utils.ParseAddress(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.BoardManagers, err)
		}
		managers = append(managers, manager)
	}

	boardConfig := &questBoard.BoardConfig{
		Address:     address,
		Owner:       owner,
		Chest:       chest,
		PlatformFee: bc.PlatformFee,
		Managers:    managers,
		KillDelay:   bc.KillDelay,
		Clock:       clock,
	}
	if bc.MinObjective != "" {
		boardConfig.MinObjective, err = numbers.ParseAmount(bc.MinObjective)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.BoardMinObjective, err)
		}
	}
	return boardConfig, nil
}
