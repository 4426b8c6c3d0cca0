// Package questBoard implements the quest settlement engine: quest escrow and top-ups,
// period closing against blacklist-adjusted gauge weight, the hand-off of settled funds
// to Merkle distributors, and the kill switch.
//
// Every operation takes the calling account explicitly, runs under a board-wide lock and
// is atomic: records are staged on copies, then committed through the BoardStore
// together with the ledger transfers and distributor calls they require.
package questBoard

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/period"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/storage"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultPlatformFee uint64 = 400
	MaxPlatformFee     uint64 = 500
	DefaultKillDelay          = 2 * 7 * 24 * time.Hour
)

// DefaultMinObjective is the minimum objective of a new board.
var DefaultMinObjective = numbers.MustParseAmount("1000e18")

// BiasOracle is the read-only view of the gauge registry used for settlement.
type BiasOracle interface {
	// ReducedBias returns the gauge weight at the end of periodId minus the weight of the excluded voters, floored at zero.
	ReducedBias(ctx context.Context, gauge common.Address, periodId uint64, excluded []common.Address) (*big.Int, error)
	IsValidGauge(ctx context.Context, gauge common.Address) (bool, error)
}

// Distributor receives settled funds.
//
// Stage checks the calls in order and returns the records they write without changing
// state. The board persists those records with its own change set and hands them back
// through Apply once the commit succeeded.
type Distributor interface {
	Address() common.Address
	Stage(calls []distributor.Call) (*distributor.Records, error)
	Apply(records *distributor.Records)
}

// TokenLedger moves reward tokens between accounts.
type TokenLedger interface {
	BalanceOf(token common.Address, account common.Address) *big.Int
	Transfer(transfers ...ledger.Transfer) error
}

type BoardConfig struct {
	// Address is the board's own account in the ledger. Escrowed rewards are held here.
	Address common.Address
	// Owner, Chest, PlatformFee and MinObjective seed the settings of a new board.
	// They are ignored when the store already holds settings.
	Owner        common.Address
	Chest        common.Address
	PlatformFee  uint64
	MinObjective *big.Int
	// Managers are approved on a new board.
	Managers  []common.Address
	KillDelay time.Duration
	Clock     clockwork.Clock
}

func (c *BoardConfig) Validate() error {
	if utils.IsZeroAddress(c.Address) {
		return fmt.Errorf("board address is required")
	}
	if utils.IsZeroAddress(c.Owner) {
		return fmt.Errorf("board owner is required")
	}
	if utils.IsZeroAddress(c.Chest) {
		return fmt.Errorf("board chest is required")
	}
	if c.PlatformFee == 0 {
		c.PlatformFee = DefaultPlatformFee
	}
	if c.PlatformFee > MaxPlatformFee {
		return fmt.Errorf("platform fee %d is above the maximum of %d", c.PlatformFee, MaxPlatformFee)
	}
	if c.MinObjective == nil || c.MinObjective.Sign() == 0 {
		c.MinObjective = numbers.Copy(DefaultMinObjective)
	}
	if c.KillDelay == 0 {
		c.KillDelay = DefaultKillDelay
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Board struct {
	mu     sync.Mutex
	config *BoardConfig
	clock  clockwork.Clock

	store storage.BoardStore
	state *questBoardTypes.State
	// periodQuests lists, per period id, the ids of the quests scheduled in it in ascending order
	periodQuests map[uint64][]uint64

	oracle       BiasOracle
	ledger       TokenLedger
	distributors map[common.Address]Distributor

	eventBus eventBusTypes.IEventBus
	metrics  metricsTypes.IMetricsClient
	logger   *zap.Logger
}

// NewBoard loads the board state from the store, creating the settings from cfg on first use.
// distributors lists every distributor the board may be pointed at. eb and ms may be nil.
func NewBoard(
	ctx context.Context,
	cfg *BoardConfig,
	store storage.BoardStore,
	oracle BiasOracle,
	tokenLedger TokenLedger,
	distributors []Distributor,
	eb eventBusTypes.IEventBus,
	ms metricsTypes.IMetricsClient,
	l *zap.Logger,
) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Board{
		config:       cfg,
		clock:        cfg.Clock,
		store:        store,
		oracle:       oracle,
		ledger:       tokenLedger,
		distributors: make(map[common.Address]Distributor),
		periodQuests: make(map[uint64][]uint64),
		eventBus:     eb,
		metrics:      ms,
		logger:       l,
	}
	for _, d := range distributors {
		b.distributors[d.Address()] = d
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load board state: %w", err)
	}
	b.state = state

	if state.Settings == nil {
		managers := slices.Clone(cfg.Managers)
		if managers == nil {
			managers = make([]common.Address, 0)
		}
		cs := &questBoardTypes.ChangeSet{
			Settings: &questBoardTypes.Settings{
				Owner:        cfg.Owner,
				Chest:        cfg.Chest,
				PlatformFee:  cfg.PlatformFee,
				MinObjective: numbers.Copy(cfg.MinObjective),
				NextId:       0,
			},
			Managers: managers,
		}
		if err := store.Commit(ctx, cs, nil); err != nil {
			return nil, fmt.Errorf("failed to initialize board settings: %w", err)
		}
		b.state.Apply(cs)
		l.Sugar().Infow("Initialized board settings",
			zap.String("owner", cfg.Owner.Hex()),
			zap.String("chest", cfg.Chest.Hex()),
			zap.Uint64("platformFee", cfg.PlatformFee),
		)
	}

	for questId, periods := range b.state.QuestPeriods {
		for periodId := range periods {
			b.indexQuestPeriod(questId, periodId)
		}
	}

	l.Sugar().Infow("Loaded quest board",
		zap.String("address", cfg.Address.Hex()),
		zap.Int("quests", len(b.state.Quests)),
		zap.Int("distributors", len(b.distributors)),
	)
	return b, nil
}

// Address returns the board's ledger account.
func (b *Board) Address() common.Address {
	return b.config.Address
}

func (b *Board) indexQuestPeriod(questId uint64, periodId uint64) {
	ids := b.periodQuests[periodId]
	i, found := slices.BinarySearch(ids, questId)
	if found {
		return
	}
	b.periodQuests[periodId] = slices.Insert(ids, i, questId)
}

func (b *Board) now() time.Time {
	return b.clock.Now()
}

func (b *Board) currentPeriod() uint64 {
	return period.Current(b.clock)
}

func (b *Board) publish(events []*eventBusTypes.Event) {
	if b.eventBus == nil {
		return
	}
	for _, e := range events {
		b.eventBus.Publish(e)
	}
}

func (b *Board) incr(name string, value float64, labels ...metricsTypes.MetricsLabel) {
	if b.metrics == nil {
		return
	}
	if err := b.metrics.Incr(name, labels, value); err != nil {
		b.logger.Sugar().Debugw("Failed to record metric", zap.String("name", name), zap.Error(err))
	}
}
