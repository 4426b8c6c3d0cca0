package questBoard

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/period"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var (
	boardAddress       = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	owner              = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	chest              = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	manager            = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	creator            = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	stranger           = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	distributorAddress = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	otherDistributor   = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	rewardToken        = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	otherToken         = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	gauge              = common.HexToAddress("0x0000000000000000000000000000000000000091")
	voterA             = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	voterB             = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

const week = period.Length

// startPeriod is the period new quests start in while the clock sits in period 10.
const startPeriod = 11 * week

func amount(s string) *big.Int {
	return numbers.MustParseAmount(s)
}

// fakeOracle returns fixed gauge biases per period and subtracts fixed voter biases.
type fakeOracle struct {
	mu       sync.Mutex
	biases   map[uint64]*big.Int
	voters   map[common.Address]*big.Int
	invalid  map[common.Address]bool
	failWith error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		biases:  make(map[uint64]*big.Int),
		voters:  make(map[common.Address]*big.Int),
		invalid: make(map[common.Address]bool),
	}
}

func (o *fakeOracle) setBias(periodId uint64, bias *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.biases[periodId] = bias
}

func (o *fakeOracle) setVoterBias(voter common.Address, bias *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.voters[voter] = bias
}

func (o *fakeOracle) ReducedBias(_ context.Context, _ common.Address, periodId uint64, excluded []common.Address) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failWith != nil {
		return nil, o.failWith
	}
	bias := new(big.Int)
	if b, ok := o.biases[periodId]; ok {
		bias.Set(b)
	}
	for _, voter := range excluded {
		if vb, ok := o.voters[voter]; ok {
			bias.Sub(bias, vb)
		}
	}
	if bias.Sign() < 0 {
		return new(big.Int), nil
	}
	return bias, nil
}

func (o *fakeOracle) IsValidGauge(_ context.Context, g common.Address) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.invalid[g], nil
}

// failingStore fails every commit after apply has run, once armed.
type failingStore struct {
	*storage.MemoryBoardStore
	fail bool
}

func (s *failingStore) Commit(ctx context.Context, cs *questBoardTypes.ChangeSet, apply func() error) error {
	if !s.fail {
		return s.MemoryBoardStore.Commit(ctx, cs, apply)
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	return errors.New("disk full")
}

type testBoard struct {
	ctx    context.Context
	board  *Board
	ledger *ledger.Ledger
	dist   *distributor.MultiMerkleDistributor
	other  *distributor.MultiMerkleDistributor
	oracle *fakeOracle
	clock  *clockwork.FakeClock
	store  *failingStore
	events chan *eventBusTypes.Event
	logger *zap.Logger
}

func setup(t *testing.T) *testBoard {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(int64(10*week+100), 0))

	lg, err := ledger.NewLedger(nil, l)
	assert.Nil(t, err)
	assert.Nil(t, lg.Mint(rewardToken, creator, amount("100000000e18")))
	assert.Nil(t, lg.Mint(otherToken, creator, amount("100000000e18")))

	store := &failingStore{MemoryBoardStore: storage.NewMemoryBoardStore()}
	dist, err := distributor.NewMultiMerkleDistributor(ctx, distributorAddress, lg, store, nil, l)
	assert.Nil(t, err)
	other, err := distributor.NewMultiMerkleDistributor(ctx, otherDistributor, lg, store, nil, l)
	assert.Nil(t, err)
	oracle := newFakeOracle()

	eb := eventBus.NewEventBus(l)
	events := make(chan *eventBusTypes.Event, 100)
	eb.Subscribe(&eventBusTypes.Consumer{
		Id:      eventBusTypes.NewConsumerId(),
		Context: ctx,
		Channel: events,
	})

	b, err := NewBoard(ctx, &BoardConfig{
		Address:  boardAddress,
		Owner:    owner,
		Chest:    chest,
		Managers: []common.Address{manager},
		Clock:    clock,
	}, store, oracle, lg, []Distributor{dist, other}, eb, nil, l)
	assert.Nil(t, err)

	assert.Nil(t, b.WhitelistToken(ctx, owner, rewardToken, amount("1e17")))
	assert.Nil(t, b.InitiateDistributor(ctx, owner, distributorAddress))

	return &testBoard{
		ctx:    ctx,
		board:  b,
		ledger: lg,
		dist:   dist,
		other:  other,
		oracle: oracle,
		clock:  clock,
		store:  store,
		events: events,
		logger: l,
	}
}

// questParams builds valid creation parameters for the given terms.
func questParams(objective *big.Int, rewardPerVote *big.Int, duration uint64) *CreateQuestParams {
	perPeriod := numbers.RewardPerPeriod(objective, rewardPerVote)
	total := new(big.Int).Mul(perPeriod, new(big.Int).SetUint64(duration))
	return &CreateQuestParams{
		Gauge:             gauge,
		RewardToken:       rewardToken,
		Duration:          duration,
		ObjectiveVotes:    objective,
		RewardPerVote:     rewardPerVote,
		TotalRewardAmount: total,
		FeeAmount:         numbers.FeeAmount(total, DefaultPlatformFee),
	}
}

func (tb *testBoard) createQuest(t *testing.T, objective string, rewardPerVote string, duration uint64) uint64 {
	id, err := tb.board.CreateQuest(tb.ctx, creator, questParams(amount(objective), amount(rewardPerVote), duration))
	assert.Nil(t, err)
	return id
}

// advanceTo moves the clock into the given period.
func (tb *testBoard) advanceTo(periodId uint64) {
	target := time.Unix(int64(periodId+100), 0)
	tb.clock.Advance(target.Sub(tb.clock.Now()))
}

func (tb *testBoard) drainEvents() []*eventBusTypes.Event {
	events := make([]*eventBusTypes.Event, 0)
	for {
		select {
		case e := <-tb.events:
			events = append(events, e)
		default:
			return events
		}
	}
}

// assertConservation checks that the board holds exactly what its quests still commit.
func (tb *testBoard) assertConservation(t *testing.T) {
	committed := new(big.Int)
	for id := uint64(0); id < tb.board.GetQuestCount(); id++ {
		q, err := tb.board.GetQuest(id)
		assert.Nil(t, err)
		periods, err := tb.board.GetAllQuestPeriodsForQuestId(id)
		assert.Nil(t, err)

		sum := new(big.Int)
		for _, qp := range periods {
			sum.Add(sum, qp.CommittedFunds())
		}
		assert.Equal(t, q.CommittedFunds().String(), sum.String(), "quest %d", id)
		committed.Add(committed, q.CommittedFunds())
	}
	assert.Equal(t, committed.String(), tb.ledger.BalanceOf(rewardToken, boardAddress).String())
}

func Test_NewBoard(t *testing.T) {
	t.Run("Should initialize settings on an empty store", func(t *testing.T) {
		tb := setup(t)
		settings := tb.board.GetSettings()
		assert.Equal(t, owner, settings.Owner)
		assert.Equal(t, chest, settings.Chest)
		assert.Equal(t, distributorAddress, settings.Distributor)
		assert.Equal(t, DefaultPlatformFee, settings.PlatformFee)
		assert.Equal(t, DefaultMinObjective.String(), settings.MinObjective.String())
		assert.Equal(t, uint64(0), settings.NextId)
		assert.Equal(t, []common.Address{manager}, tb.board.GetManagers())
		assert.Equal(t, startPeriod-week, tb.board.GetCurrentPeriod())
	})
	t.Run("Should reload state and the period index from the store", func(t *testing.T) {
		tb := setup(t)
		id := tb.createQuest(t, "1000e18", "1e18", 2)

		reloaded, err := NewBoard(tb.ctx, &BoardConfig{
			Address: boardAddress,
			Owner:   stranger,
			Chest:   stranger,
			Clock:   tb.clock,
		}, tb.store, tb.oracle, tb.ledger, []Distributor{tb.dist}, nil, nil, tb.logger)
		assert.Nil(t, err)

		assert.Equal(t, owner, reloaded.GetSettings().Owner)
		assert.Equal(t, []uint64{id}, reloaded.GetQuestIdsForPeriod(startPeriod))
		assert.Equal(t, []uint64{id}, reloaded.GetQuestIdsForPeriod(startPeriod+week))
		assert.Equal(t, uint64(1), reloaded.GetQuestCount())
	})
	t.Run("Should reject a config without an owner", func(t *testing.T) {
		tb := setup(t)
		_, err := NewBoard(tb.ctx, &BoardConfig{Address: boardAddress, Chest: chest}, storage.NewMemoryBoardStore(), tb.oracle, tb.ledger, nil, nil, nil, tb.logger)
		assert.NotNil(t, err)
	})
	t.Run("Should reject a platform fee above the maximum", func(t *testing.T) {
		tb := setup(t)
		_, err := NewBoard(tb.ctx, &BoardConfig{Address: boardAddress, Owner: owner, Chest: chest, PlatformFee: 501}, storage.NewMemoryBoardStore(), tb.oracle, tb.ledger, nil, nil, nil, tb.logger)
		assert.NotNil(t, err)
	})
}

func Test_Access(t *testing.T) {
	t.Run("Should approve and remove managers", func(t *testing.T) {
		tb := setup(t)
		assert.Nil(t, tb.board.ApproveManager(tb.ctx, owner, stranger))
		assert.True(t, tb.board.IsManager(stranger))

		assert.True(t, errors.Is(tb.board.ApproveManager(tb.ctx, owner, stranger), ErrAlreadyManager))
		assert.True(t, errors.Is(tb.board.ApproveManager(tb.ctx, owner, owner), ErrAlreadyManager))
		assert.True(t, errors.Is(tb.board.ApproveManager(tb.ctx, owner, common.Address{}), ErrZeroAddress))

		assert.Nil(t, tb.board.RemoveManager(tb.ctx, owner, stranger))
		assert.False(t, tb.board.IsManager(stranger))
		assert.True(t, errors.Is(tb.board.RemoveManager(tb.ctx, owner, stranger), ErrNotManager))
	})
	t.Run("Should only let the owner manage managers", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.ApproveManager(tb.ctx, manager, stranger), ErrCallerNotOwner))
		assert.True(t, errors.Is(tb.board.RemoveManager(tb.ctx, stranger, manager), ErrUnauthorized))
	})
	t.Run("Should transfer ownership", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.TransferOwnership(tb.ctx, owner, common.Address{}), ErrZeroAddress))
		assert.Nil(t, tb.board.TransferOwnership(tb.ctx, owner, stranger))
		assert.Equal(t, stranger, tb.board.GetSettings().Owner)
		assert.True(t, errors.Is(tb.board.SetPlatformFee(tb.ctx, owner, 100), ErrCallerNotOwner))
		assert.Nil(t, tb.board.SetPlatformFee(tb.ctx, stranger, 100))
	})
}

func Test_Admin(t *testing.T) {
	t.Run("Should whitelist tokens", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, tb.board.IsWhitelisted(rewardToken))
		assert.False(t, tb.board.IsWhitelisted(otherToken))

		err := tb.board.WhitelistMultipleTokens(tb.ctx, manager, []common.Address{otherToken}, []*big.Int{amount("2e18")})
		assert.Nil(t, err)
		minimum, ok := tb.board.GetMinRewardPerVote(otherToken)
		assert.True(t, ok)
		assert.Equal(t, amount("2e18").String(), minimum.String())
		assert.Len(t, tb.board.GetWhitelistedTokens(), 2)
	})
	t.Run("Should reject invalid whitelist requests", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.WhitelistToken(tb.ctx, stranger, otherToken, amount("1e18")), ErrCallerNotAllowed))
		assert.True(t, errors.Is(tb.board.WhitelistToken(tb.ctx, owner, rewardToken, amount("1e18")), ErrAlreadyWhitelisted))
		assert.True(t, errors.Is(tb.board.WhitelistToken(tb.ctx, owner, otherToken, big.NewInt(0)), ErrNullAmount))
		assert.True(t, errors.Is(tb.board.WhitelistToken(tb.ctx, owner, common.Address{}, amount("1e18")), ErrZeroAddress))
		assert.True(t, errors.Is(tb.board.WhitelistMultipleTokens(tb.ctx, owner, nil, nil), ErrEmptyList))
		assert.True(t, errors.Is(tb.board.WhitelistMultipleTokens(tb.ctx, owner, []common.Address{otherToken}, nil), ErrLengthMismatch))
	})
	t.Run("Should whitelist nothing when one token is invalid", func(t *testing.T) {
		tb := setup(t)
		third := common.HexToAddress("0x00000000000000000000000000000000000000f3")
		err := tb.board.WhitelistMultipleTokens(tb.ctx, owner, []common.Address{otherToken, third}, []*big.Int{amount("1e18"), big.NewInt(0)})
		assert.True(t, errors.Is(err, ErrNullAmount))
		assert.False(t, tb.board.IsWhitelisted(otherToken))
	})
	t.Run("Should update and remove a whitelisted token", func(t *testing.T) {
		tb := setup(t)
		assert.Nil(t, tb.board.UpdateRewardToken(tb.ctx, manager, rewardToken, amount("5e17")))
		minimum, _ := tb.board.GetMinRewardPerVote(rewardToken)
		assert.Equal(t, amount("5e17").String(), minimum.String())

		assert.True(t, errors.Is(tb.board.UpdateRewardToken(tb.ctx, owner, otherToken, amount("1e18")), ErrTokenNotWhitelisted))
		assert.True(t, errors.Is(tb.board.RemoveWhitelistedToken(tb.ctx, manager, rewardToken), ErrCallerNotOwner))
		assert.Nil(t, tb.board.RemoveWhitelistedToken(tb.ctx, owner, rewardToken))
		assert.False(t, tb.board.IsWhitelisted(rewardToken))
	})
	t.Run("Should bound the platform fee and min objective", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.SetPlatformFee(tb.ctx, owner, 501), ErrFeeTooHigh))
		assert.Nil(t, tb.board.SetPlatformFee(tb.ctx, owner, 500))
		assert.Equal(t, uint64(500), tb.board.GetSettings().PlatformFee)

		assert.True(t, errors.Is(tb.board.SetMinObjective(tb.ctx, owner, big.NewInt(0)), ErrNullAmount))
		assert.Nil(t, tb.board.SetMinObjective(tb.ctx, owner, amount("5000e18")))
		assert.Equal(t, amount("5000e18").String(), tb.board.GetSettings().MinObjective.String())
	})
	t.Run("Should update the chest", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.UpdateChest(tb.ctx, owner, common.Address{}), ErrZeroAddress))
		assert.Nil(t, tb.board.UpdateChest(tb.ctx, owner, stranger))
		assert.Equal(t, stranger, tb.board.GetSettings().Chest)
	})
	t.Run("Should set the distributor once and update it afterwards", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.InitiateDistributor(tb.ctx, owner, otherDistributor), ErrDistributorAlreadySet))
		assert.True(t, errors.Is(tb.board.UpdateDistributor(tb.ctx, owner, stranger), ErrUnknownDistributor))

		questId := tb.createQuest(t, "1000e18", "1e18", 1)
		assert.Nil(t, tb.board.UpdateDistributor(tb.ctx, owner, otherDistributor))
		assert.Equal(t, otherDistributor, tb.board.GetSettings().Distributor)

		q, err := tb.board.GetQuest(questId)
		assert.Nil(t, err)
		assert.Equal(t, distributorAddress, q.Distributor)
	})
	t.Run("Should only recover the surplus of non-whitelisted tokens", func(t *testing.T) {
		tb := setup(t)
		tb.createQuest(t, "1000e18", "1e18", 2)

		_, err := tb.board.RecoverERC20(tb.ctx, owner, rewardToken)
		assert.True(t, errors.Is(err, ErrCannotRecoverToken))

		// an airdrop on top of the escrow is recoverable once the token is removed
		assert.Nil(t, tb.ledger.Mint(rewardToken, boardAddress, amount("50e18")))
		assert.Nil(t, tb.board.RemoveWhitelistedToken(tb.ctx, owner, rewardToken))

		recovered, err := tb.board.RecoverERC20(tb.ctx, owner, rewardToken)
		assert.Nil(t, err)
		assert.Equal(t, amount("50e18").String(), recovered.String())
		assert.Equal(t, amount("50e18").String(), tb.ledger.BalanceOf(rewardToken, owner).String())
		tb.assertConservation(t)

		recovered, err = tb.board.RecoverERC20(tb.ctx, owner, rewardToken)
		assert.Nil(t, err)
		assert.Equal(t, int64(0), recovered.Int64())
	})
}
