package gormStore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/questboard/internal/tests"
	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/postgres"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	chest   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	creator = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	gauge   = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	token   = common.HexToAddress("0x00000000000000000000000000000000000000a5")
	voterA  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	voterB  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func setup(t *testing.T, name string) (*GormBoardStore, *zap.Logger) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	db, err := tests.GetSqliteDatabaseConnection(name, l)
	if err != nil {
		t.Fatalf("Failed to setup database: %v", err)
	}
	return NewGormBoardStore(db, l), l
}

func seedChangeSet() *questBoardTypes.ChangeSet {
	return &questBoardTypes.ChangeSet{
		Settings: &questBoardTypes.Settings{
			Owner:        owner,
			Chest:        chest,
			PlatformFee:  400,
			MinObjective: numbers.MustParseAmount("1000e18"),
			NextId:       1,
		},
		Managers:  []common.Address{creator},
		Whitelist: map[common.Address]*big.Int{token: numbers.MustParseAmount("0.1e18")},
		Quests: []*questBoardTypes.Quest{{
			Id:                0,
			Creator:           creator,
			Gauge:             gauge,
			RewardToken:       token,
			Duration:          2,
			TotalRewardAmount: numbers.MustParseAmount("3600000e18"),
			PeriodStart:       604800,
			DistributedAmount: big.NewInt(0),
			WithdrawnAmount:   big.NewInt(0),
		}},
		QuestPeriods: []*questBoardTypes.QuestPeriod{
			{
				QuestId:                 0,
				PeriodId:                604800,
				ObjectiveVotes:          numbers.MustParseAmount("150000e18"),
				RewardPerVote:           numbers.MustParseAmount("6e18"),
				RewardAmountPerPeriod:   numbers.MustParseAmount("900000e18"),
				RewardAmountDistributed: big.NewInt(0),
				WithdrawableAmount:      big.NewInt(0),
				State:                   questBoardTypes.PeriodState_Active,
			},
			{
				QuestId:                 0,
				PeriodId:                1209600,
				ObjectiveVotes:          numbers.MustParseAmount("150000e18"),
				RewardPerVote:           numbers.MustParseAmount("6e18"),
				RewardAmountPerPeriod:   numbers.MustParseAmount("900000e18"),
				RewardAmountDistributed: big.NewInt(0),
				WithdrawableAmount:      big.NewInt(0),
				State:                   questBoardTypes.PeriodState_Active,
			},
		},
		Blacklists: map[uint64][]common.Address{0: {voterB, voterA}},
	}
}

func Test_GormBoardStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should load an empty database", func(t *testing.T) {
		store, _ := setup(t, "gormStore_empty")

		state, err := store.Load(ctx)
		assert.Nil(t, err)
		assert.Nil(t, state.Settings)
		assert.Len(t, state.Quests, 0)
	})

	t.Run("Should round trip a change set", func(t *testing.T) {
		store, _ := setup(t, "gormStore_roundTrip")

		err := store.Commit(ctx, seedChangeSet(), nil)
		assert.Nil(t, err)

		state, err := store.Load(ctx)
		assert.Nil(t, err)

		assert.Equal(t, owner, state.Settings.Owner)
		assert.Equal(t, uint64(400), state.Settings.PlatformFee)
		assert.Equal(t, numbers.MustParseAmount("1000e18").String(), state.Settings.MinObjective.String())
		assert.Equal(t, []common.Address{creator}, state.Managers)
		assert.Equal(t, numbers.MustParseAmount("0.1e18").String(), state.Whitelist[token].String())

		q := state.Quests[0]
		assert.NotNil(t, q)
		assert.Equal(t, gauge, q.Gauge)
		assert.Equal(t, numbers.MustParseAmount("3600000e18").String(), q.TotalRewardAmount.String())

		assert.Len(t, state.QuestPeriods[0], 2)
		assert.Equal(t, questBoardTypes.PeriodState_Active, state.QuestPeriods[0][604800].State)

		// insertion order is kept
		assert.Equal(t, []common.Address{voterB, voterA}, state.Blacklists[0])
	})

	t.Run("Should update existing rows and replace sets", func(t *testing.T) {
		store, _ := setup(t, "gormStore_update")
		assert.Nil(t, store.Commit(ctx, seedChangeSet(), nil))

		closed := seedChangeSet().QuestPeriods[0]
		closed.State = questBoardTypes.PeriodState_Closed
		closed.RewardAmountDistributed = numbers.MustParseAmount("16000e18")
		closed.WithdrawableAmount = numbers.MustParseAmount("884000e18")

		err := store.Commit(ctx, &questBoardTypes.ChangeSet{
			Managers:     []common.Address{},
			Whitelist:    map[common.Address]*big.Int{token: nil},
			QuestPeriods: []*questBoardTypes.QuestPeriod{closed},
			Blacklists:   map[uint64][]common.Address{0: {voterA}},
		}, nil)
		assert.Nil(t, err)

		state, err := store.Load(ctx)
		assert.Nil(t, err)
		assert.Len(t, state.Managers, 0)
		assert.Len(t, state.Whitelist, 0)
		assert.Equal(t, questBoardTypes.PeriodState_Closed, state.QuestPeriods[0][604800].State)
		assert.Equal(t, numbers.MustParseAmount("884000e18").String(), state.QuestPeriods[0][604800].WithdrawableAmount.String())
		assert.Equal(t, questBoardTypes.PeriodState_Active, state.QuestPeriods[0][1209600].State)
		assert.Equal(t, []common.Address{voterA}, state.Blacklists[0])
	})

	t.Run("Should roll back when apply fails", func(t *testing.T) {
		store, _ := setup(t, "gormStore_rollback")

		err := store.Commit(ctx, seedChangeSet(), func() error {
			return errors.New("transfer failed")
		})
		assert.NotNil(t, err)

		state, err := store.Load(ctx)
		assert.Nil(t, err)
		assert.Nil(t, state.Settings)
		assert.Len(t, state.Quests, 0)
	})

	t.Run("Should list pending periods", func(t *testing.T) {
		store, _ := setup(t, "gormStore_pending")
		assert.Nil(t, store.Commit(ctx, seedChangeSet(), nil))

		ids, err := store.ListPendingPeriodIds(ctx, 1209600)
		assert.Nil(t, err)
		assert.Equal(t, []uint64{604800}, ids)

		ids, err = store.ListPendingPeriodIds(ctx, 604800*10)
		assert.Nil(t, err)
		assert.Equal(t, []uint64{604800, 1209600}, ids)
	})
}

func Test_GormDistributorStore(t *testing.T) {
	ctx := context.Background()
	d1 := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	d2 := common.HexToAddress("0x00000000000000000000000000000000000000d2")
	root := common.HexToHash("0x0102")

	t.Run("Should write distributor records with the board change set", func(t *testing.T) {
		store, _ := setup(t, "gormStore_distributorBoard")

		cs := seedChangeSet()
		cs.Distributors = map[common.Address]*distributor.Records{
			d1: {
				Quests: []*distributor.QuestRecord{{QuestId: 0, Token: token}},
				Periods: []*distributor.PeriodRecord{{
					QuestId:       0,
					PeriodId:      604800,
					Funded:        numbers.MustParseAmount("16000e18"),
					TotalAmount:   big.NewInt(0),
					ClaimedAmount: big.NewInt(0),
				}},
			},
		}
		assert.Nil(t, store.Commit(ctx, cs, nil))

		records, err := store.LoadDistributor(ctx, d1)
		assert.Nil(t, err)
		assert.Equal(t, []*distributor.QuestRecord{{QuestId: 0, Token: token}}, records.Quests)
		assert.Len(t, records.Periods, 1)
		assert.Equal(t, numbers.MustParseAmount("16000e18").String(), records.Periods[0].Funded.String())
		assert.Equal(t, common.Hash{}, records.Periods[0].Root)

		other, err := store.LoadDistributor(ctx, d2)
		assert.Nil(t, err)
		assert.True(t, other.IsEmpty())
	})
	t.Run("Should upsert periods and add claims", func(t *testing.T) {
		store, _ := setup(t, "gormStore_distributorClaims")

		period := &distributor.PeriodRecord{
			QuestId:       0,
			PeriodId:      604800,
			Funded:        big.NewInt(500),
			TotalAmount:   big.NewInt(0),
			ClaimedAmount: big.NewInt(0),
		}
		assert.Nil(t, store.CommitDistributor(ctx, d1, &distributor.Records{
			Quests:  []*distributor.QuestRecord{{QuestId: 0, Token: token}},
			Periods: []*distributor.PeriodRecord{period},
		}, nil))

		period.TotalAmount = big.NewInt(500)
		period.ClaimedAmount = big.NewInt(100)
		period.Root = root
		claim := &distributor.ClaimRecord{QuestId: 0, PeriodId: 604800, Index: 2}
		assert.Nil(t, store.CommitDistributor(ctx, d1, &distributor.Records{
			Periods: []*distributor.PeriodRecord{period},
			Claims:  []*distributor.ClaimRecord{claim},
		}, nil))
		// writing the same claim again is a no-op
		assert.Nil(t, store.CommitDistributor(ctx, d1, &distributor.Records{Claims: []*distributor.ClaimRecord{claim}}, nil))

		records, err := store.LoadDistributor(ctx, d1)
		assert.Nil(t, err)
		assert.Len(t, records.Periods, 1)
		assert.Equal(t, root, records.Periods[0].Root)
		assert.Equal(t, int64(500), records.Periods[0].TotalAmount.Int64())
		assert.Equal(t, int64(100), records.Periods[0].ClaimedAmount.Int64())
		assert.Equal(t, []*distributor.ClaimRecord{claim}, records.Claims)
	})
	t.Run("Should roll back distributor records when apply fails", func(t *testing.T) {
		store, _ := setup(t, "gormStore_distributorRollback")

		err := store.CommitDistributor(ctx, d1, &distributor.Records{
			Claims: []*distributor.ClaimRecord{{QuestId: 0, PeriodId: 604800, Index: 1}},
		}, func() error {
			return errors.New("transfer failed")
		})
		assert.NotNil(t, err)

		records, err := store.LoadDistributor(ctx, d1)
		assert.Nil(t, err)
		assert.True(t, records.IsEmpty())
	})
}

func Test_GormBoardStorePostgres(t *testing.T) {
	dbConfig := tests.GetDbConfigFromEnv()
	if dbConfig.Host == "" {
		t.Skip("QUESTBOARD_DATABASE_HOST is not set")
	}
	ctx := context.Background()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	dbName, rawDb, grm, err := postgres.GetTestPostgresDatabase(*dbConfig, tests.GetConfig(), l)
	if err != nil {
		t.Fatalf("Failed to setup database: %v", err)
	}
	t.Cleanup(func() {
		_ = rawDb.Close()
		_ = postgres.DeleteTestDatabase(postgres.PostgresConfigFromDbConfig(dbConfig), dbName)
	})

	store := NewGormBoardStore(grm, l)
	assert.Nil(t, store.Commit(ctx, seedChangeSet(), nil))

	err = store.Commit(ctx, seedChangeSet(), nil)
	assert.Nil(t, err, "committing the same rows twice upserts")

	state, err := store.Load(ctx)
	assert.Nil(t, err)
	assert.Equal(t, []common.Address{voterB, voterA}, state.Blacklists[0])

	ids, err := store.ListPendingPeriodIds(ctx, 604800*10)
	assert.Nil(t, err)
	assert.Equal(t, []uint64{604800, 1209600}, ids)
}
