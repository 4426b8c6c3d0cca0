package questBoard

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func Test_CreateQuest(t *testing.T) {
	t.Run("Should create a quest and escrow its rewards", func(t *testing.T) {
		tb := setup(t)
		params := questParams(amount("150000e18"), amount("6e18"), 4)
		params.Blacklist = []common.Address{voterA}

		questId, err := tb.board.CreateQuest(tb.ctx, creator, params)
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), questId)

		q, err := tb.board.GetQuest(questId)
		assert.Nil(t, err)
		assert.Equal(t, creator, q.Creator)
		assert.Equal(t, distributorAddress, q.Distributor)
		assert.Equal(t, startPeriod, q.PeriodStart)
		assert.Equal(t, uint64(4), q.Duration)
		assert.Equal(t, amount("3600000e18").String(), q.TotalRewardAmount.String())

		periodIds, err := tb.board.GetAllPeriodsForQuestId(questId)
		assert.Nil(t, err)
		assert.Equal(t, []uint64{startPeriod, startPeriod + week, startPeriod + 2*week, startPeriod + 3*week}, periodIds)

		qp, err := tb.board.GetQuestPeriod(questId, startPeriod+week)
		assert.Nil(t, err)
		assert.Equal(t, amount("900000e18").String(), qp.RewardAmountPerPeriod.String())
		assert.Equal(t, questBoardTypes.PeriodState_Active, qp.State)
		assert.Equal(t, int64(0), qp.WithdrawableAmount.Int64())

		blacklist, err := tb.board.GetQuestBlacklist(questId)
		assert.Nil(t, err)
		assert.Equal(t, []common.Address{voterA}, blacklist)

		assert.Equal(t, amount("3600000e18").String(), tb.ledger.BalanceOf(rewardToken, boardAddress).String())
		assert.Equal(t, amount("144000e18").String(), tb.ledger.BalanceOf(rewardToken, chest).String())
		token, ok := tb.dist.QuestToken(questId)
		assert.True(t, ok)
		assert.Equal(t, rewardToken, token)

		events := tb.drainEvents()
		assert.Len(t, events, 1)
		assert.Equal(t, eventBusTypes.Event_QuestCreated, events[0].Name)
		data := events[0].Data.(*eventBusTypes.QuestEventData)
		assert.Equal(t, questId, data.QuestId)
		assert.Len(t, data.PeriodIds, 4)

		tb.assertConservation(t)
	})
	t.Run("Should assign increasing quest ids", func(t *testing.T) {
		tb := setup(t)
		assert.Equal(t, uint64(0), tb.createQuest(t, "1000e18", "1e18", 1))
		assert.Equal(t, uint64(1), tb.createQuest(t, "1000e18", "1e18", 1))
		assert.Equal(t, []uint64{0, 1}, tb.board.GetQuestIdsForPeriod(startPeriod))
		assert.Equal(t, uint64(2), tb.board.GetQuestCount())
	})
	t.Run("Should reject invalid quest terms", func(t *testing.T) {
		tb := setup(t)
		cases := []struct {
			name   string
			mutate func(p *CreateQuestParams)
			err    error
		}{
			{"zero gauge", func(p *CreateQuestParams) { p.Gauge = common.Address{} }, ErrZeroAddress},
			{"token not whitelisted", func(p *CreateQuestParams) { p.RewardToken = otherToken }, ErrTokenNotWhitelisted},
			{"zero duration", func(p *CreateQuestParams) { p.Duration = 0 }, ErrIncorrectDuration},
			{"objective too low", func(p *CreateQuestParams) { p.ObjectiveVotes = amount("999e18") }, ErrObjectiveTooLow},
			{"reward per vote too low", func(p *CreateQuestParams) { p.RewardPerVote = amount("1e16") }, ErrRewardPerVoteTooLow},
			{"null total", func(p *CreateQuestParams) { p.TotalRewardAmount = big.NewInt(0) }, ErrNullAmount},
			{"null fee", func(p *CreateQuestParams) { p.FeeAmount = nil }, ErrNullAmount},
			{"incorrect total", func(p *CreateQuestParams) { p.TotalRewardAmount = amount("1999e18") }, ErrIncorrectTotal},
			{"incorrect fee", func(p *CreateQuestParams) { p.FeeAmount = amount("1e18") }, ErrIncorrectFee},
			{"duplicated blacklist", func(p *CreateQuestParams) { p.Blacklist = []common.Address{voterA, voterA} }, ErrAlreadyBlacklisted},
			{"zero address blacklisted", func(p *CreateQuestParams) { p.Blacklist = []common.Address{{}} }, ErrZeroAddress},
		}
		for _, c := range cases {
			params := questParams(amount("1000e18"), amount("1e18"), 2)
			c.mutate(params)
			_, err := tb.board.CreateQuest(tb.ctx, creator, params)
			assert.True(t, errors.Is(err, c.err), "%s: %v", c.name, err)
		}
		assert.Equal(t, uint64(0), tb.board.GetQuestCount())
		assert.Equal(t, int64(0), tb.ledger.BalanceOf(rewardToken, boardAddress).Int64())
	})
	t.Run("Should reject an invalid gauge", func(t *testing.T) {
		tb := setup(t)
		tb.oracle.invalid[gauge] = true
		_, err := tb.board.CreateQuest(tb.ctx, creator, questParams(amount("1000e18"), amount("1e18"), 1))
		assert.True(t, errors.Is(err, ErrInvalidGauge))
		assert.Equal(t, ErrorKind_InvalidReference, KindOf(err))
	})
	t.Run("Should require a distributor", func(t *testing.T) {
		tb := setup(t)
		b, err := NewBoard(tb.ctx, &BoardConfig{
			Address: boardAddress,
			Owner:   owner,
			Chest:   chest,
			Clock:   tb.clock,
		}, storage.NewMemoryBoardStore(), tb.oracle, tb.ledger, []Distributor{tb.dist}, nil, nil, tb.logger)
		assert.Nil(t, err)
		assert.Nil(t, b.WhitelistToken(tb.ctx, owner, rewardToken, amount("1e17")))

		_, err = b.CreateQuest(tb.ctx, creator, questParams(amount("1000e18"), amount("1e18"), 1))
		assert.True(t, errors.Is(err, ErrNoDistributor))
		assert.Equal(t, ErrorKind_ConfigurationMissing, KindOf(err))
	})
	t.Run("Should fail without moving funds when the creator cannot pay", func(t *testing.T) {
		tb := setup(t)
		_, err := tb.board.CreateQuest(tb.ctx, stranger, questParams(amount("1000e18"), amount("1e18"), 1))
		assert.True(t, errors.Is(err, ErrInsufficientFunds))
		assert.Equal(t, uint64(0), tb.board.GetQuestCount())
		_, ok := tb.dist.QuestToken(0)
		assert.False(t, ok)
	})
	t.Run("Should reject quests on a killed board", func(t *testing.T) {
		tb := setup(t)
		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))
		_, err := tb.board.CreateQuest(tb.ctx, creator, questParams(amount("1000e18"), amount("1e18"), 1))
		assert.True(t, errors.Is(err, ErrKilled))
		assert.Equal(t, ErrorKind_SystemHalted, KindOf(err))
	})
}

func Test_IncreaseQuestDuration(t *testing.T) {
	t.Run("Should append periods copying the last period's terms", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)

		err := tb.board.IncreaseQuestDuration(tb.ctx, creator, questId, 2, amount("2000e18"), amount("80e18"))
		assert.Nil(t, err)

		q, _ := tb.board.GetQuest(questId)
		assert.Equal(t, uint64(4), q.Duration)
		assert.Equal(t, amount("4000e18").String(), q.TotalRewardAmount.String())

		periodIds, _ := tb.board.GetAllPeriodsForQuestId(questId)
		assert.Equal(t, []uint64{startPeriod, startPeriod + week, startPeriod + 2*week, startPeriod + 3*week}, periodIds)
		assert.Equal(t, []uint64{questId}, tb.board.GetQuestIdsForPeriod(startPeriod+3*week))

		qp, _ := tb.board.GetQuestPeriod(questId, startPeriod+3*week)
		assert.Equal(t, amount("1000e18").String(), qp.RewardAmountPerPeriod.String())
		tb.assertConservation(t)
	})
	t.Run("Should reject incorrect amounts", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)

		err := tb.board.IncreaseQuestDuration(tb.ctx, creator, questId, 0, amount("1000e18"), amount("40e18"))
		assert.True(t, errors.Is(err, ErrIncorrectDuration))
		err = tb.board.IncreaseQuestDuration(tb.ctx, creator, questId, 1, amount("900e18"), amount("36e18"))
		assert.True(t, errors.Is(err, ErrIncorrectTotal))
		err = tb.board.IncreaseQuestDuration(tb.ctx, creator, questId, 1, amount("1000e18"), amount("1e18"))
		assert.True(t, errors.Is(err, ErrIncorrectFee))
		err = tb.board.IncreaseQuestDuration(tb.ctx, creator, questId, 1, big.NewInt(0), amount("40e18"))
		assert.True(t, errors.Is(err, ErrNullAmount))
	})
	t.Run("Should only accept top-ups from the creator", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		err := tb.board.IncreaseQuestDuration(tb.ctx, stranger, questId, 1, amount("1000e18"), amount("40e18"))
		assert.True(t, errors.Is(err, ErrCallerNotCreator))
		err = tb.board.IncreaseQuestDuration(tb.ctx, creator, 42, 1, amount("1000e18"), amount("40e18"))
		assert.True(t, errors.Is(err, ErrUnknownQuest))
	})
	t.Run("Should reject top-ups of an expired quest", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		tb.advanceTo(startPeriod + 2*week)

		err := tb.board.IncreaseQuestDuration(tb.ctx, creator, questId, 1, amount("1000e18"), amount("40e18"))
		assert.True(t, errors.Is(err, ErrExpiredQuest))
	})
}

func Test_IncreaseQuestReward(t *testing.T) {
	t.Run("Should raise the reward per vote of current and future periods only", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 3)
		tb.advanceTo(startPeriod + week)

		err := tb.board.IncreaseQuestReward(tb.ctx, creator, questId, amount("2e18"), amount("2000e18"), amount("80e18"))
		assert.Nil(t, err)

		past, _ := tb.board.GetQuestPeriod(questId, startPeriod)
		assert.Equal(t, amount("1e18").String(), past.RewardPerVote.String())
		assert.Equal(t, amount("1000e18").String(), past.RewardAmountPerPeriod.String())

		for _, periodId := range []uint64{startPeriod + week, startPeriod + 2*week} {
			qp, _ := tb.board.GetQuestPeriod(questId, periodId)
			assert.Equal(t, amount("2e18").String(), qp.RewardPerVote.String())
			assert.Equal(t, amount("2000e18").String(), qp.RewardAmountPerPeriod.String())
		}

		q, _ := tb.board.GetQuest(questId)
		assert.Equal(t, amount("5000e18").String(), q.TotalRewardAmount.String())
		tb.assertConservation(t)
	})
	t.Run("Should not touch settled periods", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		tb.advanceTo(startPeriod + week)
		tb.oracle.setBias(startPeriod, amount("500e18"))
		_, err := tb.board.ClosePeriod(tb.ctx, manager, startPeriod)
		assert.Nil(t, err)
		before, _ := tb.board.GetQuestPeriod(questId, startPeriod)

		err = tb.board.IncreaseQuestReward(tb.ctx, creator, questId, amount("3e18"), amount("2000e18"), amount("80e18"))
		assert.Nil(t, err)

		after, _ := tb.board.GetQuestPeriod(questId, startPeriod)
		assert.Equal(t, before, after)
		tb.assertConservation(t)
	})
	t.Run("Should require a strictly higher reward per vote", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		err := tb.board.IncreaseQuestReward(tb.ctx, creator, questId, amount("1e18"), amount("1e18"), amount("1e18"))
		assert.True(t, errors.Is(err, ErrLowerRewardPerVote))
		assert.Equal(t, ErrorKind_StateConflict, KindOf(err))
	})
	t.Run("Should require the exact added reward", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		err := tb.board.IncreaseQuestReward(tb.ctx, creator, questId, amount("2e18"), amount("1000e18"), amount("40e18"))
		assert.True(t, errors.Is(err, ErrIncorrectTotal))
	})
}

func Test_IncreaseQuestObjective(t *testing.T) {
	t.Run("Should raise the objective of open periods", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)

		err := tb.board.IncreaseQuestObjective(tb.ctx, creator, questId, amount("1500e18"), amount("1000e18"), amount("40e18"))
		assert.Nil(t, err)

		periods, _ := tb.board.GetAllQuestPeriodsForQuestId(questId)
		for _, qp := range periods {
			assert.Equal(t, amount("1500e18").String(), qp.ObjectiveVotes.String())
			assert.Equal(t, amount("1500e18").String(), qp.RewardAmountPerPeriod.String())
		}
		events := tb.drainEvents()
		assert.Equal(t, eventBusTypes.Event_QuestObjectiveIncreased, events[len(events)-1].Name)
		tb.assertConservation(t)
	})
	t.Run("Should require a strictly higher objective", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		err := tb.board.IncreaseQuestObjective(tb.ctx, creator, questId, amount("1000e18"), amount("1e18"), amount("1e18"))
		assert.True(t, errors.Is(err, ErrLowerObjective))
	})
}

func Test_Blacklist(t *testing.T) {
	t.Run("Should add and remove voters", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)

		assert.Nil(t, tb.board.AddMultipleToBlacklist(tb.ctx, creator, questId, []common.Address{voterA, voterB}))
		list, _ := tb.board.GetQuestBlacklist(questId)
		assert.Equal(t, []common.Address{voterA, voterB}, list)

		assert.Nil(t, tb.board.RemoveFromBlacklist(tb.ctx, creator, questId, voterA))
		list, _ = tb.board.GetQuestBlacklist(questId)
		assert.Equal(t, []common.Address{voterB}, list)

		// removing a voter that is not listed does nothing
		assert.Nil(t, tb.board.RemoveFromBlacklist(tb.ctx, creator, questId, voterA))
	})
	t.Run("Should add every voter or none", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		assert.Nil(t, tb.board.AddToBlacklist(tb.ctx, creator, questId, voterA))

		err := tb.board.AddMultipleToBlacklist(tb.ctx, creator, questId, []common.Address{voterB, voterA})
		assert.True(t, errors.Is(err, ErrAlreadyBlacklisted))
		list, _ := tb.board.GetQuestBlacklist(questId)
		assert.Equal(t, []common.Address{voterA}, list)

		assert.True(t, errors.Is(tb.board.AddMultipleToBlacklist(tb.ctx, creator, questId, nil), ErrEmptyList))
	})
	t.Run("Should only let the creator edit the blacklist", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		assert.True(t, errors.Is(tb.board.AddToBlacklist(tb.ctx, owner, questId, voterA), ErrCallerNotCreator))
		assert.True(t, errors.Is(tb.board.RemoveFromBlacklist(tb.ctx, stranger, questId, voterA), ErrCallerNotCreator))
	})
}
