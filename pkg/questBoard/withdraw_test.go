package questBoard

import (
	"errors"
	"testing"

	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func Test_WithdrawUnusedRewards(t *testing.T) {
	t.Run("Should withdraw the unused rewards of settled periods", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "15000e18", "2e18", 3)
		tb.oracle.setBias(startPeriod, amount("8000e18"))
		tb.oracle.setBias(startPeriod+week, amount("5000e18"))
		tb.advanceTo(startPeriod + 2*week)
		for _, periodId := range []uint64{startPeriod, startPeriod + week} {
			_, err := tb.board.ClosePeriod(tb.ctx, owner, periodId)
			assert.Nil(t, err)
		}
		before := tb.ledger.BalanceOf(rewardToken, stranger)
		tb.drainEvents()

		withdrawn, err := tb.board.WithdrawUnusedRewards(tb.ctx, creator, questId, stranger)
		assert.Nil(t, err)
		// 14000e18 + 20000e18
		assert.Equal(t, amount("34000e18").String(), withdrawn.String())
		assert.Equal(t, amount("34000e18").String(), tb.ledger.BalanceOf(rewardToken, stranger).Sub(tb.ledger.BalanceOf(rewardToken, stranger), before).String())

		periods, _ := tb.board.GetAllQuestPeriodsForQuestId(questId)
		assert.Equal(t, int64(0), periods[0].WithdrawableAmount.Int64())
		assert.Equal(t, int64(0), periods[1].WithdrawableAmount.Int64())
		assert.Equal(t, amount("30000e18").String(), periods[2].RewardAmountPerPeriod.String())

		q, _ := tb.board.GetQuest(questId)
		assert.Equal(t, amount("34000e18").String(), q.WithdrawnAmount.String())

		events := tb.drainEvents()
		assert.Len(t, events, 1)
		assert.Equal(t, eventBusTypes.Event_RewardsWithdrawn, events[0].Name)
		tb.assertConservation(t)
	})
	t.Run("Should do nothing when there is nothing to withdraw", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		tb.drainEvents()

		withdrawn, err := tb.board.WithdrawUnusedRewards(tb.ctx, creator, questId, creator)
		assert.Nil(t, err)
		assert.Equal(t, int64(0), withdrawn.Int64())
		assert.Empty(t, tb.drainEvents())
	})
	t.Run("Should only let the creator withdraw", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)

		_, err := tb.board.WithdrawUnusedRewards(tb.ctx, owner, questId, owner)
		assert.True(t, errors.Is(err, ErrCallerNotCreator))
		_, err = tb.board.WithdrawUnusedRewards(tb.ctx, creator, questId, common.Address{})
		assert.True(t, errors.Is(err, ErrZeroAddress))
		_, err = tb.board.WithdrawUnusedRewards(tb.ctx, creator, 7, creator)
		assert.True(t, errors.Is(err, ErrUnknownQuest))
	})
	t.Run("Should be blocked while the board is killed", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 2)
		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))

		_, err := tb.board.WithdrawUnusedRewards(tb.ctx, creator, questId, creator)
		assert.True(t, errors.Is(err, ErrKilled))
	})
}

func Test_KillSwitch(t *testing.T) {
	t.Run("Should derive the kill state from the kill timestamp", func(t *testing.T) {
		settings := &questBoardTypes.Settings{}
		assert.Equal(t, questBoardTypes.KillState_Alive, KillStateAt(settings, 1000, DefaultKillDelay))

		settings.IsKilled = true
		settings.KillTs = 1000
		delay := uint64(DefaultKillDelay.Seconds())
		assert.Equal(t, questBoardTypes.KillState_KilledRecoverable, KillStateAt(settings, 1000, DefaultKillDelay))
		assert.Equal(t, questBoardTypes.KillState_KilledRecoverable, KillStateAt(settings, 1000+delay-1, DefaultKillDelay))
		assert.Equal(t, questBoardTypes.KillState_KilledFinal, KillStateAt(settings, 1000+delay, DefaultKillDelay))
	})
	t.Run("Should kill and unkill within the delay", func(t *testing.T) {
		tb := setup(t)
		assert.True(t, errors.Is(tb.board.KillBoard(tb.ctx, manager), ErrCallerNotOwner))
		assert.True(t, errors.Is(tb.board.UnkillBoard(tb.ctx, owner), ErrNotKilled))

		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))
		assert.Equal(t, questBoardTypes.KillState_KilledRecoverable, tb.board.GetKillState())
		assert.True(t, errors.Is(tb.board.KillBoard(tb.ctx, owner), ErrAlreadyKilled))

		tb.clock.Advance(DefaultKillDelay / 2)
		assert.Nil(t, tb.board.UnkillBoard(tb.ctx, owner))
		assert.Equal(t, questBoardTypes.KillState_Alive, tb.board.GetKillState())
		assert.Equal(t, uint64(0), tb.board.GetSettings().KillTs)

		events := tb.drainEvents()
		assert.Equal(t, eventBusTypes.Event_BoardKilled, events[0].Name)
		assert.Equal(t, eventBusTypes.Event_BoardUnkilled, events[1].Name)
	})
	t.Run("Should become final once the delay has passed", func(t *testing.T) {
		tb := setup(t)
		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))
		tb.clock.Advance(DefaultKillDelay)

		assert.Equal(t, questBoardTypes.KillState_KilledFinal, tb.board.GetKillState())
		err := tb.board.UnkillBoard(tb.ctx, owner)
		assert.True(t, errors.Is(err, ErrKillDelayExpired))
		assert.Equal(t, questBoardTypes.KillState_KilledFinal, tb.board.GetKillState())
	})
	t.Run("Should keep settlement running while killed", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 1)
		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))
		tb.oracle.setBias(startPeriod, amount("500e18"))
		tb.advanceTo(startPeriod + week)

		_, err := tb.board.ClosePeriod(tb.ctx, owner, startPeriod)
		assert.Nil(t, err)
		assert.Nil(t, tb.board.AddMerkleRoot(tb.ctx, owner, questId, startPeriod, amount("500e18"), common.HexToHash("0x01")))
		assert.True(t, errors.Is(tb.board.AddToBlacklist(tb.ctx, creator, questId, voterA), ErrKilled))
	})
}

func Test_EmergencyWithdraw(t *testing.T) {
	t.Run("Should reclaim settled remainders and unsettled allocations", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "15000e18", "2e18", 2)
		tb.oracle.setBias(startPeriod, amount("8000e18"))
		tb.advanceTo(startPeriod + week)
		_, err := tb.board.ClosePeriod(tb.ctx, owner, startPeriod)
		assert.Nil(t, err)
		assert.Nil(t, tb.board.AddMerkleRoot(tb.ctx, owner, questId, startPeriod, amount("16000e18"), common.HexToHash("0x01")))

		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))
		_, err = tb.board.EmergencyWithdraw(tb.ctx, creator, questId, creator)
		assert.True(t, errors.Is(err, ErrKillDelayNotExpired))

		tb.clock.Advance(DefaultKillDelay)
		before := tb.ledger.BalanceOf(rewardToken, creator)

		_, err = tb.board.EmergencyWithdraw(tb.ctx, stranger, questId, stranger)
		assert.True(t, errors.Is(err, ErrCallerNotCreator))

		withdrawn, err := tb.board.EmergencyWithdraw(tb.ctx, creator, questId, creator)
		assert.Nil(t, err)
		// X = 14000e18 withdrawable, Y = 30000e18 never settled
		assert.Equal(t, amount("44000e18").String(), withdrawn.String())
		after := tb.ledger.BalanceOf(rewardToken, creator)
		assert.Equal(t, amount("44000e18").String(), after.Sub(after, before).String())

		settled, _ := tb.board.GetQuestPeriod(questId, startPeriod)
		assert.Equal(t, int64(0), settled.WithdrawableAmount.Int64())
		unsettled, _ := tb.board.GetQuestPeriod(questId, startPeriod+week)
		assert.Equal(t, int64(0), unsettled.RewardAmountPerPeriod.Int64())
		assert.Equal(t, questBoardTypes.PeriodState_Active, unsettled.State)

		committed, _ := tb.board.GetCommittedFunds(questId)
		assert.Equal(t, int64(0), committed.Int64())
		tb.assertConservation(t)

		withdrawn, err = tb.board.EmergencyWithdraw(tb.ctx, creator, questId, creator)
		assert.Nil(t, err)
		assert.Equal(t, int64(0), withdrawn.Int64())
		final := tb.ledger.BalanceOf(rewardToken, creator)
		assert.Equal(t, before.Add(before, amount("44000e18")).String(), final.String())
	})
	t.Run("Should require a killed board", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 1)
		_, err := tb.board.EmergencyWithdraw(tb.ctx, creator, questId, creator)
		assert.True(t, errors.Is(err, ErrNotKilled))
	})
	t.Run("Should pay nothing for a period closed after the emergency withdrawal", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 1)
		assert.Nil(t, tb.board.KillBoard(tb.ctx, owner))
		tb.clock.Advance(DefaultKillDelay)

		_, err := tb.board.EmergencyWithdraw(tb.ctx, creator, questId, creator)
		assert.Nil(t, err)

		tb.oracle.setBias(startPeriod, amount("5000e18"))
		_, err = tb.board.ClosePeriod(tb.ctx, owner, startPeriod)
		assert.Nil(t, err)
		qp, _ := tb.board.GetQuestPeriod(questId, startPeriod)
		assert.Equal(t, int64(0), qp.RewardAmountDistributed.Int64())
		assert.Equal(t, int64(0), tb.ledger.BalanceOf(rewardToken, distributorAddress).Int64())
		tb.assertConservation(t)
	})
}
