package questBoard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Views(t *testing.T) {
	t.Run("Should report unknown quests", func(t *testing.T) {
		tb := setup(t)
		_, err := tb.board.GetQuest(3)
		assert.True(t, errors.Is(err, ErrUnknownQuest))
		_, err = tb.board.GetAllPeriodsForQuestId(3)
		assert.True(t, errors.Is(err, ErrUnknownQuest))
		_, err = tb.board.GetQuestBlacklist(3)
		assert.True(t, errors.Is(err, ErrUnknownQuest))
		_, err = tb.board.GetCommittedFunds(3)
		assert.True(t, errors.Is(err, ErrUnknownQuest))
		_, err = tb.board.GetCurrentReducedBias(tb.ctx, 3)
		assert.True(t, errors.Is(err, ErrUnknownQuest))
		assert.Empty(t, tb.board.GetQuestIdsForPeriod(startPeriod))
	})
	t.Run("Should return copies", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 1)

		q, _ := tb.board.GetQuest(questId)
		q.TotalRewardAmount.SetInt64(1)
		qp, _ := tb.board.GetQuestPeriod(questId, startPeriod)
		qp.RewardAmountPerPeriod.SetInt64(1)

		q, _ = tb.board.GetQuest(questId)
		assert.Equal(t, amount("1000e18").String(), q.TotalRewardAmount.String())
		qp, _ = tb.board.GetQuestPeriod(questId, startPeriod)
		assert.Equal(t, amount("1000e18").String(), qp.RewardAmountPerPeriod.String())
	})
	t.Run("Should list ended periods with active quests", func(t *testing.T) {
		tb := setup(t)
		tb.createQuest(t, "1000e18", "1e18", 3)
		assert.Empty(t, tb.board.GetPendingPeriods())

		tb.advanceTo(startPeriod + 2*week)
		assert.Equal(t, []uint64{startPeriod, startPeriod + week}, tb.board.GetPendingPeriods())

		_, err := tb.board.ClosePeriod(tb.ctx, owner, startPeriod)
		assert.Nil(t, err)
		assert.Equal(t, []uint64{startPeriod + week}, tb.board.GetPendingPeriods())
	})
	t.Run("Should read the current bias of a quest", func(t *testing.T) {
		tb := setup(t)
		questId := tb.createQuest(t, "1000e18", "1e18", 1)
		tb.oracle.setBias(tb.board.GetCurrentPeriod(), amount("42e18"))

		bias, err := tb.board.GetCurrentReducedBias(tb.ctx, questId)
		assert.Nil(t, err)
		assert.Equal(t, amount("42e18").String(), bias.String())
	})
}
