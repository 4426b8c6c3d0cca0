package questBoard

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/period"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// SplitRewards divides a period's allocation between the distributor and the creator.
// The distributed share is adjustedBias * rewardPerVote / UNIT, saturating at the full
// allocation once adjustedBias reaches the objective.
func SplitRewards(qp *questBoardTypes.QuestPeriod, adjustedBias *big.Int) (distributed *big.Int, withdrawable *big.Int) {
	allocation := numbers.Copy(qp.RewardAmountPerPeriod)
	if adjustedBias.Cmp(qp.ObjectiveVotes) >= 0 {
		distributed = allocation
	} else {
		distributed = numbers.Min(numbers.MulDiv(adjustedBias, qp.RewardPerVote, numbers.UNIT), allocation)
	}
	withdrawable = new(big.Int).Sub(allocation, distributed)
	return numbers.Copy(distributed), withdrawable
}

type MerkleRootEntry struct {
	QuestId     uint64
	TotalAmount *big.Int
	Root        common.Hash
}

// checkSettleablePeriod runs the checks shared by ClosePeriod, ClosePartOfPeriod and FixPeriodBias.
func (tx *boardTx) checkSettleablePeriod(periodId uint64) error {
	if !period.IsAligned(periodId) {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, periodId)
	}
	if periodId >= tx.currentPeriod {
		return fmt.Errorf("%w: %d", ErrPeriodNotOver, periodId)
	}
	return nil
}

func (b *Board) closeTx(caller common.Address, periodId uint64) (*boardTx, error) {
	tx := b.newTx()
	if err := tx.requireOwnerOrManager(caller); err != nil {
		return nil, err
	}
	if err := tx.checkSettleablePeriod(periodId); err != nil {
		return nil, err
	}
	if len(b.periodQuests[periodId]) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrEmptyPeriod, periodId)
	}
	if err := tx.requireDistributor(); err != nil {
		return nil, err
	}
	return tx, nil
}

// ClosePeriod settles every quest still ACTIVE in periodId and returns the ids of the
// quests it closed. It fails when no quest in the period is ACTIVE.
func (b *Board) ClosePeriod(ctx context.Context, caller common.Address, periodId uint64) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.closeTx(caller, periodId)
	if err != nil {
		return nil, err
	}

	closed := make([]uint64, 0)
	for _, questId := range b.periodQuests[periodId] {
		qp, err := tx.readPeriod(questId, periodId)
		if err != nil {
			return nil, err
		}
		if qp.State != questBoardTypes.PeriodState_Active {
			continue
		}
		if err := b.closeQuestPeriod(ctx, tx, questId, periodId); err != nil {
			return nil, err
		}
		closed = append(closed, questId)
	}
	if len(closed) == 0 {
		return nil, fmt.Errorf("%w: every quest of period %d is already closed", ErrPeriodNotActive, periodId)
	}

	if err := b.commit(ctx, tx); err != nil {
		return nil, err
	}
	b.logger.Sugar().Infow("Closed period",
		zap.Uint64("periodId", periodId),
		zap.Uint64s("questIds", closed),
	)
	return closed, nil
}

// ClosePartOfPeriod settles the listed quests for periodId. Every listed quest must be
// scheduled in the period and still ACTIVE.
func (b *Board) ClosePartOfPeriod(ctx context.Context, caller common.Address, periodId uint64, questIds []uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.closeTx(caller, periodId)
	if err != nil {
		return err
	}
	if len(questIds) == 0 {
		return ErrEmptyList
	}

	for _, questId := range questIds {
		if _, err := tx.readQuest(questId); err != nil {
			return err
		}
		qp, err := tx.readPeriod(questId, periodId)
		if err != nil {
			return err
		}
		if qp.State != questBoardTypes.PeriodState_Active {
			return fmt.Errorf("%w: quest %d period %d is %s", ErrPeriodNotActive, questId, periodId, qp.State)
		}
		if err := b.closeQuestPeriod(ctx, tx, questId, periodId); err != nil {
			return err
		}
	}

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Closed part of period",
		zap.Uint64("periodId", periodId),
		zap.Uint64s("questIds", questIds),
	)
	return nil
}

// closeQuestPeriod stages the settlement of one ACTIVE quest period.
func (b *Board) closeQuestPeriod(ctx context.Context, tx *boardTx, questId uint64, periodId uint64) error {
	q, err := tx.writeQuest(questId)
	if err != nil {
		return err
	}
	qp, err := tx.writePeriod(questId, periodId)
	if err != nil {
		return err
	}

	adjustedBias, err := b.oracle.ReducedBias(ctx, q.Gauge, periodId, tx.readBlacklist(questId))
	if err != nil {
		return fmt.Errorf("failed to read bias of quest %d for period %d: %w", questId, periodId, err)
	}

	distributed, withdrawable := SplitRewards(qp, adjustedBias)
	qp.RewardAmountDistributed = distributed
	qp.WithdrawableAmount = withdrawable
	qp.State = questBoardTypes.PeriodState_Closed
	q.DistributedAmount.Add(q.DistributedAmount, distributed)

	tx.transfer(q.RewardToken, b.config.Address, q.Distributor, distributed)
	tx.call(q.Distributor, distributor.Call{
		Method:   distributor.CallMethod_FundQuestPeriod,
		QuestId:  questId,
		PeriodId: periodId,
		Amount:   numbers.Copy(distributed),
	})

	saturated := withdrawable.Sign() == 0
	tx.emit(eventBusTypes.Event_PeriodClosed, &eventBusTypes.PeriodClosedData{
		QuestId:        questId,
		PeriodId:       periodId,
		AdjustedBias:   numbers.Copy(adjustedBias),
		Distributed:    numbers.Copy(distributed),
		Withdrawable:   numbers.Copy(withdrawable),
		Distributor:    q.Distributor,
		CompletionRate: numbers.Ratio(distributed, qp.RewardAmountPerPeriod, 4),
	})
	token := q.RewardToken
	tx.record(func() {
		b.incr(metricsTypes.Metric_Incr_PeriodClosed, 1, metricsTypes.MetricsLabel{Name: "saturated", Value: strconv.FormatBool(saturated)})
		b.incr(metricsTypes.Metric_Incr_RewardsDistributed, numbers.UnitsFloat(distributed), metricsTypes.MetricsLabel{Name: "token", Value: token.Hex()})
	})

	b.logger.Sugar().Debugw("Settled quest period",
		zap.Uint64("questId", questId),
		zap.Uint64("periodId", periodId),
		zap.String("adjustedBias", adjustedBias.String()),
		zap.String("distributed", distributed.String()),
		zap.String("withdrawable", withdrawable.String()),
	)
	return nil
}

// AddMerkleRoot publishes the claim root of a CLOSED quest period to its distributor.
func (b *Board) AddMerkleRoot(ctx context.Context, caller common.Address, questId uint64, periodId uint64, totalAmount *big.Int, root common.Hash) error {
	return b.AddMultipleMerkleRoot(ctx, caller, periodId, []*MerkleRootEntry{{
		QuestId:     questId,
		TotalAmount: totalAmount,
		Root:        root,
	}})
}

// AddMultipleMerkleRoot publishes the roots of several quests for the same period, all or none.
func (b *Board) AddMultipleMerkleRoot(ctx context.Context, caller common.Address, periodId uint64, entries []*MerkleRootEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwnerOrManager(caller); err != nil {
		return err
	}
	if !period.IsAligned(periodId) {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, periodId)
	}
	if len(entries) == 0 {
		return ErrEmptyList
	}

	for _, entry := range entries {
		q, err := tx.readQuest(entry.QuestId)
		if err != nil {
			return err
		}
		if entry.Root == (common.Hash{}) {
			return ErrEmptyMerkleRoot
		}
		if isZero(entry.TotalAmount) {
			return ErrNullAmount
		}
		qp, err := tx.writePeriod(entry.QuestId, periodId)
		if err != nil {
			return err
		}
		switch qp.State {
		case questBoardTypes.PeriodState_Distributed:
			return fmt.Errorf("%w: quest %d period %d", ErrPeriodAlreadyDistributed, entry.QuestId, periodId)
		case questBoardTypes.PeriodState_Active:
			return fmt.Errorf("%w: quest %d period %d", ErrPeriodNotClosed, entry.QuestId, periodId)
		}
		qp.State = questBoardTypes.PeriodState_Distributed

		tx.call(q.Distributor, distributor.Call{
			Method:   distributor.CallMethod_UpdateQuestPeriod,
			QuestId:  entry.QuestId,
			PeriodId: periodId,
			Amount:   numbers.Copy(entry.TotalAmount),
			Root:     entry.Root,
		})
		tx.emit(eventBusTypes.Event_MerkleRootAdded, &eventBusTypes.MerkleRootAddedData{
			QuestId:     entry.QuestId,
			PeriodId:    periodId,
			TotalAmount: numbers.Copy(entry.TotalAmount),
			Root:        entry.Root,
		})
		tx.record(func() {
			b.incr(metricsTypes.Metric_Incr_MerkleRootAdded, 1)
		})
	}

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	for _, entry := range entries {
		b.logger.Sugar().Infow("Added merkle root",
			zap.Uint64("questId", entry.QuestId),
			zap.Uint64("periodId", periodId),
			zap.String("totalAmount", entry.TotalAmount.String()),
			zap.String("root", entry.Root.Hex()),
		)
	}
	return nil
}

// FixPeriodBias resettles a CLOSED quest period with a corrected adjusted bias and moves
// the difference between the board and the quest's distributor. The extra amount a
// correction can send to the distributor is bounded by what the period still holds.
func (b *Board) FixPeriodBias(ctx context.Context, caller common.Address, periodId uint64, questId uint64, correctedBias *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if err := tx.requireDistributor(); err != nil {
		return err
	}
	if err := tx.checkSettleablePeriod(periodId); err != nil {
		return err
	}
	if correctedBias == nil || correctedBias.Sign() < 0 {
		return ErrInvalidAmount
	}
	q, err := tx.writeQuest(questId)
	if err != nil {
		return err
	}
	qp, err := tx.writePeriod(questId, periodId)
	if err != nil {
		return err
	}
	switch qp.State {
	case questBoardTypes.PeriodState_Distributed:
		return fmt.Errorf("%w: quest %d period %d", ErrPeriodAlreadyDistributed, questId, periodId)
	case questBoardTypes.PeriodState_Active:
		return fmt.Errorf("%w: quest %d period %d", ErrPeriodNotClosed, questId, periodId)
	}

	previous := qp.RewardAmountDistributed
	distributed, _ := SplitRewards(qp, correctedBias)

	switch previous.Cmp(distributed) {
	case 1:
		refund := new(big.Int).Sub(previous, distributed)
		tx.transfer(q.RewardToken, q.Distributor, b.config.Address, refund)
		qp.WithdrawableAmount = new(big.Int).Add(qp.WithdrawableAmount, refund)
	case -1:
		added := new(big.Int).Sub(distributed, previous)
		if added.Cmp(qp.WithdrawableAmount) > 0 {
			return fmt.Errorf("%w: period holds %s, correction needs %s", ErrInsufficientFunds, qp.WithdrawableAmount.String(), added.String())
		}
		tx.transfer(q.RewardToken, b.config.Address, q.Distributor, added)
		qp.WithdrawableAmount = new(big.Int).Sub(qp.WithdrawableAmount, added)
	default:
		return nil
	}
	qp.RewardAmountDistributed = distributed
	q.DistributedAmount = new(big.Int).Add(new(big.Int).Sub(q.DistributedAmount, previous), distributed)

	tx.call(q.Distributor, distributor.Call{
		Method:   distributor.CallMethod_FixQuestPeriod,
		QuestId:  questId,
		PeriodId: periodId,
		Amount:   numbers.Copy(distributed),
	})
	tx.emit(eventBusTypes.Event_PeriodBiasFixed, &eventBusTypes.PeriodClosedData{
		QuestId:        questId,
		PeriodId:       periodId,
		AdjustedBias:   numbers.Copy(correctedBias),
		Distributed:    numbers.Copy(distributed),
		Withdrawable:   numbers.Copy(qp.WithdrawableAmount),
		Distributor:    q.Distributor,
		CompletionRate: numbers.Ratio(distributed, qp.RewardAmountPerPeriod, 4),
	})

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Fixed period bias",
		zap.Uint64("questId", questId),
		zap.Uint64("periodId", periodId),
		zap.String("correctedBias", correctedBias.String()),
		zap.String("previousDistributed", previous.String()),
		zap.String("distributed", distributed.String()),
	)
	return nil
}
