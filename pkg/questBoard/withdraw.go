package questBoard

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type withdrawKind string

const (
	withdrawKind_Unused    withdrawKind = "unused"
	withdrawKind_Emergency withdrawKind = "emergency"
)

// WithdrawUnusedRewards sends the withdrawable amount of every settled period of the quest
// to recipient and returns the total sent. Nothing happens when there is nothing to withdraw.
func (b *Board) WithdrawUnusedRewards(ctx context.Context, caller common.Address, questId uint64, recipient common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireAlive(); err != nil {
		return nil, err
	}
	q, err := b.loadWithdraw(tx, caller, questId, recipient)
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, periodId := range tx.periodIds(questId) {
		qp, err := tx.readPeriod(questId, periodId)
		if err != nil {
			return nil, err
		}
		if !qp.State.IsSettled() || qp.WithdrawableAmount.Sign() == 0 {
			continue
		}
		if qp, err = tx.writePeriod(questId, periodId); err != nil {
			return nil, err
		}
		total.Add(total, qp.WithdrawableAmount)
		qp.WithdrawableAmount = new(big.Int)
	}
	return b.finishWithdraw(ctx, tx, q, recipient, total, eventBusTypes.Event_RewardsWithdrawn, withdrawKind_Unused)
}

// EmergencyWithdraw returns everything the board still holds for the quest to recipient:
// the withdrawable amount of settled periods and the full allocation of periods that were
// never closed. It is only available once the kill delay has passed.
func (b *Board) EmergencyWithdraw(ctx context.Context, caller common.Address, questId uint64, recipient common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	switch KillStateAt(tx.readSettings(), tx.nowTs, b.config.KillDelay) {
	case questBoardTypes.KillState_Alive:
		return nil, ErrNotKilled
	case questBoardTypes.KillState_KilledRecoverable:
		return nil, ErrKillDelayNotExpired
	}
	q, err := b.loadWithdraw(tx, caller, questId, recipient)
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, periodId := range tx.periodIds(questId) {
		qp, err := tx.readPeriod(questId, periodId)
		if err != nil {
			return nil, err
		}
		if qp.CommittedFunds().Sign() == 0 {
			continue
		}
		if qp, err = tx.writePeriod(questId, periodId); err != nil {
			return nil, err
		}
		if qp.State == questBoardTypes.PeriodState_Active {
			total.Add(total, qp.RewardAmountPerPeriod)
			qp.RewardAmountPerPeriod = new(big.Int)
		} else {
			total.Add(total, qp.WithdrawableAmount)
			qp.WithdrawableAmount = new(big.Int)
		}
	}
	return b.finishWithdraw(ctx, tx, q, recipient, total, eventBusTypes.Event_EmergencyWithdraw, withdrawKind_Emergency)
}

func (b *Board) loadWithdraw(tx *boardTx, caller common.Address, questId uint64, recipient common.Address) (*questBoardTypes.Quest, error) {
	q, err := tx.readQuest(questId)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(q, caller); err != nil {
		return nil, err
	}
	if utils.IsZeroAddress(recipient) {
		return nil, ErrZeroAddress
	}
	return q, nil
}

func (b *Board) finishWithdraw(
	ctx context.Context,
	tx *boardTx,
	q *questBoardTypes.Quest,
	recipient common.Address,
	total *big.Int,
	event eventBusTypes.EventName,
	kind withdrawKind,
) (*big.Int, error) {
	if total.Sign() == 0 {
		return total, nil
	}
	q, err := tx.writeQuest(q.Id)
	if err != nil {
		return nil, err
	}
	q.WithdrawnAmount.Add(q.WithdrawnAmount, total)

	tx.transfer(q.RewardToken, b.config.Address, recipient, total)
	tx.emit(event, &eventBusTypes.WithdrawData{
		QuestId:   q.Id,
		Recipient: recipient,
		Amount:    numbers.Copy(total),
	})
	token := q.RewardToken
	tx.record(func() {
		b.incr(metricsTypes.Metric_Incr_RewardsWithdrawn, numbers.UnitsFloat(total),
			metricsTypes.MetricsLabel{Name: "token", Value: token.Hex()},
			metricsTypes.MetricsLabel{Name: "kind", Value: string(kind)},
		)
	})

	if err := b.commit(ctx, tx); err != nil {
		return nil, err
	}
	b.logger.Sugar().Infow("Withdrew quest rewards",
		zap.Uint64("questId", q.Id),
		zap.String("kind", string(kind)),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", total.String()),
	)
	return total, nil
}
