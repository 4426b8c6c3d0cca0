package questBoard

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/period"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type CreateQuestParams struct {
	Gauge       common.Address
	RewardToken common.Address
	// Duration is the number of periods
	Duration          uint64
	ObjectiveVotes    *big.Int
	RewardPerVote     *big.Int
	TotalRewardAmount *big.Int
	FeeAmount         *big.Int
	Blacklist         []common.Address
}

type topUpKind string

const (
	topUpKind_Duration  topUpKind = "duration"
	topUpKind_Reward    topUpKind = "reward"
	topUpKind_Objective topUpKind = "objective"
)

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// checkFee verifies that fee is exactly the platform fee on amount.
func (tx *boardTx) checkFee(amount *big.Int, fee *big.Int) error {
	expected := numbers.FeeAmount(amount, tx.readSettings().PlatformFee)
	if expected.Cmp(fee) != 0 {
		return fmt.Errorf("%w: expected %s, got %s", ErrIncorrectFee, expected.String(), fee.String())
	}
	return nil
}

// escrow stages the creator's payment: the reward into the board, the fee into the chest.
func (tx *boardTx) escrow(token common.Address, from common.Address, reward *big.Int, fee *big.Int) {
	tx.transfer(token, from, tx.board.config.Address, reward)
	tx.transfer(token, from, tx.readSettings().Chest, fee)
}

// CreateQuest escrows the rewards of a new quest and schedules its periods, starting with
// the period after the current one. It returns the new quest id.
func (b *Board) CreateQuest(ctx context.Context, caller common.Address, params *CreateQuestParams) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	settings := tx.readSettings()
	if err := tx.requireAlive(); err != nil {
		return 0, err
	}
	if utils.IsZeroAddress(params.Gauge) || utils.IsZeroAddress(params.RewardToken) {
		return 0, ErrZeroAddress
	}
	minRewardPerVote, ok := tx.minRewardPerVote(params.RewardToken)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTokenNotWhitelisted, params.RewardToken.Hex())
	}
	if params.Duration == 0 {
		return 0, ErrIncorrectDuration
	}
	if isZero(params.ObjectiveVotes) || params.ObjectiveVotes.Cmp(settings.MinObjective) < 0 {
		return 0, ErrObjectiveTooLow
	}
	if isZero(params.RewardPerVote) || params.RewardPerVote.Cmp(minRewardPerVote) < 0 {
		return 0, ErrRewardPerVoteTooLow
	}
	if isZero(params.TotalRewardAmount) || isZero(params.FeeAmount) {
		return 0, ErrNullAmount
	}

	rewardPerPeriod := numbers.RewardPerPeriod(params.ObjectiveVotes, params.RewardPerVote)
	expectedTotal := new(big.Int).Mul(rewardPerPeriod, new(big.Int).SetUint64(params.Duration))
	if expectedTotal.Cmp(params.TotalRewardAmount) != 0 {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrIncorrectTotal, expectedTotal.String(), params.TotalRewardAmount.String())
	}
	if err := tx.checkFee(params.TotalRewardAmount, params.FeeAmount); err != nil {
		return 0, err
	}
	if err := tx.requireDistributor(); err != nil {
		return 0, err
	}

	valid, err := b.oracle.IsValidGauge(ctx, params.Gauge)
	if err != nil {
		return 0, fmt.Errorf("failed to check gauge %s: %w", params.Gauge.Hex(), err)
	}
	if !valid {
		return 0, fmt.Errorf("%w: %s", ErrInvalidGauge, params.Gauge.Hex())
	}

	questId := settings.NextId
	blacklist := make([]common.Address, 0, len(params.Blacklist))
	for _, voter := range params.Blacklist {
		if blacklist, err = addToBlacklist(blacklist, voter); err != nil {
			return 0, err
		}
	}

	tx.writeSettings().NextId = questId + 1

	start := period.Next(tx.currentPeriod)
	quest := &questBoardTypes.Quest{
		Id:                questId,
		Creator:           caller,
		Gauge:             params.Gauge,
		RewardToken:       params.RewardToken,
		Distributor:       settings.Distributor,
		Duration:          params.Duration,
		TotalRewardAmount: numbers.Copy(params.TotalRewardAmount),
		PeriodStart:       start,
		DistributedAmount: new(big.Int),
		WithdrawnAmount:   new(big.Int),
	}
	tx.putQuest(quest)

	periodIds := period.Range(start, params.Duration)
	for _, periodId := range periodIds {
		tx.putPeriod(newQuestPeriod(questId, periodId, params.ObjectiveVotes, params.RewardPerVote, rewardPerPeriod))
	}
	if len(blacklist) > 0 {
		tx.setBlacklist(questId, blacklist)
	}

	tx.escrow(params.RewardToken, caller, params.TotalRewardAmount, params.FeeAmount)
	tx.call(quest.Distributor, distributor.Call{
		Method:  distributor.CallMethod_AddQuest,
		QuestId: questId,
		Token:   params.RewardToken,
	})

	tx.emit(eventBusTypes.Event_QuestCreated, &eventBusTypes.QuestEventData{
		QuestId:     questId,
		Creator:     caller,
		Gauge:       params.Gauge,
		RewardToken: params.RewardToken,
		AddedReward: numbers.Copy(params.TotalRewardAmount),
		AddedFee:    numbers.Copy(params.FeeAmount),
		PeriodIds:   periodIds,
	})
	tx.record(func() {
		b.incr(metricsTypes.Metric_Incr_QuestCreated, 1, metricsTypes.MetricsLabel{Name: "token", Value: params.RewardToken.Hex()})
	})

	if err := b.commit(ctx, tx); err != nil {
		return 0, err
	}

	b.logger.Sugar().Infow("Created quest",
		zap.Uint64("questId", questId),
		zap.String("creator", caller.Hex()),
		zap.String("gauge", params.Gauge.Hex()),
		zap.String("rewardToken", params.RewardToken.Hex()),
		zap.Uint64("periodStart", start),
		zap.Uint64("duration", params.Duration),
		zap.String("totalRewardAmount", params.TotalRewardAmount.String()),
	)
	return questId, nil
}

func newQuestPeriod(questId uint64, periodId uint64, objective *big.Int, rewardPerVote *big.Int, rewardPerPeriod *big.Int) *questBoardTypes.QuestPeriod {
	return &questBoardTypes.QuestPeriod{
		QuestId:                 questId,
		PeriodId:                periodId,
		ObjectiveVotes:          numbers.Copy(objective),
		RewardPerVote:           numbers.Copy(rewardPerVote),
		RewardAmountPerPeriod:   numbers.Copy(rewardPerPeriod),
		RewardAmountDistributed: new(big.Int),
		WithdrawableAmount:      new(big.Int),
		State:                   questBoardTypes.PeriodState_Active,
	}
}

// loadTopUp runs the checks shared by every top-up and returns the quest staged for writing.
func (tx *boardTx) loadTopUp(caller common.Address, questId uint64, addedReward *big.Int, addedFee *big.Int) (*questBoardTypes.Quest, error) {
	if err := tx.requireAlive(); err != nil {
		return nil, err
	}
	q, err := tx.readQuest(questId)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(q, caller); err != nil {
		return nil, err
	}
	if q.LastPeriod(period.Length) < tx.currentPeriod {
		return nil, fmt.Errorf("%w: quest %d", ErrExpiredQuest, questId)
	}
	if isZero(addedReward) || isZero(addedFee) {
		return nil, ErrNullAmount
	}
	return tx.writeQuest(questId)
}

// IncreaseQuestDuration appends periods after the quest's last period, each copying the
// terms of that last period.
func (b *Board) IncreaseQuestDuration(ctx context.Context, caller common.Address, questId uint64, addedDuration uint64, addedReward *big.Int, addedFee *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	q, err := tx.loadTopUp(caller, questId, addedReward, addedFee)
	if err != nil {
		return err
	}
	if addedDuration == 0 {
		return ErrIncorrectDuration
	}

	lastPeriodId := q.LastPeriod(period.Length)
	last, err := tx.readPeriod(questId, lastPeriodId)
	if err != nil {
		return err
	}

	expected := new(big.Int).Mul(last.RewardAmountPerPeriod, new(big.Int).SetUint64(addedDuration))
	if expected.Cmp(addedReward) != 0 {
		return fmt.Errorf("%w: expected %s, got %s", ErrIncorrectTotal, expected.String(), addedReward.String())
	}
	if err := tx.checkFee(addedReward, addedFee); err != nil {
		return err
	}

	periodIds := period.Range(period.Next(lastPeriodId), addedDuration)
	for _, periodId := range periodIds {
		tx.putPeriod(newQuestPeriod(questId, periodId, last.ObjectiveVotes, last.RewardPerVote, last.RewardAmountPerPeriod))
	}
	q.Duration += addedDuration
	q.TotalRewardAmount.Add(q.TotalRewardAmount, addedReward)

	return b.finishTopUp(ctx, tx, q, topUpKind_Duration, eventBusTypes.Event_QuestDurationIncreased, addedReward, addedFee, periodIds)
}

// IncreaseQuestReward raises the reward per vote of the current and every future ACTIVE period.
func (b *Board) IncreaseQuestReward(ctx context.Context, caller common.Address, questId uint64, newRewardPerVote *big.Int, addedReward *big.Int, addedFee *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	q, err := tx.loadTopUp(caller, questId, addedReward, addedFee)
	if err != nil {
		return err
	}
	if isZero(newRewardPerVote) {
		return ErrNullAmount
	}
	if minimum, ok := tx.minRewardPerVote(q.RewardToken); ok && newRewardPerVote.Cmp(minimum) < 0 {
		return ErrRewardPerVoteTooLow
	}

	periodIds, err := tx.updateOpenPeriods(q, addedReward, addedFee, func(qp *questBoardTypes.QuestPeriod) error {
		if newRewardPerVote.Cmp(qp.RewardPerVote) <= 0 {
			return fmt.Errorf("%w: %s <= %s", ErrLowerRewardPerVote, newRewardPerVote.String(), qp.RewardPerVote.String())
		}
		qp.RewardPerVote = numbers.Copy(newRewardPerVote)
		return nil
	})
	if err != nil {
		return err
	}
	return b.finishTopUp(ctx, tx, q, topUpKind_Reward, eventBusTypes.Event_QuestRewardIncreased, addedReward, addedFee, periodIds)
}

// IncreaseQuestObjective raises the objective of the current and every future ACTIVE period.
func (b *Board) IncreaseQuestObjective(ctx context.Context, caller common.Address, questId uint64, newObjective *big.Int, addedReward *big.Int, addedFee *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	q, err := tx.loadTopUp(caller, questId, addedReward, addedFee)
	if err != nil {
		return err
	}
	if isZero(newObjective) {
		return ErrNullAmount
	}

	periodIds, err := tx.updateOpenPeriods(q, addedReward, addedFee, func(qp *questBoardTypes.QuestPeriod) error {
		if newObjective.Cmp(qp.ObjectiveVotes) <= 0 {
			return fmt.Errorf("%w: %s <= %s", ErrLowerObjective, newObjective.String(), qp.ObjectiveVotes.String())
		}
		qp.ObjectiveVotes = numbers.Copy(newObjective)
		return nil
	})
	if err != nil {
		return err
	}
	return b.finishTopUp(ctx, tx, q, topUpKind_Objective, eventBusTypes.Event_QuestObjectiveIncreased, addedReward, addedFee, periodIds)
}

// updateOpenPeriods applies update to every ACTIVE period starting at or after the current
// period, recomputes their allocation and checks that addedReward covers the increase.
// Periods that started before the current period are left untouched.
func (tx *boardTx) updateOpenPeriods(
	q *questBoardTypes.Quest,
	addedReward *big.Int,
	addedFee *big.Int,
	update func(qp *questBoardTypes.QuestPeriod) error,
) ([]uint64, error) {
	affected := make([]uint64, 0)
	delta := new(big.Int)
	for _, periodId := range tx.periodIds(q.Id) {
		if periodId < tx.currentPeriod {
			continue
		}
		current, err := tx.readPeriod(q.Id, periodId)
		if err != nil {
			return nil, err
		}
		if current.State != questBoardTypes.PeriodState_Active {
			continue
		}
		qp, err := tx.writePeriod(q.Id, periodId)
		if err != nil {
			return nil, err
		}
		if err := update(qp); err != nil {
			return nil, err
		}
		newAmount := numbers.RewardPerPeriod(qp.ObjectiveVotes, qp.RewardPerVote)
		delta.Add(delta, new(big.Int).Sub(newAmount, qp.RewardAmountPerPeriod))
		qp.RewardAmountPerPeriod = newAmount
		affected = append(affected, periodId)
	}
	if len(affected) == 0 {
		return nil, fmt.Errorf("%w: quest %d", ErrExpiredQuest, q.Id)
	}
	if delta.Cmp(addedReward) != 0 {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrIncorrectTotal, delta.String(), addedReward.String())
	}
	if err := tx.checkFee(addedReward, addedFee); err != nil {
		return nil, err
	}
	q.TotalRewardAmount.Add(q.TotalRewardAmount, addedReward)
	return affected, nil
}

func (b *Board) finishTopUp(
	ctx context.Context,
	tx *boardTx,
	q *questBoardTypes.Quest,
	kind topUpKind,
	event eventBusTypes.EventName,
	addedReward *big.Int,
	addedFee *big.Int,
	periodIds []uint64,
) error {
	tx.escrow(q.RewardToken, q.Creator, addedReward, addedFee)
	tx.emit(event, &eventBusTypes.QuestEventData{
		QuestId:     q.Id,
		Creator:     q.Creator,
		Gauge:       q.Gauge,
		RewardToken: q.RewardToken,
		AddedReward: numbers.Copy(addedReward),
		AddedFee:    numbers.Copy(addedFee),
		PeriodIds:   periodIds,
	})
	tx.record(func() {
		b.incr(metricsTypes.Metric_Incr_QuestToppedUp, 1,
			metricsTypes.MetricsLabel{Name: "token", Value: q.RewardToken.Hex()},
			metricsTypes.MetricsLabel{Name: "kind", Value: string(kind)},
		)
	})

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Increased quest",
		zap.Uint64("questId", q.Id),
		zap.String("kind", string(kind)),
		zap.String("addedReward", addedReward.String()),
		zap.Uint64s("periodIds", periodIds),
	)
	return nil
}
