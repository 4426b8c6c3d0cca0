package questBoard

import (
	"context"
	"math/big"
	"slices"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
)

// GetCurrentPeriod returns the start of the week the board clock is in.
func (b *Board) GetCurrentPeriod() uint64 {
	return b.currentPeriod()
}

// GetQuestCount returns the next quest id.
func (b *Board) GetQuestCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Settings.NextId
}

// GetQuest returns a copy of the quest or ErrUnknownQuest.
func (b *Board) GetQuest(questId uint64) (*questBoardTypes.Quest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.state.Quests[questId]
	if !ok {
		return nil, ErrUnknownQuest
	}
	return q.Clone(), nil
}

// GetQuestIdsForPeriod lists the quests scheduled in periodId in ascending order.
func (b *Board) GetQuestIdsForPeriod(periodId uint64) []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := slices.Clone(b.periodQuests[periodId])
	if ids == nil {
		ids = make([]uint64, 0)
	}
	return ids
}

func (b *Board) GetAllPeriodsForQuestId(questId uint64) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.state.Quests[questId]; !ok {
		return nil, ErrUnknownQuest
	}
	return b.state.SortedPeriodIds(questId), nil
}

// GetAllQuestPeriodsForQuestId returns copies of every period of the quest in order.
func (b *Board) GetAllQuestPeriodsForQuestId(questId uint64) ([]*questBoardTypes.QuestPeriod, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.state.Quests[questId]; !ok {
		return nil, ErrUnknownQuest
	}
	ids := b.state.SortedPeriodIds(questId)
	periods := make([]*questBoardTypes.QuestPeriod, 0, len(ids))
	for _, id := range ids {
		periods = append(periods, b.state.QuestPeriods[questId][id].Clone())
	}
	return periods, nil
}

func (b *Board) GetQuestPeriod(questId uint64, periodId uint64) (*questBoardTypes.QuestPeriod, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.state.Quests[questId]; !ok {
		return nil, ErrUnknownQuest
	}
	qp, ok := b.state.QuestPeriods[questId][periodId]
	if !ok {
		return nil, ErrPeriodNotScheduled
	}
	return qp.Clone(), nil
}

func (b *Board) GetQuestBlacklist(questId uint64) ([]common.Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.state.Quests[questId]; !ok {
		return nil, ErrUnknownQuest
	}
	list := slices.Clone(b.state.Blacklists[questId])
	if list == nil {
		list = make([]common.Address, 0)
	}
	return list, nil
}

// GetCurrentReducedBias returns the blacklist-adjusted bias the quest would be settled with
// for the current period, as read at the end of it.
func (b *Board) GetCurrentReducedBias(ctx context.Context, questId uint64) (*big.Int, error) {
	b.mu.Lock()
	q, ok := b.state.Quests[questId]
	if !ok {
		b.mu.Unlock()
		return nil, ErrUnknownQuest
	}
	gauge := q.Gauge
	blacklist := slices.Clone(b.state.Blacklists[questId])
	b.mu.Unlock()

	return b.oracle.ReducedBias(ctx, gauge, b.currentPeriod(), blacklist)
}

// GetPendingPeriods returns the ended periods that still have ACTIVE quest periods, oldest first.
func (b *Board) GetPendingPeriods() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.currentPeriod()
	pending := make([]uint64, 0)
	for periodId, questIds := range b.periodQuests {
		if periodId >= current {
			continue
		}
		for _, questId := range questIds {
			if b.state.QuestPeriods[questId][periodId].State == questBoardTypes.PeriodState_Active {
				pending = append(pending, periodId)
				break
			}
		}
	}
	slices.Sort(pending)
	return pending
}

// GetSettings returns a copy of the board settings.
func (b *Board) GetSettings() *questBoardTypes.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Settings.Clone()
}

func (b *Board) GetManagers() []common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.state.Managers)
}

// IsManager reports whether account was approved as a manager.
func (b *Board) IsManager(account common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Contains(b.state.Managers, account)
}

func (b *Board) IsWhitelisted(token common.Address) bool {
	_, ok := b.GetMinRewardPerVote(token)
	return ok
}

func (b *Board) GetMinRewardPerVote(token common.Address) (*big.Int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	minimum, ok := b.state.Whitelist[token]
	if !ok {
		return nil, false
	}
	return numbers.Copy(minimum), true
}

// GetWhitelistedTokens returns every whitelisted token with its minimum reward per vote.
func (b *Board) GetWhitelistedTokens() map[common.Address]*big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()

	tokens := make(map[common.Address]*big.Int, len(b.state.Whitelist))
	for token, minimum := range b.state.Whitelist {
		tokens[token] = numbers.Copy(minimum)
	}
	return tokens
}

// GetCommittedFunds returns what the board still holds in escrow for the quest.
func (b *Board) GetCommittedFunds(questId uint64) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.state.Quests[questId]
	if !ok {
		return nil, ErrUnknownQuest
	}
	return q.CommittedFunds(), nil
}

// GetKillState evaluates the kill switch at the board clock.
func (b *Board) GetKillState() questBoardTypes.KillState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return KillStateAt(b.state.Settings, uint64(b.now().Unix()), b.config.KillDelay)
}
