package questBoard

import (
	"context"
	"fmt"
	"slices"

	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func addToBlacklist(list []common.Address, voter common.Address) ([]common.Address, error) {
	if utils.IsZeroAddress(voter) {
		return nil, ErrZeroAddress
	}
	if slices.Contains(list, voter) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyBlacklisted, voter.Hex())
	}
	return append(list, voter), nil
}

// AddToBlacklist excludes voter's weight from the quest's future settlements.
func (b *Board) AddToBlacklist(ctx context.Context, caller common.Address, questId uint64, voter common.Address) error {
	return b.AddMultipleToBlacklist(ctx, caller, questId, []common.Address{voter})
}

// AddMultipleToBlacklist adds every voter or none of them.
func (b *Board) AddMultipleToBlacklist(ctx context.Context, caller common.Address, questId uint64, voters []common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.blacklistTx(caller, questId)
	if err != nil {
		return err
	}
	if len(voters) == 0 {
		return ErrEmptyList
	}

	list := slices.Clone(tx.readBlacklist(questId))
	for _, voter := range voters {
		if list, err = addToBlacklist(list, voter); err != nil {
			return err
		}
	}
	tx.setBlacklist(questId, list)
	tx.emit(eventBusTypes.Event_BlacklistUpdated, &eventBusTypes.BlacklistData{
		QuestId: questId,
		Added:   slices.Clone(voters),
	})

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Added voters to blacklist",
		zap.Uint64("questId", questId),
		zap.Strings("voters", utils.Map(voters, func(v common.Address, i uint64) string {
			return v.Hex()
		})),
	)
	return nil
}

// RemoveFromBlacklist removes voter from the quest's blacklist. Removing a voter that is
// not listed does nothing.
func (b *Board) RemoveFromBlacklist(ctx context.Context, caller common.Address, questId uint64, voter common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.blacklistTx(caller, questId)
	if err != nil {
		return err
	}
	if utils.IsZeroAddress(voter) {
		return ErrZeroAddress
	}

	list := tx.readBlacklist(questId)
	if !slices.Contains(list, voter) {
		return nil
	}
	list = slices.DeleteFunc(slices.Clone(list), func(a common.Address) bool {
		return a == voter
	})
	tx.setBlacklist(questId, list)
	tx.emit(eventBusTypes.Event_BlacklistUpdated, &eventBusTypes.BlacklistData{
		QuestId: questId,
		Removed: []common.Address{voter},
	})

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Removed voter from blacklist",
		zap.Uint64("questId", questId),
		zap.String("voter", voter.Hex()),
	)
	return nil
}

func (b *Board) blacklistTx(caller common.Address, questId uint64) (*boardTx, error) {
	tx := b.newTx()
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
	return tx, nil
}
