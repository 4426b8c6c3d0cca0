package questBoard

import (
	"context"
	"slices"

	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func (tx *boardTx) isOwner(caller common.Address) bool {
	return tx.readSettings().Owner == caller
}

func (tx *boardTx) isManager(caller common.Address) bool {
	return slices.Contains(tx.readManagers(), caller)
}

func (tx *boardTx) requireOwner(caller common.Address) error {
	if !tx.isOwner(caller) {
		return ErrCallerNotOwner
	}
	return nil
}

func (tx *boardTx) requireOwnerOrManager(caller common.Address) error {
	if !tx.isOwner(caller) && !tx.isManager(caller) {
		return ErrCallerNotAllowed
	}
	return nil
}

func requireCreator(q *questBoardTypes.Quest, caller common.Address) error {
	if q.Creator != caller {
		return ErrCallerNotCreator
	}
	return nil
}

// ApproveManager allows manager to close periods and publish roots.
func (b *Board) ApproveManager(ctx context.Context, caller common.Address, manager common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if utils.IsZeroAddress(manager) {
		return ErrZeroAddress
	}
	// the owner already holds every manager right
	if tx.isManager(manager) || tx.isOwner(manager) {
		return ErrAlreadyManager
	}
	tx.setManagers(append(slices.Clone(tx.readManagers()), manager))

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Approved manager", zap.String("manager", manager.Hex()))
	return nil
}

// RemoveManager revokes the manager rights of manager.
//
// Parameters:
//   - ctx: context for the commit
//   - caller: must be the board owner
//   - manager: a currently approved manager
//
// Returns:
//   - error: ErrNotManager if manager was never approved
func (b *Board) RemoveManager(ctx context.Context, caller common.Address, manager common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if !tx.isManager(manager) {
		return ErrNotManager
	}
	managers := slices.DeleteFunc(slices.Clone(tx.readManagers()), func(a common.Address) bool {
		return a == manager
	})
	tx.setManagers(managers)

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Removed manager", zap.String("manager", manager.Hex()))
	return nil
}

// TransferOwnership hands every owner right to newOwner.
func (b *Board) TransferOwnership(ctx context.Context, caller common.Address, newOwner common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if utils.IsZeroAddress(newOwner) {
		return ErrZeroAddress
	}
	tx.writeSettings().Owner = newOwner

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Transferred ownership",
		zap.String("previousOwner", caller.Hex()),
		zap.String("newOwner", newOwner.Hex()),
	)
	return nil
}
