package questBoard

import (
	"context"
	"time"

	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// KillStateAt derives the kill state of a board from its settings at nowTs.
func KillStateAt(settings *questBoardTypes.Settings, nowTs uint64, delay time.Duration) questBoardTypes.KillState {
	if !settings.IsKilled {
		return questBoardTypes.KillState_Alive
	}
	if nowTs < settings.KillTs+uint64(delay/time.Second) {
		return questBoardTypes.KillState_KilledRecoverable
	}
	return questBoardTypes.KillState_KilledFinal
}

// KillBoard halts quest creation, top-ups, blacklist edits and regular withdrawals. The
// owner can undo it until the kill delay has passed; after that creators may use
// EmergencyWithdraw.
func (b *Board) KillBoard(ctx context.Context, caller common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if tx.readSettings().IsKilled {
		return ErrAlreadyKilled
	}
	settings := tx.writeSettings()
	settings.IsKilled = true
	settings.KillTs = tx.nowTs
	tx.emit(eventBusTypes.Event_BoardKilled, &eventBusTypes.KillData{KillTs: tx.nowTs})

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Warnw("Board killed",
		zap.Uint64("killTs", tx.nowTs),
		zap.Duration("killDelay", b.config.KillDelay),
	)
	return nil
}

// UnkillBoard reverts a kill while the kill delay is still running.
//
// Parameters:
//   - ctx: context for the commit
//   - caller: must be the board owner
//
// Returns:
//   - error: ErrNotKilled if the board is alive, ErrKillDelayExpired once the delay has passed
func (b *Board) UnkillBoard(ctx context.Context, caller common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	settings := tx.readSettings()
	switch KillStateAt(settings, tx.nowTs, b.config.KillDelay) {
	case questBoardTypes.KillState_Alive:
		return ErrNotKilled
	case questBoardTypes.KillState_KilledFinal:
		return ErrKillDelayExpired
	}
	killTs := settings.KillTs
	settings = tx.writeSettings()
	settings.IsKilled = false
	settings.KillTs = 0
	tx.emit(eventBusTypes.Event_BoardUnkilled, &eventBusTypes.KillData{KillTs: killTs})

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Board unkilled", zap.Uint64("killTs", killTs))
	return nil
}
