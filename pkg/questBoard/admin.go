package questBoard

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// WhitelistToken allows token as a reward token with the given minimum reward per vote.
func (b *Board) WhitelistToken(ctx context.Context, caller common.Address, token common.Address, minRewardPerVote *big.Int) error {
	return b.WhitelistMultipleTokens(ctx, caller, []common.Address{token}, []*big.Int{minRewardPerVote})
}

// WhitelistMultipleTokens whitelists tokens pairwise with minRewardsPerVote. Either every
// token is whitelisted or none is.
func (b *Board) WhitelistMultipleTokens(ctx context.Context, caller common.Address, tokens []common.Address, minRewardsPerVote []*big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwnerOrManager(caller); err != nil {
		return err
	}
	if len(tokens) == 0 {
		return ErrEmptyList
	}
	if len(tokens) != len(minRewardsPerVote) {
		return ErrLengthMismatch
	}
	for i, token := range tokens {
		if utils.IsZeroAddress(token) {
			return ErrZeroAddress
		}
		if minRewardsPerVote[i] == nil || minRewardsPerVote[i].Sign() == 0 {
			return ErrNullAmount
		}
		if _, ok := tx.minRewardPerVote(token); ok {
			return ErrAlreadyWhitelisted
		}
		tx.setWhitelist(token, numbers.Copy(minRewardsPerVote[i]))
	}

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	for i, token := range tokens {
		b.logger.Sugar().Infow("Whitelisted token",
			zap.String("token", token.Hex()),
			zap.String("minRewardPerVote", minRewardsPerVote[i].String()),
		)
	}
	return nil
}

// UpdateRewardToken changes the minimum reward per vote of a whitelisted token.
// Existing quests keep their terms.
func (b *Board) UpdateRewardToken(ctx context.Context, caller common.Address, token common.Address, newMinRewardPerVote *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwnerOrManager(caller); err != nil {
		return err
	}
	if _, ok := tx.minRewardPerVote(token); !ok {
		return ErrTokenNotWhitelisted
	}
	if newMinRewardPerVote == nil || newMinRewardPerVote.Sign() == 0 {
		return ErrNullAmount
	}
	tx.setWhitelist(token, numbers.Copy(newMinRewardPerVote))

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Updated reward token minimum",
		zap.String("token", token.Hex()),
		zap.String("minRewardPerVote", newMinRewardPerVote.String()),
	)
	return nil
}

// RemoveWhitelistedToken stops token from being used by new quests.
func (b *Board) RemoveWhitelistedToken(ctx context.Context, caller common.Address, token common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if _, ok := tx.minRewardPerVote(token); !ok {
		return ErrTokenNotWhitelisted
	}
	tx.setWhitelist(token, nil)

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Removed token from whitelist", zap.String("token", token.Hex()))
	return nil
}

// SetPlatformFee changes the fee charged on quests created from now on.
//
// Parameters:
//   - ctx: context for the commit
//   - caller: must be the board owner
//   - newFee: fee in basis points, at most MaxPlatformFee
//
// Returns:
//   - error: ErrFeeTooHigh if newFee exceeds MaxPlatformFee
func (b *Board) SetPlatformFee(ctx context.Context, caller common.Address, newFee uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if newFee > MaxPlatformFee {
		return ErrFeeTooHigh
	}
	tx.writeSettings().PlatformFee = newFee

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Updated platform fee", zap.Uint64("platformFee", newFee))
	return nil
}

// SetMinObjective changes the smallest objective a new quest may set.
func (b *Board) SetMinObjective(ctx context.Context, caller common.Address, newMinObjective *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if newMinObjective == nil || newMinObjective.Sign() == 0 {
		return ErrNullAmount
	}
	tx.writeSettings().MinObjective = numbers.Copy(newMinObjective)

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Updated min objective", zap.String("minObjective", newMinObjective.String()))
	return nil
}

// UpdateChest changes the account that receives platform fees.
func (b *Board) UpdateChest(ctx context.Context, caller common.Address, chest common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if utils.IsZeroAddress(chest) {
		return ErrZeroAddress
	}
	tx.writeSettings().Chest = chest

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Updated chest", zap.String("chest", chest.Hex()))
	return nil
}

// InitiateDistributor sets the first distributor. It fails once a distributor is set.
func (b *Board) InitiateDistributor(ctx context.Context, caller common.Address, distributorAddress common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	if tx.readSettings().Distributor != (common.Address{}) {
		return ErrDistributorAlreadySet
	}
	return b.setDistributor(ctx, tx, distributorAddress)
}

// UpdateDistributor points new quests at another distributor. Existing quests keep settling
// to the distributor they were created with.
func (b *Board) UpdateDistributor(ctx context.Context, caller common.Address, distributorAddress common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return err
	}
	return b.setDistributor(ctx, tx, distributorAddress)
}

func (b *Board) setDistributor(ctx context.Context, tx *boardTx, distributorAddress common.Address) error {
	if utils.IsZeroAddress(distributorAddress) {
		return ErrZeroAddress
	}
	if _, ok := b.distributors[distributorAddress]; !ok {
		return ErrUnknownDistributor
	}
	tx.writeSettings().Distributor = distributorAddress

	if err := b.commit(ctx, tx); err != nil {
		return err
	}
	b.logger.Sugar().Infow("Updated distributor", zap.String("distributor", distributorAddress.Hex()))
	return nil
}

// RecoverERC20 sends the board's balance of a token that is not whitelisted to the owner.
// Funds still committed to quests in that token are never recovered.
func (b *Board) RecoverERC20(ctx context.Context, caller common.Address, token common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.newTx()
	if err := tx.requireOwner(caller); err != nil {
		return nil, err
	}
	if _, ok := tx.minRewardPerVote(token); ok {
		return nil, ErrCannotRecoverToken
	}

	committed := b.committedFundsForToken(token)
	balance := b.ledger.BalanceOf(token, b.config.Address)
	if balance.Cmp(committed) <= 0 {
		return new(big.Int), nil
	}
	amount := new(big.Int).Sub(balance, committed)
	tx.transfer(token, b.config.Address, caller, amount)

	if err := b.commit(ctx, tx); err != nil {
		return nil, err
	}
	b.logger.Sugar().Infow("Recovered tokens",
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}

func (b *Board) committedFundsForToken(token common.Address) *big.Int {
	total := new(big.Int)
	for _, q := range b.state.Quests {
		if q.RewardToken == token {
			total.Add(total, q.CommittedFunds())
		}
	}
	return total
}
