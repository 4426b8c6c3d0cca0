// Package ledger keeps multi-token balances for the accounts the board moves funds between.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransfer     = errors.New("invalid transfer")
)

type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Reverse returns the transfer moving the same amount back.
func (t Transfer) Reverse() Transfer {
	return Transfer{Token: t.Token, From: t.To, To: t.From, Amount: t.Amount}
}

type Balance struct {
	Token   common.Address
	Account common.Address
	Amount  *big.Int
}

// BalanceStore persists balances. WriteBalances must apply all balances or none.
type BalanceStore interface {
	LoadBalances() ([]*Balance, error)
	WriteBalances(balances []*Balance) error
	Close() error
}

type balanceKey struct {
	token   common.Address
	account common.Address
}

type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]*big.Int
	store    BalanceStore
	logger   *zap.Logger
}

// NewLedger creates a ledger, loading existing balances from store when one is given.
func NewLedger(store BalanceStore, l *zap.Logger) (*Ledger, error) {
	ledger := &Ledger{
		balances: make(map[balanceKey]*big.Int),
		store:    store,
		logger:   l,
	}
	if store == nil {
		return ledger, nil
	}
	balances, err := store.LoadBalances()
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	for _, b := range balances {
		ledger.balances[balanceKey{token: b.Token, account: b.Account}] = b.Amount
	}
	l.Sugar().Infow("Loaded ledger balances", zap.Int("count", len(balances)))
	return ledger, nil
}

func (l *Ledger) BalanceOf(token common.Address, account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[balanceKey{token: token, account: account}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint credits amount of token to the account.
func (l *Ledger) Mint(token common.Address, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: negative mint amount", ErrInvalidTransfer)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey{token: token, account: to}
	next := new(big.Int).Add(l.balanceLocked(key), amount)
	return l.commitLocked(map[balanceKey]*big.Int{key: next})
}

// Transfer applies every transfer in order. Either all transfers succeed or no balance changes.
func (l *Ledger) Transfer(transfers ...Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[balanceKey]*big.Int)
	get := func(k balanceKey) *big.Int {
		if b, ok := staged[k]; ok {
			return b
		}
		return l.balanceLocked(k)
	}

	for _, t := range transfers {
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return fmt.Errorf("%w: negative amount", ErrInvalidTransfer)
		}
		if t.Amount.Sign() == 0 || t.From == t.To {
			continue
		}
		fromKey := balanceKey{token: t.Token, account: t.From}
		toKey := balanceKey{token: t.Token, account: t.To}

		from := get(fromKey)
		if from.Cmp(t.Amount) < 0 {
			return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, t.From.Hex(), from.String(), t.Token.Hex(), t.Amount.String())
		}
		staged[fromKey] = new(big.Int).Sub(from, t.Amount)
		staged[toKey] = new(big.Int).Add(get(toKey), t.Amount)
	}

	return l.commitLocked(staged)
}

func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func (l *Ledger) balanceLocked(k balanceKey) *big.Int {
	if b, ok := l.balances[k]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) commitLocked(staged map[balanceKey]*big.Int) error {
	if len(staged) == 0 {
		return nil
	}
	if l.store != nil {
		balances := make([]*Balance, 0, len(staged))
		for k, v := range staged {
			balances = append(balances, &Balance{Token: k.token, Account: k.account, Amount: v})
		}
		if err := l.store.WriteBalances(balances); err != nil {
			return fmt.Errorf("failed to persist balances: %w", err)
		}
	}
	for k, v := range staged {
		l.balances[k] = v
	}
	return nil
}
