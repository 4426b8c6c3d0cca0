// Package distributor holds the funds of settled quest periods and pays them out against
// Merkle proofs once the period root is published.
package distributor

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	"go.uber.org/zap"
)

type questPeriodKey struct {
	questId  uint64
	periodId uint64
}

type questPeriodState struct {
	funded        *big.Int
	totalAmount   *big.Int
	claimedAmount *big.Int
	root          common.Hash
	claimed       map[uint64]bool
}

func (s *questPeriodState) clone() *questPeriodState {
	return &questPeriodState{
		funded:        new(big.Int).Set(s.funded),
		totalAmount:   new(big.Int).Set(s.totalAmount),
		claimedAmount: new(big.Int).Set(s.claimedAmount),
		root:          s.root,
		claimed:       s.claimed,
	}
}

func (s *questPeriodState) record(key questPeriodKey) *PeriodRecord {
	return &PeriodRecord{
		QuestId:       key.questId,
		PeriodId:      key.periodId,
		Funded:        new(big.Int).Set(s.funded),
		TotalAmount:   new(big.Int).Set(s.totalAmount),
		ClaimedAmount: new(big.Int).Set(s.claimedAmount),
		Root:          s.root,
	}
}

// MultiMerkleDistributor pays out rewards for many quests from a single ledger account.
type MultiMerkleDistributor struct {
	mu      sync.Mutex
	address common.Address
	ledger  *ledger.Ledger
	store   Store
	quests  map[uint64]common.Address
	periods map[questPeriodKey]*questPeriodState
	metrics metricsTypes.IMetricsClient
	logger  *zap.Logger
}

// NewMultiMerkleDistributor creates the distributor and loads its records from the store.
//
// Parameters:
//   - address: the distributor's ledger account, which also keys its records in the store
//   - store: may be nil, in which case the distributor only lives in memory
//   - ms: may be nil
func NewMultiMerkleDistributor(
	ctx context.Context,
	address common.Address,
	l *ledger.Ledger,
	store Store,
	ms metricsTypes.IMetricsClient,
	logger *zap.Logger,
) (*MultiMerkleDistributor, error) {
	d := &MultiMerkleDistributor{
		address: address,
		ledger:  l,
		store:   store,
		quests:  make(map[uint64]common.Address),
		periods: make(map[questPeriodKey]*questPeriodState),
		metrics: ms,
		logger:  logger,
	}
	if store == nil {
		return d, nil
	}

	records, err := store.LoadDistributor(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load distributor %s: %w", address.Hex(), err)
	}
	d.apply(records)
	logger.Sugar().Infow("Loaded distributor",
		zap.String("address", address.Hex()),
		zap.Int("quests", len(d.quests)),
		zap.Int("periods", len(d.periods)),
	)
	return d, nil
}

// Address returns the ledger account the distributor holds funds in.
func (d *MultiMerkleDistributor) Address() common.Address {
	return d.address
}

// Validate checks that every call would succeed, in order, without applying any of them.
func (d *MultiMerkleDistributor) Validate(calls []Call) error {
	_, err := d.Stage(calls)
	return err
}

// Stage replays the calls and returns the records they would write. State is not changed:
// the records take effect through Apply once they are persisted.
func (d *MultiMerkleDistributor) Stage(calls []Call) (*Records, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	quests, periods, err := d.stage(calls)
	if err != nil {
		return nil, err
	}
	return toRecords(quests, periods), nil
}

// Apply loads records that were persisted elsewhere, for instance together with a board commit.
func (d *MultiMerkleDistributor) Apply(records *Records) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(records)
}

// Execute applies all calls or none of them, persisting the result when the distributor has a store.
func (d *MultiMerkleDistributor) Execute(ctx context.Context, calls []Call) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	quests, periods, err := d.stage(calls)
	if err != nil {
		return err
	}
	return d.commit(ctx, toRecords(quests, periods), nil)
}

// AddQuest registers the reward token paid out for the quest.
func (d *MultiMerkleDistributor) AddQuest(ctx context.Context, questId uint64, token common.Address) error {
	return d.Execute(ctx, []Call{{Method: CallMethod_AddQuest, QuestId: questId, Token: token}})
}

// FundQuestPeriod records amount as sent to the distributor for the quest period. It fails once the root is set.
func (d *MultiMerkleDistributor) FundQuestPeriod(ctx context.Context, questId uint64, periodId uint64, amount *big.Int) error {
	return d.Execute(ctx, []Call{{Method: CallMethod_FundQuestPeriod, QuestId: questId, PeriodId: periodId, Amount: amount}})
}

// FixQuestPeriod replaces the funded amount of a period whose root is not set yet.
func (d *MultiMerkleDistributor) FixQuestPeriod(ctx context.Context, questId uint64, periodId uint64, newAmount *big.Int) error {
	return d.Execute(ctx, []Call{{Method: CallMethod_FixQuestPeriod, QuestId: questId, PeriodId: periodId, Amount: newAmount}})
}

// UpdateQuestPeriod publishes the claim root of the period. totalAmount may not exceed the funded amount.
func (d *MultiMerkleDistributor) UpdateQuestPeriod(ctx context.Context, questId uint64, periodId uint64, totalAmount *big.Int, root common.Hash) error {
	return d.Execute(ctx, []Call{{Method: CallMethod_UpdateQuestPeriod, QuestId: questId, PeriodId: periodId, Amount: totalAmount, Root: root}})
}

// commit persists records, running apply in the same unit of work, then loads them into
// memory. Callers must hold d.mu.
func (d *MultiMerkleDistributor) commit(ctx context.Context, records *Records, apply func() error) error {
	if d.store != nil {
		if err := d.store.CommitDistributor(ctx, d.address, records, apply); err != nil {
			return err
		}
	} else if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	d.apply(records)
	return nil
}

// apply writes records into memory. Callers must hold d.mu.
func (d *MultiMerkleDistributor) apply(records *Records) {
	if records == nil {
		return
	}
	for _, q := range records.Quests {
		d.quests[q.QuestId] = q.Token
	}
	for _, p := range records.Periods {
		key := questPeriodKey{questId: p.QuestId, periodId: p.PeriodId}
		claimed := make(map[uint64]bool)
		if existing, ok := d.periods[key]; ok {
			claimed = existing.claimed
		}
		d.periods[key] = &questPeriodState{
			funded:        new(big.Int).Set(p.Funded),
			totalAmount:   new(big.Int).Set(p.TotalAmount),
			claimedAmount: new(big.Int).Set(p.ClaimedAmount),
			root:          p.Root,
			claimed:       claimed,
		}
	}
	for _, c := range records.Claims {
		if p, ok := d.periods[questPeriodKey{questId: c.QuestId, periodId: c.PeriodId}]; ok {
			p.claimed[c.Index] = true
		}
	}
}

func toRecords(quests map[uint64]common.Address, periods map[questPeriodKey]*questPeriodState) *Records {
	records := &Records{}
	for id, token := range quests {
		records.Quests = append(records.Quests, &QuestRecord{QuestId: id, Token: token})
	}
	slices.SortFunc(records.Quests, func(a, b *QuestRecord) int {
		return compareUint64(a.QuestId, b.QuestId)
	})
	for key, p := range periods {
		records.Periods = append(records.Periods, p.record(key))
	}
	slices.SortFunc(records.Periods, func(a, b *PeriodRecord) int {
		if c := compareUint64(a.QuestId, b.QuestId); c != 0 {
			return c
		}
		return compareUint64(a.PeriodId, b.PeriodId)
	})
	return records
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// stage replays calls against copies of the touched records. Callers must hold d.mu.
func (d *MultiMerkleDistributor) stage(calls []Call) (map[uint64]common.Address, map[questPeriodKey]*questPeriodState, error) {
	quests := make(map[uint64]common.Address)
	periods := make(map[questPeriodKey]*questPeriodState)

	questToken := func(id uint64) (common.Address, bool) {
		if t, ok := quests[id]; ok {
			return t, true
		}
		t, ok := d.quests[id]
		return t, ok
	}
	period := func(k questPeriodKey) (*questPeriodState, bool) {
		if p, ok := periods[k]; ok {
			return p, true
		}
		if p, ok := d.periods[k]; ok {
			c := p.clone()
			periods[k] = c
			return c, true
		}
		return nil, false
	}

	for _, c := range calls {
		if c.Method != CallMethod_AddQuest {
			if _, ok := questToken(c.QuestId); !ok {
				return nil, nil, fmt.Errorf("%w: quest %d", ErrUnknownQuest, c.QuestId)
			}
			if c.Amount == nil || c.Amount.Sign() < 0 {
				return nil, nil, fmt.Errorf("%w: quest %d period %d", ErrInvalidAmount, c.QuestId, c.PeriodId)
			}
		}
		key := questPeriodKey{questId: c.QuestId, periodId: c.PeriodId}

		switch c.Method {
		case CallMethod_AddQuest:
			if _, ok := questToken(c.QuestId); ok {
				return nil, nil, fmt.Errorf("%w: quest %d", ErrQuestExists, c.QuestId)
			}
			quests[c.QuestId] = c.Token

		case CallMethod_FundQuestPeriod:
			p, ok := period(key)
			if !ok {
				p = &questPeriodState{
					funded:        new(big.Int),
					totalAmount:   new(big.Int),
					claimedAmount: new(big.Int),
					claimed:       make(map[uint64]bool),
				}
				periods[key] = p
			}
			if p.root != (common.Hash{}) {
				return nil, nil, fmt.Errorf("%w: quest %d period %d", ErrRootAlreadySet, c.QuestId, c.PeriodId)
			}
			p.funded.Add(p.funded, c.Amount)

		case CallMethod_FixQuestPeriod:
			p, ok := period(key)
			if !ok {
				return nil, nil, fmt.Errorf("%w: quest %d period %d", ErrUnknownPeriod, c.QuestId, c.PeriodId)
			}
			if p.root != (common.Hash{}) {
				return nil, nil, fmt.Errorf("%w: quest %d period %d", ErrRootAlreadySet, c.QuestId, c.PeriodId)
			}
			p.funded = new(big.Int).Set(c.Amount)

		case CallMethod_UpdateQuestPeriod:
			p, ok := period(key)
			if !ok {
				return nil, nil, fmt.Errorf("%w: quest %d period %d", ErrUnknownPeriod, c.QuestId, c.PeriodId)
			}
			if p.root != (common.Hash{}) {
				return nil, nil, fmt.Errorf("%w: quest %d period %d", ErrRootAlreadySet, c.QuestId, c.PeriodId)
			}
			if c.Root == (common.Hash{}) {
				return nil, nil, ErrInvalidRoot
			}
			if c.Amount.Cmp(p.funded) > 0 {
				return nil, nil, fmt.Errorf("%w: %s > %s", ErrAmountExceedsFunds, c.Amount.String(), p.funded.String())
			}
			p.totalAmount = new(big.Int).Set(c.Amount)
			p.root = c.Root

		default:
			return nil, nil, fmt.Errorf("unknown distributor call '%s'", c.Method)
		}
	}
	return quests, periods, nil
}

// Claim pays amount to account after verifying the leaf (index, account, amount) against the period root.
// The claimed index is persisted in the same unit of work as the payout.
func (d *MultiMerkleDistributor) Claim(ctx context.Context, questId uint64, periodId uint64, index uint64, account common.Address, amount *big.Int, proof *merkletree.Proof) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	token, ok := d.quests[questId]
	if !ok {
		return fmt.Errorf("%w: quest %d", ErrUnknownQuest, questId)
	}
	key := questPeriodKey{questId: questId, periodId: periodId}
	p, ok := d.periods[key]
	if !ok {
		return fmt.Errorf("%w: quest %d period %d", ErrUnknownPeriod, questId, periodId)
	}
	if p.root == (common.Hash{}) {
		return fmt.Errorf("%w: quest %d period %d", ErrRootNotSet, questId, periodId)
	}
	if p.claimed[index] {
		return fmt.Errorf("%w: %d", ErrAlreadyClaimed, index)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if proof == nil {
		return ErrInvalidProof
	}

	valid, err := merkletree.VerifyProofUsing(EncodeClaimLeaf(index, account, amount), false, proof, [][]byte{p.root.Bytes()}, keccak256.New())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if !valid {
		return ErrInvalidProof
	}

	updated := p.clone()
	updated.claimedAmount.Add(updated.claimedAmount, amount)
	if updated.claimedAmount.Cmp(p.totalAmount) > 0 {
		return fmt.Errorf("%w: claims exceed the period total", ErrAmountExceedsFunds)
	}

	records := &Records{
		Periods: []*PeriodRecord{updated.record(key)},
		Claims:  []*ClaimRecord{{QuestId: questId, PeriodId: periodId, Index: index}},
	}
	payout := ledger.Transfer{Token: token, From: d.address, To: account, Amount: new(big.Int).Set(amount)}
	paid := false
	err = d.commit(ctx, records, func() error {
		if err := d.ledger.Transfer(payout); err != nil {
			return err
		}
		paid = true
		return nil
	})
	if err != nil {
		if paid {
			if rerr := d.ledger.Transfer(payout.Reverse()); rerr != nil {
				d.logger.Sugar().Errorw("Failed to reverse claim payout", zap.Error(rerr))
			}
		}
		return err
	}

	d.logger.Sugar().Infow("Reward claimed",
		zap.Uint64("questId", questId),
		zap.Uint64("periodId", periodId),
		zap.Uint64("index", index),
		zap.String("account", account.Hex()),
		zap.String("amount", amount.String()),
	)
	d.incr(metricsTypes.Metric_Incr_DistributorClaimed, metricsTypes.MetricsLabel{Name: "token", Value: token.Hex()})
	return nil
}

func (d *MultiMerkleDistributor) incr(name string, labels ...metricsTypes.MetricsLabel) {
	if d.metrics == nil {
		return
	}
	if err := d.metrics.Incr(name, labels, 1); err != nil {
		d.logger.Sugar().Debugw("Failed to record metric", zap.String("name", name), zap.Error(err))
	}
}

// IsClaimed reports whether the claim index of the quest period was already paid out.
func (d *MultiMerkleDistributor) IsClaimed(questId uint64, periodId uint64, index uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.periods[questPeriodKey{questId: questId, periodId: periodId}]
	if !ok {
		return false
	}
	return p.claimed[index]
}

// GetQuestPeriod returns the distributor's record of the quest period.
func (d *MultiMerkleDistributor) GetQuestPeriod(questId uint64, periodId uint64) (*QuestPeriod, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.periods[questPeriodKey{questId: questId, periodId: periodId}]
	if !ok {
		return nil, false
	}
	return &QuestPeriod{
		QuestId:       questId,
		PeriodId:      periodId,
		Funded:        new(big.Int).Set(p.funded),
		TotalAmount:   new(big.Int).Set(p.totalAmount),
		ClaimedAmount: new(big.Int).Set(p.claimedAmount),
		Root:          p.root,
	}, true
}

// QuestToken returns the reward token registered for the quest.
func (d *MultiMerkleDistributor) QuestToken(questId uint64) (common.Address, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.quests[questId]
	return t, ok
}
