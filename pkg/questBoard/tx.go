package questBoard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type questPeriodKey struct {
	questId  uint64
	periodId uint64
}

// boardTx stages the effects of one operation. Reads see staged records first, then the
// committed state. Committed records are never mutated: the first write clones them.
type boardTx struct {
	board         *Board
	now           time.Time
	nowTs         uint64
	currentPeriod uint64

	settings   *questBoardTypes.Settings
	managers   []common.Address
	whitelist  map[common.Address]*big.Int
	quests     map[uint64]*questBoardTypes.Quest
	periods    map[questPeriodKey]*questBoardTypes.QuestPeriod
	blacklists map[uint64][]common.Address

	transfers []ledger.Transfer
	calls     map[common.Address][]distributor.Call
	callOrder []common.Address

	events  []*eventBusTypes.Event
	metrics []func()
}

func (b *Board) newTx() *boardTx {
	now := b.now()
	return &boardTx{
		board:         b,
		now:           now,
		nowTs:         uint64(now.Unix()),
		currentPeriod: b.currentPeriod(),
		whitelist:     make(map[common.Address]*big.Int),
		quests:        make(map[uint64]*questBoardTypes.Quest),
		periods:       make(map[questPeriodKey]*questBoardTypes.QuestPeriod),
		blacklists:    make(map[uint64][]common.Address),
		calls:         make(map[common.Address][]distributor.Call),
	}
}

func (tx *boardTx) readSettings() *questBoardTypes.Settings {
	if tx.settings != nil {
		return tx.settings
	}
	return tx.board.state.Settings
}

func (tx *boardTx) writeSettings() *questBoardTypes.Settings {
	if tx.settings == nil {
		tx.settings = tx.board.state.Settings.Clone()
	}
	return tx.settings
}

func (tx *boardTx) readManagers() []common.Address {
	if tx.managers != nil {
		return tx.managers
	}
	return tx.board.state.Managers
}

func (tx *boardTx) setManagers(managers []common.Address) {
	if managers == nil {
		managers = make([]common.Address, 0)
	}
	tx.managers = managers
}

// minRewardPerVote returns the token's minimum reward per vote, and false when the token is not whitelisted.
func (tx *boardTx) minRewardPerVote(token common.Address) (*big.Int, bool) {
	if minimum, ok := tx.whitelist[token]; ok {
		return minimum, minimum != nil
	}
	minimum, ok := tx.board.state.Whitelist[token]
	return minimum, ok
}

// setWhitelist stages a token minimum. A nil minimum removes the token.
func (tx *boardTx) setWhitelist(token common.Address, minimum *big.Int) {
	tx.whitelist[token] = minimum
}

func (tx *boardTx) readQuest(questId uint64) (*questBoardTypes.Quest, error) {
	if q, ok := tx.quests[questId]; ok {
		return q, nil
	}
	if q, ok := tx.board.state.Quests[questId]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownQuest, questId)
}

func (tx *boardTx) writeQuest(questId uint64) (*questBoardTypes.Quest, error) {
	if q, ok := tx.quests[questId]; ok {
		return q, nil
	}
	q, err := tx.readQuest(questId)
	if err != nil {
		return nil, err
	}
	c := q.Clone()
	tx.quests[questId] = c
	return c, nil
}

func (tx *boardTx) putQuest(q *questBoardTypes.Quest) {
	tx.quests[q.Id] = q
}

func (tx *boardTx) readPeriod(questId uint64, periodId uint64) (*questBoardTypes.QuestPeriod, error) {
	key := questPeriodKey{questId: questId, periodId: periodId}
	if qp, ok := tx.periods[key]; ok {
		return qp, nil
	}
	if qp, ok := tx.board.state.QuestPeriods[questId][periodId]; ok {
		return qp, nil
	}
	return nil, fmt.Errorf("%w: quest %d period %d", ErrPeriodNotScheduled, questId, periodId)
}

func (tx *boardTx) writePeriod(questId uint64, periodId uint64) (*questBoardTypes.QuestPeriod, error) {
	key := questPeriodKey{questId: questId, periodId: periodId}
	if qp, ok := tx.periods[key]; ok {
		return qp, nil
	}
	qp, err := tx.readPeriod(questId, periodId)
	if err != nil {
		return nil, err
	}
	c := qp.Clone()
	tx.periods[key] = c
	return c, nil
}

func (tx *boardTx) putPeriod(qp *questBoardTypes.QuestPeriod) {
	tx.periods[questPeriodKey{questId: qp.QuestId, periodId: qp.PeriodId}] = qp
}

// periodIds returns every period id of the quest, staged ones included, in ascending order.
func (tx *boardTx) periodIds(questId uint64) []uint64 {
	ids := tx.board.state.SortedPeriodIds(questId)
	for k := range tx.periods {
		if k.questId != questId {
			continue
		}
		if i, found := slices.BinarySearch(ids, k.periodId); !found {
			ids = slices.Insert(ids, i, k.periodId)
		}
	}
	return ids
}

func (tx *boardTx) readBlacklist(questId uint64) []common.Address {
	if bl, ok := tx.blacklists[questId]; ok {
		return bl
	}
	return tx.board.state.Blacklists[questId]
}

func (tx *boardTx) setBlacklist(questId uint64, voters []common.Address) {
	tx.blacklists[questId] = voters
}

// transfer stages a ledger transfer. Zero amounts are dropped.
func (tx *boardTx) transfer(token common.Address, from common.Address, to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	tx.transfers = append(tx.transfers, ledger.Transfer{
		Token:  token,
		From:   from,
		To:     to,
		Amount: new(big.Int).Set(amount),
	})
}

func (tx *boardTx) call(distributorAddress common.Address, c distributor.Call) {
	if _, ok := tx.calls[distributorAddress]; !ok {
		tx.callOrder = append(tx.callOrder, distributorAddress)
	}
	tx.calls[distributorAddress] = append(tx.calls[distributorAddress], c)
}

func (tx *boardTx) emit(name eventBusTypes.EventName, data any) {
	tx.events = append(tx.events, eventBusTypes.NewEvent(name, tx.now, data))
}

// record queues a metric update that only runs once the operation has committed.
func (tx *boardTx) record(f func()) {
	tx.metrics = append(tx.metrics, f)
}

func (tx *boardTx) requireAlive() error {
	if tx.readSettings().IsKilled {
		return ErrKilled
	}
	return nil
}

func (tx *boardTx) requireDistributor() error {
	if tx.readSettings().Distributor == (common.Address{}) {
		return ErrNoDistributor
	}
	return nil
}

func (tx *boardTx) changeSet() *questBoardTypes.ChangeSet {
	cs := &questBoardTypes.ChangeSet{
		Settings: tx.settings,
		Managers: tx.managers,
	}
	if len(tx.whitelist) > 0 {
		cs.Whitelist = tx.whitelist
	}
	if len(tx.blacklists) > 0 {
		cs.Blacklists = tx.blacklists
	}

	questIds := make([]uint64, 0, len(tx.quests))
	for id := range tx.quests {
		questIds = append(questIds, id)
	}
	slices.Sort(questIds)
	for _, id := range questIds {
		cs.Quests = append(cs.Quests, tx.quests[id])
	}

	keys := make([]questPeriodKey, 0, len(tx.periods))
	for k := range tx.periods {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b questPeriodKey) int {
		if a.questId != b.questId {
			if a.questId < b.questId {
				return -1
			}
			return 1
		}
		if a.periodId < b.periodId {
			return -1
		}
		if a.periodId > b.periodId {
			return 1
		}
		return 0
	})
	for _, k := range keys {
		cs.QuestPeriods = append(cs.QuestPeriods, tx.periods[k])
	}
	return cs
}

// commit persists the staged records together with the transfers and the records of every
// distributor the operation calls. Distributors stage their calls before any token moves,
// and only see the result once the store has committed, so an operation touching several
// distributors is applied to all of them or to none.
func (b *Board) commit(ctx context.Context, tx *boardTx) error {
	cs := tx.changeSet()
	if cs.IsEmpty() && len(tx.transfers) == 0 && len(tx.calls) == 0 {
		return nil
	}

	targets := make([]Distributor, 0, len(tx.callOrder))
	for _, addr := range tx.callOrder {
		d, ok := b.distributors[addr]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDistributor, addr.Hex())
		}
		targets = append(targets, d)
	}
	if len(targets) > 0 {
		cs.Distributors = make(map[common.Address]*distributor.Records, len(targets))
	}
	for i, d := range targets {
		addr := tx.callOrder[i]
		records, err := d.Stage(tx.calls[addr])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDistributorRejected, err)
		}
		cs.Distributors[addr] = records
	}

	transferred := false
	apply := func() error {
		if err := b.ledger.Transfer(tx.transfers...); err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
			}
			return err
		}
		transferred = true
		return nil
	}

	if err := b.store.Commit(ctx, cs, apply); err != nil {
		if transferred {
			b.reverseTransfers(tx.transfers)
		}
		b.logger.Sugar().Debugw("Board commit failed",
			zap.Error(err),
			zap.Int("distributors", len(targets)),
		)
		return err
	}

	b.state.Apply(cs)
	for i, d := range targets {
		d.Apply(cs.Distributors[tx.callOrder[i]])
	}
	for _, qp := range cs.QuestPeriods {
		b.indexQuestPeriod(qp.QuestId, qp.PeriodId)
	}
	b.publish(tx.events)
	for _, f := range tx.metrics {
		f()
	}
	return nil
}

func (b *Board) reverseTransfers(transfers []ledger.Transfer) {
	reversed := make([]ledger.Transfer, 0, len(transfers))
	for i := len(transfers) - 1; i >= 0; i-- {
		reversed = append(reversed, transfers[i].Reverse())
	}
	if err := b.ledger.Transfer(reversed...); err != nil {
		b.logger.Sugar().Errorw("Failed to reverse transfers", zap.Error(err))
	}
}
