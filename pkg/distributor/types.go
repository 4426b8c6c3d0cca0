package distributor

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownQuest       = errors.New("quest is not registered with the distributor")
	ErrQuestExists        = errors.New("quest is already registered with the distributor")
	ErrUnknownPeriod      = errors.New("quest period was never funded")
	ErrRootAlreadySet     = errors.New("quest period root is already set")
	ErrRootNotSet         = errors.New("quest period root is not set")
	ErrInvalidRoot        = errors.New("merkle root is empty")
	ErrAmountExceedsFunds = errors.New("amount exceeds the funded amount")
	ErrAlreadyClaimed     = errors.New("claim index already used")
	ErrInvalidProof       = errors.New("invalid merkle proof")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// CallMethod names the distributor entrypoint a Call is sent to.
type CallMethod string

const (
	CallMethod_AddQuest          CallMethod = "addQuest"
	CallMethod_FundQuestPeriod   CallMethod = "fundQuestPeriod"
	CallMethod_FixQuestPeriod    CallMethod = "fixQuestPeriod"
	CallMethod_UpdateQuestPeriod CallMethod = "updateQuestPeriod"
)

// Call is one notification sent by the board. Only the fields relevant to Method are read.
type Call struct {
	Method   CallMethod
	QuestId  uint64
	PeriodId uint64
	Token    common.Address
	Amount   *big.Int
	Root     common.Hash
}

// QuestPeriod is the distributor's view of one quest period.
type QuestPeriod struct {
	QuestId       uint64
	PeriodId      uint64
	Funded        *big.Int
	TotalAmount   *big.Int
	ClaimedAmount *big.Int
	Root          common.Hash
}

// Claim is one leaf of a period's claim tree.
type Claim struct {
	Index   uint64
	Account common.Address
	Amount  *big.Int
}

// QuestRecord registers the reward token of a quest.
type QuestRecord struct {
	QuestId uint64
	Token   common.Address
}

// PeriodRecord is the persisted form of a quest period. Claimed indexes are kept as ClaimRecords.
type PeriodRecord struct {
	QuestId       uint64
	PeriodId      uint64
	Funded        *big.Int
	TotalAmount   *big.Int
	ClaimedAmount *big.Int
	Root          common.Hash
}

// ClaimRecord marks one claim index of a quest period as used.
type ClaimRecord struct {
	QuestId  uint64
	PeriodId uint64
	Index    uint64
}

// Records are the rows of one distributor. Quests and Periods are upserted, Claims are only added.
type Records struct {
	Quests  []*QuestRecord
	Periods []*PeriodRecord
	Claims  []*ClaimRecord
}

func (r *Records) IsEmpty() bool {
	return r == nil || (len(r.Quests) == 0 && len(r.Periods) == 0 && len(r.Claims) == 0)
}

// Merge upserts every record of o into r. Amounts are copied.
func (r *Records) Merge(o *Records) {
	if o == nil {
		return
	}
	quests := make(map[uint64]int, len(r.Quests))
	for i, q := range r.Quests {
		quests[q.QuestId] = i
	}
	for _, q := range o.Quests {
		c := *q
		if i, ok := quests[q.QuestId]; ok {
			r.Quests[i] = &c
			continue
		}
		quests[q.QuestId] = len(r.Quests)
		r.Quests = append(r.Quests, &c)
	}

	periods := make(map[questPeriodKey]int, len(r.Periods))
	for i, p := range r.Periods {
		periods[questPeriodKey{questId: p.QuestId, periodId: p.PeriodId}] = i
	}
	for _, p := range o.Periods {
		c := p.copy()
		key := questPeriodKey{questId: p.QuestId, periodId: p.PeriodId}
		if i, ok := periods[key]; ok {
			r.Periods[i] = c
			continue
		}
		periods[key] = len(r.Periods)
		r.Periods = append(r.Periods, c)
	}

	claims := make(map[ClaimRecord]bool, len(r.Claims))
	for _, c := range r.Claims {
		claims[*c] = true
	}
	for _, c := range o.Claims {
		if claims[*c] {
			continue
		}
		claims[*c] = true
		cc := *c
		r.Claims = append(r.Claims, &cc)
	}
}

func (p *PeriodRecord) copy() *PeriodRecord {
	return &PeriodRecord{
		QuestId:       p.QuestId,
		PeriodId:      p.PeriodId,
		Funded:        new(big.Int).Set(p.Funded),
		TotalAmount:   new(big.Int).Set(p.TotalAmount),
		ClaimedAmount: new(big.Int).Set(p.ClaimedAmount),
		Root:          p.Root,
	}
}

// Store persists distributor records.
//
// CommitDistributor writes the records and calls apply inside the same unit of work. If
// apply returns an error nothing is written. apply may be nil.
type Store interface {
	LoadDistributor(ctx context.Context, address common.Address) (*Records, error)
	CommitDistributor(ctx context.Context, address common.Address, records *Records, apply func() error) error
}
