// Package questBoardTypes defines the persisted data model of the quest board.
package questBoardTypes

import (
	"math/big"
	"slices"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/ethereum/go-ethereum/common"
)

type PeriodState string

const (
	PeriodState_Active      PeriodState = "ACTIVE"
	PeriodState_Closed      PeriodState = "CLOSED"
	PeriodState_Distributed PeriodState = "DISTRIBUTED"
)

func (ps PeriodState) String() string {
	return string(ps)
}

// IsSettled returns true once the period has been closed.
func (ps PeriodState) IsSettled() bool {
	return ps == PeriodState_Closed || ps == PeriodState_Distributed
}

type KillState string

const (
	KillState_Alive             KillState = "ALIVE"
	KillState_KilledRecoverable KillState = "KILLED_RECOVERABLE"
	KillState_KilledFinal       KillState = "KILLED_FINAL"
)

type Quest struct {
	Id                uint64
	Creator           common.Address
	Gauge             common.Address
	RewardToken       common.Address
	Distributor       common.Address
	Duration          uint64
	TotalRewardAmount *big.Int
	PeriodStart       uint64

	// DistributedAmount is the sum of every period's distributed amount.
	DistributedAmount *big.Int
	// WithdrawnAmount is everything returned to the creator so far.
	WithdrawnAmount *big.Int
}

// CommittedFunds is the part of the escrow the board still holds for this quest.
func (q *Quest) CommittedFunds() *big.Int {
	c := new(big.Int).Sub(q.TotalRewardAmount, q.DistributedAmount)
	return c.Sub(c, q.WithdrawnAmount)
}

// LastPeriod returns the id of the quest's final period.
func (q *Quest) LastPeriod(periodLength uint64) uint64 {
	return q.PeriodStart + (q.Duration-1)*periodLength
}

func (q *Quest) Clone() *Quest {
	c := *q
	c.TotalRewardAmount = numbers.Copy(q.TotalRewardAmount)
	c.DistributedAmount = numbers.Copy(q.DistributedAmount)
	c.WithdrawnAmount = numbers.Copy(q.WithdrawnAmount)
	return &c
}

type QuestPeriod struct {
	QuestId                 uint64
	PeriodId                uint64
	ObjectiveVotes          *big.Int
	RewardPerVote           *big.Int
	RewardAmountPerPeriod   *big.Int
	RewardAmountDistributed *big.Int
	WithdrawableAmount      *big.Int
	State                   PeriodState
}

func (qp *QuestPeriod) Clone() *QuestPeriod {
	c := *qp
	c.ObjectiveVotes = numbers.Copy(qp.ObjectiveVotes)
	c.RewardPerVote = numbers.Copy(qp.RewardPerVote)
	c.RewardAmountPerPeriod = numbers.Copy(qp.RewardAmountPerPeriod)
	c.RewardAmountDistributed = numbers.Copy(qp.RewardAmountDistributed)
	c.WithdrawableAmount = numbers.Copy(qp.WithdrawableAmount)
	return &c
}

// CommittedFunds is what the period still holds in escrow: the full allocation while
// active, the withdrawable remainder once settled.
func (qp *QuestPeriod) CommittedFunds() *big.Int {
	if qp.State == PeriodState_Active {
		return numbers.Copy(qp.RewardAmountPerPeriod)
	}
	return numbers.Copy(qp.WithdrawableAmount)
}

type Settings struct {
	Owner        common.Address
	Chest        common.Address
	Distributor  common.Address
	PlatformFee  uint64
	MinObjective *big.Int
	NextId       uint64
	IsKilled     bool
	KillTs       uint64
}

func (s *Settings) Clone() *Settings {
	c := *s
	c.MinObjective = numbers.Copy(s.MinObjective)
	return &c
}

// ChangeSet is the set of records an operation writes. Nil fields are untouched.
type ChangeSet struct {
	Settings *Settings
	// Managers replaces the whole manager set when non-nil.
	Managers []common.Address
	// Whitelist upserts token minimums. A nil minimum removes the token.
	Whitelist    map[common.Address]*big.Int
	Quests       []*Quest
	QuestPeriods []*QuestPeriod
	// Blacklists replaces the blacklist of every quest it contains.
	Blacklists map[uint64][]common.Address
	// Distributors holds the records each distributor writes as part of the operation.
	// They are persisted with the board records but are not part of State.
	Distributors map[common.Address]*distributor.Records
}

func (cs *ChangeSet) IsEmpty() bool {
	return cs.Settings == nil &&
		cs.Managers == nil &&
		len(cs.Whitelist) == 0 &&
		len(cs.Quests) == 0 &&
		len(cs.QuestPeriods) == 0 &&
		len(cs.Blacklists) == 0 &&
		len(cs.Distributors) == 0
}

// State is the full persisted state of a board.
type State struct {
	Settings     *Settings
	Managers     []common.Address
	Whitelist    map[common.Address]*big.Int
	Quests       map[uint64]*Quest
	QuestPeriods map[uint64]map[uint64]*QuestPeriod
	Blacklists   map[uint64][]common.Address
}

func NewState() *State {
	return &State{
		Managers:     make([]common.Address, 0),
		Whitelist:    make(map[common.Address]*big.Int),
		Quests:       make(map[uint64]*Quest),
		QuestPeriods: make(map[uint64]map[uint64]*QuestPeriod),
		Blacklists:   make(map[uint64][]common.Address),
	}
}

// Apply writes the change set into the state. Records are cloned on the way in.
func (s *State) Apply(cs *ChangeSet) {
	if cs.Settings != nil {
		s.Settings = cs.Settings.Clone()
	}
	if cs.Managers != nil {
		s.Managers = slices.Clone(cs.Managers)
	}
	for token, minimum := range cs.Whitelist {
		if minimum == nil {
			delete(s.Whitelist, token)
			continue
		}
		s.Whitelist[token] = numbers.Copy(minimum)
	}
	for _, q := range cs.Quests {
		s.Quests[q.Id] = q.Clone()
	}
	for _, qp := range cs.QuestPeriods {
		if _, ok := s.QuestPeriods[qp.QuestId]; !ok {
			s.QuestPeriods[qp.QuestId] = make(map[uint64]*QuestPeriod)
		}
		s.QuestPeriods[qp.QuestId][qp.PeriodId] = qp.Clone()
	}
	for questId, voters := range cs.Blacklists {
		s.Blacklists[questId] = slices.Clone(voters)
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := NewState()
	cs := &ChangeSet{
		Settings:     s.Settings,
		Managers:     s.Managers,
		Whitelist:    s.Whitelist,
		Blacklists:   s.Blacklists,
		Quests:       make([]*Quest, 0, len(s.Quests)),
		QuestPeriods: make([]*QuestPeriod, 0),
	}
	for _, q := range s.Quests {
		cs.Quests = append(cs.Quests, q)
	}
	for _, periods := range s.QuestPeriods {
		for _, qp := range periods {
			cs.QuestPeriods = append(cs.QuestPeriods, qp)
		}
	}
	c.Apply(cs)
	return c
}

// SortedPeriodIds returns the quest's period ids in ascending order.
func (s *State) SortedPeriodIds(questId uint64) []uint64 {
	ids := make([]uint64, 0, len(s.QuestPeriods[questId]))
	for id := range s.QuestPeriods[questId] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
