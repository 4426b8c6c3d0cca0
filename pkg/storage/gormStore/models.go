package gormStore

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
)

const settingsRowId = 1

type BoardSettings struct {
	Id           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Owner        string
	Chest        string
	Distributor  string
	PlatformFee  uint64
	MinObjective string
	NextId       uint64
	IsKilled     bool
	KillTs       uint64
}

func (BoardSettings) TableName() string {
	return "board_settings"
}

type BoardManager struct {
	Address string `gorm:"primaryKey"`
}

func (BoardManager) TableName() string {
	return "board_managers"
}

type WhitelistedToken struct {
	Token            string `gorm:"primaryKey"`
	MinRewardPerVote string
}

func (WhitelistedToken) TableName() string {
	return "whitelisted_tokens"
}

type Quest struct {
	Id                uint64 `gorm:"primaryKey;autoIncrement:false"`
	Creator           string
	Gauge             string
	RewardToken       string
	Distributor       string
	Duration          uint64
	TotalRewardAmount string
	PeriodStart       uint64
	DistributedAmount string
	WithdrawnAmount   string
}

func (Quest) TableName() string {
	return "quests"
}

type QuestPeriod struct {
	QuestId                 uint64 `gorm:"primaryKey;autoIncrement:false"`
	PeriodId                uint64 `gorm:"primaryKey;autoIncrement:false"`
	ObjectiveVotes          string
	RewardPerVote           string
	RewardAmountPerPeriod   string
	RewardAmountDistributed string
	WithdrawableAmount      string
	State                   string
}

func (QuestPeriod) TableName() string {
	return "quest_periods"
}

type QuestBlacklist struct {
	QuestId  uint64 `gorm:"primaryKey;autoIncrement:false"`
	Position uint64 `gorm:"primaryKey;autoIncrement:false"`
	Voter    string
}

func (QuestBlacklist) TableName() string {
	return "quest_blacklists"
}

func addressToString(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func amountToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(column, v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount '%s' in column '%s'", v, column)
	}
	return n, nil
}

func settingsToModel(s *questBoardTypes.Settings) *BoardSettings {
	return &BoardSettings{
		Id:           settingsRowId,
		Owner:        addressToString(s.Owner),
		Chest:        addressToString(s.Chest),
		Distributor:  addressToString(s.Distributor),
		PlatformFee:  s.PlatformFee,
		MinObjective: amountToString(s.MinObjective),
		NextId:       s.NextId,
		IsKilled:     s.IsKilled,
		KillTs:       s.KillTs,
	}
}

func (m *BoardSettings) toSettings() (*questBoardTypes.Settings, error) {
	minObjective, err := parseAmount("min_objective", m.MinObjective)
	if err != nil {
		return nil, err
	}
	return &questBoardTypes.Settings{
		Owner:        common.HexToAddress(m.Owner),
		Chest:        common.HexToAddress(m.Chest),
		Distributor:  common.HexToAddress(m.Distributor),
		PlatformFee:  m.PlatformFee,
		MinObjective: minObjective,
		NextId:       m.NextId,
		IsKilled:     m.IsKilled,
		KillTs:       m.KillTs,
	}, nil
}

func questToModel(q *questBoardTypes.Quest) *Quest {
	return &Quest{
		Id:                q.Id,
		Creator:           addressToString(q.Creator),
		Gauge:             addressToString(q.Gauge),
		RewardToken:       addressToString(q.RewardToken),
		Distributor:       addressToString(q.Distributor),
		Duration:          q.Duration,
		TotalRewardAmount: amountToString(q.TotalRewardAmount),
		PeriodStart:       q.PeriodStart,
		DistributedAmount: amountToString(q.DistributedAmount),
		WithdrawnAmount:   amountToString(q.WithdrawnAmount),
	}
}

func (m *Quest) toQuest() (*questBoardTypes.Quest, error) {
	total, err := parseAmount("total_reward_amount", m.TotalRewardAmount)
	if err != nil {
		return nil, err
	}
	distributed, err := parseAmount("distributed_amount", m.DistributedAmount)
	if err != nil {
		return nil, err
	}
	withdrawn, err := parseAmount("withdrawn_amount", m.WithdrawnAmount)
	if err != nil {
		return nil, err
	}
	return &questBoardTypes.Quest{
		Id:                m.Id,
		Creator:           common.HexToAddress(m.Creator),
		Gauge:             common.HexToAddress(m.Gauge),
		RewardToken:       common.HexToAddress(m.RewardToken),
		Distributor:       common.HexToAddress(m.Distributor),
		Duration:          m.Duration,
		TotalRewardAmount: total,
		PeriodStart:       m.PeriodStart,
		DistributedAmount: distributed,
		WithdrawnAmount:   withdrawn,
	}, nil
}

func questPeriodToModel(qp *questBoardTypes.QuestPeriod) *QuestPeriod {
	return &QuestPeriod{
		QuestId:                 qp.QuestId,
		PeriodId:                qp.PeriodId,
		ObjectiveVotes:          amountToString(qp.ObjectiveVotes),
		RewardPerVote:           amountToString(qp.RewardPerVote),
		RewardAmountPerPeriod:   amountToString(qp.RewardAmountPerPeriod),
		RewardAmountDistributed: amountToString(qp.RewardAmountDistributed),
		WithdrawableAmount:      amountToString(qp.WithdrawableAmount),
		State:                   qp.State.String(),
	}
}

func (m *QuestPeriod) toQuestPeriod() (*questBoardTypes.QuestPeriod, error) {
	columns := []struct {
		name  string
		value string
	}{
		{"objective_votes", m.ObjectiveVotes},
		{"reward_per_vote", m.RewardPerVote},
		{"reward_amount_per_period", m.RewardAmountPerPeriod},
		{"reward_amount_distributed", m.RewardAmountDistributed},
		{"withdrawable_amount", m.WithdrawableAmount},
	}
	parsed := make([]*big.Int, len(columns))
	for i, c := range columns {
		v, err := parseAmount(c.name, c.value)
		if err != nil {
			return nil, err
		}
		parsed[i] = v
	}
	return &questBoardTypes.QuestPeriod{
		QuestId:                 m.QuestId,
		PeriodId:                m.PeriodId,
		ObjectiveVotes:          parsed[0],
		RewardPerVote:           parsed[1],
		RewardAmountPerPeriod:   parsed[2],
		RewardAmountDistributed: parsed[3],
		WithdrawableAmount:      parsed[4],
		State:                   questBoardTypes.PeriodState(m.State),
	}, nil
}

type DistributorQuest struct {
	Distributor string `gorm:"primaryKey"`
	QuestId     uint64 `gorm:"primaryKey;autoIncrement:false"`
	Token       string
}

func (DistributorQuest) TableName() string {
	return "distributor_quests"
}

type DistributorQuestPeriod struct {
	Distributor   string `gorm:"primaryKey"`
	QuestId       uint64 `gorm:"primaryKey;autoIncrement:false"`
	PeriodId      uint64 `gorm:"primaryKey;autoIncrement:false"`
	Funded        string
	TotalAmount   string
	ClaimedAmount string
	Root          string
}

func (DistributorQuestPeriod) TableName() string {
	return "distributor_quest_periods"
}

type DistributorClaim struct {
	Distributor string `gorm:"primaryKey"`
	QuestId     uint64 `gorm:"primaryKey;autoIncrement:false"`
	PeriodId    uint64 `gorm:"primaryKey;autoIncrement:false"`
	ClaimIndex  uint64 `gorm:"primaryKey;autoIncrement:false"`
}

func (DistributorClaim) TableName() string {
	return "distributor_claims"
}

func distributorPeriodToModel(address common.Address, p *distributor.PeriodRecord) *DistributorQuestPeriod {
	return &DistributorQuestPeriod{
		Distributor:   addressToString(address),
		QuestId:       p.QuestId,
		PeriodId:      p.PeriodId,
		Funded:        amountToString(p.Funded),
		TotalAmount:   amountToString(p.TotalAmount),
		ClaimedAmount: amountToString(p.ClaimedAmount),
		Root:          p.Root.Hex(),
	}
}

func (m *DistributorQuestPeriod) toRecord() (*distributor.PeriodRecord, error) {
	funded, err := parseAmount("funded", m.Funded)
	if err != nil {
		return nil, err
	}
	total, err := parseAmount("total_amount", m.TotalAmount)
	if err != nil {
		return nil, err
	}
	claimed, err := parseAmount("claimed_amount", m.ClaimedAmount)
	if err != nil {
		return nil, err
	}
	return &distributor.PeriodRecord{
		QuestId:       m.QuestId,
		PeriodId:      m.PeriodId,
		Funded:        funded,
		TotalAmount:   total,
		ClaimedAmount: claimed,
		Root:          common.HexToHash(m.Root),
	}, nil
}
