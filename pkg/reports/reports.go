// Package reports renders quest periods for operators.
package reports

import (
	"fmt"
	"io"
	"math/big"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/period"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/gocarina/gocsv"
)

// QuestPeriodRow is one CSV line. Amounts are raw integers, the *Units columns are the
// same amounts scaled down by 1e18.
type QuestPeriodRow struct {
	QuestId                 uint64 `csv:"quest_id"`
	PeriodId                uint64 `csv:"period_id"`
	PeriodStart             string `csv:"period_start"`
	State                   string `csv:"state"`
	ObjectiveVotes          string `csv:"objective_votes"`
	RewardPerVote           string `csv:"reward_per_vote"`
	RewardAmountPerPeriod   string `csv:"reward_amount_per_period"`
	RewardAmountDistributed string `csv:"reward_amount_distributed"`
	WithdrawableAmount      string `csv:"withdrawable_amount"`
	DistributedUnits        string `csv:"distributed_units"`
	WithdrawableUnits       string `csv:"withdrawable_units"`
	CompletionRate          string `csv:"completion_rate"`
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func NewQuestPeriodRow(qp *questBoardTypes.QuestPeriod) *QuestPeriodRow {
	return &QuestPeriodRow{
		QuestId:                 qp.QuestId,
		PeriodId:                qp.PeriodId,
		PeriodStart:             period.Time(qp.PeriodId).UTC().Format("2006-01-02"),
		State:                   qp.State.String(),
		ObjectiveVotes:          amount(qp.ObjectiveVotes),
		RewardPerVote:           amount(qp.RewardPerVote),
		RewardAmountPerPeriod:   amount(qp.RewardAmountPerPeriod),
		RewardAmountDistributed: amount(qp.RewardAmountDistributed),
		WithdrawableAmount:      amount(qp.WithdrawableAmount),
		DistributedUnits:        numbers.ToUnits(qp.RewardAmountDistributed),
		WithdrawableUnits:       numbers.ToUnits(qp.WithdrawableAmount),
		CompletionRate:          numbers.Ratio(qp.RewardAmountDistributed, qp.RewardAmountPerPeriod, 4),
	}
}

// WriteQuestPeriods writes the periods as CSV with a header line.
func WriteQuestPeriods(w io.Writer, periods []*questBoardTypes.QuestPeriod) error {
	rows := make([]*QuestPeriodRow, 0, len(periods))
	for _, qp := range periods {
		rows = append(rows, NewQuestPeriodRow(qp))
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to render quest periods: %w", err)
	}
	return nil
}

// ReadQuestPeriods parses rows written by WriteQuestPeriods.
func ReadQuestPeriods(r io.Reader) ([]*QuestPeriodRow, error) {
	rows := make([]*QuestPeriodRow, 0)
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse quest periods: %w", err)
	}
	return rows, nil
}
