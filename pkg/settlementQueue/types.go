package settlementQueue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SettlementType defines which settlement operation a message asks for.
type SettlementType string

var (
	// SettlementType_ClosePeriod closes every ACTIVE quest of one period
	SettlementType_ClosePeriod SettlementType = "closePeriod"

	// SettlementType_ClosePartOfPeriod closes the listed quests of one period
	SettlementType_ClosePartOfPeriod SettlementType = "closePartOfPeriod"

	// SettlementType_ClosePendingPeriods closes every ended period that still has ACTIVE quests
	SettlementType_ClosePendingPeriods SettlementType = "closePendingPeriods"
)

// SettlementData contains the parameters of a settlement request.
type SettlementData struct {
	SettlementType SettlementType

	// PeriodId is the period to close. It is ignored for SettlementType_ClosePendingPeriods.
	PeriodId uint64

	// QuestIds lists the quests to close for SettlementType_ClosePartOfPeriod
	QuestIds []uint64
}

// SettlementMessage is one request in the queue.
type SettlementMessage struct {
	Data SettlementData

	// ResponseChan receives the outcome. If nil, no response is sent.
	ResponseChan chan *SettlementResponse
}

// SettlementResponseData lists what a request closed.
type SettlementResponseData struct {
	// ClosedQuests maps each closed period id to the quests closed in it
	ClosedQuests map[uint64][]uint64
}

type SettlementResponse struct {
	Data  *SettlementResponseData
	Error error
}

// Settler is the part of the quest board the queue drives.
type Settler interface {
	ClosePeriod(ctx context.Context, caller common.Address, periodId uint64) ([]uint64, error)
	ClosePartOfPeriod(ctx context.Context, caller common.Address, periodId uint64, questIds []uint64) error
	GetPendingPeriods() []uint64
	GetCurrentPeriod() uint64
}

// OperatorFunc returns the account a settlement request runs as. It is called once per
// request, so ownership and manager changes apply without a restart.
type OperatorFunc func() common.Address

// StaticOperator settles every request as account.
func StaticOperator(account common.Address) OperatorFunc {
	return func() common.Address {
		return account
	}
}

// SettlementQueue serializes settlement requests against the board. Requests are handled
// one at a time by Process.
type SettlementQueue struct {
	logger *zap.Logger

	settler Settler

	// operator resolves the account settlement calls are made as. It must be the owner or a manager.
	operator OperatorFunc

	metrics metricsTypes.IMetricsClient
	clock   clockwork.Clock

	queue chan *SettlementMessage

	done chan struct{}
}

type SchedulerConfig struct {
	Interval time.Duration
}

// Scheduler periodically asks the queue to close pending periods.
type Scheduler struct {
	config  *SchedulerConfig
	queue   *SettlementQueue
	clock   clockwork.Clock
	metrics metricsTypes.IMetricsClient
	logger  *zap.Logger

	// inFlight is set while a scheduled request is still queued or running
	inFlight atomic.Bool
}
