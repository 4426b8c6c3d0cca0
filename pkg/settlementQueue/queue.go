// Package settlementQueue runs period settlement in the background. Requests from the
// scheduler and from operators are serialized through a single queue.
package settlementQueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("settlement queue is closed")

// NewSettlementQueue creates a queue that settles periods on the settler as the account
// operator returns. ms may be nil.
func NewSettlementQueue(settler Settler, operator OperatorFunc, clock clockwork.Clock, ms metricsTypes.IMetricsClient, logger *zap.Logger) *SettlementQueue {
	return &SettlementQueue{
		logger:   logger,
		settler:  settler,
		operator: operator,
		metrics:  ms,
		clock:    clock,
		// allow the queue to buffer up to 100 messages
		queue: make(chan *SettlementMessage, 100),
		done:  make(chan struct{}),
	}
}

// Enqueue adds a message to the queue without waiting for it to be processed.
func (sq *SettlementQueue) Enqueue(payload *SettlementMessage) error {
	sq.logger.Sugar().Infow("Enqueueing settlement message",
		zap.String("type", string(payload.Data.SettlementType)),
		zap.Uint64("periodId", payload.Data.PeriodId),
	)
	select {
	case <-sq.done:
		return ErrQueueClosed
	default:
	}
	select {
	case sq.queue <- payload:
		return nil
	case <-sq.done:
		return ErrQueueClosed
	}
}

// EnqueueAndWait adds a message to the queue and waits for its outcome or for ctx to be done.
func (sq *SettlementQueue) EnqueueAndWait(ctx context.Context, data SettlementData) (*SettlementResponseData, error) {
	responseChan := make(chan *SettlementResponse, 1)

	payload := &SettlementMessage{
		Data:         data,
		ResponseChan: responseChan,
	}
	if err := sq.Enqueue(payload); err != nil {
		return nil, err
	}

	sq.logger.Sugar().Debugw("Waiting for settlement response", zap.String("type", string(data.SettlementType)))

	select {
	case response := <-responseChan:
		return response.Data, response.Error
	case <-ctx.Done():
		sq.logger.Sugar().Infow("Stopped waiting for settlement response", zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

// Close stops Process. Messages still buffered are dropped.
func (sq *SettlementQueue) Close() {
	sq.logger.Sugar().Infow("Closing settlement queue")
	close(sq.done)
}

// Process handles messages until the queue is closed or ctx is done.
func (sq *SettlementQueue) Process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			sq.logger.Sugar().Infow("Settlement queue context done", zap.Error(ctx.Err()))
			return
		case <-sq.done:
			sq.logger.Sugar().Infow("Settlement queue closed")
			return
		case msg := <-sq.queue:
			response := sq.handle(ctx, msg.Data)
			if msg.ResponseChan != nil {
				msg.ResponseChan <- response
			}
		}
	}
}

func (sq *SettlementQueue) handle(ctx context.Context, data SettlementData) *SettlementResponse {
	start := sq.clock.Now()

	caller := sq.operator()
	var closed map[uint64][]uint64
	var err error
	switch data.SettlementType {
	case SettlementType_ClosePeriod:
		closed, err = sq.closePeriod(ctx, caller, data.PeriodId)
	case SettlementType_ClosePartOfPeriod:
		err = sq.settler.ClosePartOfPeriod(ctx, caller, data.PeriodId, data.QuestIds)
		if err == nil {
			closed = map[uint64][]uint64{data.PeriodId: data.QuestIds}
		} else {
			sq.recordFailure(err)
		}
	case SettlementType_ClosePendingPeriods:
		closed, err = sq.closePendingPeriods(ctx, caller)
	default:
		err = fmt.Errorf("unknown settlement type '%s'", data.SettlementType)
	}

	if sq.metrics != nil {
		timingErr := sq.metrics.Timing(metricsTypes.Metric_Timing_SettlementRunTime, sq.clock.Since(start), []metricsTypes.MetricsLabel{
			{Name: "hasError", Value: strconv.FormatBool(err != nil)},
		})
		sq.logMetricError(metricsTypes.Metric_Timing_SettlementRunTime, timingErr)
	}
	if err != nil {
		sq.logger.Sugar().Errorw("Settlement failed",
			zap.String("type", string(data.SettlementType)),
			zap.Uint64("periodId", data.PeriodId),
			zap.Error(err),
		)
	}
	return &SettlementResponse{
		Data:  &SettlementResponseData{ClosedQuests: closed},
		Error: err,
	}
}

func (sq *SettlementQueue) closePeriod(ctx context.Context, caller common.Address, periodId uint64) (map[uint64][]uint64, error) {
	questIds, err := sq.settler.ClosePeriod(ctx, caller, periodId)
	if err != nil {
		sq.recordFailure(err)
		return nil, err
	}
	return map[uint64][]uint64{periodId: questIds}, nil
}

// closePendingPeriods closes the pending periods oldest first. A failing period does not
// stop the others; every failure is returned.
func (sq *SettlementQueue) closePendingPeriods(ctx context.Context, caller common.Address) (map[uint64][]uint64, error) {
	pending := sq.settler.GetPendingPeriods()
	sq.gauge(metricsTypes.Metric_Gauge_PendingPeriods, float64(len(pending)))
	sq.gauge(metricsTypes.Metric_Gauge_CurrentPeriod, float64(sq.settler.GetCurrentPeriod()))

	closed := make(map[uint64][]uint64)
	var errs []error
	for _, periodId := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := sq.closePeriod(ctx, caller, periodId)
		if err != nil {
			errs = append(errs, fmt.Errorf("period %d: %w", periodId, err))
			continue
		}
		closed[periodId] = res[periodId]
		sq.logger.Sugar().Infow("Closed pending period",
			zap.Uint64("periodId", periodId),
			zap.Int("quests", len(res[periodId])),
		)
	}
	return closed, errors.Join(errs...)
}

func (sq *SettlementQueue) recordFailure(err error) {
	if sq.metrics == nil {
		return
	}
	incrErr := sq.metrics.Incr(metricsTypes.Metric_Incr_SettlementFailed, []metricsTypes.MetricsLabel{
		{Name: "kind", Value: string(questBoard.KindOf(err))},
	}, 1)
	sq.logMetricError(metricsTypes.Metric_Incr_SettlementFailed, incrErr)
}

func (sq *SettlementQueue) gauge(name string, value float64) {
	if sq.metrics == nil {
		return
	}
	sq.logMetricError(name, sq.metrics.Gauge(name, value, []metricsTypes.MetricsLabel{}))
}

func (sq *SettlementQueue) logMetricError(name string, err error) {
	if err != nil {
		sq.logger.Sugar().Debugw("Failed to record metric", zap.String("name", name), zap.Error(err))
	}
}
