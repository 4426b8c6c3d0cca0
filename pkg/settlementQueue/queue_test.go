package settlementQueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var operator = common.HexToAddress("0x00000000000000000000000000000000000000a2")

type fakeSettler struct {
	mu      sync.Mutex
	allowed common.Address
	pending []uint64
	failing map[uint64]error
	closed  []uint64
	partial map[uint64][]uint64
	calls   chan uint64
}

func newFakeSettler(pending ...uint64) *fakeSettler {
	return &fakeSettler{
		allowed: operator,
		pending: pending,
		failing: make(map[uint64]error),
		partial: make(map[uint64][]uint64),
		calls:   make(chan uint64, 10),
	}
}

func (f *fakeSettler) ClosePeriod(_ context.Context, caller common.Address, periodId uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.allowed {
		return nil, questBoard.ErrCallerNotAllowed
	}
	if err, ok := f.failing[periodId]; ok {
		return nil, err
	}
	f.closed = append(f.closed, periodId)
	f.calls <- periodId
	return []uint64{0, 1}, nil
}

func (f *fakeSettler) ClosePartOfPeriod(_ context.Context, _ common.Address, periodId uint64, questIds []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[periodId]; ok {
		return err
	}
	f.partial[periodId] = questIds
	return nil
}

func (f *fakeSettler) GetPendingPeriods() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64{}, f.pending...)
}

func (f *fakeSettler) GetCurrentPeriod() uint64 {
	return 10 * 604800
}

type recordedMetric struct {
	name   string
	labels []metricsTypes.MetricsLabel
	value  float64
}

type fakeMetrics struct {
	mu     sync.Mutex
	incrs  []recordedMetric
	gauges []recordedMetric
	timing []recordedMetric
}

func (m *fakeMetrics) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrs = append(m.incrs, recordedMetric{name: name, labels: labels, value: value})
	return nil
}

func (m *fakeMetrics) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges = append(m.gauges, recordedMetric{name: name, labels: labels, value: value})
	return nil
}

func (m *fakeMetrics) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timing = append(m.timing, recordedMetric{name: name, labels: labels, value: float64(value)})
	return nil
}

func (m *fakeMetrics) Flush() {}

func setup(t *testing.T, settler *fakeSettler) (*SettlementQueue, *fakeMetrics, *clockwork.FakeClock, *zap.Logger) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	clock := clockwork.NewFakeClock()
	ms := &fakeMetrics{}
	return NewSettlementQueue(settler, StaticOperator(operator), clock, ms, l), ms, clock, l
}

func Test_SettlementQueue(t *testing.T) {
	t.Run("Should resolve the operator for every request", func(t *testing.T) {
		settler := newFakeSettler()
		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		assert.Nil(t, err)

		var mu sync.Mutex
		current := operator
		sq := NewSettlementQueue(settler, func() common.Address {
			mu.Lock()
			defer mu.Unlock()
			return current
		}, clockwork.NewFakeClock(), nil, l)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sq.Process(ctx)

		_, err = sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePeriod, PeriodId: 604800})
		assert.Nil(t, err)

		// ownership moves to a new account
		newOwner := common.HexToAddress("0x00000000000000000000000000000000000000a9")
		settler.mu.Lock()
		settler.allowed = newOwner
		settler.mu.Unlock()

		_, err = sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePeriod, PeriodId: 2 * 604800})
		assert.True(t, errors.Is(err, questBoard.ErrCallerNotAllowed))

		mu.Lock()
		current = newOwner
		mu.Unlock()
		_, err = sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePeriod, PeriodId: 2 * 604800})
		assert.Nil(t, err)
	})
	t.Run("Should close a period and respond", func(t *testing.T) {
		settler := newFakeSettler()
		sq, ms, _, _ := setup(t, settler)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sq.Process(ctx)

		res, err := sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePeriod, PeriodId: 604800})
		assert.Nil(t, err)
		assert.Equal(t, map[uint64][]uint64{604800: {0, 1}}, res.ClosedQuests)
		assert.Len(t, ms.timing, 1)
		assert.Equal(t, "false", ms.timing[0].labels[0].Value)
	})
	t.Run("Should close part of a period", func(t *testing.T) {
		settler := newFakeSettler()
		sq, _, _, _ := setup(t, settler)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sq.Process(ctx)

		_, err := sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePartOfPeriod, PeriodId: 604800, QuestIds: []uint64{3}})
		assert.Nil(t, err)
		assert.Equal(t, []uint64{3}, settler.partial[604800])
	})
	t.Run("Should close every pending period and report failures", func(t *testing.T) {
		settler := newFakeSettler(604800, 2*604800, 3*604800)
		settler.failing[2*604800] = fmt.Errorf("rpc down: %w", errors.New("timeout"))
		sq, ms, _, _ := setup(t, settler)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sq.Process(ctx)

		res, err := sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePendingPeriods})
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "period 1209600")
		assert.Equal(t, []uint64{604800, 3 * 604800}, settler.closed)
		assert.Len(t, res.ClosedQuests, 2)

		assert.Len(t, ms.incrs, 1)
		assert.Equal(t, metricsTypes.Metric_Incr_SettlementFailed, ms.incrs[0].name)
		assert.Equal(t, string(questBoard.ErrorKind_Internal), ms.incrs[0].labels[0].Value)

		gauges := map[string]float64{}
		for _, g := range ms.gauges {
			gauges[g.name] = g.value
		}
		assert.Equal(t, float64(3), gauges[metricsTypes.Metric_Gauge_PendingPeriods])
	})
	t.Run("Should reject unknown settlement types", func(t *testing.T) {
		sq, _, _, _ := setup(t, newFakeSettler())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sq.Process(ctx)

		_, err := sq.EnqueueAndWait(ctx, SettlementData{SettlementType: "reopen"})
		assert.NotNil(t, err)
	})
	t.Run("Should stop waiting when the context is done", func(t *testing.T) {
		sq, _, _, _ := setup(t, newFakeSettler())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// nothing is processing the queue
		_, err := sq.EnqueueAndWait(ctx, SettlementData{SettlementType: SettlementType_ClosePeriod, PeriodId: 604800})
		assert.True(t, errors.Is(err, context.Canceled))
	})
	t.Run("Should refuse messages once closed", func(t *testing.T) {
		sq, _, _, _ := setup(t, newFakeSettler())
		sq.Close()
		err := sq.Enqueue(&SettlementMessage{Data: SettlementData{SettlementType: SettlementType_ClosePendingPeriods}})
		assert.True(t, errors.Is(err, ErrQueueClosed))
	})
}

func Test_Scheduler(t *testing.T) {
	settler := newFakeSettler(604800)
	sq, _, clock, l := setup(t, settler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sq.Process(ctx)

	s := NewScheduler(&SchedulerConfig{Interval: time.Minute}, sq, clock, nil, l)
	go s.Run(ctx)

	assert.Nil(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	select {
	case periodId := <-settler.calls:
		assert.Equal(t, uint64(604800), periodId)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not close the pending period")
	}
}
