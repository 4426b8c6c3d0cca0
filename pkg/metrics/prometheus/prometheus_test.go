package prometheus

import (
	"testing"
	"time"

	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T) (*PrometheusMetricsClient, *prometheus.Registry) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	registry := prometheus.NewRegistry()
	pmc, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics:    metricsTypes.MetricTypes,
		Registerer: registry,
	}, l)
	assert.Nil(t, err)
	return pmc, registry
}

func Test_UnexpectedLabelsParsing(t *testing.T) {
	pmc, _ := setup(t)

	t.Run("Should return no error for all labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_HttpDuration, []metricsTypes.MetricsLabel{
			{Name: "method", Value: "GET"},
			{Name: "pattern", Value: "/quests/{questId}"},
			{Name: "status_code", Value: "200"},
		})
		assert.Nil(t, err)
	})
	t.Run("Should return an error for a subset of labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_HttpDuration, []metricsTypes.MetricsLabel{
			{Name: "method", Value: "GET"},
		})
		assert.NotNil(t, err)
	})
	t.Run("Should return an error for labels on a metric without labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Incr, metricsTypes.Metric_Incr_BiasCacheHit, []metricsTypes.MetricsLabel{
			{Name: "gauge", Value: "0x01"},
		})
		assert.NotNil(t, err)
	})
	t.Run("Should return an error for unexpected labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_HttpDuration, []metricsTypes.MetricsLabel{
			{Name: "method", Value: "GET"},
			{Name: "pattern", Value: "/quests"},
			{Name: "unexpectedLabel", Value: "unexpectedValue"},
		})
		assert.NotNil(t, err)
	})
}

func Test_PrometheusMetricsClient(t *testing.T) {
	pmc, registry := setup(t)

	t.Run("Should register every declared metric", func(t *testing.T) {
		err := pmc.Incr(metricsTypes.Metric_Incr_MerkleRootAdded, nil, 1)
		assert.Nil(t, err)
		err = pmc.Gauge(metricsTypes.Metric_Gauge_PendingPeriods, 3, nil)
		assert.Nil(t, err)

		count, err := testutil.GatherAndCount(registry, "board_merkleRootAdded", "settlement_pendingPeriods")
		assert.Nil(t, err)
		assert.Equal(t, 2, count)
	})
	t.Run("Should increment counters", func(t *testing.T) {
		labels := []metricsTypes.MetricsLabel{{Name: "token", Value: "0xabc"}}
		assert.Nil(t, pmc.Incr(metricsTypes.Metric_Incr_QuestCreated, labels, 1))
		assert.Nil(t, pmc.Incr(metricsTypes.Metric_Incr_QuestCreated, labels, 2))

		assert.Equal(t, float64(3), testutil.ToFloat64(pmc.counters[metricsTypes.Metric_Incr_QuestCreated].WithLabelValues("0xabc")))
	})
	t.Run("Should record timings", func(t *testing.T) {
		err := pmc.Timing(metricsTypes.Metric_Timing_SettlementRunTime, 25*time.Millisecond, []metricsTypes.MetricsLabel{{Name: "hasError", Value: "false"}})
		assert.Nil(t, err)
	})
	t.Run("Should ignore unknown metrics", func(t *testing.T) {
		assert.Nil(t, pmc.Incr("does.not.exist", nil, 1))
	})
}
