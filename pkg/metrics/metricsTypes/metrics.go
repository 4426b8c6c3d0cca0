package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_QuestCreated        = "board.questCreated"
	Metric_Incr_QuestToppedUp       = "board.questToppedUp"
	Metric_Incr_PeriodClosed        = "board.periodClosed"
	Metric_Incr_RewardsDistributed  = "board.rewardsDistributed"
	Metric_Incr_RewardsWithdrawn    = "board.rewardsWithdrawn"
	Metric_Incr_MerkleRootAdded     = "board.merkleRootAdded"
	Metric_Incr_HttpRequest         = "rpc.http.request"
	Metric_Incr_BiasCacheHit        = "oracle.cache.hit"
	Metric_Incr_BiasCacheMiss       = "oracle.cache.miss"
	Metric_Incr_SettlementFailed    = "settlement.failed"
	Metric_Incr_DistributorClaimed  = "distributor.claimed"
	Metric_Gauge_CurrentPeriod      = "board.currentPeriod"
	Metric_Gauge_PendingPeriods     = "settlement.pendingPeriods"
	Metric_Timing_HttpDuration      = "rpc.http.duration"
	Metric_Timing_SettlementRunTime = "settlement.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_QuestCreated,
			Labels: []string{"token"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_QuestToppedUp,
			Labels: []string{"token", "kind"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_PeriodClosed,
			Labels: []string{"saturated"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardsDistributed,
			Labels: []string{"token"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RewardsWithdrawn,
			Labels: []string{"token", "kind"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_MerkleRootAdded,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"pattern",
				"status_code",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_BiasCacheHit,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_BiasCacheMiss,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_SettlementFailed,
			Labels: []string{"kind"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_DistributorClaimed,
			Labels: []string{"token"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_CurrentPeriod,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_PendingPeriods,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"pattern",
				"status_code",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_SettlementRunTime,
			Labels: []string{
				"hasError",
			},
		},
	},
}
