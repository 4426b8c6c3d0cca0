// Package biasOracle computes the vote weight a gauge received at a period boundary,
// optionally reduced by the weight of a set of excluded voters.
package biasOracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/questboard/pkg/gaugeController"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/period"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const defaultCacheSize = 1024

type BiasOracleConfig struct {
	CacheSize int
}

type pointKey struct {
	gauge    common.Address
	boundary uint64
}

type BiasOracle struct {
	controller gaugeController.GaugeController
	cache      *lru.Cache
	clock      clockwork.Clock
	metrics    metricsTypes.IMetricsClient
	logger     *zap.Logger
}

func NewBiasOracle(
	cfg *BiasOracleConfig,
	controller gaugeController.GaugeController,
	clock clockwork.Clock,
	ms metricsTypes.IMetricsClient,
	l *zap.Logger,
) (*BiasOracle, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias cache: %w", err)
	}
	return &BiasOracle{
		controller: controller,
		cache:      cache,
		clock:      clock,
		metrics:    ms,
		logger:     l,
	}, nil
}

// GaugeBiasAt returns the total weight of the gauge at the boundary timestamp.
//
// Points for boundaries that are already in the past can no longer change and are cached.
func (bo *BiasOracle) GaugeBiasAt(ctx context.Context, gauge common.Address, boundary uint64) (*big.Int, error) {
	key := pointKey{gauge: gauge, boundary: boundary}
	if v, ok := bo.cache.Get(key); ok {
		bo.incr(metricsTypes.Metric_Incr_BiasCacheHit)
		return new(big.Int).Set(v.(*big.Int)), nil
	}
	bo.incr(metricsTypes.Metric_Incr_BiasCacheMiss)

	point, err := bo.controller.PointsWeight(ctx, gauge, boundary)
	if err != nil {
		return nil, fmt.Errorf("failed to read gauge weight: %w", err)
	}

	if boundary <= period.Current(bo.clock) {
		bo.cache.Add(key, new(big.Int).Set(point.Bias))
	}
	return point.Bias, nil
}

// VoterBias returns the decayed weight the voter still directs at the gauge at the boundary.
func (bo *BiasOracle) VoterBias(ctx context.Context, voter common.Address, gauge common.Address, boundary uint64) (*big.Int, error) {
	slope, err := bo.controller.VoteUserSlopes(ctx, voter, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to read voter slope: %w", err)
	}
	lastVote, err := bo.controller.LastUserVote(ctx, voter, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to read voter last vote: %w", err)
	}
	return ComputeVoterBias(slope.Slope, slope.End, lastVote, boundary), nil
}

// ReducedBias returns max(0, gauge bias - sum of the excluded voters' biases) at the
// boundary that ends periodId.
func (bo *BiasOracle) ReducedBias(ctx context.Context, gauge common.Address, periodId uint64, excluded []common.Address) (*big.Int, error) {
	boundary := period.Next(periodId)

	gaugeBias, err := bo.GaugeBiasAt(ctx, gauge, boundary)
	if err != nil {
		return nil, err
	}

	excludedBias := new(big.Int)
	for _, voter := range excluded {
		vb, err := bo.VoterBias(ctx, voter, gauge, boundary)
		if err != nil {
			return nil, err
		}
		excludedBias.Add(excludedBias, vb)
	}

	if excludedBias.Cmp(gaugeBias) >= 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Sub(gaugeBias, excludedBias), nil
}

// IsValidGauge returns true when the registry knows the gauge with a non-negative type tag.
func (bo *BiasOracle) IsValidGauge(ctx context.Context, gauge common.Address) (bool, error) {
	gaugeType, err := bo.controller.GaugeTypes(ctx, gauge)
	if err != nil {
		if errors.Is(err, gaugeController.ErrInvalidGauge) {
			return false, nil
		}
		return false, err
	}
	return gaugeType >= 0, nil
}

// ComputeVoterBias returns slope * (end - boundary) when the vote was cast at or before the
// boundary and is still running after it, otherwise zero.
func ComputeVoterBias(slope *big.Int, end *big.Int, lastVote uint64, boundary uint64) *big.Int {
	if slope == nil || slope.Sign() == 0 || end == nil {
		return new(big.Int)
	}
	if lastVote > boundary {
		return new(big.Int)
	}
	b := new(big.Int).SetUint64(boundary)
	if end.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Mul(slope, new(big.Int).Sub(end, b))
}

func (bo *BiasOracle) incr(name string) {
	if bo.metrics == nil {
		return
	}
	if err := bo.metrics.Incr(name, nil, 1); err != nil {
		bo.logger.Sugar().Debugw("Failed to record metric", zap.String("name", name), zap.Error(err))
	}
}
