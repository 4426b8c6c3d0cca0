// Package gaugeController reads the external vote weight registry that quests are scored against.
//
// The registry is read-only from the board's point of view. Two implementations are provided:
// an Ethereum JSON-RPC client calling a deployed gauge controller, and an in-memory controller
// used for simulations and tests.
package gaugeController

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidGauge is returned when the registry does not know the gauge.
var ErrInvalidGauge = errors.New("gauge is not registered")

// Point is the total weight of a gauge at a period boundary.
type Point struct {
	Bias  *big.Int
	Slope *big.Int
}

// VotedSlope is a voter's current vote on a gauge. The vote decays linearly
// at Slope per second until End.
type VotedSlope struct {
	Slope *big.Int
	Power *big.Int
	End   *big.Int
}

// GaugeController is the read surface of the vote weight registry.
type GaugeController interface {
	// PointsWeight returns the gauge weight written for the period boundary ts.
	PointsWeight(ctx context.Context, gauge common.Address, ts uint64) (*Point, error)

	// VoteUserSlopes returns the voter's latest vote on the gauge.
	VoteUserSlopes(ctx context.Context, voter common.Address, gauge common.Address) (*VotedSlope, error)

	// LastUserVote returns the timestamp of the voter's latest vote on the gauge.
	LastUserVote(ctx context.Context, voter common.Address, gauge common.Address) (uint64, error)

	// GaugeTypes returns the gauge type tag, or ErrInvalidGauge.
	GaugeTypes(ctx context.Context, gauge common.Address) (int64, error)
}
