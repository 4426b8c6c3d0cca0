package gaugeController

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type voteKey struct {
	voter common.Address
	gauge common.Address
}

type memoryVote struct {
	slope    VotedSlope
	lastVote uint64
}

// MemoryGaugeController is an in-process GaugeController. Unwritten points read as zero.
type MemoryGaugeController struct {
	mu     sync.RWMutex
	types  map[common.Address]int64
	points map[common.Address]map[uint64]*Point
	votes  map[voteKey]*memoryVote
}

func NewMemoryGaugeController() *MemoryGaugeController {
	return &MemoryGaugeController{
		types:  make(map[common.Address]int64),
		points: make(map[common.Address]map[uint64]*Point),
		votes:  make(map[voteKey]*memoryVote),
	}
}

// AddGauge registers a gauge with the given type tag.
func (m *MemoryGaugeController) AddGauge(gauge common.Address, gaugeType int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[gauge] = gaugeType
	if _, ok := m.points[gauge]; !ok {
		m.points[gauge] = make(map[uint64]*Point)
	}
}

// SetGaugeBias writes the gauge weight for the boundary ts.
func (m *MemoryGaugeController) SetGaugeBias(gauge common.Address, ts uint64, bias *big.Int, slope *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.points[gauge]; !ok {
		m.points[gauge] = make(map[uint64]*Point)
	}
	if slope == nil {
		slope = new(big.Int)
	}
	m.points[gauge][ts] = &Point{Bias: new(big.Int).Set(bias), Slope: new(big.Int).Set(slope)}
}

// SetVote records a voter's vote on a gauge.
func (m *MemoryGaugeController) SetVote(voter common.Address, gauge common.Address, slope *big.Int, power *big.Int, end uint64, lastVote uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if power == nil {
		power = new(big.Int)
	}
	m.votes[voteKey{voter: voter, gauge: gauge}] = &memoryVote{
		slope: VotedSlope{
			Slope: new(big.Int).Set(slope),
			Power: new(big.Int).Set(power),
			End:   new(big.Int).SetUint64(end),
		},
		lastVote: lastVote,
	}
}

func (m *MemoryGaugeController) PointsWeight(_ context.Context, gauge common.Address, ts uint64) (*Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.points[gauge][ts]; ok {
		return &Point{Bias: new(big.Int).Set(p.Bias), Slope: new(big.Int).Set(p.Slope)}, nil
	}
	return &Point{Bias: new(big.Int), Slope: new(big.Int)}, nil
}

func (m *MemoryGaugeController) VoteUserSlopes(_ context.Context, voter common.Address, gauge common.Address) (*VotedSlope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.votes[voteKey{voter: voter, gauge: gauge}]; ok {
		return &VotedSlope{
			Slope: new(big.Int).Set(v.slope.Slope),
			Power: new(big.Int).Set(v.slope.Power),
			End:   new(big.Int).Set(v.slope.End),
		}, nil
	}
	return &VotedSlope{Slope: new(big.Int), Power: new(big.Int), End: new(big.Int)}, nil
}

func (m *MemoryGaugeController) LastUserVote(_ context.Context, voter common.Address, gauge common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.votes[voteKey{voter: voter, gauge: gauge}]; ok {
		return v.lastVote, nil
	}
	return 0, nil
}

func (m *MemoryGaugeController) GaugeTypes(_ context.Context, gauge common.Address) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[gauge]
	if !ok {
		return 0, ErrInvalidGauge
	}
	return t, nil
}
