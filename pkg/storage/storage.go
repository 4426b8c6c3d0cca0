// Package storage persists quest board state.
package storage

import (
	"context"
	"sync"

	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
)

// BoardStore loads and commits board state.
//
// Commit writes the change set, including the distributor records it carries, and then
// calls apply inside the same unit of work. If apply returns an error nothing is written.
// apply may be nil.
type BoardStore interface {
	Load(ctx context.Context) (*questBoardTypes.State, error)
	Commit(ctx context.Context, cs *questBoardTypes.ChangeSet, apply func() error) error
}

// Store persists a board together with the distributors it settles into.
type Store interface {
	BoardStore
	distributor.Store
}

// MemoryBoardStore keeps state in memory. It is used for simulation and tests.
// It also implements distributor.Store.
type MemoryBoardStore struct {
	mu           sync.Mutex
	state        *questBoardTypes.State
	distributors map[common.Address]*distributor.Records
}

func NewMemoryBoardStore() *MemoryBoardStore {
	return &MemoryBoardStore{
		state:        questBoardTypes.NewState(),
		distributors: make(map[common.Address]*distributor.Records),
	}
}

func (s *MemoryBoardStore) Load(ctx context.Context) (*questBoardTypes.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

func (s *MemoryBoardStore) Commit(ctx context.Context, cs *questBoardTypes.ChangeSet, apply func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	s.state.Apply(cs)
	for address, records := range cs.Distributors {
		s.mergeDistributor(address, records)
	}
	return nil
}

// LoadDistributor returns a copy of the records committed for the distributor at address.
func (s *MemoryBoardStore) LoadDistributor(ctx context.Context, address common.Address) (*distributor.Records, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := &distributor.Records{}
	records.Merge(s.distributors[address])
	return records, nil
}

// CommitDistributor runs apply and keeps records only if apply succeeds.
func (s *MemoryBoardStore) CommitDistributor(ctx context.Context, address common.Address, records *distributor.Records, apply func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	s.mergeDistributor(address, records)
	return nil
}

func (s *MemoryBoardStore) mergeDistributor(address common.Address, records *distributor.Records) {
	if _, ok := s.distributors[address]; !ok {
		s.distributors[address] = &distributor.Records{}
	}
	s.distributors[address].Merge(records)
}
