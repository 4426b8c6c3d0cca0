package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBBalanceStore keys balances by token address followed by account address.
type LevelDBBalanceStore struct {
	db *leveldb.DB
}

func NewLevelDBBalanceStore(path string) (*LevelDBBalanceStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at '%s': %w", path, err)
	}
	return &LevelDBBalanceStore{db: db}, nil
}

// NewLevelDBBalanceStoreFromStorage opens a store on an existing leveldb storage, e.g. storage.NewMemStorage().
func NewLevelDBBalanceStoreFromStorage(stor storage.Storage) (*LevelDBBalanceStore, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDBBalanceStore{db: db}, nil
}

func balanceDbKey(token common.Address, account common.Address) []byte {
	key := make([]byte, 0, common.AddressLength*2)
	key = append(key, token.Bytes()...)
	return append(key, account.Bytes()...)
}

func (s *LevelDBBalanceStore) LoadBalances() ([]*Balance, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	balances := make([]*Balance, 0)
	for iter.Next() {
		key := iter.Key()
		if len(key) != common.AddressLength*2 {
			return nil, fmt.Errorf("malformed balance key of length %d", len(key))
		}
		balances = append(balances, &Balance{
			Token:   common.BytesToAddress(key[:common.AddressLength]),
			Account: common.BytesToAddress(key[common.AddressLength:]),
			Amount:  new(big.Int).SetBytes(iter.Value()),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return balances, nil
}

func (s *LevelDBBalanceStore) WriteBalances(balances []*Balance) error {
	batch := new(leveldb.Batch)
	for _, b := range balances {
		batch.Put(balanceDbKey(b.Token, b.Account), b.Amount.Bytes())
	}
	return s.db.Write(batch, nil)
}

func (s *LevelDBBalanceStore) Close() error {
	return s.db.Close()
}
