package ledger

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"
)

var (
	token = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func setup(t *testing.T) *zap.Logger {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	return l
}

func Test_Ledger(t *testing.T) {
	l := setup(t)
	ledger, err := NewLedger(nil, l)
	assert.Nil(t, err)

	assert.Nil(t, ledger.Mint(token, alice, big.NewInt(100)))

	t.Run("Should move funds", func(t *testing.T) {
		err := ledger.Transfer(Transfer{Token: token, From: alice, To: bob, Amount: big.NewInt(40)})
		assert.Nil(t, err)
		assert.Equal(t, int64(60), ledger.BalanceOf(token, alice).Int64())
		assert.Equal(t, int64(40), ledger.BalanceOf(token, bob).Int64())
	})
	t.Run("Should apply chained transfers against staged balances", func(t *testing.T) {
		err := ledger.Transfer(
			Transfer{Token: token, From: bob, To: carol, Amount: big.NewInt(40)},
			Transfer{Token: token, From: carol, To: alice, Amount: big.NewInt(10)},
		)
		assert.Nil(t, err)
		assert.Equal(t, int64(70), ledger.BalanceOf(token, alice).Int64())
		assert.Equal(t, int64(0), ledger.BalanceOf(token, bob).Int64())
		assert.Equal(t, int64(30), ledger.BalanceOf(token, carol).Int64())
	})
	t.Run("Should leave balances untouched when any transfer fails", func(t *testing.T) {
		err := ledger.Transfer(
			Transfer{Token: token, From: alice, To: bob, Amount: big.NewInt(10)},
			Transfer{Token: token, From: carol, To: bob, Amount: big.NewInt(31)},
		)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, int64(70), ledger.BalanceOf(token, alice).Int64())
		assert.Equal(t, int64(0), ledger.BalanceOf(token, bob).Int64())
	})
	t.Run("Should reject negative amounts", func(t *testing.T) {
		err := ledger.Transfer(Transfer{Token: token, From: alice, To: bob, Amount: big.NewInt(-1)})
		assert.ErrorIs(t, err, ErrInvalidTransfer)
	})
	t.Run("Should reverse transfers", func(t *testing.T) {
		tr := Transfer{Token: token, From: alice, To: bob, Amount: big.NewInt(5)}
		assert.Nil(t, ledger.Transfer(tr))
		assert.Nil(t, ledger.Transfer(tr.Reverse()))
		assert.Equal(t, int64(70), ledger.BalanceOf(token, alice).Int64())
	})
}

func Test_LevelDBBalanceStore(t *testing.T) {
	l := setup(t)
	stor := storage.NewMemStorage()

	store, err := NewLevelDBBalanceStoreFromStorage(stor)
	assert.Nil(t, err)

	ledger, err := NewLedger(store, l)
	assert.Nil(t, err)
	assert.Nil(t, ledger.Mint(token, alice, big.NewInt(100)))
	assert.Nil(t, ledger.Transfer(Transfer{Token: token, From: alice, To: bob, Amount: big.NewInt(25)}))
	assert.Nil(t, ledger.Close())

	t.Run("Should reload persisted balances", func(t *testing.T) {
		reopened, err := NewLevelDBBalanceStoreFromStorage(stor)
		assert.Nil(t, err)

		ledger, err := NewLedger(reopened, l)
		assert.Nil(t, err)
		defer ledger.Close()

		assert.Equal(t, int64(75), ledger.BalanceOf(token, alice).Int64())
		assert.Equal(t, int64(25), ledger.BalanceOf(token, bob).Int64())
		assert.Equal(t, int64(0), ledger.BalanceOf(token, carol).Int64())
	})
}
