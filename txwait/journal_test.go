package txwait

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

type MockWaiter struct {
	mock.Mock
}

func (m *MockWaiter) Await(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	args := m.Called(ctx, hash, confirmations)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

func testTx(nonce uint64) *types.Transaction {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	return types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
}

func TestSubmit_ReattachesAfterTimeout(t *testing.T) {
	ctx := context.Background()
	journal := NewJournal()
	tx := testTx(0)

	waiter := new(MockWaiter)
	waiter.On("Await", ctx, tx.Hash(), uint64(1)).
		Return(nil, &interfaces.TransactionTimeoutError{Hash: tx.Hash(), Waited: time.Second, Confirmations: 1}).Once()
	waiter.On("Await", ctx, tx.Hash(), uint64(1)).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil).Once()

	submits := 0
	submit := func(context.Context) (*types.Transaction, error) {
		submits++
		return tx, nil
	}

	_, err := Submit(ctx, waiter, journal, "bid", 1, nil, submit)
	var timeout *interfaces.TransactionTimeoutError
	require.ErrorAs(t, err, &timeout)

	hash, pending := journal.Lookup("bid")
	require.True(t, pending)
	assert.Equal(t, tx.Hash(), hash)

	receipt, err := Submit(ctx, waiter, journal, "bid", 1, nil, submit)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), receipt.TxHash)

	assert.Equal(t, 1, submits, "retry must not resubmit")
	assert.Empty(t, journal.Keys())
	waiter.AssertExpectations(t)
}

func TestSubmit_ClearsOnFinalOutcome(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		receipt *types.Receipt
		err     error
	}{
		{
			name:    "success",
			receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
		},
		{
			name:    "reverted",
			receipt: &types.Receipt{Status: types.ReceiptStatusFailed},
			err:     &interfaces.TransactionRevertedError{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			journal := NewJournal()
			tx := testTx(1)

			waiter := new(MockWaiter)
			waiter.On("Await", ctx, tx.Hash(), uint64(2)).Return(tc.receipt, tc.err)

			_, err := Submit(ctx, waiter, journal, "settle", 2, nil, func(context.Context) (*types.Transaction, error) {
				return tx, nil
			})
			if tc.err != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			_, pending := journal.Lookup("settle")
			assert.False(t, pending)
		})
	}
}

func TestSubmit_SubmitError(t *testing.T) {
	journal := NewJournal()
	waiter := new(MockWaiter)
	submitErr := errors.New("insufficient funds")

	_, err := Submit(context.Background(), waiter, journal, "mint", 1, nil, func(context.Context) (*types.Transaction, error) {
		return nil, submitErr
	})
	assert.ErrorIs(t, err, submitErr)
	assert.Empty(t, journal.Keys())
	waiter.AssertNotCalled(t, "Await", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_NilJournal(t *testing.T) {
	ctx := context.Background()
	tx := testTx(2)
	waiter := new(MockWaiter)
	waiter.On("Await", ctx, tx.Hash(), uint64(1)).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)

	receipt, err := Submit(ctx, waiter, nil, "x", 1, nil, func(context.Context) (*types.Transaction, error) { return tx, nil })
	require.NoError(t, err)
	assert.NotNil(t, receipt)
}
