package txwait

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// Journal remembers transactions submitted for an operation until their
// outcome is known, so a retry after a timeout re-attaches to the pending
// transaction instead of submitting a second one.
type Journal struct {
	mu      sync.Mutex
	pending map[string]common.Hash
}

func NewJournal() *Journal {
	return &Journal{pending: make(map[string]common.Hash)}
}

// Record marks hash as the in-flight transaction for key.
func (j *Journal) Record(key string, hash common.Hash) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending[key] = hash
}

// Lookup returns the in-flight transaction for key, if any.
func (j *Journal) Lookup(key string) (common.Hash, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	hash, ok := j.pending[key]
	return hash, ok
}

// Clear forgets key.
func (j *Journal) Clear(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.pending, key)
}

// Keys returns the operations with an unresolved transaction, sorted.
func (j *Journal) Keys() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	keys := make([]string, 0, len(j.pending))
	for k := range j.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SubmitFunc sends a transaction and returns it without waiting.
type SubmitFunc func(ctx context.Context) (*types.Transaction, error)

// Submit sends a transaction through submit and awaits it.
//
// When journal already holds a transaction for key, submit is skipped and
// the pending transaction is awaited instead. The journal entry survives a
// timeout or cancelled wait and is dropped once the outcome is final.
// A nil journal disables re-attachment.
func Submit(ctx context.Context, waiter interfaces.TransactionWaiter, journal *Journal, key string, confirmations uint64, log *slog.Logger, submit SubmitFunc) (*types.Receipt, error) {
	if log == nil {
		log = slog.Default()
	}

	var hash common.Hash
	attached := false
	if journal != nil {
		hash, attached = journal.Lookup(key)
	}

	if attached {
		log.Info("Re-attaching to pending transaction",
			slog.String("op", key),
			slog.String("txHash", hash.Hex()))
	} else {
		tx, err := submit(ctx)
		if err != nil {
			return nil, err
		}
		hash = tx.Hash()
		if journal != nil {
			journal.Record(key, hash)
		}
		log.Info("Transaction submitted",
			slog.String("op", key),
			slog.String("txHash", hash.Hex()))
	}

	receipt, err := waiter.Await(ctx, hash, confirmations)
	if journal != nil && !retryable(err) {
		journal.Clear(key)
	}
	return receipt, err
}

// retryable reports whether err leaves the transaction outcome unknown.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var timeout *interfaces.TransactionTimeoutError
	return errors.As(err, &timeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
