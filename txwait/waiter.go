// Package txwait waits for ledger transactions to reach a confirmation depth.
//
// Every state-changing call in the marketplace is routed through a Waiter.
// A mined transaction with a failed status is reported as
// *interfaces.TransactionRevertedError, a transaction that did not reach the
// requested depth within the wait bound as *interfaces.TransactionTimeoutError.
// The two are never conflated: a timed out transaction may still be mined and
// can be re-attached to by hash.
package txwait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 5 * time.Minute
)

// ReceiptBackend is the subset of an Ethereum client the waiter needs.
type ReceiptBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Waiter polls for receipts until the requested confirmations are reached.
type Waiter struct {
	backend      ReceiptBackend
	pollInterval time.Duration
	timeout      time.Duration
	log          *slog.Logger
}

var _ interfaces.TransactionWaiter = (*Waiter)(nil)

type Option func(*Waiter)

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) Option {
	return func(w *Waiter) { w.pollInterval = d }
}

// WithTimeout bounds every Await call. Zero disables the bound; the caller's
// context deadline still applies.
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) { w.timeout = d }
}

// NewWaiter creates a waiter polling backend.
func NewWaiter(backend ReceiptBackend, log *slog.Logger, opts ...Option) *Waiter {
	if log == nil {
		log = slog.Default()
	}
	w := &Waiter{
		backend:      backend,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		log:          log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AwaitTx waits for tx. See Await.
func (w *Waiter) AwaitTx(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	if tx == nil {
		return nil, &interfaces.ValidationError{Field: "transaction", Reason: "nil transaction"}
	}
	return w.Await(ctx, tx.Hash(), confirmations)
}

// Await blocks until the transaction identified by hash is included and
// buried under confirmations-1 further blocks.
//
// Cancelling ctx abandons the wait and returns an error wrapping
// context.Canceled; the transaction itself is not retracted.
func (w *Waiter) Await(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	if confirmations < 1 {
		return nil, &interfaces.ValidationError{Field: "confirmations", Reason: "must be at least 1"}
	}

	start := time.Now()
	waitCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				w.log.Warn("Transaction reverted",
					slog.String("txHash", hash.Hex()),
					slog.Uint64("gasUsed", receipt.GasUsed))
				return receipt, &interfaces.TransactionRevertedError{Hash: hash, Receipt: receipt}
			}
			if w.confirmed(waitCtx, receipt, confirmations) {
				w.log.Debug("Transaction confirmed",
					slog.String("txHash", hash.Hex()),
					slog.Uint64("confirmations", confirmations),
					slog.Duration("duration", time.Since(start)))
				return receipt, nil
			}
		case errors.Is(err, ethereum.NotFound):
			// still pending
		default:
			if waitCtx.Err() == nil {
				w.log.Debug("Receipt lookup failed", slog.String("txHash", hash.Hex()), "err", err)
			}
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("stopped waiting for transaction %s: %w", hash.Hex(), ctx.Err())
			}
			w.log.Warn("Transaction not confirmed in time",
				slog.String("txHash", hash.Hex()),
				slog.Duration("waited", time.Since(start)))
			return nil, &interfaces.TransactionTimeoutError{
				Hash:          hash,
				Waited:        time.Since(start),
				Confirmations: confirmations,
			}
		case <-ticker.C:
		}
	}
}

func (w *Waiter) confirmed(ctx context.Context, receipt *types.Receipt, confirmations uint64) bool {
	if receipt.BlockNumber == nil {
		return false
	}
	if confirmations == 1 {
		return true
	}
	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		w.log.Debug("Block number lookup failed", "err", err)
		return false
	}
	included := receipt.BlockNumber.Uint64()
	return head >= included && head-included+1 >= confirmations
}
