package interfaces

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoTransactOpts is returned when a write is attempted on a handle bound without a signer.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// UnknownNetworkError is returned when no deployment is recorded for a chain.
type UnknownNetworkError struct {
	ChainID uint64
}

func (e *UnknownNetworkError) Error() string {
	return fmt.Sprintf("no contracts deployed on network %d", e.ChainID)
}

// RoleNotDeployedError is returned when a deployment lacks a contract role.
type RoleNotDeployedError struct {
	ChainID uint64
	Role    Role
}

func (e *RoleNotDeployedError) Error() string {
	return fmt.Sprintf("%s contract is not deployed on network %d", e.Role, e.ChainID)
}

// CollectionNotRegisteredError is returned for addresses the registry never indexed.
type CollectionNotRegisteredError struct {
	Address common.Address
}

func (e *CollectionNotRegisteredError) Error() string {
	return fmt.Sprintf("collection %s is not registered", e.Address.Hex())
}

// BidTooLowError is returned when a bid does not exceed the current highest bid.
type BidTooLowError struct {
	Token      TokenKey
	Amount     *big.Int
	HighestBid *big.Int
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid %s on %s must exceed highest bid %s", e.Amount, e.Token, e.HighestBid)
}

// AuctionClosedError is returned when bidding on an ended or settled auction.
type AuctionClosedError struct {
	Token   TokenKey
	EndTime time.Time
	Settled bool
}

func (e *AuctionClosedError) Error() string {
	if e.Settled {
		return fmt.Sprintf("auction %s is settled", e.Token)
	}
	return fmt.Sprintf("auction %s ended at %s", e.Token, e.EndTime.UTC().Format(time.RFC3339))
}

// AuctionNotEndedError is returned when settling before the end time.
type AuctionNotEndedError struct {
	Token   TokenKey
	EndTime time.Time
}

func (e *AuctionNotEndedError) Error() string {
	return fmt.Sprintf("auction %s has not ended, ends at %s", e.Token, e.EndTime.UTC().Format(time.RFC3339))
}

// AlreadySettledError is returned when settling a settled auction.
type AlreadySettledError struct {
	Token TokenKey
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("auction %s is already settled", e.Token)
}

// AuctionExistsError is returned when creating an auction for a token with an active auction.
type AuctionExistsError struct {
	Token   TokenKey
	EndTime time.Time
}

func (e *AuctionExistsError) Error() string {
	return fmt.Sprintf("auction %s is already active until %s", e.Token, e.EndTime.UTC().Format(time.RFC3339))
}

// AuctionNotFoundError is returned when no auction was ever created for a token.
type AuctionNotFoundError struct {
	Token TokenKey
}

func (e *AuctionNotFoundError) Error() string {
	return fmt.Sprintf("no auction for %s", e.Token)
}

// NotTokenOwnerError is returned when the caller neither owns nor operates a token.
type NotTokenOwnerError struct {
	Token  TokenKey
	Caller common.Address
	Owner  common.Address
}

func (e *NotTokenOwnerError) Error() string {
	return fmt.Sprintf("%s is not owner or operator of %s (owner %s)", e.Caller.Hex(), e.Token, e.Owner.Hex())
}

// SettleNotPermittedError is returned when the settle policy rejects the caller.
type SettleNotPermittedError struct {
	Token  TokenKey
	Caller common.Address
	Policy string
}

func (e *SettleNotPermittedError) Error() string {
	return fmt.Sprintf("%s may not settle %s under policy %s", e.Caller.Hex(), e.Token, e.Policy)
}

// TransactionRevertedError is returned for transactions mined with a failed status.
type TransactionRevertedError struct {
	Hash    common.Hash
	Receipt *types.Receipt
}

func (e *TransactionRevertedError) Error() string {
	if e.Receipt != nil && e.Receipt.BlockNumber != nil {
		return fmt.Sprintf("transaction %s reverted in block %s", e.Hash.Hex(), e.Receipt.BlockNumber)
	}
	return fmt.Sprintf("transaction %s reverted", e.Hash.Hex())
}

// TransactionTimeoutError is returned when confirmations were not reached in time.
// The transaction may still be mined later.
type TransactionTimeoutError struct {
	Hash          common.Hash
	Waited        time.Duration
	Confirmations uint64
}

func (e *TransactionTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed (%d confirmations) after %s", e.Hash.Hex(), e.Confirmations, e.Waited)
}

// MetadataFetchError is returned when a metadata document cannot be fetched or parsed.
type MetadataFetchError struct {
	Ref ContentReference
	Err error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("failed to fetch metadata %s: %v", e.Ref, e.Err)
}

func (e *MetadataFetchError) Unwrap() error {
	return e.Err
}

// ValidationError is returned for malformed caller input. It never reaches the ledger.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OperationError annotates a failure with the operation and subject it belongs to.
type OperationError struct {
	Op      string
	Subject string
	Err     error
}

func (e *OperationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
