// Package auction coordinates the auction lifecycle (create, bid, settle)
// and checks the auction contract's preconditions client-side before any
// transaction is submitted.
//
// Every decision is taken against a snapshot fetched immediately before the
// corresponding write; snapshots returned to callers are informational.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/txwait"
)

// SettlePolicy decides who may settle an ended auction.
type SettlePolicy int

const (
	// SettleParticipants admits the seller and the highest bidder.
	SettleParticipants SettlePolicy = iota
	// SettleAnyone admits every signer.
	SettleAnyone
	// SettleSellerOnly admits the seller.
	SettleSellerOnly
)

func (p SettlePolicy) String() string {
	switch p {
	case SettleParticipants:
		return "participants"
	case SettleAnyone:
		return "anyone"
	case SettleSellerOnly:
		return "seller-only"
	default:
		return "unknown"
	}
}

// ParseSettlePolicy is the inverse of SettlePolicy.String.
func ParseSettlePolicy(s string) (SettlePolicy, error) {
	for _, p := range []SettlePolicy{SettleParticipants, SettleAnyone, SettleSellerOnly} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown settle policy %q", s)
}

func (p SettlePolicy) permits(record *interfaces.AuctionRecord, caller common.Address) bool {
	switch p {
	case SettleAnyone:
		return true
	case SettleSellerOnly:
		return caller == record.Seller
	default:
		return caller == record.Seller || (record.HighestBidder != (common.Address{}) && caller == record.HighestBidder)
	}
}

// Coordinator is the AuctionCoordinator. It holds no auction state of its own.
type Coordinator struct {
	provider      interfaces.ContractProvider
	waiter        interfaces.TransactionWaiter
	journal       *txwait.Journal
	confirmations uint64
	policy        SettlePolicy
	now           func() time.Time
	log           *slog.Logger
}

type Option func(*Coordinator)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithSettlePolicy(p SettlePolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithJournal makes writes re-attach to transactions left pending by a
// previous timed out call.
func WithJournal(j *txwait.Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithConfirmations sets the confirmation depth awaited for every write.
func WithConfirmations(n uint64) Option {
	return func(c *Coordinator) { c.confirmations = n }
}

func NewCoordinator(provider interfaces.ContractProvider, waiter interfaces.TransactionWaiter, log *slog.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		provider:      provider,
		waiter:        waiter,
		confirmations: 1,
		policy:        SettleParticipants,
		now:           time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the settle policy in force.
func (c *Coordinator) Policy() SettlePolicy {
	return c.policy
}

// CreateAuction lists tokenID of nft for duration with a starting bid.
//
// When the auction contract is not yet an approved operator of the token
// owner, the approval is submitted and confirmed first; createAuction is
// never submitted before that confirmation.
func (c *Coordinator) CreateAuction(ctx context.Context, nft common.Address, tokenID, startingBid *big.Int, duration time.Duration) (*interfaces.AuctionRecord, error) {
	if err := validateToken(nft, tokenID); err != nil {
		return nil, err
	}
	if startingBid == nil || startingBid.Sign() <= 0 {
		return nil, &interfaces.ValidationError{Field: "starting bid", Reason: "must be positive"}
	}
	seconds := uint64(duration / time.Second)
	if duration <= 0 || seconds == 0 {
		return nil, &interfaces.ValidationError{Field: "duration", Reason: "must be at least one second"}
	}

	signer := c.provider.Signer()
	if signer == (common.Address{}) {
		return nil, interfaces.ErrNoTransactOpts
	}
	key := interfaces.TokenKey{Contract: nft, TokenID: tokenID}

	house, err := c.provider.Auction()
	if err != nil {
		return nil, err
	}
	collection, err := c.provider.Collection(nft)
	if err != nil {
		return nil, err
	}

	existing, err := house.GetAuction(ctx, nft, tokenID)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "read auction", Subject: key.String(), Err: err}
	}
	if existing.Exists() && !existing.Settled {
		return nil, &interfaces.AuctionExistsError{Token: key, EndTime: existing.EndTime}
	}

	owner, err := collection.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "read owner", Subject: key.String(), Err: err}
	}
	if owner != signer {
		operator, err := collection.IsApprovedForAll(ctx, owner, signer)
		if err != nil {
			return nil, &interfaces.OperationError{Op: "read approval", Subject: key.String(), Err: err}
		}
		if !operator {
			return nil, &interfaces.NotTokenOwnerError{Token: key, Caller: signer, Owner: owner}
		}
	}

	approved, err := collection.IsApprovedForAll(ctx, owner, house.Address())
	if err != nil {
		return nil, &interfaces.OperationError{Op: "read approval", Subject: key.String(), Err: err}
	}
	approvalOp := fmt.Sprintf("setApprovalForAll:%s:%s:%s", nft.Hex(), signer.Hex(), house.Address().Hex())
	if approved && c.journal != nil {
		// an approval left pending by an earlier timeout has since been mined
		c.journal.Clear(approvalOp)
	}
	if !approved {
		if owner != signer {
			return nil, &interfaces.ValidationError{
				Field:  "approval",
				Reason: fmt.Sprintf("owner %s has not approved the auction contract", owner.Hex()),
			}
		}

		c.log.Info("Approving auction contract",
			slog.String("collection", nft.Hex()),
			slog.String("operator", house.Address().Hex()))
		_, err := c.submit(ctx, approvalOp,
			func(ctx context.Context) (*types.Transaction, error) {
				return collection.SetApprovalForAll(ctx, house.Address(), true)
			})
		if err != nil {
			return nil, &interfaces.OperationError{Op: "approve auction contract", Subject: key.String(), Err: err}
		}
	}

	_, err = c.submit(ctx, "createAuction:"+key.String(), func(ctx context.Context) (*types.Transaction, error) {
		return house.CreateAuction(ctx, nft, tokenID, startingBid, seconds)
	})
	if err != nil {
		return nil, &interfaces.OperationError{Op: "create auction", Subject: key.String(), Err: err}
	}

	created, err := house.GetAuction(ctx, nft, tokenID)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "read auction", Subject: key.String(), Err: err}
	}
	if !created.Exists() || created.Settled {
		return nil, &interfaces.OperationError{Op: "create auction", Subject: key.String(), Err: errors.New("auction not active after confirmation")}
	}

	c.log.Info("Created auction",
		slog.String("token", key.String()),
		slog.String("seller", created.Seller.Hex()),
		slog.String("startingBid", startingBid.String()),
		slog.Time("endTime", created.EndTime))
	return &created, nil
}

// PlaceBid bids amount on an active auction.
func (c *Coordinator) PlaceBid(ctx context.Context, nft common.Address, tokenID, amount *big.Int) (*interfaces.AuctionRecord, error) {
	if err := validateToken(nft, tokenID); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, &interfaces.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	signer := c.provider.Signer()
	if signer == (common.Address{}) {
		return nil, interfaces.ErrNoTransactOpts
	}
	key := interfaces.TokenKey{Contract: nft, TokenID: tokenID}

	house, err := c.provider.Auction()
	if err != nil {
		return nil, err
	}

	snapshot, err := c.fetch(ctx, house, key)
	if err != nil {
		return nil, err
	}
	switch StateOf(snapshot, c.now()) {
	case StateSettled, StateEnded:
		return nil, &interfaces.AuctionClosedError{Token: key, EndTime: snapshot.EndTime, Settled: snapshot.Settled}
	}
	if amount.Cmp(snapshot.HighestBid) <= 0 {
		return nil, &interfaces.BidTooLowError{Token: key, Amount: new(big.Int).Set(amount), HighestBid: snapshot.HighestBid}
	}
	if snapshot.Seller == signer {
		return nil, &interfaces.ValidationError{Field: "bidder", Reason: "seller cannot bid on own auction"}
	}

	_, err = c.submit(ctx, fmt.Sprintf("placeBid:%s:%s:%s", key, signer.Hex(), amount), func(ctx context.Context) (*types.Transaction, error) {
		return house.PlaceBid(ctx, nft, tokenID, amount)
	})
	if err != nil {
		return nil, &interfaces.OperationError{Op: "place bid", Subject: key.String(), Err: err}
	}

	after, err := c.fetch(ctx, house, key)
	if err != nil {
		return nil, err
	}
	if after.HighestBid.Cmp(snapshot.HighestBid) < 0 {
		return nil, &interfaces.OperationError{Op: "place bid", Subject: key.String(),
			Err: fmt.Errorf("highest bid decreased from %s to %s", snapshot.HighestBid, after.HighestBid)}
	}

	c.log.Info("Placed bid",
		slog.String("token", key.String()),
		slog.String("bidder", signer.Hex()),
		slog.String("amount", amount.String()))
	return after, nil
}

// SettleAuction settles an ended auction.
func (c *Coordinator) SettleAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (*interfaces.AuctionRecord, error) {
	if err := validateToken(nft, tokenID); err != nil {
		return nil, err
	}
	signer := c.provider.Signer()
	if signer == (common.Address{}) {
		return nil, interfaces.ErrNoTransactOpts
	}
	key := interfaces.TokenKey{Contract: nft, TokenID: tokenID}

	house, err := c.provider.Auction()
	if err != nil {
		return nil, err
	}

	snapshot, err := c.fetch(ctx, house, key)
	if err != nil {
		return nil, err
	}
	switch StateOf(snapshot, c.now()) {
	case StateSettled:
		return nil, &interfaces.AlreadySettledError{Token: key}
	case StateActive:
		return nil, &interfaces.AuctionNotEndedError{Token: key, EndTime: snapshot.EndTime}
	}
	if !c.policy.permits(snapshot, signer) {
		return nil, &interfaces.SettleNotPermittedError{Token: key, Caller: signer, Policy: c.policy.String()}
	}

	_, err = c.submit(ctx, "settleAuction:"+key.String(), func(ctx context.Context) (*types.Transaction, error) {
		return house.SettleAuction(ctx, nft, tokenID)
	})
	if err != nil {
		return nil, &interfaces.OperationError{Op: "settle auction", Subject: key.String(), Err: err}
	}

	after, err := c.fetch(ctx, house, key)
	if err != nil {
		return nil, err
	}
	if !after.Settled {
		return nil, &interfaces.OperationError{Op: "settle auction", Subject: key.String(), Err: errors.New("auction not settled after confirmation")}
	}

	c.log.Info("Settled auction",
		slog.String("token", key.String()),
		slog.String("winner", after.HighestBidder.Hex()),
		slog.String("price", after.HighestBid.String()))
	return after, nil
}

// GetAuction returns the current auction of a token.
func (c *Coordinator) GetAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (*interfaces.AuctionRecord, error) {
	if err := validateToken(nft, tokenID); err != nil {
		return nil, err
	}
	house, err := c.provider.Auction()
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, house, interfaces.TokenKey{Contract: nft, TokenID: tokenID})
}

// GetAllActiveAuctions lists auctions that are unsettled and not yet ended,
// in the order the contract returns them.
func (c *Coordinator) GetAllActiveAuctions(ctx context.Context) ([]interfaces.AuctionRecord, error) {
	house, err := c.provider.Auction()
	if err != nil {
		return nil, err
	}
	records, err := house.GetAllActiveAuctions(ctx)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "list auctions", Err: err}
	}

	now := c.now()
	active := make([]interfaces.AuctionRecord, 0, len(records))
	for i := range records {
		if Active(&records[i], now) {
			active = append(active, records[i])
		}
	}
	return active, nil
}

// Now returns the coordinator clock.
func (c *Coordinator) Now() time.Time {
	return c.now()
}

func (c *Coordinator) fetch(ctx context.Context, house interfaces.AuctionContract, key interfaces.TokenKey) (*interfaces.AuctionRecord, error) {
	record, err := house.GetAuction(ctx, key.Contract, key.TokenID)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "read auction", Subject: key.String(), Err: err}
	}
	if !record.Exists() {
		return nil, &interfaces.AuctionNotFoundError{Token: key}
	}
	if record.HighestBid == nil {
		record.HighestBid = new(big.Int)
	}
	return &record, nil
}

func (c *Coordinator) submit(ctx context.Context, op string, send txwait.SubmitFunc) (*types.Receipt, error) {
	return txwait.Submit(ctx, c.waiter, c.journal, op, c.confirmations, c.log, send)
}

func validateToken(nft common.Address, tokenID *big.Int) error {
	if nft == (common.Address{}) {
		return &interfaces.ValidationError{Field: "nft contract", Reason: "zero address"}
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return &interfaces.ValidationError{Field: "token id", Reason: "must be a non-negative integer"}
	}
	return nil
}
