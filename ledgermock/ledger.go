// Package ledgermock provides an in-memory marketplace ledger for tests.
//
// Ledger holds the registry, auction and collection state that the real
// contracts would hold, enforces the same preconditions on execution and
// issues receipts for every write. It implements interfaces.TransactionWaiter
// and hands out interfaces.ContractProvider values bound to a signer, so
// coordinators can be exercised without a chain.
//
// Writes execute immediately unless the ledger is held (see Hold), in which
// case they stay pending until Mine is called and Await reports a timeout.
package ledgermock

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Submission records one accepted write.
type Submission struct {
	Method string
	From   common.Address
	Hash   common.Hash
}

type execResult struct {
	reason  string
	logs    []*types.Log
	created common.Address
}

type pendingTx struct {
	hash common.Hash
	exec func() execResult
}

type collection struct {
	name      string
	symbol    string
	owners    map[string]common.Address
	uris      map[string]string
	operators map[common.Address]map[common.Address]bool
	nextID    int64
}

// Ledger is the in-memory chain state.
type Ledger struct {
	mu sync.Mutex

	chainID  uint64
	now      time.Time
	block    uint64
	nonce    uint64
	held     bool
	nextAddr uint64

	receipts    map[common.Hash]*types.Receipt
	reasons     map[common.Hash]string
	pending     []pendingTx
	submissions []Submission
	undeployed  map[interfaces.Role]bool

	registryAddr common.Address
	auctionAddr  common.Address

	collections  map[common.Address]*collection
	registered   []interfaces.CollectionRecord
	auctions     map[string]*interfaces.AuctionRecord
	auctionOrder []string

	// OnSubmit, when set, runs after a write is accepted and before it
	// executes. It is called without the ledger lock held.
	OnSubmit func(Submission)
}

var _ interfaces.TransactionWaiter = (*Ledger)(nil)

// NewLedger creates a ledger for chainID with its clock set to now.
func NewLedger(chainID uint64, now time.Time) *Ledger {
	return &Ledger{
		chainID:      chainID,
		now:          now,
		nextAddr:     0x1000,
		receipts:     make(map[common.Hash]*types.Receipt),
		reasons:      make(map[common.Hash]string),
		undeployed:   make(map[interfaces.Role]bool),
		registryAddr: common.HexToAddress("0x00000000000000000000000000000000000000a0"),
		auctionAddr:  common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		collections:  make(map[common.Address]*collection),
		auctions:     make(map[string]*interfaces.AuctionRecord),
	}
}

func (l *Ledger) ChainID() uint64 { return l.chainID }

func (l *Ledger) RegistryAddress() common.Address { return l.registryAddr }

func (l *Ledger) AuctionAddress() common.Address { return l.auctionAddr }

// Now returns the ledger clock. Pass it to coordinators as their clock.
func (l *Ledger) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Advance moves the ledger clock forward.
func (l *Ledger) Advance(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = l.now.Add(d)
}

// Undeploy makes providers fail to hand out role with RoleNotDeployedError.
func (l *Ledger) Undeploy(role interfaces.Role) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undeployed[role] = true
}

// Hold keeps subsequent writes pending until Mine.
func (l *Ledger) Hold(hold bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = hold
}

// Mine executes all pending writes in submission order.
func (l *Ledger) Mine() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		l.execute(p.hash, p.exec)
	}
	l.pending = nil
}

// Submissions returns accepted writes in order.
func (l *Ledger) Submissions() []Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Submission(nil), l.submissions...)
}

// Methods returns the method names of accepted writes in order.
func (l *Ledger) Methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	methods := make([]string, 0, len(l.submissions))
	for _, s := range l.submissions {
		methods = append(methods, s.Method)
	}
	return methods
}

// RevertReason returns why a reverted transaction failed.
func (l *Ledger) RevertReason(hash common.Hash) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reasons[hash]
}

// Await implements interfaces.TransactionWaiter.
func (l *Ledger) Await(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	if confirmations < 1 {
		return nil, &interfaces.ValidationError{Field: "confirmations", Reason: "must be at least 1"}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stopped waiting for transaction %s: %w", hash.Hex(), err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	receipt, ok := l.receipts[hash]
	if !ok {
		for _, p := range l.pending {
			if p.hash == hash {
				return nil, &interfaces.TransactionTimeoutError{Hash: hash, Confirmations: confirmations}
			}
		}
		return nil, fmt.Errorf("unknown transaction %s", hash.Hex())
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, &interfaces.TransactionRevertedError{Hash: hash, Receipt: receipt}
	}
	return receipt, nil
}

// submit accepts a write and executes it unless the ledger is held.
func (l *Ledger) submit(method string, from common.Address, exec func() execResult) (*types.Transaction, error) {
	if from == (common.Address{}) {
		return nil, interfaces.ErrNoTransactOpts
	}

	l.mu.Lock()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    l.nonce,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		Data:     []byte(method),
	})
	l.nonce++
	sub := Submission{Method: method, From: from, Hash: tx.Hash()}
	l.submissions = append(l.submissions, sub)
	hook := l.OnSubmit
	l.mu.Unlock()

	if hook != nil {
		hook(sub)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		l.pending = append(l.pending, pendingTx{hash: tx.Hash(), exec: exec})
	} else {
		l.execute(tx.Hash(), exec)
	}
	return tx, nil
}

func (l *Ledger) execute(hash common.Hash, exec func() execResult) {
	l.block++
	res := exec()

	receipt := &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		TxHash:          hash,
		BlockNumber:     new(big.Int).SetUint64(l.block),
		ContractAddress: res.created,
		Logs:            res.logs,
	}
	if res.reason != "" {
		receipt.Status = types.ReceiptStatusFailed
		receipt.Logs = nil
		receipt.ContractAddress = common.Address{}
		l.reasons[hash] = res.reason
	}
	l.receipts[hash] = receipt
}

func revert(format string, args ...any) execResult {
	return execResult{reason: fmt.Sprintf(format, args...)}
}

func tokenKey(nft common.Address, tokenID *big.Int) string {
	return interfaces.TokenKey{Contract: nft, TokenID: tokenID}.String()
}

func (l *Ledger) newAddress() common.Address {
	l.nextAddr++
	return common.BigToAddress(new(big.Int).SetUint64(l.nextAddr))
}

// DeployCollection creates a collection directly, without a transaction.
func (l *Ledger) DeployCollection(name, symbol string) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deployLocked(name, symbol)
}

func (l *Ledger) deployLocked(name, symbol string) common.Address {
	addr := l.newAddress()
	l.collections[addr] = &collection{
		name:      name,
		symbol:    symbol,
		owners:    make(map[string]common.Address),
		uris:      make(map[string]string),
		operators: make(map[common.Address]map[common.Address]bool),
		nextID:    1,
	}
	return addr
}

// Mint mints directly, without a transaction, and returns the token id.
func (l *Ledger) Mint(collectionAddr, to common.Address, uri string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := l.mintLocked(collectionAddr, to, uri)
	if res.reason != "" {
		return nil, errors.New(res.reason)
	}
	return new(big.Int).SetBytes(res.logs[0].Topics[3].Bytes()), nil
}

func (l *Ledger) mintLocked(collectionAddr, to common.Address, uri string) execResult {
	c, ok := l.collections[collectionAddr]
	if !ok {
		return revert("no contract at %s", collectionAddr.Hex())
	}
	id := big.NewInt(c.nextID)
	c.nextID++
	c.owners[id.String()] = to
	c.uris[id.String()] = uri

	return execResult{logs: []*types.Log{{
		Address: collectionAddr,
		Topics: []common.Hash{
			transferTopic,
			{},
			common.BytesToHash(to.Bytes()),
			common.BigToHash(id),
		},
	}}}
}

// OwnerOf reads token ownership directly.
func (l *Ledger) OwnerOf(collectionAddr common.Address, tokenID *big.Int) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.collections[collectionAddr]; ok {
		return c.owners[tokenID.String()]
	}
	return common.Address{}
}

func (l *Ledger) setApprovalLocked(collectionAddr, owner, operator common.Address, approved bool) execResult {
	c, ok := l.collections[collectionAddr]
	if !ok {
		return revert("no contract at %s", collectionAddr.Hex())
	}
	if c.operators[owner] == nil {
		c.operators[owner] = make(map[common.Address]bool)
	}
	c.operators[owner][operator] = approved
	return execResult{}
}

func (l *Ledger) registerLocked(from, collectionAddr, owner common.Address, name, symbol string) execResult {
	for _, r := range l.registered {
		if r.Address == collectionAddr {
			return revert("collection already registered")
		}
	}
	l.registered = append(l.registered, interfaces.CollectionRecord{
		Address: collectionAddr,
		Name:    name,
		Symbol:  symbol,
		Owner:   owner,
	})
	return execResult{}
}

func (l *Ledger) createAuctionLocked(from, nft common.Address, tokenID, startingBid *big.Int, duration uint64) execResult {
	c, ok := l.collections[nft]
	if !ok {
		return revert("no contract at %s", nft.Hex())
	}
	if startingBid.Sign() <= 0 || duration == 0 {
		return revert("invalid auction parameters")
	}
	owner := c.owners[tokenID.String()]
	if owner != from && !c.operators[owner][from] {
		return revert("not token owner or operator")
	}
	if !c.operators[owner][l.auctionAddr] {
		return revert("auction contract not approved")
	}
	key := tokenKey(nft, tokenID)
	if existing, ok := l.auctions[key]; ok && !existing.Settled {
		return revert("auction already exists")
	}

	c.owners[tokenID.String()] = l.auctionAddr
	if _, ok := l.auctions[key]; !ok {
		l.auctionOrder = append(l.auctionOrder, key)
	}
	l.auctions[key] = &interfaces.AuctionRecord{
		NFTContract: nft,
		TokenID:     new(big.Int).Set(tokenID),
		Seller:      from,
		HighestBid:  new(big.Int).Set(startingBid),
		EndTime:     l.now.Add(time.Duration(duration) * time.Second).UTC(),
	}
	return execResult{}
}

func (l *Ledger) placeBidLocked(from, nft common.Address, tokenID, amount *big.Int) execResult {
	a, ok := l.auctions[tokenKey(nft, tokenID)]
	if !ok {
		return revert("auction does not exist")
	}
	if a.Settled || !l.now.Before(a.EndTime) {
		return revert("auction ended")
	}
	if amount.Cmp(a.HighestBid) <= 0 {
		return revert("bid too low")
	}
	a.HighestBid = new(big.Int).Set(amount)
	a.HighestBidder = from
	return execResult{}
}

func (l *Ledger) settleLocked(nft common.Address, tokenID *big.Int) execResult {
	a, ok := l.auctions[tokenKey(nft, tokenID)]
	if !ok {
		return revert("auction does not exist")
	}
	if a.Settled {
		return revert("auction already settled")
	}
	if l.now.Before(a.EndTime) {
		return revert("auction not ended")
	}
	a.Settled = true

	recipient := a.Seller
	if a.HighestBidder != (common.Address{}) {
		recipient = a.HighestBidder
	}
	l.collections[nft].owners[tokenID.String()] = recipient
	return execResult{}
}

func copyAuction(a *interfaces.AuctionRecord) interfaces.AuctionRecord {
	out := *a
	out.TokenID = new(big.Int).Set(a.TokenID)
	out.HighestBid = new(big.Int).Set(a.HighestBid)
	return out
}

func sortedIDs(ids []*big.Int) []*big.Int {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}
