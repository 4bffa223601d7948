package contracts

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// auctionRecord converts a decoded auction into an AuctionRecord. The
// requested pair wins over the decoded one since empty slots return zeroed
// tuples.
func auctionRecord(r row, nft common.Address, tokenID *big.Int) interfaces.AuctionRecord {
	if nft == (common.Address{}) {
		nft = r.address(fieldNFTContract)
	}
	if tokenID == nil {
		tokenID = r.bigInt(fieldTokenID)
	}

	rec := interfaces.AuctionRecord{
		NFTContract:   nft,
		TokenID:       new(big.Int).Set(orZero(tokenID)),
		Seller:        r.address(fieldSeller),
		HighestBidder: r.address(fieldHighestBidder),
		HighestBid:    orZero(r.bigInt(fieldHighestBid)),
		Settled:       r.boolean(fieldSettled),
	}
	if end := r.bigInt(fieldEndTime); end != nil && end.Sign() > 0 && end.IsInt64() {
		rec.EndTime = time.Unix(end.Int64(), 0).UTC()
	}
	return rec
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Auction is a bound handle to the auction house contract.
type Auction struct {
	*boundHandle
	auction recordLayout
	active  listLayout
}

var _ interfaces.AuctionContract = (*Auction)(nil)

// NewAuction binds the auction contract at address. An empty abiJSON selects AuctionABI.
func NewAuction(address common.Address, abiJSON string, backend bind.ContractBackend, auth *bind.TransactOpts) (*Auction, error) {
	parsed, err := ParseABI(abiJSON, AuctionABI)
	if err != nil {
		return nil, err
	}

	a := &Auction{boundHandle: newBoundHandle(address, parsed, backend, auth)}
	if a.auction, err = newRecordLayout(parsed, "getAuction", auctionFields); err != nil {
		return nil, err
	}
	listed := requiring(auctionFields, fieldNFTContract, fieldTokenID)
	if a.active, err = newListLayout(parsed, "getAllActiveAuctions", listed, false); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAuction submits createAuction(nft, tokenID, startingBid, duration).
func (a *Auction) CreateAuction(ctx context.Context, nft common.Address, tokenID, startingBid *big.Int, durationSeconds uint64) (*types.Transaction, error) {
	opts, err := a.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return a.contract.Transact(opts, "createAuction", nft, tokenID, startingBid, new(big.Int).SetUint64(durationSeconds))
}

// PlaceBid submits placeBid(nft, tokenID) with amount attached as value.
func (a *Auction) PlaceBid(ctx context.Context, nft common.Address, tokenID, amount *big.Int) (*types.Transaction, error) {
	opts, err := a.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Value = new(big.Int).Set(amount)
	return a.contract.Transact(opts, "placeBid", nft, tokenID)
}

// SettleAuction submits settleAuction(nft, tokenID).
func (a *Auction) SettleAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (*types.Transaction, error) {
	opts, err := a.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return a.contract.Transact(opts, "settleAuction", nft, tokenID)
}

// GetAuction reads the auction stored for (nft, tokenID).
func (a *Auction) GetAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (interfaces.AuctionRecord, error) {
	var out []interface{}
	if err := a.contract.Call(a.callOpts(ctx), &out, "getAuction", nft, tokenID); err != nil {
		return interfaces.AuctionRecord{}, err
	}
	entry, err := a.auction.decode(out)
	if err != nil {
		return interfaces.AuctionRecord{}, err
	}
	return auctionRecord(entry, nft, tokenID), nil
}

// GetAllActiveAuctions reads the auctions the contract reports as active.
func (a *Auction) GetAllActiveAuctions(ctx context.Context) ([]interfaces.AuctionRecord, error) {
	var out []interface{}
	if err := a.contract.Call(a.callOpts(ctx), &out, "getAllActiveAuctions"); err != nil {
		return nil, err
	}
	entries, err := a.active.decodeRows(out)
	if err != nil {
		return nil, err
	}

	records := make([]interfaces.AuctionRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, auctionRecord(e, common.Address{}, nil))
	}
	return records, nil
}
