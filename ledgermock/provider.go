package ledgermock

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/contracts"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

var collectionABI abi.ABI

func init() {
	parsed, err := contracts.ParseABI(contracts.CollectionABI, "")
	if err != nil {
		panic(err)
	}
	collectionABI = parsed
}

// Provider implements interfaces.ContractProvider over a Ledger for one signer.
type Provider struct {
	l      *Ledger
	signer common.Address
}

var _ interfaces.ContractProvider = (*Provider)(nil)

// Provider returns handles acting as signer. A zero signer yields read-only handles.
func (l *Ledger) Provider(signer common.Address) *Provider {
	return &Provider{l: l, signer: signer}
}

func (p *Provider) ChainID() uint64 { return p.l.chainID }

func (p *Provider) Signer() common.Address { return p.signer }

func (p *Provider) deployed(role interfaces.Role) error {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	if p.l.undeployed[role] {
		return &interfaces.RoleNotDeployedError{ChainID: p.l.chainID, Role: role}
	}
	return nil
}

func (p *Provider) Registry() (interfaces.RegistryContract, error) {
	if err := p.deployed(interfaces.RoleRegistry); err != nil {
		return nil, err
	}
	return &registryHandle{l: p.l, from: p.signer}, nil
}

func (p *Provider) Auction() (interfaces.AuctionContract, error) {
	if err := p.deployed(interfaces.RoleAuction); err != nil {
		return nil, err
	}
	return &auctionHandle{l: p.l, from: p.signer}, nil
}

func (p *Provider) Collection(address common.Address) (interfaces.CollectionContract, error) {
	if err := p.deployed(interfaces.RoleCollectionFactory); err != nil {
		return nil, err
	}
	if address == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: "collection", Reason: "zero address"}
	}
	return &collectionHandle{l: p.l, address: address, from: p.signer}, nil
}

func (p *Provider) CollectionDeployer() (interfaces.CollectionDeployer, error) {
	if err := p.deployed(interfaces.RoleCollectionFactory); err != nil {
		return nil, err
	}
	return &deployerHandle{l: p.l, from: p.signer}, nil
}

type registryHandle struct {
	l    *Ledger
	from common.Address
}

func (h *registryHandle) Address() common.Address { return h.l.registryAddr }

func (h *registryHandle) RegisterCollection(ctx context.Context, collectionAddr, owner common.Address, name, symbol string) (*types.Transaction, error) {
	return h.l.submit("registerCollection", h.from, func() execResult {
		return h.l.registerLocked(h.from, collectionAddr, owner, name, symbol)
	})
}

func (h *registryHandle) GetAllCollections(ctx context.Context) ([]interfaces.CollectionRecord, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	return append([]interfaces.CollectionRecord{}, h.l.registered...), nil
}

func (h *registryHandle) GetCollectionsByOwner(ctx context.Context, owner common.Address) ([]interfaces.CollectionRecord, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	out := []interfaces.CollectionRecord{}
	for _, r := range h.l.registered {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *registryHandle) GetCollectionMetadata(ctx context.Context, collectionAddr common.Address) (interfaces.CollectionRecord, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	for _, r := range h.l.registered {
		if r.Address == collectionAddr {
			return r, nil
		}
	}
	return interfaces.CollectionRecord{}, nil
}

type auctionHandle struct {
	l    *Ledger
	from common.Address
}

func (h *auctionHandle) Address() common.Address { return h.l.auctionAddr }

func (h *auctionHandle) CreateAuction(ctx context.Context, nft common.Address, tokenID, startingBid *big.Int, durationSeconds uint64) (*types.Transaction, error) {
	tokenID, startingBid = new(big.Int).Set(tokenID), new(big.Int).Set(startingBid)
	return h.l.submit("createAuction", h.from, func() execResult {
		return h.l.createAuctionLocked(h.from, nft, tokenID, startingBid, durationSeconds)
	})
}

func (h *auctionHandle) PlaceBid(ctx context.Context, nft common.Address, tokenID, amount *big.Int) (*types.Transaction, error) {
	tokenID, amount = new(big.Int).Set(tokenID), new(big.Int).Set(amount)
	return h.l.submit("placeBid", h.from, func() execResult {
		return h.l.placeBidLocked(h.from, nft, tokenID, amount)
	})
}

func (h *auctionHandle) SettleAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (*types.Transaction, error) {
	tokenID = new(big.Int).Set(tokenID)
	return h.l.submit("settleAuction", h.from, func() execResult {
		return h.l.settleLocked(nft, tokenID)
	})
}

func (h *auctionHandle) GetAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (interfaces.AuctionRecord, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	if a, ok := h.l.auctions[tokenKey(nft, tokenID)]; ok {
		return copyAuction(a), nil
	}
	return interfaces.AuctionRecord{
		NFTContract: nft,
		TokenID:     new(big.Int).Set(tokenID),
		HighestBid:  new(big.Int),
	}, nil
}

func (h *auctionHandle) GetAllActiveAuctions(ctx context.Context) ([]interfaces.AuctionRecord, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	out := []interfaces.AuctionRecord{}
	for _, key := range h.l.auctionOrder {
		a := h.l.auctions[key]
		if !a.Settled && h.l.now.Before(a.EndTime) {
			out = append(out, copyAuction(a))
		}
	}
	return out, nil
}

type collectionHandle struct {
	l       *Ledger
	address common.Address
	from    common.Address
}

func (h *collectionHandle) Address() common.Address { return h.address }

func (h *collectionHandle) state() (*collection, error) {
	c, ok := h.l.collections[h.address]
	if !ok {
		return nil, fmt.Errorf("no contract code at %s", h.address.Hex())
	}
	return c, nil
}

func (h *collectionHandle) MintToken(ctx context.Context, to common.Address, metadataURI string) (*types.Transaction, error) {
	return h.l.submit("mintToken", h.from, func() execResult {
		return h.l.mintLocked(h.address, to, metadataURI)
	})
}

func (h *collectionHandle) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*types.Transaction, error) {
	return h.l.submit("setApprovalForAll", h.from, func() execResult {
		return h.l.setApprovalLocked(h.address, h.from, operator, approved)
	})
}

func (h *collectionHandle) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	c, err := h.state()
	if err != nil {
		return "", err
	}
	uri, ok := c.uris[tokenID.String()]
	if !ok {
		return "", fmt.Errorf("execution reverted: nonexistent token %s", tokenID)
	}
	return uri, nil
}

func (h *collectionHandle) TokensOfOwner(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	c, err := h.state()
	if err != nil {
		return nil, err
	}
	ids := []*big.Int{}
	for id, o := range c.owners {
		if o == owner {
			v, _ := new(big.Int).SetString(id, 10)
			ids = append(ids, v)
		}
	}
	return sortedIDs(ids), nil
}

func (h *collectionHandle) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	c, err := h.state()
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := c.owners[tokenID.String()]
	if !ok {
		return common.Address{}, fmt.Errorf("execution reverted: nonexistent token %s", tokenID)
	}
	return owner, nil
}

func (h *collectionHandle) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	c, err := h.state()
	if err != nil {
		return false, err
	}
	return c.operators[owner][operator], nil
}

func (h *collectionHandle) MintedTokenID(receipt *types.Receipt) (*big.Int, error) {
	return contracts.MintedTokenID(collectionABI, h.address, receipt)
}

type deployerHandle struct {
	l    *Ledger
	from common.Address
}

func (h *deployerHandle) DeployCollection(ctx context.Context, name, symbol string) (*types.Transaction, error) {
	return h.l.submit("deployCollection", h.from, func() execResult {
		return execResult{created: h.l.deployLocked(name, symbol)}
	})
}
