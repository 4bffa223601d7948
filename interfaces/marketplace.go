package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RegistryContract is the collection registry as seen through a bound handle.
type RegistryContract interface {
	Address() common.Address

	// RegisterCollection submits the registration of a deployed collection.
	RegisterCollection(ctx context.Context, collection, owner common.Address, name, symbol string) (*types.Transaction, error)

	GetAllCollections(ctx context.Context) ([]CollectionRecord, error)
	GetCollectionsByOwner(ctx context.Context, owner common.Address) ([]CollectionRecord, error)

	// GetCollectionMetadata returns the indexed record. Unregistered
	// addresses yield a record with a zero Address.
	GetCollectionMetadata(ctx context.Context, collection common.Address) (CollectionRecord, error)
}

// AuctionContract is the auction house as seen through a bound handle.
type AuctionContract interface {
	Address() common.Address

	CreateAuction(ctx context.Context, nft common.Address, tokenID, startingBid *big.Int, durationSeconds uint64) (*types.Transaction, error)

	// PlaceBid submits a bid carrying amount as transaction value.
	PlaceBid(ctx context.Context, nft common.Address, tokenID, amount *big.Int) (*types.Transaction, error)

	SettleAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (*types.Transaction, error)

	// GetAuction returns the stored auction. Tokens never auctioned yield a
	// record with a zero Seller.
	GetAuction(ctx context.Context, nft common.Address, tokenID *big.Int) (AuctionRecord, error)

	GetAllActiveAuctions(ctx context.Context) ([]AuctionRecord, error)
}

// CollectionContract is an ERC-721 collection as seen through a bound handle.
type CollectionContract interface {
	Address() common.Address

	MintToken(ctx context.Context, to common.Address, metadataURI string) (*types.Transaction, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	TokensOfOwner(ctx context.Context, owner common.Address) ([]*big.Int, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)

	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*types.Transaction, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)

	// MintedTokenID extracts the token id minted by a confirmed mint receipt.
	MintedTokenID(receipt *types.Receipt) (*big.Int, error)
}

// CollectionDeployer deploys new collection contracts from the recorded bytecode.
type CollectionDeployer interface {
	DeployCollection(ctx context.Context, name, symbol string) (*types.Transaction, error)
}

// ContractProvider hands out contract handles for the active chain and signer.
type ContractProvider interface {
	ChainID() uint64

	// Signer is the address writes are submitted from, zero for read-only sessions.
	Signer() common.Address

	Registry() (RegistryContract, error)
	Auction() (AuctionContract, error)
	Collection(address common.Address) (CollectionContract, error)
	CollectionDeployer() (CollectionDeployer, error)
}

// TransactionWaiter is the single suspension point for ledger writes.
type TransactionWaiter interface {
	// Await blocks until hash has the requested confirmations. Mined but
	// reverted transactions fail with *TransactionRevertedError.
	Await(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error)
}

// MetadataPublisher uploads assets and documents to content-addressed storage.
type MetadataPublisher interface {
	Publish(ctx context.Context, asset []byte, mimeType string) (ContentReference, error)
	PublishDocument(ctx context.Context, doc *MetadataDocument) (ContentReference, error)
}

// MetadataResolver resolves content references into normalized documents.
type MetadataResolver interface {
	Resolve(ctx context.Context, ref ContentReference) (*MetadataDocument, error)
}
