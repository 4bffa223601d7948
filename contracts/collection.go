package contracts

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// ErrNoMintEvent is returned when a receipt carries no Transfer from the zero address.
var ErrNoMintEvent = errors.New("no mint transfer event in receipt")

// ErrNoBytecode is returned when deploying a collection without creation bytecode.
var ErrNoBytecode = errors.New("collection bytecode not available in deployment")

// Collection is a bound handle to an ERC-721 collection.
type Collection struct {
	*boundHandle
}

var _ interfaces.CollectionContract = (*Collection)(nil)

// NewCollection binds the collection at address. An empty abiJSON selects CollectionABI.
func NewCollection(address common.Address, abiJSON string, backend bind.ContractBackend, auth *bind.TransactOpts) (*Collection, error) {
	parsed, err := ParseABI(abiJSON, CollectionABI)
	if err != nil {
		return nil, err
	}
	return &Collection{newBoundHandle(address, parsed, backend, auth)}, nil
}

// MintToken submits mintToken(to, metadataURI).
func (c *Collection) MintToken(ctx context.Context, to common.Address, metadataURI string) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return c.contract.Transact(opts, "mintToken", to, metadataURI)
}

// SetApprovalForAll submits setApprovalForAll(operator, approved).
func (c *Collection) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return c.contract.Transact(opts, "setApprovalForAll", operator, approved)
}

// TokenURI reads tokenURI(tokenID).
func (c *Collection) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	var out []interface{}
	if err := c.contract.Call(c.callOpts(ctx), &out, "tokenURI", tokenID); err != nil {
		return "", err
	}
	return convertSingle[string]("tokenURI", out)
}

// TokensOfOwner reads getTokensOfOwner(owner).
func (c *Collection) TokensOfOwner(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(c.callOpts(ctx), &out, "getTokensOfOwner", owner); err != nil {
		return nil, err
	}
	return convertSingle[[]*big.Int]("getTokensOfOwner", out)
}

// OwnerOf reads ownerOf(tokenID).
func (c *Collection) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(c.callOpts(ctx), &out, "ownerOf", tokenID); err != nil {
		return common.Address{}, err
	}
	return convertSingle[common.Address]("ownerOf", out)
}

// IsApprovedForAll reads isApprovedForAll(owner, operator).
func (c *Collection) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(c.callOpts(ctx), &out, "isApprovedForAll", owner, operator); err != nil {
		return false, err
	}
	return convertSingle[bool]("isApprovedForAll", out)
}

// Name reads name().
func (c *Collection) Name(ctx context.Context) (string, error) {
	var out []interface{}
	if err := c.contract.Call(c.callOpts(ctx), &out, "name"); err != nil {
		return "", err
	}
	return convertSingle[string]("name", out)
}

// MintedTokenID returns the token id of the first Transfer from the zero
// address emitted by this collection in receipt.
func (c *Collection) MintedTokenID(receipt *types.Receipt) (*big.Int, error) {
	return MintedTokenID(c.abi, c.address, receipt)
}

// MintedTokenID scans receipt for an ERC-721 mint emitted by collection.
func MintedTokenID(parsed abi.ABI, collection common.Address, receipt *types.Receipt) (*big.Int, error) {
	transfer, ok := parsed.Events["Transfer"]
	if !ok {
		return nil, ErrNoMintEvent
	}
	for _, log := range receipt.Logs {
		if log.Address != collection || len(log.Topics) != 4 || log.Topics[0] != transfer.ID {
			continue
		}
		if common.BytesToAddress(log.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[3].Bytes()), nil
	}
	return nil, ErrNoMintEvent
}

// CollectionDeployer deploys new collections from the recorded creation bytecode.
type CollectionDeployer struct {
	abi      abi.ABI
	bytecode []byte
	backend  bind.ContractBackend
	auth     *bind.TransactOpts
}

var _ interfaces.CollectionDeployer = (*CollectionDeployer)(nil)

// NewCollectionDeployer prepares a deployer for the collection factory descriptor.
func NewCollectionDeployer(abiJSON string, bytecode []byte, backend bind.ContractBackend, auth *bind.TransactOpts) (*CollectionDeployer, error) {
	parsed, err := ParseABI(abiJSON, CollectionABI)
	if err != nil {
		return nil, err
	}
	return &CollectionDeployer{abi: parsed, bytecode: bytecode, backend: backend, auth: auth}, nil
}

// DeployCollection submits the creation transaction for a collection named name/symbol.
// The contract address becomes known once the receipt confirms.
func (d *CollectionDeployer) DeployCollection(ctx context.Context, name, symbol string) (*types.Transaction, error) {
	if d.auth == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	if len(d.bytecode) == 0 {
		return nil, ErrNoBytecode
	}
	opts := *d.auth
	opts.Context = ctx

	_, tx, _, err := bind.DeployContract(&opts, d.abi, d.bytecode, d.backend, name, symbol)
	return tx, err
}
