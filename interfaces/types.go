package interfaces

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Role identifies a contract role within a network deployment.
type Role int

const (
	// RoleRegistry is the collection registry contract.
	RoleRegistry Role = iota
	// RoleAuction is the auction house contract.
	RoleAuction
	// RoleCollectionFactory carries the collection ABI and creation bytecode.
	RoleCollectionFactory
	// RoleCollection is an arbitrary collection addressed explicitly.
	// It reuses the ABI of RoleCollectionFactory.
	RoleCollection
)

// String returns role name as used in deployment tables.
func (r Role) String() string {
	switch r {
	case RoleRegistry:
		return "registry"
	case RoleAuction:
		return "auction"
	case RoleCollectionFactory:
		return "collection"
	case RoleCollection:
		return "collection-by-address"
	default:
		return "unknown"
	}
}

// ParseRole maps a deployment table key to a Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "registry", "nftregistry", "collectionregistry":
		return RoleRegistry, nil
	case "auction", "nftauction":
		return RoleAuction, nil
	case "collection", "nftcollection", "factory", "collection-factory":
		return RoleCollectionFactory, nil
	default:
		return 0, fmt.Errorf("unknown contract role %q", name)
	}
}

// ContractDescriptor is a deployed contract as recorded in the deployment table.
type ContractDescriptor struct {
	Address  common.Address
	ABI      string
	Bytecode []byte
}

// NetworkDeployment is the set of contracts deployed on one chain.
type NetworkDeployment struct {
	ChainID   uint64
	Contracts map[Role]ContractDescriptor
}

// Contract returns the descriptor deployed for role.
func (d *NetworkDeployment) Contract(role Role) (ContractDescriptor, error) {
	lookup := role
	if role == RoleCollection {
		lookup = RoleCollectionFactory
	}
	desc, ok := d.Contracts[lookup]
	if !ok {
		return ContractDescriptor{}, &RoleNotDeployedError{ChainID: d.ChainID, Role: role}
	}
	return desc, nil
}

// CollectionRecord is a collection as indexed by the registry contract.
type CollectionRecord struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	Symbol  string         `json:"symbol"`
	Owner   common.Address `json:"owner"`
}

// TokenRecord is a minted token and its immutable metadata reference.
type TokenRecord struct {
	Collection  common.Address   `json:"collection"`
	TokenID     *big.Int         `json:"tokenId"`
	MetadataRef ContentReference `json:"metadataRef"`
}

// AuctionRecord is a snapshot of an auction as stored by the auction contract.
// Snapshots are never authoritative for write decisions.
type AuctionRecord struct {
	NFTContract   common.Address `json:"nftContract"`
	TokenID       *big.Int       `json:"tokenId"`
	Seller        common.Address `json:"seller"`
	HighestBidder common.Address `json:"highestBidder"`
	HighestBid    *big.Int       `json:"highestBid"`
	EndTime       time.Time      `json:"endTime"`
	Settled       bool           `json:"settled"`
}

// Exists reports whether the record describes an auction that was ever created.
func (a *AuctionRecord) Exists() bool {
	return a != nil && a.Seller != (common.Address{})
}

// Key identifies the (contract, token) pair an auction is bound to.
func (a *AuctionRecord) Key() TokenKey {
	return TokenKey{Contract: a.NFTContract, TokenID: new(big.Int).Set(a.TokenID)}
}

// TokenKey identifies a token within a collection.
type TokenKey struct {
	Contract common.Address
	TokenID  *big.Int
}

// String returns contract-tokenID, the format used in auction URLs.
func (k TokenKey) String() string {
	return fmt.Sprintf("%s-%s", k.Contract.Hex(), k.TokenID.String())
}

// MetadataDocument is the canonical token or collection metadata document.
type MetadataDocument struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Image       ContentReference `json:"image,omitempty"`
	Extra       map[string]any   `json:"-"`
}
