package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// MockRegistryContract mocks the interfaces.RegistryContract interface
type MockRegistryContract struct {
	mock.Mock
}

// Address mocks the Address method
func (m *MockRegistryContract) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// RegisterCollection mocks the RegisterCollection method
func (m *MockRegistryContract) RegisterCollection(ctx context.Context, collection, owner common.Address, name, symbol string) (*types.Transaction, error) {
	args := m.Called(ctx, collection, owner, name, symbol)
	tx, _ := args.Get(0).(*types.Transaction)
	return tx, args.Error(1)
}

// GetAllCollections mocks the GetAllCollections method
func (m *MockRegistryContract) GetAllCollections(ctx context.Context) ([]interfaces.CollectionRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]interfaces.CollectionRecord)
	return records, args.Error(1)
}

// GetCollectionsByOwner mocks the GetCollectionsByOwner method
func (m *MockRegistryContract) GetCollectionsByOwner(ctx context.Context, owner common.Address) ([]interfaces.CollectionRecord, error) {
	args := m.Called(ctx, owner)
	records, _ := args.Get(0).([]interfaces.CollectionRecord)
	return records, args.Error(1)
}

// GetCollectionMetadata mocks the GetCollectionMetadata method
func (m *MockRegistryContract) GetCollectionMetadata(ctx context.Context, collection common.Address) (interfaces.CollectionRecord, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(interfaces.CollectionRecord), args.Error(1)
}

// MockProvider mocks the interfaces.ContractProvider interface
type MockProvider struct {
	mock.Mock
}

// ChainID mocks the ChainID method
func (m *MockProvider) ChainID() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

// Signer mocks the Signer method
func (m *MockProvider) Signer() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// Registry mocks the Registry method
func (m *MockProvider) Registry() (interfaces.RegistryContract, error) {
	args := m.Called()
	reg, _ := args.Get(0).(interfaces.RegistryContract)
	return reg, args.Error(1)
}

// Auction mocks the Auction method
func (m *MockProvider) Auction() (interfaces.AuctionContract, error) {
	args := m.Called()
	a, _ := args.Get(0).(interfaces.AuctionContract)
	return a, args.Error(1)
}

// Collection mocks the Collection method
func (m *MockProvider) Collection(address common.Address) (interfaces.CollectionContract, error) {
	args := m.Called(address)
	c, _ := args.Get(0).(interfaces.CollectionContract)
	return c, args.Error(1)
}

// CollectionDeployer mocks the CollectionDeployer method
func (m *MockProvider) CollectionDeployer() (interfaces.CollectionDeployer, error) {
	args := m.Called()
	d, _ := args.Get(0).(interfaces.CollectionDeployer)
	return d, args.Error(1)
}
