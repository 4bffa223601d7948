// Package handles memoizes typed contract handles per chain, role and signing identity.
package handles

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/nft-marketplace-backend/contracts"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// Key identifies a cached handle. Signer is the zero address for read-only handles.
type Key struct {
	ChainID uint64
	Role    interfaces.Role
	Address common.Address
	Signer  common.Address
}

// Scope selects cache entries to invalidate. Nil fields match everything;
// an empty Scope clears the cache.
type Scope struct {
	ChainID *uint64
	Signer  *common.Address
}

func (s Scope) matches(k Key) bool {
	if s.ChainID != nil && *s.ChainID != k.ChainID {
		return false
	}
	if s.Signer != nil && *s.Signer != k.Signer {
		return false
	}
	return true
}

// Factory creates contract handles bound to a backend and caches them.
// Repeated calls with the same key return the same handle instance.
type Factory struct {
	backend bind.ContractBackend
	log     *slog.Logger

	mu      sync.Mutex
	handles map[Key]any
}

// NewFactory creates a handle factory for backend.
func NewFactory(backend bind.ContractBackend, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{
		backend: backend,
		log:     log,
		handles: make(map[Key]any),
	}
}

func signerAddress(signer *bind.TransactOpts) common.Address {
	if signer == nil {
		return common.Address{}
	}
	return signer.From
}

func getOrCreate[T any](f *Factory, key Key, build func() (T, error)) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.handles[key]; ok {
		return cached.(T), nil
	}

	handle, err := build()
	if err != nil {
		var zero T
		return zero, err
	}

	f.handles[key] = handle
	f.log.Debug("Bound contract handle",
		slog.Uint64("chainId", key.ChainID),
		slog.String("role", key.Role.String()),
		slog.String("address", key.Address.Hex()),
		slog.String("signer", key.Signer.Hex()))
	return handle, nil
}

// Registry returns the registry handle of deployment bound to signer.
func (f *Factory) Registry(deployment *interfaces.NetworkDeployment, signer *bind.TransactOpts) (*contracts.Registry, error) {
	desc, err := deployment.Contract(interfaces.RoleRegistry)
	if err != nil {
		return nil, err
	}
	key := Key{ChainID: deployment.ChainID, Role: interfaces.RoleRegistry, Address: desc.Address, Signer: signerAddress(signer)}
	return getOrCreate(f, key, func() (*contracts.Registry, error) {
		return contracts.NewRegistry(desc.Address, desc.ABI, f.backend, signer)
	})
}

// Auction returns the auction handle of deployment bound to signer.
func (f *Factory) Auction(deployment *interfaces.NetworkDeployment, signer *bind.TransactOpts) (*contracts.Auction, error) {
	desc, err := deployment.Contract(interfaces.RoleAuction)
	if err != nil {
		return nil, err
	}
	key := Key{ChainID: deployment.ChainID, Role: interfaces.RoleAuction, Address: desc.Address, Signer: signerAddress(signer)}
	return getOrCreate(f, key, func() (*contracts.Auction, error) {
		return contracts.NewAuction(desc.Address, desc.ABI, f.backend, signer)
	})
}

// Collection returns a handle to the collection at address, using the
// collection ABI recorded for deployment.
func (f *Factory) Collection(deployment *interfaces.NetworkDeployment, address common.Address, signer *bind.TransactOpts) (*contracts.Collection, error) {
	if address == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: "collection address", Reason: "zero address"}
	}
	desc, err := deployment.Contract(interfaces.RoleCollection)
	if err != nil {
		return nil, err
	}
	key := Key{ChainID: deployment.ChainID, Role: interfaces.RoleCollection, Address: address, Signer: signerAddress(signer)}
	return getOrCreate(f, key, func() (*contracts.Collection, error) {
		return contracts.NewCollection(address, desc.ABI, f.backend, signer)
	})
}

// CollectionDeployer returns a deployer for the collection factory descriptor.
func (f *Factory) CollectionDeployer(deployment *interfaces.NetworkDeployment, signer *bind.TransactOpts) (*contracts.CollectionDeployer, error) {
	desc, err := deployment.Contract(interfaces.RoleCollectionFactory)
	if err != nil {
		return nil, err
	}
	key := Key{ChainID: deployment.ChainID, Role: interfaces.RoleCollectionFactory, Address: desc.Address, Signer: signerAddress(signer)}
	return getOrCreate(f, key, func() (*contracts.CollectionDeployer, error) {
		if len(desc.Bytecode) == 0 {
			return nil, fmt.Errorf("chain %d: %w", deployment.ChainID, contracts.ErrNoBytecode)
		}
		return contracts.NewCollectionDeployer(desc.ABI, desc.Bytecode, f.backend, signer)
	})
}

// Invalidate drops every cached handle matching scope and returns how many were dropped.
func (f *Factory) Invalidate(scope Scope) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := 0
	for key := range f.handles {
		if scope.matches(key) {
			delete(f.handles, key)
			dropped++
		}
	}

	if dropped > 0 {
		f.log.Debug("Invalidated contract handles", slog.Int("count", dropped))
	}
	return dropped
}

// InvalidateChain drops handles bound to chainID.
func (f *Factory) InvalidateChain(chainID uint64) int {
	return f.Invalidate(Scope{ChainID: &chainID})
}

// InvalidateSigner drops handles bound to signer.
func (f *Factory) InvalidateSigner(signer common.Address) int {
	return f.Invalidate(Scope{Signer: &signer})
}

// Len returns the number of cached handles.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}
