package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// Registry is a bound handle to the collection registry contract.
type Registry struct {
	*boundHandle
	metadata recordLayout
	all      listLayout
	byOwner  listLayout
}

var _ interfaces.RegistryContract = (*Registry)(nil)

// NewRegistry binds the registry at address. An empty abiJSON selects RegistryABI.
// The collection listings may return either collection tuples or bare
// addresses; any other output shape fails with a *ShapeError.
func NewRegistry(address common.Address, abiJSON string, backend bind.ContractBackend, auth *bind.TransactOpts) (*Registry, error) {
	parsed, err := ParseABI(abiJSON, RegistryABI)
	if err != nil {
		return nil, err
	}

	r := &Registry{boundHandle: newBoundHandle(address, parsed, backend, auth)}
	if r.metadata, err = newRecordLayout(parsed, "getCollectionMetadata", collectionFields); err != nil {
		return nil, err
	}
	listed := requiring(collectionFields, fieldAddress)
	if r.all, err = newListLayout(parsed, "getAllCollections", listed, true); err != nil {
		return nil, err
	}
	if r.byOwner, err = newListLayout(parsed, "getCollectionsByOwner", listed, true); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterCollection submits registerCollection(collection, owner, name, symbol).
func (r *Registry) RegisterCollection(ctx context.Context, collection, owner common.Address, name, symbol string) (*types.Transaction, error) {
	opts, err := r.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return r.contract.Transact(opts, "registerCollection", collection, owner, name, symbol)
}

// GetAllCollections lists every registered collection.
func (r *Registry) GetAllCollections(ctx context.Context) ([]interfaces.CollectionRecord, error) {
	return r.collections(ctx, r.all)
}

// GetCollectionsByOwner lists collections registered to owner.
func (r *Registry) GetCollectionsByOwner(ctx context.Context, owner common.Address) ([]interfaces.CollectionRecord, error) {
	return r.collections(ctx, r.byOwner, owner)
}

// GetCollectionMetadata returns the registry entry for collection. Unknown
// collections come back zeroed.
func (r *Registry) GetCollectionMetadata(ctx context.Context, collection common.Address) (interfaces.CollectionRecord, error) {
	var out []interface{}
	if err := r.contract.Call(r.callOpts(ctx), &out, "getCollectionMetadata", collection); err != nil {
		return interfaces.CollectionRecord{}, err
	}
	entry, err := r.metadata.decode(out)
	if err != nil {
		return interfaces.CollectionRecord{}, err
	}

	record := collectionRecord(entry)
	if _, ok := entry[fieldAddress]; !ok && record.Name != "" {
		record.Address = collection
	}
	return record, nil
}

func (r *Registry) collections(ctx context.Context, layout listLayout, params ...interface{}) ([]interfaces.CollectionRecord, error) {
	var out []interface{}
	if err := r.contract.Call(r.callOpts(ctx), &out, layout.method, params...); err != nil {
		return nil, err
	}

	if layout.addresses {
		addrs, err := layout.decodeAddresses(out)
		if err != nil {
			return nil, err
		}
		records := make([]interfaces.CollectionRecord, 0, len(addrs))
		for _, addr := range addrs {
			record, err := r.GetCollectionMetadata(ctx, addr)
			if err != nil {
				return nil, fmt.Errorf("collection %s: %w", addr.Hex(), err)
			}
			record.Address = addr
			if owner, ok := listedOwner(params); ok && record.Owner == (common.Address{}) {
				record.Owner = owner
			}
			records = append(records, record)
		}
		return records, nil
	}

	entries, err := layout.decodeRows(out)
	if err != nil {
		return nil, err
	}
	records := make([]interfaces.CollectionRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, collectionRecord(e))
	}
	return records, nil
}

func collectionRecord(r row) interfaces.CollectionRecord {
	return interfaces.CollectionRecord{
		Address: r.address(fieldAddress),
		Name:    r.str(fieldName),
		Symbol:  r.str(fieldSymbol),
		Owner:   r.address(fieldOwner),
	}
}

func listedOwner(params []interface{}) (common.Address, bool) {
	if len(params) != 1 {
		return common.Address{}, false
	}
	owner, ok := params[0].(common.Address)
	return owner, ok
}
