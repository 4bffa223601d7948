// Package contracts binds the registry, auction and collection contracts
// through go-ethereum's bind.BoundContract.
//
// Every handle is bound to a single signing identity at construction time.
// Handles constructed without transact options are read-only and fail all
// writes with interfaces.ErrNoTransactOpts.
package contracts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// ParseABI parses abiJSON, falling back to fallback when abiJSON is empty.
func ParseABI(abiJSON, fallback string) (abi.ABI, error) {
	if strings.TrimSpace(abiJSON) == "" {
		abiJSON = fallback
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("could not parse contract abi: %w", err)
	}
	return parsed, nil
}

type boundHandle struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	auth     *bind.TransactOpts
}

func newBoundHandle(address common.Address, parsed abi.ABI, backend bind.ContractBackend, auth *bind.TransactOpts) *boundHandle {
	return &boundHandle{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		auth:     auth,
	}
}

// Address returns the contract address the handle is bound to.
func (h *boundHandle) Address() common.Address {
	return h.address
}

// From returns the signing identity, zero for read-only handles.
func (h *boundHandle) From() common.Address {
	if h.auth == nil {
		return common.Address{}
	}
	return h.auth.From
}

func (h *boundHandle) callOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if h.auth != nil {
		opts.From = h.auth.From
	}
	return opts
}

// transactOpts returns a per-call copy of the bound transactor.
func (h *boundHandle) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if h.auth == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	opts := *h.auth
	opts.Context = ctx
	return &opts, nil
}
