// Package deployments resolves chain identifiers to the contracts deployed on them.
package deployments

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// Table is a static, read-only table of network deployments.
type Table struct {
	deployments map[uint64]*interfaces.NetworkDeployment
}

// NewTable builds a table. At most one deployment per chain id is accepted.
func NewTable(deployments ...*interfaces.NetworkDeployment) (*Table, error) {
	t := &Table{deployments: make(map[uint64]*interfaces.NetworkDeployment, len(deployments))}
	for _, d := range deployments {
		if d == nil {
			continue
		}
		if _, exists := t.deployments[d.ChainID]; exists {
			return nil, fmt.Errorf("duplicate deployment for chain %d", d.ChainID)
		}
		t.deployments[d.ChainID] = d
	}
	return t, nil
}

// Resolve returns the deployment recorded for chainID.
func (t *Table) Resolve(chainID uint64) (*interfaces.NetworkDeployment, error) {
	d, ok := t.deployments[chainID]
	if !ok {
		return nil, &interfaces.UnknownNetworkError{ChainID: chainID}
	}
	return d, nil
}

// ChainIDs returns the chains present in the table in ascending order.
func (t *Table) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(t.deployments))
	for id := range t.deployments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type contractEntry struct {
	Address  string `yaml:"address"`
	ABI      any    `yaml:"abi"`
	Bytecode string `yaml:"bytecode"`
}

// LoadFile reads a deployment table from a YAML or JSON file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read deployments file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a deployment table keyed by chain id, then by contract role:
//
//	31337:
//	  registry: {address: "0x..."}
//	  auction: {address: "0x...", abi: [...]}
//	  collection: {address: "0x...", bytecode: "0x..."}
//
// JSON input with the same shape is accepted.
func Parse(data []byte) (*Table, error) {
	var raw map[string]map[string]contractEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not parse deployments: %w", err)
	}

	deployments := make([]*interfaces.NetworkDeployment, 0, len(raw))
	for chainKey, contracts := range raw {
		chainID, err := strconv.ParseUint(strings.TrimSpace(chainKey), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", chainKey, err)
		}

		d := &interfaces.NetworkDeployment{
			ChainID:   chainID,
			Contracts: make(map[interfaces.Role]interfaces.ContractDescriptor, len(contracts)),
		}
		for roleName, entry := range contracts {
			role, err := interfaces.ParseRole(roleName)
			if err != nil {
				return nil, fmt.Errorf("chain %d: %w", chainID, err)
			}
			desc, err := entry.descriptor()
			if err != nil {
				return nil, fmt.Errorf("chain %d %s: %w", chainID, role, err)
			}
			d.Contracts[role] = desc
		}
		deployments = append(deployments, d)
	}

	return NewTable(deployments...)
}

func (e contractEntry) descriptor() (interfaces.ContractDescriptor, error) {
	if !common.IsHexAddress(e.Address) {
		return interfaces.ContractDescriptor{}, fmt.Errorf("invalid contract address %q", e.Address)
	}

	desc := interfaces.ContractDescriptor{Address: common.HexToAddress(e.Address)}

	switch abiValue := e.ABI.(type) {
	case nil:
	case string:
		desc.ABI = abiValue
	default:
		encoded, err := json.Marshal(abiValue)
		if err != nil {
			return interfaces.ContractDescriptor{}, fmt.Errorf("could not encode abi: %w", err)
		}
		desc.ABI = string(encoded)
	}

	if e.Bytecode != "" {
		code, err := hexutil.Decode(e.Bytecode)
		if err != nil {
			return interfaces.ContractDescriptor{}, fmt.Errorf("invalid bytecode: %w", err)
		}
		desc.Bytecode = code
	}

	return desc, nil
}
