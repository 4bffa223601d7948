package handles

import (
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// DeploymentResolver maps chain ids to deployments.
type DeploymentResolver interface {
	Resolve(chainID uint64) (*interfaces.NetworkDeployment, error)
}

// Session binds a Factory to the active chain and signing identity. It is the
// context object handed to coordinators; switching network or signer goes
// through Switch so stale handles are dropped before new ones are served.
type Session struct {
	factory  *Factory
	resolver DeploymentResolver
	log      *slog.Logger

	mu         sync.RWMutex
	deployment *interfaces.NetworkDeployment
	signer     *bind.TransactOpts
}

var _ interfaces.ContractProvider = (*Session)(nil)

// NewSession resolves chainID and binds signer. A nil signer yields a read-only session.
func NewSession(factory *Factory, resolver DeploymentResolver, chainID uint64, signer *bind.TransactOpts, log *slog.Logger) (*Session, error) {
	deployment, err := resolver.Resolve(chainID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		factory:    factory,
		resolver:   resolver,
		log:        log,
		deployment: deployment,
		signer:     signer,
	}, nil
}

// Switch moves the session to chainID and signer. Handles bound to the
// previous chain or signer are invalidated before the switch becomes
// visible. On error the session is left unchanged.
func (s *Session) Switch(chainID uint64, signer *bind.TransactOpts) error {
	deployment, err := s.resolver.Resolve(chainID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevChain := s.deployment.ChainID
	prevSigner := signerAddress(s.signer)
	nextSigner := signerAddress(signer)

	if prevChain != chainID {
		s.factory.InvalidateChain(prevChain)
	}
	if prevSigner != nextSigner {
		s.factory.InvalidateSigner(prevSigner)
	}

	s.deployment = deployment
	s.signer = signer

	s.log.Info("Session switched",
		slog.Uint64("chainId", chainID),
		slog.String("signer", nextSigner.Hex()))
	return nil
}

// ChainID returns the active chain id.
func (s *Session) ChainID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deployment.ChainID
}

// Signer returns the active signing address, zero for read-only sessions.
func (s *Session) Signer() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return signerAddress(s.signer)
}

// Deployment returns the active deployment.
func (s *Session) Deployment() *interfaces.NetworkDeployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deployment
}

func (s *Session) current() (*interfaces.NetworkDeployment, *bind.TransactOpts) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deployment, s.signer
}

// Registry returns the registry handle for the active chain and signer.
func (s *Session) Registry() (interfaces.RegistryContract, error) {
	d, signer := s.current()
	h, err := s.factory.Registry(d, signer)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Auction returns the auction handle for the active chain and signer.
func (s *Session) Auction() (interfaces.AuctionContract, error) {
	d, signer := s.current()
	h, err := s.factory.Auction(d, signer)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Collection returns the handle of the collection at address.
func (s *Session) Collection(address common.Address) (interfaces.CollectionContract, error) {
	d, signer := s.current()
	h, err := s.factory.Collection(d, address, signer)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// CollectionDeployer returns the collection deployer for the active chain and signer.
func (s *Session) CollectionDeployer() (interfaces.CollectionDeployer, error) {
	d, signer := s.current()
	h, err := s.factory.CollectionDeployer(d, signer)
	if err != nil {
		return nil, err
	}
	return h, nil
}
