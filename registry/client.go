// Package registry drives collection deployment, registration, minting and
// lookups against the collection registry contract.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/metadata"
	"github.com/ruteri/nft-marketplace-backend/txwait"
)

// ErrNoPublisher is returned by flows that publish metadata when the client
// was built without a publisher.
var ErrNoPublisher = errors.New("no metadata publisher configured")

// Publisher is the part of metadata.Publisher the registry flows use.
type Publisher interface {
	PublishToken(ctx context.Context, asset metadata.TokenAsset) (metadataRef, imageRef interfaces.ContentReference, err error)
	PublishCollection(ctx context.Context, record interfaces.CollectionRecord) (interfaces.ContentReference, error)
}

// Client is the CollectionRegistryClient.
type Client struct {
	provider      interfaces.ContractProvider
	waiter        interfaces.TransactionWaiter
	publisher     Publisher
	journal       *txwait.Journal
	confirmations uint64
	log           *slog.Logger
}

type Option func(*Client)

// WithPublisher enables the flows that publish metadata.
func WithPublisher(p Publisher) Option {
	return func(c *Client) { c.publisher = p }
}

// WithJournal makes writes re-attach to transactions left pending by a
// previous timed out call.
func WithJournal(j *txwait.Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithConfirmations sets the confirmation depth awaited for every write.
func WithConfirmations(n uint64) Option {
	return func(c *Client) { c.confirmations = n }
}

func NewClient(provider interfaces.ContractProvider, waiter interfaces.TransactionWaiter, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		provider:      provider,
		waiter:        waiter,
		confirmations: 1,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deployment is the outcome of DeployAndRegister.
type Deployment struct {
	Record      interfaces.CollectionRecord
	Receipt     *types.Receipt
	MetadataRef interfaces.ContentReference
}

// RegisterCollection registers the collection created by a confirmed
// deployment. The registry is never written unless receipt is a successful
// contract creation.
func (c *Client) RegisterCollection(ctx context.Context, receipt *types.Receipt, owner common.Address, name, symbol string) (interfaces.CollectionRecord, error) {
	if err := validateDeployment(receipt); err != nil {
		return interfaces.CollectionRecord{}, err
	}
	if err := validateNames(name, symbol); err != nil {
		return interfaces.CollectionRecord{}, err
	}
	if owner == (common.Address{}) {
		return interfaces.CollectionRecord{}, &interfaces.ValidationError{Field: "owner", Reason: "zero address"}
	}

	record := interfaces.CollectionRecord{
		Address: receipt.ContractAddress,
		Name:    name,
		Symbol:  symbol,
		Owner:   owner,
	}
	subject := record.Address.Hex()

	reg, err := c.provider.Registry()
	if err != nil {
		return interfaces.CollectionRecord{}, &interfaces.OperationError{Op: "register collection", Subject: subject, Err: err}
	}

	_, err = txwait.Submit(ctx, c.waiter, c.journal, "registerCollection:"+subject, c.confirmations, c.log,
		func(ctx context.Context) (*types.Transaction, error) {
			return reg.RegisterCollection(ctx, record.Address, owner, name, symbol)
		})
	if err != nil {
		return interfaces.CollectionRecord{}, &interfaces.OperationError{Op: "register collection", Subject: subject, Err: err}
	}

	c.log.Info("Registered collection",
		slog.String("collection", subject),
		slog.String("owner", owner.Hex()),
		slog.String("name", name),
		slog.String("symbol", symbol))
	return record, nil
}

// DeployAndRegister deploys a collection owned by the signer, publishes its
// descriptive document and registers it. Registration starts only after the
// deployment receipt is confirmed.
//
// When a later step fails the returned Deployment still carries the
// deployment receipt, so registration can be completed with RegisterCollection.
func (c *Client) DeployAndRegister(ctx context.Context, name, symbol string) (*Deployment, error) {
	if err := validateNames(name, symbol); err != nil {
		return nil, err
	}
	owner := c.provider.Signer()
	if owner == (common.Address{}) {
		return nil, interfaces.ErrNoTransactOpts
	}

	deployer, err := c.provider.CollectionDeployer()
	if err != nil {
		return nil, &interfaces.OperationError{Op: "deploy collection", Subject: name, Err: err}
	}

	receipt, err := txwait.Submit(ctx, c.waiter, c.journal, fmt.Sprintf("deployCollection:%s:%s:%s", owner.Hex(), name, symbol), c.confirmations, c.log,
		func(ctx context.Context) (*types.Transaction, error) {
			return deployer.DeployCollection(ctx, name, symbol)
		})
	if err != nil {
		return nil, &interfaces.OperationError{Op: "deploy collection", Subject: name, Err: err}
	}

	deployment := &Deployment{
		Receipt: receipt,
		Record: interfaces.CollectionRecord{
			Address: receipt.ContractAddress,
			Name:    name,
			Symbol:  symbol,
			Owner:   owner,
		},
	}
	c.log.Info("Deployed collection",
		slog.String("collection", receipt.ContractAddress.Hex()),
		slog.String("txHash", receipt.TxHash.Hex()))

	if c.publisher != nil {
		ref, err := c.publisher.PublishCollection(ctx, deployment.Record)
		if err != nil {
			return deployment, &interfaces.OperationError{Op: "publish collection metadata", Subject: receipt.ContractAddress.Hex(), Err: err}
		}
		deployment.MetadataRef = ref
	}

	record, err := c.RegisterCollection(ctx, receipt, owner, name, symbol)
	if err != nil {
		return deployment, err
	}
	deployment.Record = record
	return deployment, nil
}

// GetAllCollections lists every registered collection.
func (c *Client) GetAllCollections(ctx context.Context) ([]interfaces.CollectionRecord, error) {
	reg, err := c.provider.Registry()
	if err != nil {
		return nil, err
	}
	records, err := reg.GetAllCollections(ctx)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "list collections", Err: err}
	}
	return records, nil
}

// GetCollectionsByOwner lists the collections registered for owner.
func (c *Client) GetCollectionsByOwner(ctx context.Context, owner common.Address) ([]interfaces.CollectionRecord, error) {
	reg, err := c.provider.Registry()
	if err != nil {
		return nil, err
	}
	records, err := reg.GetCollectionsByOwner(ctx, owner)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "list collections", Subject: owner.Hex(), Err: err}
	}
	return records, nil
}

// GetCollectionMetadata returns the registry record of collection.
func (c *Client) GetCollectionMetadata(ctx context.Context, collection common.Address) (*interfaces.CollectionRecord, error) {
	if collection == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: "collection", Reason: "zero address"}
	}
	reg, err := c.provider.Registry()
	if err != nil {
		return nil, err
	}
	record, err := reg.GetCollectionMetadata(ctx, collection)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "get collection", Subject: collection.Hex(), Err: err}
	}
	if record.Address == (common.Address{}) {
		return nil, &interfaces.CollectionNotRegisteredError{Address: collection}
	}
	return &record, nil
}

// MintToken publishes the token image and document, then mints the token
// to `to` with the document's ipfs:// URI. A zero `to` mints to the signer.
func (c *Client) MintToken(ctx context.Context, collection, to common.Address, asset metadata.TokenAsset) (*interfaces.TokenRecord, error) {
	if collection == (common.Address{}) {
		return nil, &interfaces.ValidationError{Field: "collection", Reason: "zero address"}
	}
	if to == (common.Address{}) {
		to = c.provider.Signer()
	}
	if to == (common.Address{}) {
		return nil, interfaces.ErrNoTransactOpts
	}
	if c.publisher == nil {
		return nil, ErrNoPublisher
	}

	handle, err := c.provider.Collection(collection)
	if err != nil {
		return nil, err
	}

	metadataRef, _, err := c.publisher.PublishToken(ctx, asset)
	if err != nil {
		return nil, err
	}

	receipt, err := txwait.Submit(ctx, c.waiter, c.journal, fmt.Sprintf("mintToken:%s:%s:%s", collection.Hex(), to.Hex(), metadataRef), c.confirmations, c.log,
		func(ctx context.Context) (*types.Transaction, error) {
			return handle.MintToken(ctx, to, metadataRef.URI())
		})
	if err != nil {
		return nil, &interfaces.OperationError{Op: "mint token", Subject: collection.Hex(), Err: err}
	}

	tokenID, err := handle.MintedTokenID(receipt)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "mint token", Subject: collection.Hex(), Err: err}
	}

	c.log.Info("Minted token",
		slog.String("collection", collection.Hex()),
		slog.String("tokenId", tokenID.String()),
		slog.String("to", to.Hex()),
		slog.String("metadata", metadataRef.URI()))

	return &interfaces.TokenRecord{
		Collection:  collection,
		TokenID:     tokenID,
		MetadataRef: metadataRef,
	}, nil
}

// TokensOfOwner lists the tokens owner holds in collection. Tokens whose
// URI is not a content reference are returned with an empty MetadataRef.
func (c *Client) TokensOfOwner(ctx context.Context, collection, owner common.Address) ([]interfaces.TokenRecord, error) {
	handle, err := c.provider.Collection(collection)
	if err != nil {
		return nil, err
	}

	ids, err := handle.TokensOfOwner(ctx, owner)
	if err != nil {
		return nil, &interfaces.OperationError{Op: "list tokens", Subject: collection.Hex(), Err: err}
	}

	tokens := make([]interfaces.TokenRecord, 0, len(ids))
	for _, id := range ids {
		token, err := c.Token(ctx, handle, id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// Token reads the metadata reference of a single token.
func (c *Client) Token(ctx context.Context, handle interfaces.CollectionContract, tokenID *big.Int) (interfaces.TokenRecord, error) {
	token := interfaces.TokenRecord{Collection: handle.Address(), TokenID: tokenID}

	uri, err := handle.TokenURI(ctx, tokenID)
	if err != nil {
		return token, &interfaces.OperationError{Op: "token uri", Subject: tokenID.String(), Err: err}
	}
	ref, err := metadata.ParseReferenceLoose(uri)
	if err != nil {
		c.log.Debug("Token URI is not a content reference",
			slog.String("collection", handle.Address().Hex()),
			slog.String("tokenId", tokenID.String()),
			slog.String("uri", uri))
		return token, nil
	}
	token.MetadataRef = ref
	return token, nil
}

func validateDeployment(receipt *types.Receipt) error {
	if receipt == nil {
		return &interfaces.ValidationError{Field: "deployment receipt", Reason: "missing"}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &interfaces.ValidationError{Field: "deployment receipt", Reason: "deployment reverted"}
	}
	if receipt.ContractAddress == (common.Address{}) {
		return &interfaces.ValidationError{Field: "deployment receipt", Reason: "no contract address"}
	}
	return nil
}

func validateNames(name, symbol string) error {
	if strings.TrimSpace(name) == "" {
		return &interfaces.ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(symbol) == "" {
		return &interfaces.ValidationError{Field: "symbol", Reason: "required"}
	}
	return nil
}
