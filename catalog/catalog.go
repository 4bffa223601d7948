// Package catalog joins ledger reads with their resolved metadata for
// display: auction listings and owned tokens.
//
// Metadata is re-resolved on every call. A token whose metadata cannot be
// fetched or parsed is still listed, with the failure attached.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/ruteri/nft-marketplace-backend/auction"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/metadata"
)

// DefaultConcurrency bounds parallel metadata resolution per call.
const DefaultConcurrency = 8

// Listing is an auction with the metadata of its token.
type Listing struct {
	Auction       interfaces.AuctionRecord     `json:"auction"`
	State         string                       `json:"state"`
	MetadataRef   interfaces.ContentReference  `json:"metadataRef,omitempty"`
	Metadata      *interfaces.MetadataDocument `json:"metadata,omitempty"`
	ImageURL      string                       `json:"imageUrl,omitempty"`
	MetadataError string                       `json:"metadataError,omitempty"`

	Err error `json:"-"`
}

// OwnedToken is a token with its resolved metadata.
type OwnedToken struct {
	Token         interfaces.TokenRecord       `json:"token"`
	Metadata      *interfaces.MetadataDocument `json:"metadata,omitempty"`
	ImageURL      string                       `json:"imageUrl,omitempty"`
	MetadataError string                       `json:"metadataError,omitempty"`

	Err error `json:"-"`
}

// Resolver is the part of metadata.Resolver the catalog needs.
type Resolver interface {
	Resolve(ctx context.Context, ref interfaces.ContentReference) (*interfaces.MetadataDocument, error)
	GatewayURL(ref interfaces.ContentReference) string
}

// TokenSource reads registered collections and their token references.
type TokenSource interface {
	GetAllCollections(ctx context.Context) ([]interfaces.CollectionRecord, error)
	TokensOfOwner(ctx context.Context, collection, owner common.Address) ([]interfaces.TokenRecord, error)
	Token(ctx context.Context, handle interfaces.CollectionContract, tokenID *big.Int) (interfaces.TokenRecord, error)
}

type Catalog struct {
	auctions    *auction.Coordinator
	tokens      TokenSource
	provider    interfaces.ContractProvider
	resolver    Resolver
	concurrency int
	log         *slog.Logger
}

type Option func(*Catalog)

func WithConcurrency(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewCatalog(auctions *auction.Coordinator, tokens TokenSource, provider interfaces.ContractProvider, resolver Resolver, log *slog.Logger, opts ...Option) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	c := &Catalog{
		auctions:    auctions,
		tokens:      tokens,
		provider:    provider,
		resolver:    resolver,
		concurrency: DefaultConcurrency,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActiveListings returns every active auction with its token metadata, in
// the order the auction contract lists them.
func (c *Catalog) ActiveListings(ctx context.Context) ([]Listing, error) {
	records, err := c.auctions.GetAllActiveAuctions(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range records {
		g.Go(func() error {
			listings[i] = c.listing(gctx, records[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

// Listing returns the auction of one token with its metadata.
func (c *Catalog) Listing(ctx context.Context, nft common.Address, tokenID *big.Int) (*Listing, error) {
	record, err := c.auctions.GetAuction(ctx, nft, tokenID)
	if err != nil {
		return nil, err
	}
	listing := c.listing(ctx, *record)
	return &listing, nil
}

// OwnedTokens lists the tokens owner holds in collection with their metadata.
func (c *Catalog) OwnedTokens(ctx context.Context, collection, owner common.Address) ([]OwnedToken, error) {
	tokens, err := c.tokens.TokensOfOwner(ctx, collection, owner)
	if err != nil {
		return nil, err
	}
	return c.withMetadata(ctx, tokens)
}

// OwnerTokens lists the tokens owner holds across every registered
// collection, grouped in registry order. A collection that cannot be read
// fails the call.
func (c *Catalog) OwnerTokens(ctx context.Context, owner common.Address) ([]OwnedToken, error) {
	collections, err := c.tokens.GetAllCollections(ctx)
	if err != nil {
		return nil, err
	}

	perCollection := make([][]interfaces.TokenRecord, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range collections {
		g.Go(func() error {
			tokens, err := c.tokens.TokensOfOwner(gctx, collections[i].Address, owner)
			if err != nil {
				return fmt.Errorf("collection %s: %w", collections[i].Address.Hex(), err)
			}
			perCollection[i] = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tokens []interfaces.TokenRecord
	for _, batch := range perCollection {
		tokens = append(tokens, batch...)
	}
	c.log.Debug("Listed owner tokens",
		slog.String("owner", owner.Hex()),
		slog.Int("collections", len(collections)),
		slog.Int("tokens", len(tokens)))
	return c.withMetadata(ctx, tokens)
}

func (c *Catalog) withMetadata(ctx context.Context, tokens []interfaces.TokenRecord) ([]OwnedToken, error) {
	owned := make([]OwnedToken, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range tokens {
		g.Go(func() error {
			item := OwnedToken{Token: tokens[i]}
			item.Metadata, item.ImageURL, item.Err = c.resolve(gctx, tokens[i])
			if item.Err != nil {
				item.MetadataError = item.Err.Error()
			}
			owned[i] = item
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return owned, nil
}

func (c *Catalog) listing(ctx context.Context, record interfaces.AuctionRecord) Listing {
	l := Listing{
		Auction: record,
		State:   auction.StateOf(&record, c.auctions.Now()).String(),
	}

	token, err := c.token(ctx, record.NFTContract, record.TokenID)
	if err == nil {
		l.MetadataRef = token.MetadataRef
		l.Metadata, l.ImageURL, err = c.resolve(ctx, token)
	}
	if err != nil {
		l.Err = err
		l.MetadataError = err.Error()
	}
	return l
}

func (c *Catalog) token(ctx context.Context, nft common.Address, tokenID *big.Int) (interfaces.TokenRecord, error) {
	handle, err := c.provider.Collection(nft)
	if err != nil {
		return interfaces.TokenRecord{}, err
	}
	return c.tokens.Token(ctx, handle, tokenID)
}

func (c *Catalog) resolve(ctx context.Context, token interfaces.TokenRecord) (*interfaces.MetadataDocument, string, error) {
	if token.MetadataRef == "" {
		return nil, "", &interfaces.MetadataFetchError{
			Ref: token.MetadataRef,
			Err: fmt.Errorf("token %s has no content-addressed metadata", interfaces.TokenKey{Contract: token.Collection, TokenID: token.TokenID}),
		}
	}

	doc, err := c.resolver.Resolve(ctx, token.MetadataRef)
	if err != nil {
		c.log.Warn("Listing without metadata",
			slog.String("collection", token.Collection.Hex()),
			slog.String("tokenId", token.TokenID.String()),
			"err", err)
		return nil, "", err
	}
	return doc, c.resolver.GatewayURL(doc.Image), nil
}

var _ Resolver = (*metadata.Resolver)(nil)
