package main

import (
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/nft-marketplace-backend/auction"
	"github.com/ruteri/nft-marketplace-backend/cmd/flags"
	"github.com/ruteri/nft-marketplace-backend/httpserver"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/metadata"
)

var (
	flagCollection = &cli.StringFlag{Name: "collection", Required: true, Usage: "collection contract address"}
	flagTokenID    = &cli.StringFlag{Name: "token-id", Required: true, Usage: "token id (decimal)"}
	flagOwner      = &cli.StringFlag{Name: "owner", Usage: "owner address, defaults to the signer"}
	flagTx         = &cli.StringFlag{Name: "tx", Required: true, Usage: "transaction hash"}
)

var commands = []*cli.Command{
	{
		Name:  "create-collection",
		Usage: "deploy a collection, publish its metadata and register it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "symbol", Required: true},
		},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			dep, err := m.registry.DeployAndRegister(cCtx.Context, cCtx.String("name"), cCtx.String("symbol"))
			if dep != nil && dep.Receipt != nil && err != nil {
				m.log.Warn("Collection deployed but not registered", "address", dep.Receipt.ContractAddress.Hex())
			}
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, map[string]any{
				"collection":  dep.Record,
				"metadataRef": dep.MetadataRef,
				"deployTx":    dep.Receipt.TxHash,
			})
		}),
	},
	{
		Name:  "mint",
		Usage: "publish token metadata and mint it",
		Flags: []cli.Flag{
			flagCollection,
			&cli.StringFlag{Name: "to", Usage: "recipient, defaults to the signer"},
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "description"},
			&cli.PathFlag{Name: "image", Required: true, Usage: "image file to publish"},
			&cli.StringFlag{Name: "image-type", Usage: "MIME type, detected from content when empty"},
			&cli.StringSliceFlag{Name: "attribute", Usage: "key=value document attribute, repeatable"},
		},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			collection, err := parseAddress("collection", cCtx.String(flagCollection.Name))
			if err != nil {
				return err
			}
			var to common.Address
			if s := cCtx.String("to"); s != "" {
				if to, err = parseAddress("to", s); err != nil {
					return err
				}
			}
			image, err := os.ReadFile(cCtx.Path("image"))
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			imageType := cCtx.String("image-type")
			if imageType == "" {
				imageType = http.DetectContentType(image)
			}
			attrs, err := parseAttributes(cCtx.StringSlice("attribute"))
			if err != nil {
				return err
			}

			token, err := m.registry.MintToken(cCtx.Context, collection, to, metadata.TokenAsset{
				Name:        cCtx.String("name"),
				Description: cCtx.String("description"),
				Image:       image,
				ImageType:   imageType,
				Attributes:  attrs,
			})
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, token)
		}),
	},
	{
		Name:  "create-auction",
		Usage: "approve the auction contract if needed and list a token",
		Flags: []cli.Flag{
			flagCollection,
			flagTokenID,
			&cli.StringFlag{Name: "starting-bid", Required: true, Usage: "starting bid in wei"},
			&cli.Uint64Flag{Name: "hours"},
			&cli.Uint64Flag{Name: "minutes"},
			&cli.Uint64Flag{Name: "seconds"},
		},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			collection, tokenID, err := tokenArgs(cCtx)
			if err != nil {
				return err
			}
			startingBid, err := parseAmount("starting bid", cCtx.String("starting-bid"))
			if err != nil {
				return err
			}
			duration, err := auction.DurationFromParts(cCtx.Uint64("hours"), cCtx.Uint64("minutes"), cCtx.Uint64("seconds"))
			if err != nil {
				return err
			}

			record, err := m.auctions.CreateAuction(cCtx.Context, collection, tokenID, startingBid, duration)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, record)
		}),
	},
	{
		Name:  "bid",
		Usage: "bid on an active auction",
		Flags: []cli.Flag{
			flagCollection,
			flagTokenID,
			&cli.StringFlag{Name: "amount", Required: true, Usage: "bid in wei"},
		},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			collection, tokenID, err := tokenArgs(cCtx)
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", cCtx.String("amount"))
			if err != nil {
				return err
			}

			record, err := m.auctions.PlaceBid(cCtx.Context, collection, tokenID, amount)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, record)
		}),
	},
	{
		Name:  "settle",
		Usage: "settle an ended auction",
		Flags: []cli.Flag{flagCollection, flagTokenID},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			collection, tokenID, err := tokenArgs(cCtx)
			if err != nil {
				return err
			}
			record, err := m.auctions.SettleAuction(cCtx.Context, collection, tokenID)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, record)
		}),
	},
	{
		Name:  "auction",
		Usage: "show the auction of a token with its metadata",
		Flags: []cli.Flag{flagCollection, flagTokenID},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			collection, tokenID, err := tokenArgs(cCtx)
			if err != nil {
				return err
			}
			listing, err := m.catalog.Listing(cCtx.Context, collection, tokenID)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, listing)
		}),
	},
	{
		Name:  "auctions",
		Usage: "list active auctions with their metadata",
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			listings, err := m.catalog.ActiveListings(cCtx.Context)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, listings)
		}),
	},
	{
		Name:  "collections",
		Usage: "list registered collections, optionally of one owner",
		Flags: []cli.Flag{&cli.StringFlag{Name: "owner", Usage: "owner address"}},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			var (
				records []interfaces.CollectionRecord
				err     error
			)
			if s := cCtx.String("owner"); s != "" {
				owner, perr := parseAddress("owner", s)
				if perr != nil {
					return perr
				}
				records, err = m.registry.GetCollectionsByOwner(cCtx.Context, owner)
			} else {
				records, err = m.registry.GetAllCollections(cCtx.Context)
			}
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, records)
		}),
	},
	{
		Name:  "collection",
		Usage: "show the registry record of a collection",
		Flags: []cli.Flag{&cli.StringFlag{Name: "address", Required: true}},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			address, err := parseAddress("address", cCtx.String("address"))
			if err != nil {
				return err
			}
			record, err := m.registry.GetCollectionMetadata(cCtx.Context, address)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, record)
		}),
	},
	{
		Name:  "tokens",
		Usage: "list an owner's tokens with metadata, in one collection or across all registered ones",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection", Usage: "collection contract address, all registered collections when empty"},
			flagOwner,
		},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			var err error
			owner := m.session.Signer()
			if s := cCtx.String(flagOwner.Name); s != "" {
				if owner, err = parseAddress("owner", s); err != nil {
					return err
				}
			}
			if owner == (common.Address{}) {
				return &interfaces.ValidationError{Field: "owner", Reason: "required without a signer"}
			}

			if cCtx.String("collection") == "" {
				tokens, err := m.catalog.OwnerTokens(cCtx.Context, owner)
				if err != nil {
					return err
				}
				return printJSON(cCtx.App.Writer, tokens)
			}

			collection, err := parseAddress("collection", cCtx.String("collection"))
			if err != nil {
				return err
			}
			tokens, err := m.catalog.OwnedTokens(cCtx.Context, collection, owner)
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, tokens)
		}),
	},
	{
		Name:  "metadata",
		Usage: "resolve a metadata document",
		Flags: []cli.Flag{&cli.StringFlag{Name: "cid", Required: true, Usage: "content reference, bare or ipfs://"}},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			doc, err := m.resolver.ResolveURI(cCtx.Context, cCtx.String("cid"))
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, map[string]any{
				"document": doc,
				"imageUrl": m.resolver.GatewayURL(doc.Image),
			})
		}),
	},
	{
		Name:  "await",
		Usage: "wait for a previously submitted transaction",
		Flags: []cli.Flag{flagTx},
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			s := cCtx.String(flagTx.Name)
			if len(common.FromHex(s)) != common.HashLength {
				return &interfaces.ValidationError{Field: "tx", Reason: fmt.Sprintf("%q is not a transaction hash", s)}
			}
			receipt, err := m.waiter.Await(cCtx.Context, common.HexToHash(s), cCtx.Uint64(flags.ConfirmationsFlag.Name))
			if err != nil {
				return err
			}
			return printJSON(cCtx.App.Writer, map[string]any{
				"tx":              receipt.TxHash,
				"block":           receipt.BlockNumber,
				"status":          receipt.Status,
				"contractAddress": receipt.ContractAddress,
			})
		}),
	},
	{
		Name:  "serve",
		Usage: "serve the read API over HTTP",
		Flags: flags.ServerFlags,
		Action: withMarketplace(func(cCtx *cli.Context, m *marketplace) error {
			if !m.store.Available(cCtx.Context) {
				m.log.Warn("Content storage is not reachable; metadata reads will fail", "storage", m.store.LocationURI())
			}

			handler := httpserver.NewHandler(m.catalog, m.registry, m.resolver, m.log)
			server, err := httpserver.New(flags.ConfigureServer(cCtx, m.log), handler)
			if err != nil {
				m.log.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			m.log.Info("Shutdown signal received")

			server.Shutdown()
			return nil
		}),
	},
}

func tokenArgs(cCtx *cli.Context) (common.Address, *big.Int, error) {
	collection, err := parseAddress("collection", cCtx.String(flagCollection.Name))
	if err != nil {
		return common.Address{}, nil, err
	}
	tokenID, err := parseAmount("token id", cCtx.String(flagTokenID.Name))
	if err != nil {
		return common.Address{}, nil, err
	}
	return collection, tokenID, nil
}
