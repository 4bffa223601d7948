package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/nft-marketplace-backend/auction"
	"github.com/ruteri/nft-marketplace-backend/catalog"
	"github.com/ruteri/nft-marketplace-backend/cmd/flags"
	"github.com/ruteri/nft-marketplace-backend/deployments"
	"github.com/ruteri/nft-marketplace-backend/handles"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/metadata"
	"github.com/ruteri/nft-marketplace-backend/registry"
	"github.com/ruteri/nft-marketplace-backend/signer"
	"github.com/ruteri/nft-marketplace-backend/storage"
	"github.com/ruteri/nft-marketplace-backend/txwait"
)

// marketplace is the wired object graph shared by all commands.
type marketplace struct {
	log      *slog.Logger
	eth      *ethclient.Client
	session  *handles.Session
	waiter   *txwait.Waiter
	store    interfaces.ContentStore
	resolver *metadata.Resolver
	registry *registry.Client
	auctions *auction.Coordinator
	catalog  *catalog.Catalog
}

func newMarketplace(cCtx *cli.Context) (m *marketplace, err error) {
	ctx := cCtx.Context
	logger := flags.SetupLogger(cCtx)

	rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
	logger.Debug("Connecting to Ethereum RPC", "address", rpcAddress)
	eth, err := ethclient.DialContext(ctx, rpcAddress)
	if err != nil {
		logger.Error("Failed to dial RPC", "err", err)
		return nil, err
	}
	defer func() {
		if err != nil {
			eth.Close()
		}
	}()

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	table, err := deployments.LoadFile(cCtx.String(flags.DeploymentsFlag.Name))
	if err != nil {
		return nil, err
	}

	key, err := signer.Load(ctx, flags.SignerConfig(cCtx), logger)
	if err != nil {
		return nil, err
	}
	opts, err := signer.Transactor(key, chainID.Uint64())
	if err != nil {
		return nil, err
	}
	if key != nil {
		logger.Debug("Signing as", "address", crypto.PubkeyToAddress(key.PublicKey).Hex())
	}

	session, err := handles.NewSession(handles.NewFactory(eth, logger), table, chainID.Uint64(), opts, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(cCtx.StringSlice(flags.StorageFlag.Name))
	if err != nil {
		return nil, err
	}

	policy, err := auction.ParseSettlePolicy(cCtx.String(flags.SettlePolicyFlag.Name))
	if err != nil {
		return nil, err
	}

	confirmations := cCtx.Uint64(flags.ConfirmationsFlag.Name)
	waiter := txwait.NewWaiter(eth, logger, txwait.WithTimeout(cCtx.Duration(flags.TxTimeoutFlag.Name)))
	resolver := metadata.NewResolver(store, logger, metadata.WithGateway(cCtx.String(flags.GatewayFlag.Name)))

	reg := registry.NewClient(session, waiter, logger,
		registry.WithPublisher(metadata.NewPublisher(store, logger)),
		registry.WithConfirmations(confirmations))
	coordinator := auction.NewCoordinator(session, waiter, logger,
		auction.WithSettlePolicy(policy),
		auction.WithConfirmations(confirmations))

	m = &marketplace{
		log:      logger,
		eth:      eth,
		session:  session,
		waiter:   waiter,
		store:    store,
		resolver: resolver,
		registry: reg,
		auctions: coordinator,
		catalog:  catalog.NewCatalog(coordinator, reg, session, resolver, logger),
	}
	return m, nil
}

func (m *marketplace) Close() {
	m.eth.Close()
}

// withMarketplace wraps a command action with setup, teardown and error hints.
func withMarketplace(action func(cCtx *cli.Context, m *marketplace) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		m, err := newMarketplace(cCtx)
		if err != nil {
			return err
		}
		defer m.Close()
		return explain(action(cCtx, m))
	}
}

// explain adds recovery hints to errors whose outcome is still open.
func explain(err error) error {
	var timeout *interfaces.TransactionTimeoutError
	if errors.As(err, &timeout) {
		return fmt.Errorf("%w\ntransaction may still be mined; re-attach with: marketplace await --tx %s", err, timeout.Hash.Hex())
	}
	if errors.Is(err, interfaces.ErrNoTransactOpts) {
		return fmt.Errorf("%w: pass --private-key, --keystore or --vault-addr", err)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, &interfaces.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not an address", s)}
	}
	return common.HexToAddress(s), nil
}

func parseAmount(name, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, &interfaces.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a non-negative integer", s)}
	}
	return v, nil
}

// parseAttributes turns key=value pairs into document attributes.
func parseAttributes(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, &interfaces.ValidationError{Field: "attribute", Reason: fmt.Sprintf("%q is not key=value", pair)}
		}
		attrs[strings.TrimSpace(k)] = v
	}
	return attrs, nil
}

