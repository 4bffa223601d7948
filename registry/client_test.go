package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/ledgermock"
	"github.com/ruteri/nft-marketplace-backend/metadata"
	"github.com/ruteri/nft-marketplace-backend/storage"
)

var (
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	ledger   *ledgermock.Ledger
	store    *storage.MemoryBackend
	resolver *metadata.Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryBackend("registry", testLogger())
	return &testEnv{
		ledger:   ledgermock.NewLedger(1337, time.Unix(1_700_000_000, 0)),
		store:    store,
		resolver: metadata.NewResolver(store, testLogger()),
	}
}

func (e *testEnv) client(signer common.Address) *Client {
	return NewClient(e.ledger.Provider(signer), e.ledger, testLogger(),
		WithPublisher(metadata.NewPublisher(e.store, testLogger())))
}

func TestDeployAndRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.client(alice)

	dep, err := client.DeployAndRegister(ctx, "Sunsets", "SUN")
	require.NoError(t, err)
	require.NotNil(t, dep.Receipt)
	assert.NotEqual(t, common.Address{}, dep.Record.Address)
	assert.Equal(t, alice, dep.Record.Owner)

	// deployment is confirmed before the registry is written
	assert.Equal(t, []string{"deployCollection", "registerCollection"}, env.ledger.Methods())

	record, err := client.GetCollectionMetadata(ctx, dep.Record.Address)
	require.NoError(t, err)
	assert.Equal(t, dep.Record, *record)

	owned, err := client.GetCollectionsByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.CollectionRecord{dep.Record}, owned)

	none, err := client.GetCollectionsByOwner(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, none)

	doc, err := env.resolver.Resolve(ctx, dep.MetadataRef)
	require.NoError(t, err)
	assert.Equal(t, "Sunsets", doc.Name)
	assert.Equal(t, "SUN", doc.Extra["symbol"])
	assert.Equal(t, dep.Record.Address.Hex(), doc.Extra["contractAddress"])
	assert.Equal(t, alice.Hex(), doc.Extra["createdBy"])
}

func TestRegisterCollection_RequiresConfirmedDeployment(t *testing.T) {
	deployed := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	tests := []struct {
		name    string
		receipt *types.Receipt
	}{
		{name: "missing receipt"},
		{name: "reverted deployment", receipt: &types.Receipt{Status: types.ReceiptStatusFailed, ContractAddress: deployed}},
		{name: "no contract address", receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := new(MockRegistryContract)
			provider := new(MockProvider)
			provider.On("Registry").Return(reg, nil).Maybe()

			client := NewClient(provider, nil, testLogger())
			_, err := client.RegisterCollection(context.Background(), tt.receipt, alice, "Sunsets", "SUN")

			var verr *interfaces.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "deployment receipt", verr.Field)
			reg.AssertNotCalled(t, "RegisterCollection", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRegisterCollection_ValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	client := env.client(alice)
	receipt := &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		ContractAddress: env.ledger.DeployCollection("Sunsets", "SUN"),
	}

	var verr *interfaces.ValidationError
	_, err := client.RegisterCollection(context.Background(), receipt, alice, "", "SUN")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = client.RegisterCollection(context.Background(), receipt, alice, "Sunsets", " ")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "symbol", verr.Field)

	_, err = client.RegisterCollection(context.Background(), receipt, common.Address{}, "Sunsets", "SUN")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "owner", verr.Field)

	assert.Empty(t, env.ledger.Submissions())
}

func TestRegisterCollection_Reverted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.client(alice)

	receipt := &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		ContractAddress: env.ledger.DeployCollection("Sunsets", "SUN"),
	}
	_, err := client.RegisterCollection(ctx, receipt, alice, "Sunsets", "SUN")
	require.NoError(t, err)

	// the registry rejects a second registration of the same address
	_, err = client.RegisterCollection(ctx, receipt, alice, "Sunsets", "SUN")
	var reverted *interfaces.TransactionRevertedError
	require.ErrorAs(t, err, &reverted)

	var opErr *interfaces.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "register collection", opErr.Op)
	assert.Equal(t, receipt.ContractAddress.Hex(), opErr.Subject)
}

func TestGetCollectionMetadata_NotRegistered(t *testing.T) {
	env := newTestEnv(t)
	client := env.client(common.Address{})

	unknown := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	_, err := client.GetCollectionMetadata(context.Background(), unknown)

	var notRegistered *interfaces.CollectionNotRegisteredError
	require.ErrorAs(t, err, &notRegistered)
	assert.Equal(t, unknown, notRegistered.Address)

	var verr *interfaces.ValidationError
	_, err = client.GetCollectionMetadata(context.Background(), common.Address{})
	require.ErrorAs(t, err, &verr)
}

func TestRegistryReadErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	rpcErr := errors.New("connection refused")

	reg := new(MockRegistryContract)
	reg.On("GetAllCollections", ctx).Return(nil, rpcErr)
	reg.On("GetCollectionsByOwner", ctx, alice).Return(nil, rpcErr)

	provider := new(MockProvider)
	provider.On("Registry").Return(reg, nil)

	client := NewClient(provider, nil, testLogger())

	_, err := client.GetAllCollections(ctx)
	assert.ErrorIs(t, err, rpcErr)

	_, err = client.GetCollectionsByOwner(ctx, alice)
	assert.ErrorIs(t, err, rpcErr)

	reg.AssertExpectations(t)
}

func TestRoleNotDeployed(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Undeploy(interfaces.RoleRegistry)
	client := env.client(alice)

	_, err := client.GetAllCollections(context.Background())
	var notDeployed *interfaces.RoleNotDeployedError
	require.ErrorAs(t, err, &notDeployed)
	assert.Equal(t, interfaces.RoleRegistry, notDeployed.Role)
}

func TestDeployAndRegister_ReadOnly(t *testing.T) {
	env := newTestEnv(t)
	client := env.client(common.Address{})

	_, err := client.DeployAndRegister(context.Background(), "Sunsets", "SUN")
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
	assert.Empty(t, env.ledger.Submissions())
}

type failingPublisher struct {
	err error
}

func (p *failingPublisher) PublishToken(ctx context.Context, asset metadata.TokenAsset) (interfaces.ContentReference, interfaces.ContentReference, error) {
	return "", "", p.err
}

func (p *failingPublisher) PublishCollection(ctx context.Context, record interfaces.CollectionRecord) (interfaces.ContentReference, error) {
	return "", p.err
}

func TestDeployAndRegister_PublishFailure(t *testing.T) {
	env := newTestEnv(t)
	pubErr := errors.New("pinning service down")
	client := NewClient(env.ledger.Provider(alice), env.ledger, testLogger(), WithPublisher(&failingPublisher{err: pubErr}))

	dep, err := client.DeployAndRegister(context.Background(), "Sunsets", "SUN")
	assert.ErrorIs(t, err, pubErr)

	// the confirmed deployment is handed back for a later registration
	require.NotNil(t, dep)
	require.NotNil(t, dep.Receipt)
	assert.Equal(t, []string{"deployCollection"}, env.ledger.Methods())

	record, err := env.client(alice).RegisterCollection(context.Background(), dep.Receipt, alice, "Sunsets", "SUN")
	require.NoError(t, err)
	assert.Equal(t, dep.Receipt.ContractAddress, record.Address)
}

func TestMintToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.client(alice)
	collection := env.ledger.DeployCollection("Sunsets", "SUN")

	token, err := client.MintToken(ctx, collection, common.Address{}, metadata.TokenAsset{
		Name:        "Sunset #1",
		Description: "first light",
		Image:       []byte("png bytes"),
		ImageType:   "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, collection, token.Collection)
	assert.Equal(t, big.NewInt(1), token.TokenID)
	assert.Equal(t, alice, env.ledger.OwnerOf(collection, token.TokenID))

	doc, err := env.resolver.Resolve(ctx, token.MetadataRef)
	require.NoError(t, err)
	assert.Equal(t, "Sunset #1", doc.Name)

	second, err := client.MintToken(ctx, collection, bob, metadata.TokenAsset{
		Name:  "Sunset #2",
		Image: []byte("other png"),
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), second.TokenID)

	tokens, err := client.TokensOfOwner(ctx, collection, alice)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.TokenRecord{*token}, tokens)

	tokens, err = client.TokensOfOwner(ctx, collection, bob)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.TokenRecord{*second}, tokens)
}

func TestMintToken_Preconditions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	collection := env.ledger.DeployCollection("Sunsets", "SUN")
	asset := metadata.TokenAsset{Name: "x", Image: []byte("x")}

	noPublisher := NewClient(env.ledger.Provider(alice), env.ledger, testLogger())
	_, err := noPublisher.MintToken(ctx, collection, alice, asset)
	assert.ErrorIs(t, err, ErrNoPublisher)

	_, err = env.client(common.Address{}).MintToken(ctx, collection, common.Address{}, asset)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)

	var verr *interfaces.ValidationError
	_, err = env.client(alice).MintToken(ctx, common.Address{}, alice, asset)
	require.ErrorAs(t, err, &verr)

	assert.Empty(t, env.ledger.Submissions())
	assert.Equal(t, 0, env.store.Len())
}

func TestTokensOfOwner_ForeignURI(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	collection := env.ledger.DeployCollection("Legacy", "OLD")
	id, err := env.ledger.Mint(collection, alice, "https://example.com/token/1.json")
	require.NoError(t, err)

	tokens, err := env.client(alice).TokensOfOwner(ctx, collection, alice)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, id, tokens[0].TokenID)
	assert.Empty(t, tokens[0].MetadataRef)
}
