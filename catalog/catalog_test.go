package catalog

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/nft-marketplace-backend/auction"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/ledgermock"
	"github.com/ruteri/nft-marketplace-backend/metadata"
	"github.com/ruteri/nft-marketplace-backend/registry"
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
	ledger     *ledgermock.Ledger
	store      *storage.MemoryBackend
	collection common.Address
	catalog    *Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ledger := ledgermock.NewLedger(1337, time.Unix(1_700_000_000, 0))
	store := storage.NewMemoryBackend("catalog", testLogger())
	reader := ledger.Provider(common.Address{})

	coordinator := auction.NewCoordinator(reader, ledger, testLogger(), auction.WithClock(ledger.Now))
	tokens := registry.NewClient(reader, ledger, testLogger())
	resolver := metadata.NewResolver(store, testLogger(), metadata.WithGateway("https://gw.example"))

	return &testEnv{
		ledger:     ledger,
		store:      store,
		collection: ledger.DeployCollection("Sunsets", "SUN"),
		catalog:    NewCatalog(coordinator, tokens, reader, resolver, testLogger(), WithConcurrency(2)),
	}
}

func (e *testEnv) mint(t *testing.T, to common.Address, name string) *interfaces.TokenRecord {
	t.Helper()
	return e.mintInto(t, e.collection, to, name)
}

func (e *testEnv) mintInto(t *testing.T, collection, to common.Address, name string) *interfaces.TokenRecord {
	t.Helper()
	client := registry.NewClient(e.ledger.Provider(to), e.ledger, testLogger(),
		registry.WithPublisher(metadata.NewPublisher(e.store, testLogger())))
	token, err := client.MintToken(context.Background(), collection, to, metadata.TokenAsset{
		Name:      name,
		Image:     []byte("image of " + name),
		ImageType: "image/png",
	})
	require.NoError(t, err)
	return token
}

func (e *testEnv) register(t *testing.T, collection, owner common.Address) {
	t.Helper()
	reg, err := e.ledger.Provider(owner).Registry()
	require.NoError(t, err)
	tx, err := reg.RegisterCollection(context.Background(), collection, owner, "Registered", "REG")
	require.NoError(t, err)
	_, err = e.ledger.Await(context.Background(), tx.Hash(), 1)
	require.NoError(t, err)
}

func (e *testEnv) list(t *testing.T, seller common.Address, tokenID *big.Int, duration time.Duration) {
	t.Helper()
	c := auction.NewCoordinator(e.ledger.Provider(seller), e.ledger, testLogger(), auction.WithClock(e.ledger.Now))
	_, err := c.CreateAuction(context.Background(), e.collection, tokenID, big.NewInt(1), duration)
	require.NoError(t, err)
}

func TestActiveListings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := env.mint(t, alice, "Sunset #1")
	second := env.mint(t, alice, "Sunset #2")
	third := env.mint(t, bob, "Sunset #3")
	env.list(t, alice, first.TokenID, time.Hour)
	env.list(t, alice, second.TokenID, 3*time.Hour)
	env.list(t, bob, third.TokenID, 3*time.Hour)

	listings, err := env.catalog.ActiveListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	names := make([]string, 0, len(listings))
	for _, l := range listings {
		require.NoError(t, l.Err)
		require.NotNil(t, l.Metadata)
		assert.Equal(t, "active", l.State)
		assert.Contains(t, l.ImageURL, "https://gw.example/ipfs/")
		names = append(names, l.Metadata.Name)
	}
	assert.Equal(t, []string{"Sunset #1", "Sunset #2", "Sunset #3"}, names)
	assert.Equal(t, first.MetadataRef, listings[0].MetadataRef)

	env.ledger.Advance(2 * time.Hour)
	listings, err = env.catalog.ActiveListings(ctx)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestActiveListings_MetadataFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	good := env.mint(t, alice, "Sunset #1")
	env.list(t, alice, good.TokenID, time.Hour)

	// a token whose URI points outside content-addressed storage
	foreign, err := env.ledger.Mint(env.collection, alice, "https://example.com/token/2.json")
	require.NoError(t, err)
	env.list(t, alice, foreign, time.Hour)

	// a token whose document was never uploaded
	missing, err := env.ledger.Mint(env.collection, alice, "ipfs://bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq")
	require.NoError(t, err)
	env.list(t, alice, missing, time.Hour)

	listings, err := env.catalog.ActiveListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.NoError(t, listings[0].Err)
	assert.Equal(t, "Sunset #1", listings[0].Metadata.Name)

	var fetchErr *interfaces.MetadataFetchError
	for _, l := range listings[1:] {
		require.ErrorAs(t, l.Err, &fetchErr)
		assert.NotEmpty(t, l.MetadataError)
		assert.Nil(t, l.Metadata)
		assert.Equal(t, "active", l.State)
	}
	assert.ErrorIs(t, listings[2].Err, interfaces.ErrContentNotFound)
}

func TestListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	token := env.mint(t, alice, "Sunset #1")
	env.list(t, alice, token.TokenID, time.Hour)
	env.ledger.Advance(time.Hour)

	listing, err := env.catalog.Listing(ctx, env.collection, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "ended", listing.State)
	assert.Equal(t, "Sunset #1", listing.Metadata.Name)

	other := env.mint(t, alice, "Sunset #2")
	_, err = env.catalog.Listing(ctx, env.collection, other.TokenID)
	var notFound *interfaces.AuctionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestOwnedTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.mint(t, alice, "Sunset #1")
	env.mint(t, bob, "Sunset #2")
	env.mint(t, alice, "Sunset #3")

	owned, err := env.catalog.OwnedTokens(ctx, env.collection, alice)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "Sunset #1", owned[0].Metadata.Name)
	assert.Equal(t, "Sunset #3", owned[1].Metadata.Name)
	assertImage(t, env, owned[0])

	owned, err = env.catalog.OwnedTokens(ctx, env.collection, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestOwnerTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	moons := env.ledger.DeployCollection("Moons", "MOON")
	env.register(t, env.collection, alice)
	env.register(t, moons, bob)

	env.mint(t, alice, "Sunset #1")
	env.mintInto(t, moons, bob, "Moon #1")
	env.mintInto(t, moons, alice, "Moon #2")

	// never registered, so never listed
	stars := env.ledger.DeployCollection("Stars", "STAR")
	env.mintInto(t, stars, alice, "Star #1")

	owned, err := env.catalog.OwnerTokens(ctx, alice)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, env.collection, owned[0].Token.Collection)
	assert.Equal(t, "Sunset #1", owned[0].Metadata.Name)
	assert.Equal(t, moons, owned[1].Token.Collection)
	assert.Equal(t, "Moon #2", owned[1].Metadata.Name)
	assertImage(t, env, owned[1])

	owned, err = env.catalog.OwnerTokens(ctx, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestOwnerTokens_UnreadableCollection(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, env.collection, alice)
	env.register(t, common.HexToAddress("0xdead"), alice)
	env.mint(t, alice, "Sunset #1")

	_, err := env.catalog.OwnerTokens(context.Background(), alice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), common.HexToAddress("0xdead").Hex())
}

func TestActiveListings_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	token := env.mint(t, alice, "Sunset #1")
	env.list(t, alice, token.TokenID, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.catalog.ActiveListings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func assertImage(t *testing.T, env *testEnv, token OwnedToken) {
	t.Helper()
	require.NotEmpty(t, token.Metadata.Image)
	data, err := env.store.Get(context.Background(), token.Metadata.Image)
	require.NoError(t, err)
	assert.Equal(t, "image of "+token.Metadata.Name, string(data))
}
