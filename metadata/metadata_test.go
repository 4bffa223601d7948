package metadata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*Publisher, *Resolver, *storage.MemoryBackend) {
	t.Helper()
	store := storage.NewMemoryBackend("metadata", testLogger())
	return NewPublisher(store, testLogger()), NewResolver(store, testLogger()), store
}

func TestPublishResolve_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pub, res, _ := setup(t)

	imageRef, err := pub.Publish(ctx, []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)

	docs := []*interfaces.MetadataDocument{
		{Name: "Sunset #1", Description: "first light", Image: imageRef},
		{Name: "No image"},
		{Name: "With extras", Image: imageRef, Extra: map[string]any{"artist": "anon", "edition": "1/1"}},
		{Name: "Numeric extras", Extra: map[string]any{"edition": 1, "traits": map[string]int{"rarity": 3}, "tags": []string{"a"}}},
		{Name: "Empty extras", Extra: map[string]any{}},
		{Name: "Image as uri", Image: interfaces.ContentReference(imageRef.URI())},
	}

	for _, doc := range docs {
		t.Run(doc.Name, func(t *testing.T) {
			ref, err := pub.PublishDocument(ctx, doc)
			require.NoError(t, err)

			got, err := res.Resolve(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, doc, got)
		})
	}
}

func TestPublishDocument_Canonicalizes(t *testing.T) {
	ctx := context.Background()
	pub, res, _ := setup(t)

	doc := &interfaces.MetadataDocument{Name: "Edition", Extra: map[string]any{"edition": 1}}
	ref, err := pub.PublishDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, float64(1), doc.Extra["edition"])

	got, err := res.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	empty := &interfaces.MetadataDocument{Name: "Empty", Extra: map[string]any{}}
	_, err = pub.PublishDocument(ctx, empty)
	require.NoError(t, err)
	assert.Nil(t, empty.Extra)
}

func TestPublishDocument_ReservedExtraKeys(t *testing.T) {
	ctx := context.Background()
	pub, _, store := setup(t)

	for _, key := range []string{"name", "description", "image", "imageReference"} {
		t.Run(key, func(t *testing.T) {
			_, err := pub.PublishDocument(ctx, &interfaces.MetadataDocument{
				Name:  "Clash",
				Extra: map[string]any{key: "not-a-cid"},
			})
			var verr *interfaces.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "extra."+key, verr.Field)
		})
	}

	_, err := pub.PublishDocument(ctx, &interfaces.MetadataDocument{Name: "Bad image", Image: "not-a-cid"})
	var verr *interfaces.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "image", verr.Field)

	assert.Equal(t, 0, store.Len())
}

func TestPublish_Deterministic(t *testing.T) {
	ctx := context.Background()
	pub, _, store := setup(t)

	doc := &interfaces.MetadataDocument{
		Name:  "Same",
		Extra: map[string]any{"b": "2", "a": "1", "c": "3"},
	}

	first, err := pub.PublishDocument(ctx, doc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := pub.PublishDocument(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, store.Len())
}

func TestPublish_Validation(t *testing.T) {
	ctx := context.Background()
	pub, _, store := setup(t)

	var verr *interfaces.ValidationError

	_, err := pub.Publish(ctx, nil, "image/png")
	require.ErrorAs(t, err, &verr)

	_, err = pub.PublishDocument(ctx, nil)
	require.ErrorAs(t, err, &verr)

	_, err = pub.PublishDocument(ctx, &interfaces.MetadataDocument{Name: "  "})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = pub.PublishCollection(ctx, interfaces.CollectionRecord{Name: "Zero"})
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, 0, store.Len())
}

type failingStore struct {
	*storage.MemoryBackend
	err error
}

func (f *failingStore) Upload(ctx context.Context, data []byte) (interfaces.ContentReference, error) {
	return "", f.err
}

func TestPublish_StorageFailureNotRetried(t *testing.T) {
	storeErr := errors.New("pinning service down")
	store := &failingStore{MemoryBackend: storage.NewMemoryBackend("f", testLogger()), err: storeErr}
	pub := NewPublisher(store, testLogger())

	_, err := pub.Publish(context.Background(), []byte("x"), "text/plain")
	assert.ErrorIs(t, err, storeErr)

	var opErr *interfaces.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "publish", opErr.Op)
}

func TestPublishToken(t *testing.T) {
	ctx := context.Background()
	pub, res, store := setup(t)

	metaRef, imageRef, err := pub.PublishToken(ctx, TokenAsset{
		Name:        "Sunset #1",
		Description: "first light",
		Image:       []byte("image bytes"),
		ImageType:   "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	image, err := store.Get(ctx, imageRef)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(image))

	doc, err := res.ResolveURI(ctx, metaRef.URI())
	require.NoError(t, err)
	assert.Equal(t, "Sunset #1", doc.Name)
	assert.Equal(t, "first light", doc.Description)
	assert.Equal(t, imageRef, doc.Image)
}

func TestPublishCollection(t *testing.T) {
	ctx := context.Background()
	pub, res, _ := setup(t)

	record := interfaces.CollectionRecord{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		Name:    "Sunsets",
		Symbol:  "SUN",
		Owner:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
	ref, err := pub.PublishCollection(ctx, record)
	require.NoError(t, err)

	doc, err := res.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Sunsets", doc.Name)
	assert.Equal(t, "SUN", doc.Extra["symbol"])
	assert.Equal(t, record.Address.Hex(), doc.Extra["contractAddress"])
	assert.Equal(t, record.Owner.Hex(), doc.Extra["createdBy"])
}

func TestNormalize_LegacyShapes(t *testing.T) {
	const imageCID = "bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq"
	expected := &interfaces.MetadataDocument{
		Name:        "Sunset #1",
		Description: "first light",
		Image:       imageCID,
	}

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "canonical",
			input: `{"name":"Sunset #1","description":"first light","image":"ipfs://` + imageCID + `"}`,
		},
		{
			name:  "string wrapped",
			input: `"{\"name\":\"Sunset #1\",\"description\":\"first light\",\"image\":\"ipfs://` + imageCID + `\"}"`,
		},
		{
			name:  "gateway url",
			input: `{"name":"Sunset #1","description":"first light","image":"https://gateway.pinata.cloud/ipfs/` + imageCID + `"}`,
		},
		{
			name:  "bare cid",
			input: `{"name":"Sunset #1","description":"first light","image":"` + imageCID + `"}`,
		},
		{
			name:  "imageReference key",
			input: `{"name":"Sunset #1","description":"first light","imageReference":"ipfs://` + imageCID + `"}`,
		},
		{
			name:  "surrounding whitespace",
			input: "\n  {\"name\":\"Sunset #1\",\"description\":\"first light\",\"image\":\"/ipfs/" + imageCID + "\"}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Normalize([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, expected, doc)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`[1,2,3]`,
		`null`,
		`{"name":42}`,
		`{"name":"x","image":"https://example.com/picture.png"}`,
		`"\"still a string\""`,
	}

	for _, input := range inputs {
		_, err := Normalize([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()
	_, res, store := setup(t)

	missing, err := storage.ComputeReference([]byte("never published"))
	require.NoError(t, err)

	_, err = res.Resolve(ctx, missing)
	var fetchErr *interfaces.MetadataFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, missing, fetchErr.Ref)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	garbage, err := store.Upload(ctx, []byte("<html>not metadata</html>"))
	require.NoError(t, err)
	_, err = res.Resolve(ctx, garbage)
	require.ErrorAs(t, err, &fetchErr)

	_, err = res.ResolveURI(ctx, "https://example.com/token/1")
	require.ErrorAs(t, err, &fetchErr)
}

func TestResolve_Concurrent(t *testing.T) {
	ctx := context.Background()
	pub, res, _ := setup(t)

	ref, err := pub.PublishDocument(ctx, &interfaces.MetadataDocument{Name: "shared"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := res.Resolve(ctx, ref)
			assert.NoError(t, err)
			assert.Equal(t, "shared", doc.Name)
		}()
	}
	wg.Wait()
}

func TestGatewayURL(t *testing.T) {
	_, res, _ := setup(t)
	ref := interfaces.ContentReference("bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq")

	assert.Equal(t, DefaultGateway+"/ipfs/"+ref.String(), res.GatewayURL(ref))
	assert.Equal(t, "", res.GatewayURL(""))

	custom := NewResolver(nil, nil, WithGateway("https://ipfs.io/"))
	assert.Equal(t, "https://ipfs.io/ipfs/"+ref.String(), custom.GatewayURL(ref))
}
