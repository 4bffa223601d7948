// Package metadata publishes token and collection metadata to
// content-addressed storage and resolves it back into canonical documents.
package metadata

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// Publisher uploads assets and metadata documents. It never retries an
// upload; the caller decides whether to publish again.
type Publisher struct {
	store interfaces.ContentStore
	log   *slog.Logger
}

var _ interfaces.MetadataPublisher = (*Publisher)(nil)

func NewPublisher(store interfaces.ContentStore, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{store: store, log: log}
}

// Publish stores asset and returns its content reference.
func (p *Publisher) Publish(ctx context.Context, asset []byte, mimeType string) (interfaces.ContentReference, error) {
	if len(asset) == 0 {
		return "", &interfaces.ValidationError{Field: "asset", Reason: "empty"}
	}

	start := time.Now()
	ref, err := p.store.Upload(ctx, asset)
	if err != nil {
		p.log.Error("Failed to publish asset",
			slog.String("mimeType", mimeType),
			slog.Int("size", len(asset)),
			slog.String("store", p.store.Name()),
			"err", err)
		return "", &interfaces.OperationError{Op: "publish", Subject: mimeType, Err: err}
	}

	p.log.Info("Published asset",
		slog.String("cid", ref.String()),
		slog.String("mimeType", mimeType),
		slog.Int("size", len(asset)),
		slog.Duration("duration", time.Since(start)))
	return ref, nil
}

// reservedKeys may not appear in MetadataDocument.Extra.
var reservedKeys = []string{"name", "description", "image", imageReferenceKey}

// PublishDocument serializes doc as JSON with sorted keys and publishes it.
//
// doc is canonicalized in place first: Extra is replaced by its JSON form
// (numbers become float64, an empty map becomes nil) and Image by its bare
// CID, so the document equals what Resolve returns for the reference.
func (p *Publisher) PublishDocument(ctx context.Context, doc *interfaces.MetadataDocument) (interfaces.ContentReference, error) {
	if doc == nil {
		return "", &interfaces.ValidationError{Field: "metadata", Reason: "nil document"}
	}
	if strings.TrimSpace(doc.Name) == "" {
		return "", &interfaces.ValidationError{Field: "name", Reason: "required"}
	}
	for _, k := range reservedKeys {
		if _, ok := doc.Extra[k]; ok {
			return "", &interfaces.ValidationError{Field: "extra." + k, Reason: "reserved key"}
		}
	}
	if doc.Image != "" {
		image, err := interfaces.ParseContentReference(doc.Image.String())
		if err != nil {
			return "", &interfaces.ValidationError{Field: "image", Reason: err.Error()}
		}
		doc.Image = image
	}

	extra, err := canonicalExtra(doc.Extra)
	if err != nil {
		return "", &interfaces.OperationError{Op: "encode metadata", Subject: doc.Name, Err: err}
	}
	doc.Extra = extra

	data, err := json.Marshal(doc)
	if err != nil {
		return "", &interfaces.OperationError{Op: "encode metadata", Subject: doc.Name, Err: err}
	}
	return p.Publish(ctx, data, "application/json")
}

// canonicalExtra returns extra as it decodes from JSON.
func canonicalExtra(extra map[string]any) (map[string]any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TokenAsset is the input of PublishToken.
type TokenAsset struct {
	Name        string
	Description string
	Image       []byte
	ImageType   string
	Attributes  map[string]any
}

// PublishToken uploads the token image, then the token document pointing
// at it. Both references are returned; the metadata reference is what gets
// minted.
func (p *Publisher) PublishToken(ctx context.Context, asset TokenAsset) (metadataRef, imageRef interfaces.ContentReference, err error) {
	if strings.TrimSpace(asset.Name) == "" {
		return "", "", &interfaces.ValidationError{Field: "name", Reason: "required"}
	}

	imageRef, err = p.Publish(ctx, asset.Image, asset.ImageType)
	if err != nil {
		return "", "", err
	}

	doc := &interfaces.MetadataDocument{
		Name:        asset.Name,
		Description: asset.Description,
		Image:       imageRef,
		Extra:       asset.Attributes,
	}
	metadataRef, err = p.PublishDocument(ctx, doc)
	if err != nil {
		return "", imageRef, err
	}
	return metadataRef, imageRef, nil
}

// PublishCollection publishes the descriptive document of a deployed collection.
func (p *Publisher) PublishCollection(ctx context.Context, record interfaces.CollectionRecord) (interfaces.ContentReference, error) {
	if record.Address == (common.Address{}) {
		return "", &interfaces.ValidationError{Field: "contractAddress", Reason: "zero address"}
	}

	return p.PublishDocument(ctx, &interfaces.MetadataDocument{
		Name: record.Name,
		Extra: map[string]any{
			"symbol":          record.Symbol,
			"contractAddress": record.Address.Hex(),
			"createdBy":       record.Owner.Hex(),
		},
	})
}
