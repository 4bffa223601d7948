package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// DefaultGateway serves image references to browsers.
const DefaultGateway = "https://gateway.pinata.cloud"

// legacy spelling of the image key
const imageReferenceKey = "imageReference"

// Resolver fetches metadata documents and normalizes legacy shapes.
// Nothing is cached: every call re-reads storage. Safe for concurrent use.
type Resolver struct {
	store   interfaces.ContentStore
	gateway string
	log     *slog.Logger
}

var _ interfaces.MetadataResolver = (*Resolver)(nil)

type ResolverOption func(*Resolver)

// WithGateway sets the HTTP gateway used by GatewayURL.
func WithGateway(gateway string) ResolverOption {
	return func(r *Resolver) { r.gateway = strings.TrimSuffix(gateway, "/") }
}

func NewResolver(store interfaces.ContentStore, log *slog.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{store: store, gateway: DefaultGateway, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reads the document behind ref.
func (r *Resolver) Resolve(ctx context.Context, ref interfaces.ContentReference) (*interfaces.MetadataDocument, error) {
	start := time.Now()

	data, err := r.store.Get(ctx, ref)
	if err != nil {
		r.log.Debug("Metadata fetch failed", slog.String("cid", ref.String()), "err", err)
		return nil, &interfaces.MetadataFetchError{Ref: ref, Err: err}
	}

	doc, err := Normalize(data)
	if err != nil {
		r.log.Warn("Malformed metadata document", slog.String("cid", ref.String()), "err", err)
		return nil, &interfaces.MetadataFetchError{Ref: ref, Err: err}
	}

	r.log.Debug("Resolved metadata",
		slog.String("cid", ref.String()),
		slog.Duration("duration", time.Since(start)))
	return doc, nil
}

// ResolveURI resolves a token URI as stored on-chain (ipfs://<cid>).
func (r *Resolver) ResolveURI(ctx context.Context, uri string) (*interfaces.MetadataDocument, error) {
	ref, err := ParseReferenceLoose(uri)
	if err != nil {
		return nil, &interfaces.MetadataFetchError{Ref: interfaces.ContentReference(uri), Err: err}
	}
	return r.Resolve(ctx, ref)
}

// GatewayURL renders ref as a browser-loadable URL.
func (r *Resolver) GatewayURL(ref interfaces.ContentReference) string {
	if ref == "" {
		return ""
	}
	return r.gateway + "/ipfs/" + ref.String()
}

// Normalize parses a stored metadata document. Accepted legacy shapes:
// the object encoded as a JSON string, the image given as a gateway URL or
// a bare CID, and the image stored under "imageReference".
func Normalize(data []byte) (*interfaces.MetadataDocument, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("decode wrapped document: %w", err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		return nil, errors.New("document is not an object")
	}

	if legacy, ok := fields[imageReferenceKey]; ok {
		if _, hasImage := fields["image"]; !hasImage {
			fields["image"] = legacy
		}
		delete(fields, imageReferenceKey)
	}

	doc := &interfaces.MetadataDocument{}
	for k, raw := range fields {
		switch k {
		case "name":
			if err := json.Unmarshal(raw, &doc.Name); err != nil {
				return nil, fmt.Errorf("name: %w", err)
			}
		case "description":
			if err := json.Unmarshal(raw, &doc.Description); err != nil {
				return nil, fmt.Errorf("description: %w", err)
			}
		case "image":
			var image string
			if err := json.Unmarshal(raw, &image); err != nil {
				return nil, fmt.Errorf("image: %w", err)
			}
			if image == "" {
				continue
			}
			ref, err := ParseReferenceLoose(image)
			if err != nil {
				return nil, fmt.Errorf("image: %w", err)
			}
			doc.Image = ref
		default:
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if doc.Extra == nil {
				doc.Extra = make(map[string]any)
			}
			doc.Extra[k] = v
		}
	}
	return doc, nil
}

// ParseReferenceLoose accepts everything ParseContentReference does plus
// gateway URLs of the form https://host/ipfs/<cid>[/...].
func ParseReferenceLoose(s string) (interfaces.ContentReference, error) {
	ref, err := interfaces.ParseContentReference(s)
	if err == nil {
		return ref, nil
	}

	u, uerr := url.Parse(strings.TrimSpace(s))
	if uerr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", err
	}
	_, rest, found := strings.Cut(u.Path, "/ipfs/")
	if !found {
		return "", err
	}
	cidPart, _, _ := strings.Cut(rest, "/")
	return interfaces.ParseContentReference(cidPart)
}
