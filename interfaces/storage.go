package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
)

// IPFSScheme is the URI prefix used when a content reference is persisted on-chain.
const IPFSScheme = "ipfs://"

// ContentReference is a content identifier (CID) of an immutable blob.
// The same reference always resolves to the same bytes.
type ContentReference string

// ParseContentReference accepts a bare CID, an ipfs:// URI or an /ipfs/ path
// and returns the validated reference without any prefix.
func ParseContentReference(s string) (ContentReference, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, IPFSScheme)
	raw = strings.TrimPrefix(raw, "/ipfs/")
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" {
		return "", fmt.Errorf("empty content reference")
	}

	c, err := cid.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("invalid content reference %q: %w", s, err)
	}
	return ContentReference(c.String()), nil
}

// CID returns the parsed content identifier.
func (r ContentReference) CID() (cid.Cid, error) {
	return cid.Decode(string(r))
}

// URI returns the reference in the ipfs://<cid> form stored on-chain.
func (r ContentReference) URI() string {
	if r == "" {
		return ""
	}
	return IPFSScheme + string(r)
}

// String returns the bare CID.
func (r ContentReference) String() string {
	return string(r)
}

// MarshalText renders the reference as an ipfs:// URI.
func (r ContentReference) MarshalText() ([]byte, error) {
	return []byte(r.URI()), nil
}

// UnmarshalText accepts any form understood by ParseContentReference.
func (r *ContentReference) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = ""
		return nil
	}
	ref, err := ParseContentReference(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "s3", "ipfs", "memory":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// ContentStore provides content-addressed blob storage.
type ContentStore interface {
	// Upload stores data and returns its content reference.
	Upload(ctx context.Context, data []byte) (ContentReference, error)

	// Get retrieves the bytes addressed by ref.
	Get(ctx context.Context, ref ContentReference) ([]byte, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}
