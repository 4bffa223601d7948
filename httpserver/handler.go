package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/nft-marketplace-backend/catalog"
	"github.com/ruteri/nft-marketplace-backend/interfaces"
	"github.com/ruteri/nft-marketplace-backend/metadata"
	"github.com/ruteri/nft-marketplace-backend/registry"
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves the read API of the marketplace. Every request reads the
// ledger and re-resolves metadata; nothing is cached between requests.
type Handler struct {
	catalog  *catalog.Catalog
	registry *registry.Client
	resolver *metadata.Resolver
	log      *slog.Logger
}

func NewHandler(catalog *catalog.Catalog, registry *registry.Client, resolver *metadata.Resolver, log *slog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		registry: registry,
		resolver: resolver,
		log:      log,
	}
}

// HandleActiveAuctions lists active auctions with their token metadata.
//
// URL format: GET /api/auctions
func (h *Handler) HandleActiveAuctions(w http.ResponseWriter, r *http.Request) {
	listings, err := h.catalog.ActiveListings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, listings)
}

// HandleAuction returns the auction of one token, in any state.
//
// URL format: GET /api/auctions/{nft}/{token_id}
func (h *Handler) HandleAuction(w http.ResponseWriter, r *http.Request) {
	nft, err := parseAddress("nft", r.PathValue("nft"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	tokenID, err := parseTokenID(r.PathValue("token_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	listing, err := h.catalog.Listing(r.Context(), nft, tokenID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, listing)
}

// HandleCollections lists every registered collection.
//
// URL format: GET /api/collections
func (h *Handler) HandleCollections(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.GetAllCollections(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, records)
}

// HandleCollection returns the registry record of one collection.
//
// URL format: GET /api/collections/{address}
func (h *Handler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.registry.GetCollectionMetadata(r.Context(), address)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, record)
}

// HandleOwnerCollections lists the collections registered for an owner.
//
// URL format: GET /api/owners/{owner}/collections
func (h *Handler) HandleOwnerCollections(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", r.PathValue("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	records, err := h.registry.GetCollectionsByOwner(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, records)
}

// HandleOwnerTokens lists an owner's tokens in a collection with metadata.
//
// URL format: GET /api/collections/{address}/owners/{owner}/tokens
func (h *Handler) HandleOwnerTokens(w http.ResponseWriter, r *http.Request) {
	collection, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	owner, err := parseAddress("owner", r.PathValue("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	tokens, err := h.catalog.OwnedTokens(r.Context(), collection, owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, tokens)
}

// HandleOwnerAllTokens lists an owner's tokens across every registered
// collection with metadata.
//
// URL format: GET /api/owners/{owner}/tokens
func (h *Handler) HandleOwnerAllTokens(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", r.PathValue("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	tokens, err := h.catalog.OwnerTokens(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, tokens)
}

// HandleMetadata resolves a metadata document by content reference.
//
// URL format: GET /api/metadata/{cid}
//
// Response: the normalized document plus a gateway URL for its image.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	ref, err := interfaces.ParseContentReference(r.PathValue("cid"))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	doc, err := h.resolver.Resolve(r.Context(), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"ref":      ref,
		"document": doc,
		"imageUrl": h.resolver.GatewayURL(doc.Image),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", slog.Int("status", status), "err", err)
	} else {
		h.log.Debug("Request rejected", slog.Int("status", status), "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr        *RequestError
		validation    *interfaces.ValidationError
		notRegistered *interfaces.CollectionNotRegisteredError
		noAuction     *interfaces.AuctionNotFoundError
		unknownNet    *interfaces.UnknownNetworkError
		noRole        *interfaces.RoleNotDeployedError
		fetch         *interfaces.MetadataFetchError
	)

	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notRegistered), errors.As(err, &noAuction), errors.As(err, &unknownNet), errors.As(err, &noRole):
		return http.StatusNotFound
	case errors.As(err, &fetch):
		return http.StatusBadGateway
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, &interfaces.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an address", s)}
	}
	return common.HexToAddress(s), nil
}

func parseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, &interfaces.ValidationError{Field: "token id", Reason: fmt.Sprintf("%q is not a non-negative integer", s)}
	}
	return id, nil
}
