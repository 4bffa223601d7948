/*
Package httpserver exposes the read side of the NFT marketplace over HTTP.

It serves registered collections, auction listings and token metadata.
Writes are never accepted over HTTP; they require a signing identity and
go through the marketplace CLI.

# API Endpoints

  - GET /api/auctions: active auctions with resolved token metadata
  - GET /api/auctions/{nft}/{token_id}: one auction in any state
  - GET /api/collections: every registered collection
  - GET /api/collections/{address}: registry record of one collection
  - GET /api/owners/{owner}/collections: collections registered by owner
  - GET /api/collections/{address}/owners/{owner}/tokens: owner's tokens with metadata
  - GET /api/owners/{owner}/tokens: owner's tokens across all registered collections
  - GET /api/metadata/{cid}: a normalized metadata document

# Health Endpoints

  - GET /livez: liveness
  - GET /readyz: readiness, false while draining
  - GET /drain, GET /undrain: toggle readiness

# Errors

Failures are returned as {"error": "..."} with a status derived from the
error type: 400 for invalid input, 404 for unknown collections, auctions,
networks or roles, 502 when metadata cannot be fetched or parsed, 503 when
no storage backend is reachable.

Listings whose token metadata fails to resolve are still returned, with the
failure in the metadataError field.
*/
package httpserver
