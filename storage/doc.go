// Package storage provides content-addressed blob stores for token and
// collection metadata.
//
// Every blob is identified by a CID (see interfaces.ContentReference).
// Backends that do not compute identifiers themselves key objects by the
// CIDv1 of the raw bytes (sha2-256, raw codec), which is what an IPFS node
// returns for a single-chunk upload added with raw leaves. The same bytes
// therefore map to the same reference on every backend.
//
// # Storage URI Format
//
// Backends are created from location URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=minio:9000
//   - file:///var/lib/marketplace/blobs
//   - memory://
//
// # Multiple backends
//
// MultiStorageBackend uploads to every available backend and reads from the
// first backend that holds the content:
//
//	factory := storage.NewStorageBackendFactory(logger)
//	store, err := factory.CreateMultiBackend([]string{
//		"ipfs://127.0.0.1:5001",
//		"s3://metadata-mirror/nft/?region=us-east-1",
//	})
//
// Uploads are never retried internally. A failed upload is reported to the
// caller, who decides whether to upload again; identical bytes always yield
// the identical reference, so a repeated upload is harmless.
package storage
