// Package interfaces defines core interfaces and types for the NFT marketplace
// backend, separating interface definitions from implementations.
//
// # Ledger Interfaces
//
// RegistryContract, AuctionContract and CollectionContract describe the
// contract surface consumed through bound handles. ContractProvider hands out
// handles for the active chain and signing identity, and TransactionWaiter is
// the single suspension point every ledger write is routed through.
//
// # Storage Interfaces
//
// ContentStore provides content-addressed blob storage across backend types
// (IPFS, S3, file, memory). MetadataPublisher and MetadataResolver build the
// metadata pipeline on top of it.
//
// # Types
//
//   - NetworkDeployment: contracts deployed on one chain, keyed by Role
//   - CollectionRecord, TokenRecord, AuctionRecord: ledger snapshots
//   - MetadataDocument: canonical token and collection metadata
//   - ContentReference: CID of an immutable blob, persisted as ipfs://<cid>
//
// # Errors
//
// Failures are pointer struct types (UnknownNetworkError, BidTooLowError,
// TransactionRevertedError, ...) carrying the identifiers of the operation
// they belong to. Match them with errors.As.
package interfaces
