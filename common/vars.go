package common

var (
	// Version is overridden at build time with -ldflags "-X .../common.Version=..."
	Version = "dev"

	// PackageName tags service-level logs.
	PackageName = "nft-marketplace-backend"
)
