// Command marketplace drives the NFT marketplace from the command line:
// collection deployment and minting, the auction lifecycle, catalog reads
// and the read-only HTTP API.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/nft-marketplace-backend/cmd/flags"
)

func main() {
	app := &cli.App{
		Name:     "marketplace",
		Usage:    "Mint, register and auction NFT collections",
		Flags:    flags.CommonFlags,
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
