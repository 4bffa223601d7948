package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/nft-marketplace-backend/common"
	"github.com/ruteri/nft-marketplace-backend/httpserver"
	"github.com/ruteri/nft-marketplace-backend/signer"
	"github.com/ruteri/nft-marketplace-backend/txwait"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// SignerConfig collects the key source flags.
func SignerConfig(cCtx *cli.Context) signer.Config {
	cfg := signer.Config{
		PrivateKey:       cCtx.String(PrivateKeyFlag.Name),
		KeystorePath:     cCtx.String(KeystoreFlag.Name),
		KeystorePassword: cCtx.String(KeystorePasswordFlag.Name),
	}
	if addr := cCtx.String(VaultAddrFlag.Name); addr != "" {
		cfg.Vault = &signer.VaultSource{
			Address: addr,
			Token:   cCtx.String(VaultTokenFlag.Name),
			Mount:   cCtx.String(VaultMountFlag.Name),
			Path:    cCtx.String(VaultPathFlag.Name),
			Field:   cCtx.String(VaultFieldFlag.Name),
		}
	}
	return cfg
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"MARKETPLACE_RPC_ADDR"},
}

var DeploymentsFlag = &cli.StringFlag{
	Name:    "deployments",
	Value:   "deployments.yaml",
	Usage:   "YAML or JSON file mapping chain ids to contract addresses and ABIs",
	EnvVars: []string{"MARKETPLACE_DEPLOYMENTS"},
}

var StorageFlag = &cli.StringSliceFlag{
	Name:    "storage",
	Value:   cli.NewStringSlice("ipfs://127.0.0.1:5001"),
	Usage:   "content storage URI (ipfs://host:port, s3://bucket/prefix?region=, file:///dir, memory://name); repeat to mirror",
	EnvVars: []string{"MARKETPLACE_STORAGE"},
}

var GatewayFlag = &cli.StringFlag{
	Name:  "gateway",
	Value: "https://gateway.pinata.cloud",
	Usage: "IPFS gateway used to render image URLs",
}

var ConfirmationsFlag = &cli.Uint64Flag{
	Name:  "confirmations",
	Value: 1,
	Usage: "blocks a transaction must be buried under before it counts as confirmed",
}

var TxTimeoutFlag = &cli.DurationFlag{
	Name:  "tx-timeout",
	Value: txwait.DefaultTimeout,
	Usage: "how long to wait for confirmations before giving up (the transaction may still be mined)",
}

var SettlePolicyFlag = &cli.StringFlag{
	Name:  "settle-policy",
	Value: "participants",
	Usage: "who may settle an ended auction: participants, anyone or seller-only",
}

var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded signing key",
	EnvVars: []string{"MARKETPLACE_PRIVATE_KEY"},
}

var KeystoreFlag = &cli.StringFlag{
	Name:  "keystore",
	Usage: "path to an encrypted keystore file",
}

var KeystorePasswordFlag = &cli.StringFlag{
	Name:    "keystore-password",
	Usage:   "password of the keystore file",
	EnvVars: []string{"MARKETPLACE_KEYSTORE_PASSWORD"},
}

var VaultAddrFlag = &cli.StringFlag{
	Name:  "vault-addr",
	Usage: "Vault server address holding the signing key",
}

var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	Usage:   "Vault token",
	EnvVars: []string{"VAULT_TOKEN"},
}

var VaultMountFlag = &cli.StringFlag{
	Name:  "vault-mount",
	Value: "secret",
	Usage: "KV v2 mount path",
}

var VaultPathFlag = &cli.StringFlag{
	Name:  "vault-path",
	Value: "marketplace/signer",
	Usage: "secret path within the mount",
}

var VaultFieldFlag = &cli.StringFlag{
	Name:  "vault-field",
	Value: signer.DefaultVaultField,
	Usage: "secret field holding the hex key",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var SignerFlags = []cli.Flag{
	PrivateKeyFlag,
	KeystoreFlag,
	KeystorePasswordFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultMountFlag,
	VaultPathFlag,
	VaultFieldFlag,
}

var CommonFlags = append(append([]cli.Flag{
	RpcAddrFlag,
	DeploymentsFlag,
	StorageFlag,
	GatewayFlag,
	ConfirmationsFlag,
	TxTimeoutFlag,
	SettlePolicyFlag,
}, SignerFlags...), LogFlags...)

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
}
