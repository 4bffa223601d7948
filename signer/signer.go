// Package signer loads the signing identity used for ledger writes.
//
// A key comes from exactly one source: a hex string, an encrypted
// go-ethereum keystore file, or a HashiCorp Vault KV v2 secret. No source
// yields a read-only session.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/api"
)

// DefaultVaultField is the secret field holding the hex key.
const DefaultVaultField = "private_key"

// ErrMultipleSources is returned when more than one key source is configured.
var ErrMultipleSources = errors.New("more than one signing key source configured")

// FromHex parses a hex-encoded secp256k1 private key, with or without 0x.
func FromHex(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// FromKeystore decrypts a go-ethereum keystore file.
func FromKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore %s: %w", path, err)
	}
	return key.PrivateKey, nil
}

// VaultSource locates a key stored in a KV v2 secrets engine.
type VaultSource struct {
	Address string
	Token   string
	Mount   string // e.g. "secret"
	Path    string // path within the mount
	Field   string // defaults to DefaultVaultField
}

// FromVault reads the key from Vault.
func FromVault(ctx context.Context, src VaultSource, log *slog.Logger) (*ecdsa.PrivateKey, error) {
	if log == nil {
		log = slog.Default()
	}

	config := api.DefaultConfig()
	config.Address = src.Address
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if src.Token != "" {
		client.SetToken(src.Token)
	}

	mount := strings.Trim(src.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	field := src.Field
	if field == "" {
		field = DefaultVaultField
	}
	path := fmt.Sprintf("%s/data/%s", mount, strings.Trim(src.Path, "/"))

	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		log.Error("Failed to read signing key from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("failed to read %s from Vault: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response for %s", path)
	}
	raw, ok := data[field].(string)
	if !ok {
		return nil, fmt.Errorf("field %q not found in %s", field, path)
	}

	log.Debug("Loaded signing key from Vault", slog.String("path", path))
	return FromHex(raw)
}

// Config selects the key source. At most one source may be set.
type Config struct {
	PrivateKey       string
	KeystorePath     string
	KeystorePassword string
	Vault            *VaultSource
}

// Load returns the configured key, or nil when no source is set.
func Load(ctx context.Context, cfg Config, log *slog.Logger) (*ecdsa.PrivateKey, error) {
	sources := 0
	for _, set := range []bool{cfg.PrivateKey != "", cfg.KeystorePath != "", cfg.Vault != nil && cfg.Vault.Address != ""} {
		if set {
			sources++
		}
	}

	switch {
	case sources > 1:
		return nil, ErrMultipleSources
	case cfg.PrivateKey != "":
		return FromHex(cfg.PrivateKey)
	case cfg.KeystorePath != "":
		return FromKeystore(cfg.KeystorePath, cfg.KeystorePassword)
	case sources == 1:
		return FromVault(ctx, *cfg.Vault, log)
	default:
		return nil, nil
	}
}

// Transactor binds key to chainID. A nil key yields nil, the read-only signer.
func Transactor(key *ecdsa.PrivateKey, chainID uint64) (*bind.TransactOpts, error) {
	if key == nil {
		return nil, nil
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return opts, nil
}
