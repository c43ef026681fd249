package keyvault

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/metrics"
	"github.com/SafeMPC/claim-signer/internal/secretstore"
)

// SigningKey is the single server-held signing key, constructed exactly once
// at startup and passed by handle to the components that need it. The raw hex
// value is unexported and never serialized or logged.
type SigningKey struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewSigningKey wraps a validated hex key into the owned handle.
func NewSigningKey(keyHex string) (*SigningKey, error) {
	priv, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	return &SigningKey{
		priv:    priv,
		address: ethcrypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// ECDSA exposes the key for signing. Callers must not retain copies.
func (k *SigningKey) ECDSA() *ecdsa.PrivateKey {
	return k.priv
}

// Address is the account the key controls.
func (k *SigningKey) Address() common.Address {
	return k.address
}

// LoadKey resolves the active signing key from the configured sources, runs
// the test-key gate, and returns the held key. Source precedence:
//
//  1. encrypted key + password (SIGNER_ENCRYPTED_KEY)
//  2. secret store reference (SECRET_STORE_KEY_NAME)
//  3. plaintext env key (SIGNER_PRIVATE_KEY) — rejected in production
//
// The encrypted source wins in every environment, development included, so a
// plaintext key left in the environment never shadows the configured one.
//
// With legacy migration enabled, an encrypted value that fails the current
// scheme is retried against the legacy XOR scheme before giving up. m may be
// nil.
func LoadKey(ctx context.Context, cfg config.Server, store secretstore.Store, m *metrics.Service) (*SigningKey, error) {
	keyHex, source, err := resolveKeyHex(ctx, cfg, store)
	if err != nil {
		return nil, err
	}

	if !IsValidKeyHex(keyHex) {
		return nil, errors.Errorf("key from %s is not a 64-hex-character private key", source)
	}

	m.CountVerdict(Classify(keyHex).String())

	// Safety gate: must run before the key reaches any signer. A fatal verdict
	// in production propagates to the entry point, which exits the process.
	if err := Enforce(keyHex, cfg.Environment); err != nil {
		return nil, err
	}

	key, err := NewSigningKey(keyHex)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", source).
		Str("address", key.Address().Hex()).
		Msg("Signing key loaded")

	return key, nil
}

func resolveKeyHex(ctx context.Context, cfg config.Server, store secretstore.Store) (string, string, error) {
	if cfg.Signer.EncryptedKey != "" {
		if cfg.Signer.KeyPassword == "" {
			return "", "", errors.New("encrypted key configured without a password")
		}
		keyHex, err := decryptConfigured(cfg.Signer.EncryptedKey, cfg.Signer.KeyPassword, cfg.Signer.LegacyMigration)
		if err != nil {
			return "", "", err
		}
		return keyHex, "encrypted_env", nil
	}

	if cfg.SecretStore.KeyName != "" {
		if store == nil {
			return "", "", errors.New("secret store key name configured but no store client available")
		}
		value, err := store.Get(ctx, cfg.SecretStore.KeyName)
		if err != nil {
			return "", "", errors.Wrap(err, "failed to fetch key from secret store")
		}
		// Stored values may themselves be in the encrypted text form.
		if cfg.Signer.KeyPassword != "" {
			keyHex, err := decryptConfigured(value, cfg.Signer.KeyPassword, cfg.Signer.LegacyMigration)
			if err != nil {
				return "", "", err
			}
			return keyHex, "secret_store", nil
		}
		return value, "secret_store", nil
	}

	if cfg.Signer.PrivateKey != "" {
		if cfg.IsProduction() {
			return "", "", errors.New("plaintext signing key is not accepted in production, use an encrypted key or the secret store")
		}
		return cfg.Signer.PrivateKey, "plaintext_env", nil
	}

	return "", "", errors.New("no signing key source configured")
}

// decryptConfigured tries the current scheme and, only when migration mode is
// explicitly enabled, falls back to the legacy XOR scheme.
func decryptConfigured(raw string, password string, legacyMigration bool) (string, error) {
	if secret, err := ParseEncodedSecret(raw); err == nil {
		keyHex, err := Decrypt(secret, password)
		if err == nil {
			return keyHex, nil
		}
		if !legacyMigration {
			return "", err
		}
	} else if !legacyMigration {
		return "", err
	}

	keyHex, err := DecryptLegacy(raw, password)
	if err != nil {
		return "", errors.Wrap(err, "value matched neither the current nor the legacy scheme")
	}

	log.Warn().Msg("Signing key decrypted with the legacy scheme, re-encrypt it with 'claim-signer secret migrate'")
	return keyHex, nil
}
