package keyvault_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/keyvault"
)

const cleanKey = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"

type mapStore struct {
	values map[string]string
}

func (s *mapStore) Put(_ context.Context, name string, value string) error {
	s.values[name] = value
	return nil
}

func (s *mapStore) Get(_ context.Context, name string) (string, error) {
	value, ok := s.values[name]
	if !ok {
		return "", errors.Errorf("secret %s not found", name)
	}
	return value, nil
}

func (s *mapStore) Rotate(_ context.Context, newValue string, previousName string) (string, error) {
	newName := previousName + ".v2"
	s.values[newName] = newValue
	return newName, nil
}

func TestLoadKeyFromPlaintextInDevelopment(t *testing.T) {
	cfg := config.Server{
		Environment: config.EnvironmentDevelopment,
		Signer:      config.SignerServer{PrivateKey: cleanKey},
	}

	key, err := keyvault.LoadKey(t.Context(), cfg, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, key.Address().Hex())
}

func TestLoadKeyRejectsPlaintextInProduction(t *testing.T) {
	cfg := config.Server{
		Environment: config.EnvironmentProduction,
		Signer:      config.SignerServer{PrivateKey: cleanKey},
	}

	_, err := keyvault.LoadKey(t.Context(), cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestLoadKeyFromEncryptedEnv(t *testing.T) {
	secret, err := keyvault.Encrypt(cleanKey, "pw")
	require.NoError(t, err)

	cfg := config.Server{
		Environment: config.EnvironmentProduction,
		Signer: config.SignerServer{
			EncryptedKey: secret.String(),
			KeyPassword:  "pw",
		},
	}

	key, err := keyvault.LoadKey(t.Context(), cfg, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, key.Address().Hex())
}

func TestLoadKeyEncryptedTakesPrecedenceOverPlaintext(t *testing.T) {
	secret, err := keyvault.Encrypt(cleanKey, "pw")
	require.NoError(t, err)

	cfg := config.Server{
		Environment: config.EnvironmentDevelopment,
		Signer: config.SignerServer{
			// A different (weak) plaintext key that must be ignored.
			PrivateKey:   "1111111111111111111111111111111111111111111111111111111111111111",
			EncryptedKey: secret.String(),
			KeyPassword:  "pw",
		},
	}

	key, err := keyvault.LoadKey(t.Context(), cfg, nil, nil)
	require.NoError(t, err)

	expected, err := keyvault.NewSigningKey(cleanKey)
	require.NoError(t, err)
	assert.Equal(t, expected.Address(), key.Address())
}

func TestLoadKeyFromSecretStore(t *testing.T) {
	store := &mapStore{values: map[string]string{"signer-key": cleanKey}}

	cfg := config.Server{
		Environment: config.EnvironmentProduction,
		SecretStore: config.SecretStoreServer{KeyName: "signer-key"},
	}

	key, err := keyvault.LoadKey(t.Context(), cfg, store, nil)
	require.NoError(t, err)

	expected, err := keyvault.NewSigningKey(cleanKey)
	require.NoError(t, err)
	assert.Equal(t, expected.Address(), key.Address())
}

func TestLoadKeyLegacyFallbackRequiresMigrationFlag(t *testing.T) {
	legacy, err := keyvault.EncryptLegacy(cleanKey, "pw")
	require.NoError(t, err)

	cfg := config.Server{
		Environment: config.EnvironmentDevelopment,
		Signer: config.SignerServer{
			EncryptedKey: legacy,
			KeyPassword:  "pw",
		},
	}

	// Without the explicit migration flag the legacy scheme is never tried.
	_, err = keyvault.LoadKey(t.Context(), cfg, nil, nil)
	require.Error(t, err)

	cfg.Signer.LegacyMigration = true
	key, err := keyvault.LoadKey(t.Context(), cfg, nil, nil)
	require.NoError(t, err)

	expected, err := keyvault.NewSigningKey(cleanKey)
	require.NoError(t, err)
	assert.Equal(t, expected.Address(), key.Address())
}

func TestLoadKeyFlaggedKeyInProductionFails(t *testing.T) {
	secret, err := keyvault.Encrypt("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", "pw")
	require.NoError(t, err)

	cfg := config.Server{
		Environment: config.EnvironmentProduction,
		Signer: config.SignerServer{
			EncryptedKey: secret.String(),
			KeyPassword:  "pw",
		},
	}

	_, err = keyvault.LoadKey(t.Context(), cfg, nil, nil)
	assert.ErrorIs(t, err, keyvault.ErrTestKeyViolation)
}

func TestLoadKeyNoSourceConfigured(t *testing.T) {
	_, err := keyvault.LoadKey(t.Context(), config.Server{}, nil, nil)
	assert.Error(t, err)
}
