// Package secret holds the operator tooling around the encrypted signing key:
// encrypt a new key, check an encrypted value, migrate a legacy value to the
// current scheme, and rotate the stored secret.
package secret

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/keyvault"
	"github.com/SafeMPC/claim-signer/internal/secretstore"
	"github.com/SafeMPC/claim-signer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("secret",
		newEncrypt(),
		newDecrypt(),
		newMigrate(),
		newRotate(),
	)
}

func newEncrypt() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <key-hex> <password>",
		Short: "Encrypts a private key for at-rest storage",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			secret, err := keyvault.Encrypt(args[0], args[1])
			if err != nil {
				fail(err)
			}
			fmt.Println(secret.String())
		},
	}
}

func newDecrypt() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <encoded-secret> <password>",
		Short: "Verifies an encrypted key decodes to a valid private key",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			secret, err := keyvault.ParseEncodedSecret(args[0])
			if err != nil {
				fail(err)
			}
			if _, err := keyvault.Decrypt(secret, args[1]); err != nil {
				fail(err)
			}
			// The decrypted key is intentionally not printed.
			fmt.Println("OK")
		},
	}
}

// newMigrate re-encrypts a value written by the legacy XOR scheme using the
// current scheme. The legacy path requires this explicit subcommand; the
// server only falls back to it with SIGNER_LEGACY_MIGRATION set.
func newMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <legacy-ciphertext-hex> <password>",
		Short: "Re-encrypts a legacy-scheme key under the current scheme",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			keyHex, err := keyvault.DecryptLegacy(args[0], args[1])
			if err != nil {
				fail(err)
			}
			secret, err := keyvault.Encrypt(keyHex, args[1])
			if err != nil {
				fail(err)
			}
			fmt.Println(secret.String())
		},
	}
}

// newRotate writes a new encrypted key into the secret store under a fresh
// versioned name. The previous name stays addressable for rollback.
func newRotate() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <key-hex> <password>",
		Short: "Encrypts a key and rotates it into the configured secret store",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.DefaultServerConfigFromEnv()
			if cfg.SecretStore.Endpoint == "" || cfg.SecretStore.KeyName == "" {
				fail(fmt.Errorf("SECRET_STORE_ENDPOINT and SECRET_STORE_KEY_NAME must be configured"))
			}

			secret, err := keyvault.Encrypt(args[0], args[1])
			if err != nil {
				fail(err)
			}

			store := secretstore.NewHTTPStore(cfg.SecretStore.Endpoint, cfg.SecretStore.Token)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			newName, err := store.Rotate(ctx, secret.String(), cfg.SecretStore.KeyName)
			if err != nil {
				fail(err)
			}
			fmt.Println(newName)
		},
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
