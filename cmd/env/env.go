// Package env prints the resolved server configuration for debugging
// deployments. Secret values are redacted, never printed.
package env

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SafeMPC/claim-signer/internal/config"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Prints the resolved server configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.DefaultServerConfigFromEnv()

			out, err := json.MarshalIndent(redact(cfg), "", "  ")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println(string(out))
		},
	}
}

// redact blanks every secret-bearing field, keeping only whether it is set.
func redact(cfg config.Server) config.Server {
	cfg.Auth.JWTSecret = mask(cfg.Auth.JWTSecret)
	cfg.Signer.PrivateKey = mask(cfg.Signer.PrivateKey)
	cfg.Signer.EncryptedKey = mask(cfg.Signer.EncryptedKey)
	cfg.Signer.KeyPassword = mask(cfg.Signer.KeyPassword)
	cfg.SecretStore.Token = mask(cfg.SecretStore.Token)
	return cfg
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return "<redacted>"
}
