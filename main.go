package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SafeMPC/claim-signer/cmd/env"
	"github.com/SafeMPC/claim-signer/cmd/probe"
	"github.com/SafeMPC/claim-signer/cmd/secret"
	"github.com/SafeMPC/claim-signer/cmd/server"
	"github.com/SafeMPC/claim-signer/internal/config"
)

func main() {
	cfg := config.DefaultServerConfigFromEnv()
	initLogger(cfg.Logger)

	rootCmd := &cobra.Command{
		Use:   "claim-signer",
		Short: "Token disbursement signing service",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.AddCommand(
		server.New(),
		probe.New(),
		secret.New(),
		env.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func initLogger(cfg config.LoggerServer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
