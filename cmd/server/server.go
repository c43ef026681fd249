package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/api/router"
	"github.com/SafeMPC/claim-signer/internal/chain/ethereum"
	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/keyvault"
	"github.com/SafeMPC/claim-signer/internal/metrics"
	"github.com/SafeMPC/claim-signer/internal/multisig"
	"github.com/SafeMPC/claim-signer/internal/secretstore"
	"github.com/SafeMPC/claim-signer/internal/transfer"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the claim disbursement server",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

func runServer() {
	cfg := config.DefaultServerConfigFromEnv()

	var store secretstore.Store
	if cfg.SecretStore.Endpoint != "" {
		store = secretstore.NewHTTPStore(cfg.SecretStore.Endpoint, cfg.SecretStore.Token)
	}

	m := metrics.New()

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The safety gate runs inside LoadKey. A flagged key in production is the
	// one failure that takes the whole process down: nothing may sign with it.
	key, err := keyvault.LoadKey(loadCtx, cfg, store, m)
	if err != nil {
		if errors.Is(err, keyvault.ErrTestKeyViolation) {
			log.Fatal().Err(err).Msg("Refusing to start with a flagged signing key")
		}
		log.Fatal().Err(err).Msg("Failed to load signing key")
	}

	if cfg.Chain.TokenAddress == "" || !common.IsHexAddress(cfg.Chain.TokenAddress) {
		log.Fatal().Msg("CHAIN_TOKEN_ADDRESS is missing or malformed")
	}

	rpcClient := ethereum.NewRPCClient(cfg.Chain.RPCEndpoint)

	var redisClient *redis.Client
	var distLock transfer.DistributedLocker
	if cfg.Redis.Endpoint != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Endpoint})
		distLock = transfer.NewRedisLocker(redisClient)
	}

	s := api.NewServer(cfg)
	s.SecretStore = store
	s.Metrics = m
	s.Redis = redisClient
	s.Transfer = transfer.NewService(
		rpcClient,
		key,
		cfg.Chain.ChainID,
		common.HexToAddress(cfg.Chain.TokenAddress),
		cfg.Chain.GasLimit,
		distLock,
		m,
	)

	if cfg.Signer.MultiSigAddress != "" {
		if !common.IsHexAddress(cfg.Signer.MultiSigAddress) {
			log.Fatal().Msg("SIGNER_MULTISIG_ADDRESS is malformed")
		}
		s.MultiSig = multisig.NewService(
			rpcClient,
			key,
			common.HexToAddress(cfg.Signer.MultiSigAddress),
			cfg.Chain.ChainID,
			cfg.Chain.GasLimit,
			m,
		)
	}

	router.Init(s)

	go func() {
		if err := s.Start(); err != nil {
			log.Info().Err(err).Msg("HTTP server stopped")
		}
	}()

	log.Info().
		Str("listen_address", cfg.Echo.ListenAddress).
		Str("environment", string(cfg.Environment)).
		Str("account", key.Address().Hex()).
		Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down gracefully")
	}
}
