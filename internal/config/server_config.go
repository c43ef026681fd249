package config

import (
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Environment selects the deployment mode the service runs in.
// Production tightens the key-safety gate (see keyvault.Guard).
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

type EchoServer struct {
	ListenAddress                  string
	HideInternalServerErrorDetails bool
}

type AuthServer struct {
	JWTSecret string
	JWTIssuer string
}

type LoggerServer struct {
	Level              string
	PrettyPrintConsole bool
}

// ChainServer holds everything needed to reach the EVM chain.
type ChainServer struct {
	RPCEndpoint  string
	ChainID      int64
	TokenAddress string
	GasLimit     uint64
}

// SignerServer configures how the active signing key is resolved at startup.
// Exactly one source should resolve; see keyvault.LoadKey for the precedence.
type SignerServer struct {
	PrivateKey      string // plaintext hex, non-production only
	EncryptedKey    string // salt_hex:iv_hex:ciphertext_hex
	KeyPassword     string
	MultiSigAddress string // when set, transfers go through the multisig path
	LegacyMigration bool   // explicit opt-in for the legacy XOR scheme
}

type SecretStoreServer struct {
	Endpoint string
	Token    string
	KeyName  string
}

type RedisServer struct {
	Endpoint string
}

// Server bundles the full service configuration.
type Server struct {
	Environment Environment
	Echo        EchoServer
	Auth        AuthServer
	Logger      LoggerServer
	Chain       ChainServer
	Signer      SignerServer
	SecretStore SecretStoreServer
	Redis       RedisServer
}

func (s Server) IsProduction() bool {
	return s.Environment == EnvironmentProduction
}

var (
	configOnce sync.Once
	v          *viper.Viper
)

func env() *viper.Viper {
	configOnce.Do(func() {
		v = viper.New()
		v.SetEnvPrefix("CLAIM_SIGNER")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	})
	return v
}

func getEnv(key string, fallback string) string {
	e := env()
	if e.IsSet(key) {
		return e.GetString(key)
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	e := env()
	if e.IsSet(key) {
		return e.GetInt64(key)
	}
	return fallback
}

func getEnvAsUint64(key string, fallback uint64) uint64 {
	e := env()
	if e.IsSet(key) {
		return e.GetUint64(key)
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	e := env()
	if e.IsSet(key) {
		return e.GetBool(key)
	}
	return fallback
}

// DefaultServerConfigFromEnv assembles the server configuration from
// CLAIM_SIGNER_* environment variables with development-friendly defaults.
func DefaultServerConfigFromEnv() Server {
	return Server{
		Environment: Environment(getEnv("ENVIRONMENT", string(EnvironmentDevelopment))),
		Echo: EchoServer{
			ListenAddress:                  getEnv("SERVER_LISTEN_ADDRESS", ":8080"),
			HideInternalServerErrorDetails: getEnvAsBool("SERVER_HIDE_INTERNAL_ERRORS", true),
		},
		Auth: AuthServer{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "claim-signer"),
		},
		Logger: LoggerServer{
			Level:              getEnv("LOGGER_LEVEL", "info"),
			PrettyPrintConsole: getEnvAsBool("LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
		Chain: ChainServer{
			RPCEndpoint:  getEnv("CHAIN_RPC_ENDPOINT", "http://localhost:8545"),
			ChainID:      getEnvAsInt64("CHAIN_ID", 1),
			TokenAddress: getEnv("CHAIN_TOKEN_ADDRESS", ""),
			GasLimit:     getEnvAsUint64("CHAIN_GAS_LIMIT", 100000),
		},
		Signer: SignerServer{
			PrivateKey:      getEnv("SIGNER_PRIVATE_KEY", ""),
			EncryptedKey:    getEnv("SIGNER_ENCRYPTED_KEY", ""),
			KeyPassword:     getEnv("SIGNER_KEY_PASSWORD", ""),
			MultiSigAddress: getEnv("SIGNER_MULTISIG_ADDRESS", ""),
			LegacyMigration: getEnvAsBool("SIGNER_LEGACY_MIGRATION", false),
		},
		SecretStore: SecretStoreServer{
			Endpoint: getEnv("SECRET_STORE_ENDPOINT", ""),
			Token:    getEnv("SECRET_STORE_TOKEN", ""),
			KeyName:  getEnv("SECRET_STORE_KEY_NAME", ""),
		},
		Redis: RedisServer{
			Endpoint: getEnv("REDIS_ENDPOINT", ""),
		},
	}
}
