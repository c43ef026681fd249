package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/metrics"
	"github.com/SafeMPC/claim-signer/internal/multisig"
	"github.com/SafeMPC/claim-signer/internal/secretstore"
	"github.com/SafeMPC/claim-signer/internal/transfer"
)

// Router groups the echo route trees the handlers attach to.
type Router struct {
	Routes      []*echo.Route
	Root        *echo.Group
	Management  *echo.Group
	APIV1Claims *echo.Group
	APIV1Safe   *echo.Group
}

// Server is the central struct keeping all the dependencies. Handlers receive
// it and pick what they need.
type Server struct {
	Config config.Server
	Echo   *echo.Echo
	Router *Router

	Transfer    *transfer.Service
	MultiSig    *multisig.Service
	Proposals   *multisig.ProposalStore
	SecretStore secretstore.Store
	Metrics     *metrics.Service
	Redis       *redis.Client
}

// NewServer creates an uninitialised server; call Init before Start.
func NewServer(cfg config.Server) *Server {
	return &Server{
		Config:    cfg,
		Proposals: multisig.NewProposalStore(),
	}
}

// Ready reports whether the HTTP layer can serve requests.
func (s *Server) Ready() bool {
	return s.Echo != nil && s.Router != nil && s.Transfer != nil
}

// Start serves HTTP until Shutdown.
func (s *Server) Start() error {
	return s.Echo.Start(s.Config.Echo.ListenAddress)
}

// Shutdown gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
