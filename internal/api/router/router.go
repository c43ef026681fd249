package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/api/handlers"
	apimiddleware "github.com/SafeMPC/claim-signer/internal/api/middleware"
	"github.com/SafeMPC/claim-signer/internal/auth"
)

// Init wires the echo instance, middleware stack, and all routes onto s.
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.Debug = false
	s.Echo.HideBanner = true
	s.Echo.Logger.SetOutput(&echoLogAdapter{})

	s.Echo.Pre(middleware.RemoveTrailingSlash())
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(apimiddleware.RequestLogger())

	claims := s.Echo.Group("/api/v1/claims")
	safe := s.Echo.Group("/api/v1/safe")

	if s.Config.Auth.JWTSecret != "" {
		manager := auth.NewJWTManager(s.Config.Auth.JWTSecret, s.Config.Auth.JWTIssuer, 24*time.Hour)
		claims.Use(apimiddleware.RequireJWT(manager))
		safe.Use(apimiddleware.RequireJWT(manager))
	} else {
		log.Warn().Msg("AUTH_JWT_SECRET is empty, API routes are unauthenticated")
	}

	s.Router = &api.Router{
		Root:        s.Echo.Group(""),
		Management:  s.Echo.Group("/-"),
		APIV1Claims: claims,
		APIV1Safe:   safe,
	}

	handlers.AttachAllRoutes(s)

	s.Router.Routes = s.Echo.Routes()
}

// echoLogAdapter forwards echo's own log lines into zerolog.
type echoLogAdapter struct{}

func (a *echoLogAdapter) Write(p []byte) (int, error) {
	log.Debug().Msg(string(p))
	return len(p), nil
}
