package management

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SafeMPC/claim-signer/internal/api"
)

func GetMetricsRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/metrics", getMetricsHandler(s))
}

func getMetricsHandler(s *api.Server) echo.HandlerFunc {
	handler := promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{})
	return echo.WrapHandler(handler)
}
