package safe

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SafeMPC/claim-signer/internal/api"
)

func GetProposalRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Safe.GET("/proposals/:id", getProposalHandler(s))
}

func getProposalHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		proposal, err := s.Proposals.Get(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "proposal not found")
		}

		return c.JSON(http.StatusOK, toProposalResponse(proposal))
	}
}
