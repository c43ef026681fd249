package safe

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/multisig"
)

func DeleteProposalRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Safe.DELETE("/proposals/:id", deleteProposalHandler(s))
}

// deleteProposalHandler abandons a proposal that will never execute. Executed
// proposals stay addressable so a repeated execute keeps answering
// AlreadyExecuted instead of NotFound.
func deleteProposalHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		proposal, err := s.Proposals.Get(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "proposal not found")
		}

		if proposal.Snapshot().Status == multisig.StatusExecuted {
			return echo.NewHTTPError(http.StatusConflict, "executed proposals cannot be abandoned")
		}

		s.Proposals.Abandon(proposal.ID)

		log.Info().Str("proposal_id", proposal.ID).Msg("Multisig proposal abandoned")

		return c.NoContent(http.StatusNoContent)
	}
}
