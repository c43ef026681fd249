package safe

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/multisig"
	"github.com/SafeMPC/claim-signer/internal/util"
)

func PostExecuteRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Safe.POST("/proposals/:id/execute", postExecuteHandler(s))
}

func postExecuteHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		if s.MultiSig == nil {
			return echo.NewHTTPError(http.StatusNotImplemented, "no multisig wallet configured")
		}

		proposal, err := s.Proposals.Get(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "proposal not found")
		}

		txHash, err := s.MultiSig.Execute(ctx, proposal)
		if err != nil {
			switch {
			case errors.Is(err, multisig.ErrAlreadyExecuted):
				return echo.NewHTTPError(http.StatusConflict, "proposal was already executed")
			case errors.Is(err, multisig.ErrThresholdNotMet):
				return echo.NewHTTPError(http.StatusPreconditionFailed, "collected signatures are below the wallet threshold")
			case errors.Is(err, multisig.ErrExecutionReverted):
				return echo.NewHTTPError(http.StatusUnprocessableEntity, "execution reverted on chain")
			case errors.Is(err, multisig.ErrMultiSigUnavailable):
				return echo.NewHTTPError(http.StatusServiceUnavailable, "multisig wallet is unreachable")
			default:
				log.Error().Err(err).Msg("Failed to execute multisig proposal")
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to execute")
			}
		}

		s.Proposals.Save(proposal)

		return c.JSON(http.StatusOK, map[string]string{"txHash": txHash.Hex()})
	}
}
