package safe

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/multisig"
)

type postSignatureRequest struct {
	Signature string `json:"signature"` // hex, 65 bytes
}

func PostSignatureRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Safe.POST("/proposals/:id/signatures", postSignatureHandler(s))
}

// postSignatureHandler appends one externally collected owner signature. The
// governance workflow is responsible for authenticating the signer; a bad
// signature set is rejected on chain at execution.
func postSignatureHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.MultiSig == nil {
			return echo.NewHTTPError(http.StatusNotImplemented, "no multisig wallet configured")
		}

		proposal, err := s.Proposals.Get(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "proposal not found")
		}

		var body postSignatureRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		signature, err := hexutil.Decode(body.Signature)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "signature must be 0x-prefixed hex")
		}

		proposal, err = s.MultiSig.AddSignature(proposal, signature)
		if err != nil {
			if errors.Is(err, multisig.ErrAlreadyExecuted) {
				return echo.NewHTTPError(http.StatusConflict, "proposal was already executed")
			}
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		s.Proposals.Save(proposal)

		return c.JSON(http.StatusOK, toProposalResponse(proposal))
	}
}
