package safe

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/multisig"
	"github.com/SafeMPC/claim-signer/internal/util"
)

type postProposeRequest struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data,omitempty"` // hex, optional
}

type proposalResponse struct {
	ID                  string `json:"id"`
	SafeTxHash          string `json:"safeTxHash"`
	Threshold           int    `json:"threshold"`
	OwnersCount         int    `json:"ownersCount"`
	CollectedSignatures int    `json:"collectedSignatures"`
	Status              string `json:"status"`
	ExecutedTx          string `json:"executedTx,omitempty"`
}

func toProposalResponse(p *multisig.Proposal) proposalResponse {
	snapshot := p.Snapshot()
	resp := proposalResponse{
		ID:                  snapshot.ID,
		SafeTxHash:          snapshot.SafeTxHash.Hex(),
		Threshold:           snapshot.Threshold,
		OwnersCount:         snapshot.OwnersCount,
		CollectedSignatures: snapshot.CollectedSignatures,
		Status:              string(snapshot.Status),
	}
	if snapshot.Status == multisig.StatusExecuted {
		resp.ExecutedTx = snapshot.ExecutedTx.Hex()
	}
	return resp
}

func PostProposeRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Safe.POST("/proposals", postProposeHandler(s))
}

func postProposeHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		if s.MultiSig == nil {
			return echo.NewHTTPError(http.StatusNotImplemented, "no multisig wallet configured")
		}

		var body postProposeRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		if !common.IsHexAddress(body.To) {
			return echo.NewHTTPError(http.StatusBadRequest, "to address is malformed")
		}

		value, ok := new(big.Int).SetString(body.Value, 10)
		if !ok || value.Sign() < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "value must be a non-negative integer")
		}

		var data []byte
		if body.Data != "" {
			var err error
			data, err = hexutil.Decode(body.Data)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "data must be 0x-prefixed hex")
			}
		}

		proposal, err := s.MultiSig.Propose(ctx, common.HexToAddress(body.To), value, data)
		if err != nil {
			if errors.Is(err, multisig.ErrMultiSigUnavailable) {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "multisig wallet is unreachable")
			}
			log.Error().Err(err).Msg("Failed to propose multisig transaction")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to propose")
		}

		s.Proposals.Save(proposal)

		return c.JSON(http.StatusCreated, toProposalResponse(proposal))
	}
}
