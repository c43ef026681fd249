package claims

import (
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/transfer"
	"github.com/SafeMPC/claim-signer/internal/util"
)

type postClaimRequest struct {
	Recipient    string `json:"recipient"`
	TokenAmount  string `json:"tokenAmount"`
	NativeAmount string `json:"nativeAmount"`
}

type postClaimResponse struct {
	TokenTxHash  string `json:"tokenTxHash"`
	NativeTxHash string `json:"nativeTxHash"`
}

type claimErrorResponse struct {
	Error       string `json:"error"`
	TokenTxHash string `json:"tokenTxHash,omitempty"`
}

func PostClaimRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Claims.POST("", postClaimHandler(s))
}

// postClaimHandler triggers one dual transfer. A partial failure (token leg
// submitted, native leg failed) answers 502 and includes the token tx hash so
// the caller can reconcile.
func postClaimHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body postClaimRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		tokenAmount, ok := new(big.Int).SetString(body.TokenAmount, 10)
		if !ok || tokenAmount.Sign() < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "tokenAmount must be a non-negative integer")
		}
		nativeAmount, ok := new(big.Int).SetString(body.NativeAmount, 10)
		if !ok || nativeAmount.Sign() < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "nativeAmount must be a non-negative integer")
		}

		result, err := s.Transfer.SendDualTransfer(ctx, &transfer.Request{
			Recipient:    body.Recipient,
			TokenAmount:  tokenAmount,
			NativeAmount: nativeAmount,
		})
		if err != nil {
			var partial *transfer.PartialError
			switch {
			case errors.As(err, &partial):
				log.Error().Err(err).Str("token_tx_hash", partial.TokenTxHash.Hex()).Msg("Dual transfer partially failed")
				return c.JSON(http.StatusBadGateway, claimErrorResponse{
					Error:       "native transfer failed after token transfer was submitted",
					TokenTxHash: partial.TokenTxHash.Hex(),
				})
			case errors.Is(err, transfer.ErrInvalidAddress):
				return echo.NewHTTPError(http.StatusBadRequest, "recipient address is malformed")
			case errors.Is(err, transfer.ErrInsufficientBalance):
				return echo.NewHTTPError(http.StatusConflict, "disbursement account balance is insufficient")
			case errors.Is(err, transfer.ErrNetworkUnavailable):
				return echo.NewHTTPError(http.StatusServiceUnavailable, "chain RPC is unreachable")
			default:
				log.Error().Err(err).Msg("Dual transfer failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "transfer failed")
			}
		}

		return c.JSON(http.StatusOK, postClaimResponse{
			TokenTxHash:  result.TokenTxHash.Hex(),
			NativeTxHash: result.NativeTxHash.Hex(),
		})
	}
}
