package claims_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/api/router"
	"github.com/SafeMPC/claim-signer/internal/config"
	"github.com/SafeMPC/claim-signer/internal/keyvault"
	"github.com/SafeMPC/claim-signer/internal/transfer"
)

const testKeyHex = "1111111111111111111111111111111111111111111111111111111111111111"

// stubChain is a happy-path chain backend with tweakable balances.
type stubChain struct {
	tokenBalance  *big.Int
	nativeBalance *big.Int
	submitted     int
}

func (c *stubChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(137), nil
}

func (c *stubChain) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	return c.nativeBalance, nil
}

func (c *stubChain) GetTransactionCount(ctx context.Context, address common.Address) (uint64, error) {
	return 7, nil
}

func (c *stubChain) GetGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (c *stubChain) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return common.LeftPadBytes(c.tokenBalance.Bytes(), 32), nil
}

func (c *stubChain) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	c.submitted++
	return common.BigToHash(big.NewInt(int64(c.submitted))), nil
}

func newTestServer(t *testing.T, chain transfer.Client) *api.Server {
	t.Helper()

	key, err := keyvault.NewSigningKey(testKeyHex)
	require.NoError(t, err)

	s := api.NewServer(config.DefaultServerConfigFromEnv())
	s.Transfer = transfer.NewService(chain, key, 137, common.HexToAddress("0x2222222222222222222222222222222222222222"), 100000, nil, nil)
	router.Init(s)

	return s
}

func postClaim(t *testing.T, s *api.Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestPostClaimSubmitsBothLegs(t *testing.T) {
	chain := &stubChain{
		tokenBalance:  big.NewInt(1000),
		nativeBalance: big.NewInt(1000),
	}
	s := newTestServer(t, chain)

	rec := postClaim(t, s, `{"recipient":"0x3333333333333333333333333333333333333333","tokenAmount":"100","nativeAmount":"50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		TokenTxHash  string `json:"tokenTxHash"`
		NativeTxHash string `json:"nativeTxHash"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TokenTxHash)
	assert.NotEmpty(t, resp.NativeTxHash)
	assert.NotEqual(t, resp.TokenTxHash, resp.NativeTxHash)
	assert.Equal(t, 2, chain.submitted)
}

func TestPostClaimMalformedRecipient(t *testing.T) {
	chain := &stubChain{
		tokenBalance:  big.NewInt(1000),
		nativeBalance: big.NewInt(1000),
	}
	s := newTestServer(t, chain)

	rec := postClaim(t, s, `{"recipient":"0x1234","tokenAmount":"100","nativeAmount":"50"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, chain.submitted)
}

func TestPostClaimNegativeAmount(t *testing.T) {
	chain := &stubChain{
		tokenBalance:  big.NewInt(1000),
		nativeBalance: big.NewInt(1000),
	}
	s := newTestServer(t, chain)

	rec := postClaim(t, s, `{"recipient":"0x3333333333333333333333333333333333333333","tokenAmount":"-1","nativeAmount":"50"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostClaimInsufficientBalance(t *testing.T) {
	chain := &stubChain{
		tokenBalance:  big.NewInt(10),
		nativeBalance: big.NewInt(1000),
	}
	s := newTestServer(t, chain)

	rec := postClaim(t, s, `{"recipient":"0x3333333333333333333333333333333333333333","tokenAmount":"100","nativeAmount":"50"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, chain.submitted)
}

// partialChain fails the second submission so the token leg hash must be
// surfaced to the caller.
type partialChain struct {
	stubChain
}

func (c *partialChain) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	c.submitted++
	if c.submitted > 1 {
		return common.Hash{}, errors.New("nonce too low")
	}
	return common.BigToHash(big.NewInt(int64(c.submitted))), nil
}

func TestPostClaimPartialFailureCarriesTokenTxHash(t *testing.T) {
	chain := &partialChain{stubChain{
		tokenBalance:  big.NewInt(1000),
		nativeBalance: big.NewInt(1000),
	}}
	s := newTestServer(t, chain)

	rec := postClaim(t, s, `{"recipient":"0x3333333333333333333333333333333333333333","tokenAmount":"100","nativeAmount":"50"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Error       string `json:"error"`
		TokenTxHash string `json:"tokenTxHash"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, common.BigToHash(big.NewInt(1)).Hex(), resp.TokenTxHash)
}
