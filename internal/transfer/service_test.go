package transfer_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeMPC/claim-signer/internal/keyvault"
	"github.com/SafeMPC/claim-signer/internal/transfer"
)

const (
	testKeyHex     = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
	testToken      = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testRecipient  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testChainID    = 31337
	tokenGasLimit  = 100000
)

type mockClient struct {
	chainIDErr     error
	tokenBalance   *big.Int
	nativeBalance  *big.Int
	balanceErr     error
	failNativeLeg  bool
	submissions    []*types.Transaction
	submittedOrder []string // "token" or "native", by destination
	tokenAddress   common.Address
}

func newMockClient() *mockClient {
	return &mockClient{
		tokenBalance:  big.NewInt(1_000_000),
		nativeBalance: big.NewInt(1_000_000),
		tokenAddress:  common.HexToAddress(testToken),
	}
}

func (m *mockClient) ChainID(_ context.Context) (*big.Int, error) {
	if m.chainIDErr != nil {
		return nil, m.chainIDErr
	}
	return big.NewInt(testChainID), nil
}

func (m *mockClient) GetBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return m.nativeBalance, nil
}

func (m *mockClient) GetTransactionCount(_ context.Context, _ common.Address) (uint64, error) {
	return 7, nil
}

func (m *mockClient) GetGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *mockClient) CallContract(_ context.Context, _ common.Address, _ []byte) ([]byte, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return common.LeftPadBytes(m.tokenBalance.Bytes(), 32), nil
}

func (m *mockClient) SendRawTransaction(_ context.Context, rawTx []byte) (common.Hash, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, err
	}

	leg := "native"
	if tx.To() != nil && *tx.To() == m.tokenAddress {
		leg = "token"
	}

	if leg == "native" && m.failNativeLeg {
		return common.Hash{}, errors.New("nonce too low")
	}

	m.submissions = append(m.submissions, &tx)
	m.submittedOrder = append(m.submittedOrder, leg)
	return tx.Hash(), nil
}

func newTestService(t *testing.T, client transfer.Client) *transfer.Service {
	t.Helper()
	key, err := keyvault.NewSigningKey(testKeyHex)
	require.NoError(t, err)
	return transfer.NewService(client, key, testChainID, common.HexToAddress(testToken), tokenGasLimit, nil, nil)
}

func validRequest() *transfer.Request {
	return &transfer.Request{
		Recipient:    testRecipient,
		TokenAmount:  big.NewInt(500),
		NativeAmount: big.NewInt(100),
	}
}

func TestSendDualTransferSubmitsTokenBeforeNative(t *testing.T) {
	client := newMockClient()
	s := newTestService(t, client)

	result, err := s.SendDualTransfer(t.Context(), validRequest())
	require.NoError(t, err)

	require.Equal(t, []string{"token", "native"}, client.submittedOrder)
	assert.Equal(t, client.submissions[0].Hash(), result.TokenTxHash)
	assert.Equal(t, client.submissions[1].Hash(), result.NativeTxHash)

	// The native leg must use the next nonce after the token leg.
	assert.Equal(t, client.submissions[0].Nonce()+1, client.submissions[1].Nonce())
}

func TestSendDualTransferPartialFailureCarriesTokenTxHash(t *testing.T) {
	client := newMockClient()
	client.failNativeLeg = true
	s := newTestService(t, client)

	result, err := s.SendDualTransfer(t.Context(), validRequest())
	require.Error(t, err)
	assert.Nil(t, result)

	var partial *transfer.PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, client.submissions[0].Hash(), partial.TokenTxHash)
	assert.Equal(t, []string{"token"}, client.submittedOrder)
}

func TestSendDualTransferRejectsMalformedRecipient(t *testing.T) {
	s := newTestService(t, newMockClient())

	for _, recipient := range []string{
		"",
		"0x1234",
		"70997970C51812dc3A010C7d01b50e0d17dc79C8",     // missing 0x
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C",    // 39 chars
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8a",  // 41 chars
		"0x70997970C51812dc3A010C7d01b50e0d17dc79Zz",   // non-hex
	} {
		req := validRequest()
		req.Recipient = recipient
		_, err := s.SendDualTransfer(t.Context(), req)
		assert.ErrorIs(t, err, transfer.ErrInvalidAddress, recipient)
	}
}

func TestSendDualTransferAcceptsCanonicalRecipient(t *testing.T) {
	client := newMockClient()
	s := newTestService(t, client)

	req := validRequest()
	req.Recipient = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8" // lower case is fine
	_, err := s.SendDualTransfer(t.Context(), req)
	assert.NoError(t, err)
}

func TestSendDualTransferInsufficientTokenBalance(t *testing.T) {
	client := newMockClient()
	client.tokenBalance = big.NewInt(1)
	s := newTestService(t, client)

	_, err := s.SendDualTransfer(t.Context(), validRequest())
	assert.ErrorIs(t, err, transfer.ErrInsufficientBalance)
	assert.Empty(t, client.submittedOrder)
}

func TestSendDualTransferInsufficientNativeBalance(t *testing.T) {
	client := newMockClient()
	client.nativeBalance = big.NewInt(1)
	s := newTestService(t, client)

	_, err := s.SendDualTransfer(t.Context(), validRequest())
	assert.ErrorIs(t, err, transfer.ErrInsufficientBalance)
}

func TestSendDualTransferZeroBalanceIsAnError(t *testing.T) {
	client := newMockClient()
	client.tokenBalance = big.NewInt(0)
	s := newTestService(t, client)

	// Even a zero-amount request fails on an empty account.
	req := validRequest()
	req.TokenAmount = big.NewInt(0)
	req.NativeAmount = big.NewInt(0)

	_, err := s.SendDualTransfer(t.Context(), req)
	assert.ErrorIs(t, err, transfer.ErrInsufficientBalance)
}

func TestSendDualTransferNetworkUnavailable(t *testing.T) {
	client := newMockClient()
	client.chainIDErr = errors.New("connection refused")
	s := newTestService(t, client)

	_, err := s.SendDualTransfer(t.Context(), validRequest())
	assert.ErrorIs(t, err, transfer.ErrNetworkUnavailable)
	assert.Empty(t, client.submittedOrder)
}

func TestSendDualTransferRejectsNegativeAmounts(t *testing.T) {
	s := newTestService(t, newMockClient())

	req := validRequest()
	req.TokenAmount = big.NewInt(-1)
	_, err := s.SendDualTransfer(t.Context(), req)
	assert.Error(t, err)
}
