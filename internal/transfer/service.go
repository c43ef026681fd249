// Package transfer builds, signs, and submits the paired disbursement every
// approved claim resolves to: one ERC-20 token transfer and one native-coin
// transfer to the same recipient. The two legs are independent on-chain
// submissions; the token leg always goes first and a failure in between is
// surfaced, not hidden.
package transfer

import (
	"context"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/keyvault"
	"github.com/SafeMPC/claim-signer/internal/metrics"
)

const nativeTransferGasLimit = 21000

// Client is the chain transport the signer depends on. *ethereum.RPCClient
// satisfies it in production; tests substitute a mock.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	GetTransactionCount(ctx context.Context, address common.Address) (uint64, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
}

// Service holds the signing key and submits dual transfers with it.
type Service struct {
	client       Client
	key          *keyvault.SigningKey
	signer       types.Signer
	tokenAddress common.Address
	gasLimit     uint64
	locks        *accountLocks
	distLock     DistributedLocker // nil outside multi-replica deployments
	metrics      *metrics.Service
}

// NewService creates the transfer signer. distLock and m may be nil.
func NewService(client Client, key *keyvault.SigningKey, chainID int64, tokenAddress common.Address, gasLimit uint64, distLock DistributedLocker, m *metrics.Service) *Service {
	return &Service{
		client:       client,
		key:          key,
		signer:       types.NewEIP155Signer(big.NewInt(chainID)),
		tokenAddress: tokenAddress,
		gasLimit:     gasLimit,
		locks:        newAccountLocks(),
		distLock:     distLock,
		metrics:      m,
	}
}

var recipientRE = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateRecipient checks the canonical 0x + 40 hex address form.
func ValidateRecipient(address string) error {
	if !recipientRE.MatchString(address) {
		return errors.Wrapf(ErrInvalidAddress, "%q", address)
	}
	return nil
}

// SendDualTransfer runs the full check-and-submit sequence for one claim:
// connectivity, recipient format, both balances, then the token transfer
// followed by the native transfer. The token leg is strictly submitted before
// the native leg is even constructed. A native-leg failure after a successful
// token leg returns *PartialError carrying the token transaction hash.
func (s *Service) SendDualTransfer(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	if req.TokenAmount == nil || req.NativeAmount == nil {
		return nil, errors.New("both amounts are required")
	}
	if req.TokenAmount.Sign() < 0 || req.NativeAmount.Sign() < 0 {
		return nil, errors.New("amounts must be non-negative")
	}

	// 1. Connectivity. Anything transport-shaped, including timeouts, is
	// NetworkUnavailable to the caller.
	if _, err := s.client.ChainID(ctx); err != nil {
		return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
	}

	// 2. Recipient format.
	if err := ValidateRecipient(req.Recipient); err != nil {
		return nil, err
	}
	recipient := common.HexToAddress(req.Recipient)

	// 3. Balances of the held account. Zero balance is an explicit error, not
	// a degenerate zero-amount transfer.
	tokenBalance, err := s.tokenBalance(ctx, s.key.Address())
	if err != nil {
		return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
	}
	if tokenBalance.Sign() == 0 || tokenBalance.Cmp(req.TokenAmount) < 0 {
		return nil, errors.Wrapf(ErrInsufficientBalance, "token balance %s, requested %s", tokenBalance, req.TokenAmount)
	}

	nativeBalance, err := s.client.GetBalance(ctx, s.key.Address())
	if err != nil {
		return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
	}
	if nativeBalance.Sign() == 0 || nativeBalance.Cmp(req.NativeAmount) < 0 {
		return nil, errors.Wrapf(ErrInsufficientBalance, "native balance %s, requested %s", nativeBalance, req.NativeAmount)
	}

	// Submission is serialized per account from here on.
	account := strings.ToLower(s.key.Address().Hex())
	mu := s.locks.lock(account)
	defer mu.Unlock()

	if s.distLock != nil {
		acquired, err := s.distLock.AcquireLock(ctx, account, 2*time.Minute)
		if err != nil {
			return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
		}
		if !acquired {
			return nil, errors.New("another replica is submitting for this account")
		}
		defer func() {
			if err := s.distLock.ReleaseLock(context.WithoutCancel(ctx), account); err != nil {
				log.Warn().Err(err).Str("account", account).Msg("Failed to release account lock")
			}
		}()
	}

	nonce, err := s.client.GetTransactionCount(ctx, s.key.Address())
	if err != nil {
		return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
	}

	gasPrice, err := s.client.GetGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
	}

	// 4. Token leg.
	tokenTx := types.NewTransaction(nonce, s.tokenAddress, big.NewInt(0), s.gasLimit, gasPrice, packTransfer(recipient, req.TokenAmount))
	tokenTxHash, err := s.signAndSubmit(ctx, tokenTx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit token transfer")
	}

	log.Info().
		Str("recipient", recipient.Hex()).
		Str("token_amount", req.TokenAmount.String()).
		Str("tx_hash", tokenTxHash.Hex()).
		Msg("Token transfer submitted")

	// 5. Native leg, constructed only after the token leg is on the wire.
	nativeTx := types.NewTransaction(nonce+1, recipient, req.NativeAmount, nativeTransferGasLimit, gasPrice, nil)
	nativeTxHash, err := s.signAndSubmit(ctx, nativeTx)
	if err != nil {
		s.metrics.CountTransfer(metrics.TransferOutcomePartial)
		return nil, &PartialError{TokenTxHash: tokenTxHash, Err: err}
	}

	log.Info().
		Str("recipient", recipient.Hex()).
		Str("native_amount", req.NativeAmount.String()).
		Str("tx_hash", nativeTxHash.Hex()).
		Msg("Native transfer submitted")

	s.metrics.CountTransfer(metrics.TransferOutcomeSuccess)

	return &Result{TokenTxHash: tokenTxHash, NativeTxHash: nativeTxHash}, nil
}

func (s *Service) tokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	returnData, err := s.client.CallContract(ctx, s.tokenAddress, packBalanceOf(owner))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query token balance")
	}
	return unpackUint256(returnData)
}

func (s *Service) signAndSubmit(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signedTx, err := types.SignTx(tx, s.signer, s.key.ECDSA())
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to encode transaction")
	}

	return s.client.SendRawTransaction(ctx, rawTx)
}
