package transfer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Request asks for one dual transfer: an ERC-20 token amount and a native
// coin amount, both to the same recipient, both in smallest units. The
// request validates shape only; balances are checked at execution time.
type Request struct {
	Recipient    string
	TokenAmount  *big.Int
	NativeAmount *big.Int
}

// Result carries the two independent transaction hashes. There is no atomic
// guarantee between the legs; see PartialError for the failure shape.
type Result struct {
	TokenTxHash  common.Hash
	NativeTxHash common.Hash
}

var (
	// ErrNetworkUnavailable means the RPC endpoint could not be reached or
	// timed out before any submission happened.
	ErrNetworkUnavailable = errors.New("chain RPC is unreachable")

	// ErrInvalidAddress means the recipient is not 0x followed by 40 hex chars.
	ErrInvalidAddress = errors.New("recipient address is malformed")

	// ErrInsufficientBalance means the held account cannot cover one of the
	// requested amounts. A zero balance always triggers it, even for a zero
	// requested amount.
	ErrInsufficientBalance = errors.New("held account balance is insufficient")
)

// PartialError reports a dual transfer whose token leg was already submitted
// when the native leg failed. The caller needs TokenTxHash to reconcile; the
// submitted token transfer cannot be recalled.
type PartialError struct {
	TokenTxHash common.Hash
	Err         error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("native transfer failed after token transfer %s was submitted: %v", e.TokenTxHash.Hex(), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
