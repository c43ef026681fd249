// Package ethereum contains a minimal JSON-RPC client for the handful of
// calls the disbursement core needs. The transport is treated as opaque:
// timeouts and unreachability surface to callers as plain errors, which the
// transfer layer maps to its NetworkUnavailable class.
package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// RPCClient is a JSON-RPC client for an EVM node.
type RPCClient struct {
	endpoint string
	client   *http.Client
}

// NewRPCClient creates a client for the given endpoint.
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error: %s (code: %d)", e.Message, e.Code)
}

// IsRevert reports whether err is a node-side execution revert rather than a
// transport failure.
func IsRevert(err error) bool {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == 3 || strings.Contains(strings.ToLower(rpcErr.Message), "revert")
	}
	return false
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := &rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal RPC request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute HTTP request")
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, errors.Wrap(err, "failed to decode RPC response")
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

func (c *RPCClient) callForBigInt(ctx context.Context, method string, params []interface{}) (*big.Int, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}

	var valueHex string
	if err := json.Unmarshal(result, &valueHex); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal %s result", method)
	}

	value, err := hexutil.DecodeBig(valueHex)
	if err != nil {
		// Some nodes return zero-padded quantities hexutil rejects.
		value, ok := new(big.Int).SetString(strings.TrimPrefix(valueHex, "0x"), 16)
		if !ok {
			return nil, errors.Wrapf(err, "failed to parse %s result %q", method, valueHex)
		}
		return value, nil
	}

	return value, nil
}

// ChainID reads the chain ID the node is serving. Doubles as the
// connectivity probe: a failure here means the network is unreachable.
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.callForBigInt(ctx, "eth_chainId", []interface{}{})
}

// GetBalance reads the native-coin balance of address at the latest block.
func (c *RPCClient) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	return c.callForBigInt(ctx, "eth_getBalance", []interface{}{address.Hex(), "latest"})
}

// GetTransactionCount reads the pending nonce of address.
func (c *RPCClient) GetTransactionCount(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.callForBigInt(ctx, "eth_getTransactionCount", []interface{}{address.Hex(), "pending"})
	if err != nil {
		return 0, err
	}
	return nonce.Uint64(), nil
}

// GetGasPrice reads the node's current gas price suggestion.
func (c *RPCClient) GetGasPrice(ctx context.Context) (*big.Int, error) {
	return c.callForBigInt(ctx, "eth_gasPrice", []interface{}{})
}

// CallContract executes a read-only contract call at the latest block and
// returns the raw return data.
func (c *RPCClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	callArgs := map[string]string{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}

	result, err := c.call(ctx, "eth_call", []interface{}{callArgs, "latest"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to call eth_call")
	}

	var returnHex string
	if err := json.Unmarshal(result, &returnHex); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal eth_call result")
	}

	returnData, err := hexutil.Decode(returnHex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode eth_call return data")
	}

	return returnData, nil
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction and returns
// its hash.
func (c *RPCClient) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	result, err := c.call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(rawTx)})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to call eth_sendRawTransaction")
	}

	var txHashHex string
	if err := json.Unmarshal(result, &txHashHex); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to unmarshal transaction hash")
	}

	return common.HexToHash(txHashHex), nil
}
