// Package multisig proposes and executes transactions on a Safe-compatible
// threshold wallet. The held key contributes the first signature; the rest
// arrive from an external governance workflow before execution.
package multisig

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/SafeMPC/claim-signer/internal/chain/ethereum"
	"github.com/SafeMPC/claim-signer/internal/keyvault"
	"github.com/SafeMPC/claim-signer/internal/metrics"
)

// Client is the chain transport the coordinator depends on.
type Client interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	GetTransactionCount(ctx context.Context, address common.Address) (uint64, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
}

// Service coordinates proposals against one Safe wallet.
type Service struct {
	client      Client
	key         *keyvault.SigningKey
	safeAddress common.Address
	signer      types.Signer
	gasLimit    uint64
	metrics     *metrics.Service
}

// NewService creates the coordinator. m may be nil.
func NewService(client Client, key *keyvault.SigningKey, safeAddress common.Address, chainID int64, gasLimit uint64, m *metrics.Service) *Service {
	return &Service{
		client:      client,
		key:         key,
		safeAddress: safeAddress,
		signer:      types.NewEIP155Signer(big.NewInt(chainID)),
		gasLimit:    gasLimit,
		metrics:     m,
	}
}

// Propose reads the wallet's current nonce, threshold and owner set, computes
// the canonical transaction hash for that nonce, and signs it with the held
// key as the first collected signature.
func (s *Service) Propose(ctx context.Context, to common.Address, value *big.Int, data []byte) (*Proposal, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := s.readUint256(ctx, "nonce")
	if err != nil {
		return nil, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	threshold, err := s.readUint256(ctx, "getThreshold")
	if err != nil {
		return nil, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	owners, err := s.readOwners(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	safeTxHash, err := s.transactionHash(ctx, to, value, data, nonce)
	if err != nil {
		return nil, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	signature, err := signSafeTxHash(safeTxHash, s.key)
	if err != nil {
		return nil, err
	}

	proposal := &Proposal{
		ID:          uuid.New().String(),
		To:          to,
		Value:       value,
		Data:        data,
		Nonce:       nonce,
		SafeTxHash:  safeTxHash,
		Threshold:   int(threshold.Int64()),
		OwnersCount: len(owners),
		Signatures:  [][]byte{signature},
		Status:      StatusProposed,
	}
	proposal.Status = collectingStatus(len(proposal.Signatures), proposal.Threshold)

	s.metrics.CountProposalEvent("proposed")

	log.Info().
		Str("proposal_id", proposal.ID).
		Str("safe_tx_hash", safeTxHash.Hex()).
		Str("to", to.Hex()).
		Int("threshold", proposal.Threshold).
		Int("owners", proposal.OwnersCount).
		Msg("Multisig transaction proposed")

	return proposal, nil
}

// AddSignature appends an externally collected owner signature. Pure data
// accumulation, no on-chain effect. Signer identity is not verified here; a
// bad set is rejected by the chain at execution.
func (s *Service) AddSignature(proposal *Proposal, signature []byte) (*Proposal, error) {
	if len(signature) != crypto.SignatureLength {
		return nil, errors.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	proposal.mu.Lock()
	defer proposal.mu.Unlock()

	if proposal.Status == StatusExecuted {
		return nil, ErrAlreadyExecuted
	}

	proposal.Signatures = append(proposal.Signatures, signature)
	proposal.Status = collectingStatus(len(proposal.Signatures), proposal.Threshold)

	return proposal, nil
}

// Execute submits execTransaction once the threshold is met. Signatures are
// concatenated ascending by recovered signer address, the order the wallet
// contract requires. Re-executing an executed proposal fails with
// ErrAlreadyExecuted instead of resubmitting. The proposal lock is held
// across the whole submission: a concurrent Execute on the same proposal
// blocks until this one settles and then fails the StatusExecuted check,
// never racing into a duplicate on-chain submission.
func (s *Service) Execute(ctx context.Context, proposal *Proposal) (common.Hash, error) {
	proposal.mu.Lock()
	defer proposal.mu.Unlock()

	if proposal.Status == StatusExecuted {
		return common.Hash{}, ErrAlreadyExecuted
	}
	if len(proposal.Signatures) < proposal.Threshold {
		return common.Hash{}, errors.Wrapf(ErrThresholdNotMet, "have %d, need %d", len(proposal.Signatures), proposal.Threshold)
	}

	combined, err := combineSignatures(proposal.SafeTxHash, proposal.Signatures)
	if err != nil {
		return common.Hash{}, err
	}

	callData, err := safeABI.Pack("execTransaction",
		proposal.To,
		proposal.Value,
		proposal.Data,
		uint8(0),      // operation: CALL
		big.NewInt(0), // safeTxGas
		big.NewInt(0), // baseGas
		big.NewInt(0), // gasPrice
		common.Address{},
		common.Address{},
		combined,
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to pack execTransaction")
	}

	accountNonce, err := s.client.GetTransactionCount(ctx, s.key.Address())
	if err != nil {
		return common.Hash{}, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	gasPrice, err := s.client.GetGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	tx := types.NewTransaction(accountNonce, s.safeAddress, big.NewInt(0), s.gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, s.signer, s.key.ECDSA())
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign execution transaction")
	}

	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to encode execution transaction")
	}

	txHash, err := s.client.SendRawTransaction(ctx, rawTx)
	if err != nil {
		// Conforming nodes report reverts as a typed RPC error; the substring
		// check catches transports that only carry the message.
		if ethereum.IsRevert(err) || strings.Contains(strings.ToLower(err.Error()), "revert") {
			return common.Hash{}, errors.Wrap(ErrExecutionReverted, err.Error())
		}
		return common.Hash{}, errors.Wrap(ErrMultiSigUnavailable, err.Error())
	}

	proposal.Status = StatusExecuted
	proposal.ExecutedTx = txHash

	s.metrics.CountProposalEvent("executed")

	log.Info().
		Str("proposal_id", proposal.ID).
		Str("tx_hash", txHash.Hex()).
		Int("signatures", len(proposal.Signatures)).
		Msg("Multisig transaction executed")

	return txHash, nil
}

// collectingStatus is called with the proposal lock held (or before the
// proposal is shared).
func collectingStatus(collected int, threshold int) ProposalStatus {
	if collected >= threshold {
		return StatusExecutable
	}
	return StatusCollecting
}

func (s *Service) readUint256(ctx context.Context, method string) (*big.Int, error) {
	callData, err := safeABI.Pack(method)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	returnData, err := s.client.CallContract(ctx, s.safeAddress, callData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}

	values, err := safeABI.Unpack(method, returnData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s", method)
	}

	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected %s return type %T", method, values[0])
	}
	return value, nil
}

func (s *Service) readOwners(ctx context.Context) ([]common.Address, error) {
	callData, err := safeABI.Pack("getOwners")
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack getOwners")
	}

	returnData, err := s.client.CallContract(ctx, s.safeAddress, callData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call getOwners")
	}

	values, err := safeABI.Unpack("getOwners", returnData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack getOwners")
	}

	owners, ok := values[0].([]common.Address)
	if !ok {
		return nil, errors.Errorf("unexpected getOwners return type %T", values[0])
	}
	return owners, nil
}

func (s *Service) transactionHash(ctx context.Context, to common.Address, value *big.Int, data []byte, nonce *big.Int) (common.Hash, error) {
	callData, err := safeABI.Pack("getTransactionHash",
		to,
		value,
		data,
		uint8(0),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(0),
		common.Address{},
		common.Address{},
		nonce,
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to pack getTransactionHash")
	}

	returnData, err := s.client.CallContract(ctx, s.safeAddress, callData)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to call getTransactionHash")
	}

	values, err := safeABI.Unpack("getTransactionHash", returnData)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to unpack getTransactionHash")
	}

	hashBytes, ok := values[0].([32]byte)
	if !ok {
		return common.Hash{}, errors.Errorf("unexpected getTransactionHash return type %T", values[0])
	}
	return common.Hash(hashBytes), nil
}

// signSafeTxHash signs the Safe transaction hash with the ECDSA recovery-id
// form the wallet expects (v in {27, 28}).
func signSafeTxHash(safeTxHash common.Hash, key *keyvault.SigningKey) ([]byte, error) {
	signature, err := crypto.Sign(safeTxHash.Bytes(), key.ECDSA())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign safe transaction hash")
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

// combineSignatures concatenates signatures ascending by recovered signer
// address, the canonical order execTransaction validates against.
func combineSignatures(safeTxHash common.Hash, signatures [][]byte) ([]byte, error) {
	type ownerSignature struct {
		owner     common.Address
		signature []byte
	}

	ordered := make([]ownerSignature, 0, len(signatures))
	for _, signature := range signatures {
		owner, err := recoverSigner(safeTxHash, signature)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, ownerSignature{owner: owner, signature: signature})
	}

	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].owner.Bytes(), ordered[j].owner.Bytes()) < 0
	})

	combined := make([]byte, 0, len(ordered)*crypto.SignatureLength)
	for _, entry := range ordered {
		combined = append(combined, entry.signature...)
	}
	return combined, nil
}

func recoverSigner(safeTxHash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, signature)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	publicKey, err := crypto.SigToPub(safeTxHash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover signer")
	}
	return crypto.PubkeyToAddress(*publicKey), nil
}
