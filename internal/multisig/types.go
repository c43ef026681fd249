package multisig

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ProposalStatus is the one-way lifecycle of a multisig proposal.
type ProposalStatus string

const (
	StatusProposed   ProposalStatus = "proposed"
	StatusCollecting ProposalStatus = "collecting"
	StatusExecutable ProposalStatus = "executable"
	StatusExecuted   ProposalStatus = "executed"
)

// Proposal is one transaction awaiting enough owner signatures to execute.
// Signatures accumulate in arrival order; canonical ordering is applied only
// at execution time. One Proposal is shared between concurrent requests, so
// all mutation goes through the Service under mu. Holding mu across the
// execution submission is what makes a concurrent second Execute observe
// StatusExecuted instead of double-submitting.
type Proposal struct {
	mu sync.Mutex

	ID          string
	To          common.Address
	Value       *big.Int
	Data        []byte
	Nonce       *big.Int
	SafeTxHash  common.Hash
	Threshold   int
	OwnersCount int
	Signatures  [][]byte
	Status      ProposalStatus
	ExecutedTx  common.Hash
}

// CollectedSignatures returns how many signatures the proposal holds.
func (p *Proposal) CollectedSignatures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Signatures)
}

// Snapshot is a point-in-time copy of the proposal's observable state, safe
// to read while other requests mutate the proposal.
type Snapshot struct {
	ID                  string
	SafeTxHash          common.Hash
	Threshold           int
	OwnersCount         int
	CollectedSignatures int
	Status              ProposalStatus
	ExecutedTx          common.Hash
}

func (p *Proposal) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		ID:                  p.ID,
		SafeTxHash:          p.SafeTxHash,
		Threshold:           p.Threshold,
		OwnersCount:         p.OwnersCount,
		CollectedSignatures: len(p.Signatures),
		Status:              p.Status,
		ExecutedTx:          p.ExecutedTx,
	}
}

var (
	// ErrMultiSigUnavailable means the wallet contract could not be read.
	ErrMultiSigUnavailable = errors.New("multisig wallet contract is unreachable")

	// ErrThresholdNotMet means execute was called with fewer signatures than
	// the wallet requires.
	ErrThresholdNotMet = errors.New("collected signatures are below the wallet threshold")

	// ErrAlreadyExecuted guards against duplicate submission of an executed
	// proposal.
	ErrAlreadyExecuted = errors.New("proposal was already executed")

	// ErrExecutionReverted means the on-chain execution call reverted, e.g. a
	// stale nonce or a malformed signature set.
	ErrExecutionReverted = errors.New("multisig execution reverted on chain")
)
