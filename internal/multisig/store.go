package multisig

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrProposalNotFound means no proposal exists under the given ID.
var ErrProposalNotFound = errors.New("proposal not found")

// ProposalStore keeps in-flight proposals addressable by ID for the approval
// workflow. In-memory: proposals are short-lived and rebuilt from the chain
// nonce on restart (a stale proposal simply reverts at execution).
type ProposalStore struct {
	mu        sync.RWMutex
	proposals map[string]*Proposal
}

func NewProposalStore() *ProposalStore {
	return &ProposalStore{proposals: make(map[string]*Proposal)}
}

func (s *ProposalStore) Save(proposal *Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[proposal.ID] = proposal
}

func (s *ProposalStore) Get(id string) (*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return nil, errors.Wrapf(ErrProposalNotFound, "%s", id)
	}
	return proposal, nil
}

// Abandon removes a proposal that will never execute.
func (s *ProposalStore) Abandon(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.proposals, id)
}
