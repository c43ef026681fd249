package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TransferOutcome labels the dual-transfer counter.
type TransferOutcome string

const (
	TransferOutcomeSuccess TransferOutcome = "success"
	TransferOutcomePartial TransferOutcome = "partial"
)

// Service owns the prometheus collectors. A nil *Service is valid and all
// methods become no-ops, so tests and tools can skip metrics wiring.
type Service struct {
	registry       *prometheus.Registry
	transfersTotal *prometheus.CounterVec
	verdictsTotal  *prometheus.CounterVec
	proposalsTotal *prometheus.CounterVec
}

// New creates the metrics service with its own registry.
func New() *Service {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Service{
		registry: registry,
		transfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_signer_transfers_total",
			Help: "Dual transfers by outcome.",
		}, []string{"outcome"}),
		verdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_signer_key_verdicts_total",
			Help: "Test-key guard verdicts observed at key load.",
		}, []string{"verdict"}),
		proposalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_signer_multisig_proposals_total",
			Help: "Multisig proposals by lifecycle event.",
		}, []string{"event"}),
	}
}

// Registry exposes the registry for the HTTP handler.
func (s *Service) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) CountTransfer(outcome TransferOutcome) {
	if s == nil {
		return
	}
	s.transfersTotal.WithLabelValues(string(outcome)).Inc()
}

func (s *Service) CountVerdict(verdict string) {
	if s == nil {
		return
	}
	s.verdictsTotal.WithLabelValues(verdict).Inc()
}

func (s *Service) CountProposalEvent(event string) {
	if s == nil {
		return
	}
	s.proposalsTotal.WithLabelValues(event).Inc()
}
