package handlers

import (
	"github.com/SafeMPC/claim-signer/internal/api"
	"github.com/SafeMPC/claim-signer/internal/api/handlers/claims"
	"github.com/SafeMPC/claim-signer/internal/api/handlers/management"
	"github.com/SafeMPC/claim-signer/internal/api/handlers/safe"
)

// AttachAllRoutes registers every route on the server's router groups.
func AttachAllRoutes(s *api.Server) {
	claims.PostClaimRoute(s)

	safe.PostProposeRoute(s)
	safe.PostSignatureRoute(s)
	safe.PostExecuteRoute(s)
	safe.GetProposalRoute(s)
	safe.DeleteProposalRoute(s)

	management.GetHealthyRoute(s)
	management.GetReadyRoute(s)
	management.GetMetricsRoute(s)
}
