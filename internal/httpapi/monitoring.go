package httpapi

import "net/http"

// handleCosts implements GET /monitoring/costs (spec §6.1): aggregated
// model token usage since process start.
func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Costs.Snapshot())
}

// handleCircuitBreaker implements GET /monitoring/circuit-breaker (spec
// §6.1): the current state of every named breaker the gateway has opened
// (lazily, so an unused upstream never appears).
func (s *Server) handleCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Breakers.Snapshot())
}
