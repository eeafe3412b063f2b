package main

import (
	"github.com/ecoimpact/simulator/simulation"
)

// API request and response models.

// SimulateRequest is the body for POST /api/v1/simulate. PolicyType
// accepts the canonical names plus common synonyms ("cap and trade",
// "emissions trading", ...). UseMock skips the prediction service
// entirely; AllowMockFallback only kicks in when the service is
// unreachable.
type SimulateRequest struct {
	Country           string   `json:"country"`
	PolicyType        string   `json:"policyType"`
	CarbonPrice       float64  `json:"carbonPrice"`
	Duration          int      `json:"duration"`
	Coverage          *float64 `json:"coverage,omitempty"`
	UseMock           bool     `json:"useMock,omitempty"`
	AllowMockFallback bool     `json:"allowMockFallback,omitempty"`
}

// SimulationsListResponse wraps the stored results in insertion order.
type SimulationsListResponse struct {
	Simulations []*simulation.SimulationResult `json:"simulations"`
}

// ComparisonResponse wraps the deduplicated comparison rows.
type ComparisonResponse struct {
	Rows []simulation.ComparisonRow `json:"rows"`
}

// ValidationErrorResponse carries per-field validation messages.
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// HealthResponse is the health check payload. The counters reset on
// process restart.
type HealthResponse struct {
	Status            string `json:"status"`
	StoredSimulations int    `json:"storedSimulations"`
	UpstreamFailures  int64  `json:"upstreamFailures"`
	MockFallbacks     int64  `json:"mockFallbacks"`
}
