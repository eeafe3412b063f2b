// Package simulation implements the carbon-policy simulation core:
// normalization of upstream prediction responses into one canonical
// result shape, derived-metric arithmetic, the persisted comparison
// store, and the deterministic export formatters.
package simulation

import (
	"fmt"
	"strings"
	"time"
)

// PolicyType is the canonical policy-type token.
type PolicyType string

const (
	PolicyCarbonTax PolicyType = "CARBON_TAX"
	PolicyETS       PolicyType = "ETS"
)

// DisplayName returns the human-readable label used in tables and in the
// upstream wire contract ("Carbon Tax" / "ETS").
func (p PolicyType) DisplayName() string {
	if p == PolicyCarbonTax {
		return "Carbon Tax"
	}
	return string(p)
}

// PolicyInputs are the user-submitted policy parameters. DurationYears
// and CarbonPriceUSD must be present and positive before any downstream
// computation runs.
type PolicyInputs struct {
	Country        string     `json:"country"`
	PolicyType     PolicyType `json:"policyType"`
	CarbonPriceUSD float64    `json:"carbonPriceUSD"`
	DurationYears  int        `json:"durationYears"`
	CoveragePct    *float64   `json:"coveragePct,omitempty"`
}

// Confidence is a revenue band around the canonical annual revenue.
// When the upstream service does not supply explicit bounds the
// normalizer fills in a fixed 0.8x/1.2x band; that band is a design
// convention, not a statistical estimate.
type Confidence struct {
	RevenueLow  float64 `json:"revenueLow"`
	RevenueHigh float64 `json:"revenueHigh"`
}

// Predictions holds the model output in canonical form.
type Predictions struct {
	AnnualRevenueMillionUSD float64     `json:"annualRevenueMillionUSD"`
	EmissionCoveragePct     *float64    `json:"emissionCoveragePct,omitempty"`
	Confidence              *Confidence `json:"confidence,omitempty"`
}

// CountryContext carries country-level reference data. Every field is
// optional because the upstream service may omit any of them; absence is
// represented as nil and must never be coerced to zero.
type CountryContext struct {
	Population              *int64             `json:"population,omitempty"`
	GDPUSD                  *float64           `json:"gdpUSD,omitempty"`
	GDPPPP                  *float64           `json:"gdpPPP,omitempty"`
	AnnualCO2Tons           *float64           `json:"annualCO2Tons,omitempty"`
	FossilFuelDependencyPct *float64           `json:"fossilFuelDependencyPct,omitempty"`
	EnergyMixKwhPerCapita   map[string]float64 `json:"energyMixKwhPerCapita,omitempty"`
	Region                  *string            `json:"region,omitempty"`
	IncomeGroup             *string            `json:"incomeGroup,omitempty"`
}

// GDPForShare returns the GDP figure used for the revenue-as-%-of-GDP
// metric: nominal GDP, falling back to PPP-adjusted GDP when nominal is
// absent. The two are not the same base; the fallback reproduces the
// source behavior and is flagged as an open modeling question rather
// than reconciled here.
func (c CountryContext) GDPForShare() *float64 {
	if c.GDPUSD != nil {
		return c.GDPUSD
	}
	return c.GDPPPP
}

// RiskLevel is the canonical risk bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SuccessAssessment describes the model's view of policy survival.
type SuccessAssessment struct {
	SuccessProbability *float64   `json:"successProbability,omitempty"`
	RiskLevel          *RiskLevel `json:"riskLevel,omitempty"`
	Status             *string    `json:"status,omitempty"`
}

// YearlyPrediction is one year of the projection horizon.
type YearlyPrediction struct {
	Year              int      `json:"year"`
	RevenueMillionUSD float64  `json:"revenueMillionUSD"`
	Coverage          *float64 `json:"coverage,omitempty"`
}

// SimilarPolicy is a real-world reference policy returned alongside a
// prediction.
type SimilarPolicy struct {
	Name                    string  `json:"name"`
	Country                 string  `json:"country"`
	Region                  string  `json:"region"`
	ActualCoveragePct       float64 `json:"actualCoveragePct"`
	ActualRevenueMillionUSD float64 `json:"actualRevenueMillionUSD"`
	ActualPriceUSD          float64 `json:"actualPriceUSD"`
}

// Source labels which code path produced a result. Mock data is a
// separate, clearly-labeled path and is never blended with partial real
// data inside one result.
type Source string

const (
	SourceModel Source = "model"
	SourceMock  Source = "mock"
)

// SimulationResult is the canonical, persisted simulation record. ID and
// Timestamp are assigned at creation; the record is immutable thereafter
// and destroyed only by explicit removal or a clear-all.
type SimulationResult struct {
	ID                string             `json:"id"`
	Timestamp         time.Time          `json:"timestamp"`
	Source            Source             `json:"source"`
	Inputs            PolicyInputs       `json:"inputs"`
	Predictions       Predictions        `json:"predictions"`
	CountryContext    CountryContext     `json:"countryContext"`
	Success           SuccessAssessment  `json:"success"`
	YearlyPredictions []YearlyPrediction `json:"yearlyPredictions"`
	SimilarPolicies   []SimilarPolicy    `json:"similarPolicies"`
}

// DerivedMetrics are computed on every read from a SimulationResult and
// never persisted, so display logic changes cannot leave stale values
// behind.
type DerivedMetrics struct {
	CO2CoveredMillionTons *float64 `json:"co2CoveredMillionTons"`
	RevenuePctGDP         *float64 `json:"revenuePctGDP"`

	// RevenueShareImplausible marks a revenue share at or above 100% of
	// GDP. The raw value is kept; filtering it is a display concern.
	RevenueShareImplausible bool `json:"revenueShareImplausible,omitempty"`
}

// ValidateInputs checks PolicyInputs before any prediction call is made.
// It returns a *ValidationError listing every offending field, or nil.
func ValidateInputs(in PolicyInputs) error {
	v := &ValidationError{Fields: map[string]string{}}

	if strings.TrimSpace(in.Country) == "" {
		v.Fields["country"] = "country is required"
	}
	switch in.PolicyType {
	case PolicyCarbonTax, PolicyETS:
	default:
		v.Fields["policyType"] = fmt.Sprintf("policyType must be %s or %s", PolicyCarbonTax, PolicyETS)
	}
	if in.CarbonPriceUSD <= 0 {
		v.Fields["carbonPriceUSD"] = "carbon price must be greater than 0"
	}
	if in.DurationYears < 1 || in.DurationYears > 20 {
		v.Fields["durationYears"] = "duration must be between 1 and 20 years"
	}
	if in.CoveragePct != nil && (*in.CoveragePct < 10 || *in.CoveragePct > 90) {
		v.Fields["coveragePct"] = "coverage must be between 10 and 90 percent"
	}

	if len(v.Fields) > 0 {
		return v
	}
	return nil
}
