package simulation

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGenerator produces synthetic simulation results for use when the
// prediction service is unavailable. It is a separate code path from the
// normalizer: mock results are built whole, tagged SourceMock, and are
// never blended with partial real data.
type MockGenerator struct {
	// rng is not safe for concurrent use; every draw goes through mu.
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func (g *MockGenerator) float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// NewMockGenerator creates a generator. rng may be nil, in which case a
// time-seeded source is used; tests pass a fixed seed.
func NewMockGenerator(rng *rand.Rand) *MockGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockGenerator{rng: rng, now: time.Now}
}

// Generate builds a synthetic result for the given inputs. Coverage
// scales with price into a 20-60% band and revenue tracks roughly 50x
// the price, both with jitter, mirroring what a plausible model answer
// looks like.
func (g *MockGenerator) Generate(inputs PolicyInputs) *SimulationResult {
	baseCoverage := inputs.CarbonPriceUSD * 2
	if baseCoverage < 20 {
		baseCoverage = 20
	}
	if baseCoverage > 60 {
		baseCoverage = 60
	}
	baseRevenue := inputs.CarbonPriceUSD * 50

	coverage := clamp(baseCoverage+g.float64()*10-5, 0, 100)
	annual := baseRevenue + g.float64()*200 - 100
	if annual < 0 {
		annual = 0
	}

	startYear := g.now().Year()
	yearly := make([]YearlyPrediction, 0, inputs.DurationYears)
	for i := 0; i < inputs.DurationYears; i++ {
		rev := annual * (0.9 + g.float64()*0.2)
		cov := coverage
		yearly = append(yearly, YearlyPrediction{
			Year:              startYear + i,
			RevenueMillionUSD: rev,
			Coverage:          &cov,
		})
	}

	low := annual - 150
	if low < 0 {
		low = 0
	}
	return &SimulationResult{
		ID:        uuid.NewString(),
		Timestamp: g.now().UTC(),
		Source:    SourceMock,
		Inputs:    inputs,
		Predictions: Predictions{
			AnnualRevenueMillionUSD: annual,
			EmissionCoveragePct:     &coverage,
			Confidence: &Confidence{
				RevenueLow:  low,
				RevenueHigh: annual + 150,
			},
		},
		CountryContext:    mockCountryContext(),
		Success:           SuccessAssessment{},
		YearlyPredictions: yearly,
		SimilarPolicies:   mockSimilarPolicies(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Example context and reference policies, fixed so the mock path is
// recognizable at a glance.
func mockCountryContext() CountryContext {
	pop := int64(231402117)
	gdpPPP := 1.2e12
	co2 := 227000000.0
	fossil := 64.3
	region := "South Asia"
	income := "Lower middle income"
	return CountryContext{
		Population:              &pop,
		GDPPPP:                  &gdpPPP,
		AnnualCO2Tons:           &co2,
		FossilFuelDependencyPct: &fossil,
		EnergyMixKwhPerCapita: map[string]float64{
			"coal":            450,
			"oil":             320,
			"gas":             280,
			"nuclear":         50,
			"hydro":           180,
			"wind":            45,
			"solar":           25,
			"otherRenewables": 15,
		},
		Region:      &region,
		IncomeGroup: &income,
	}
}

func mockSimilarPolicies() []SimilarPolicy {
	return []SimilarPolicy{
		{
			Name:                    "British Columbia Carbon Tax",
			Country:                 "Canada",
			Region:                  "North America",
			ActualCoveragePct:       70.0,
			ActualRevenueMillionUSD: 1800.0,
			ActualPriceUSD:          50,
		},
		{
			Name:                    "UK Carbon Price Floor",
			Country:                 "United Kingdom",
			Region:                  "Europe",
			ActualCoveragePct:       35.0,
			ActualRevenueMillionUSD: 2200.0,
			ActualPriceUSD:          25,
		},
		{
			Name:                    "Colombia Carbon Tax",
			Country:                 "Colombia",
			Region:                  "South America",
			ActualCoveragePct:       50.0,
			ActualRevenueMillionUSD: 450.0,
			ActualPriceUSD:          15,
		},
	}
}
