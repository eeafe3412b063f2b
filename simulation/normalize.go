package simulation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// The upstream prediction service does not version its responses, so the
// normalizer recognizes shapes structurally: each known schema is tried
// in a fixed priority order and the first match wins. Nothing is guessed;
// a payload matching no schema is ErrUnknownShape.
//
// Known shapes, in priority order:
//  1. predict/all: a yearly_predictions array of per-year revenue rows.
//  2. projections: an array of cumulative revenue / abolishment-risk rows.
//  3. legacy: a flat predictions object with an annual figure.

type rawYearly struct {
	Year              int      `json:"year"`
	RevenueMillionUSD *float64 `json:"revenue_million_usd"`
	Coverage          *float64 `json:"coverage"`
}

type rawProjection struct {
	Year                     int      `json:"year"`
	CumulativeRevenueMillion *float64 `json:"cumulative_revenue_million"`
	CO2ReducedCumulativeMt   *float64 `json:"co2_reduced_cumulative_mt"`
	AbolishmentRiskPercent   *float64 `json:"abolishment_risk_percent"`
	RiskCategory             *string  `json:"risk_category"`
}

type rawConfidence struct {
	RevenueLow  *float64 `json:"revenueLow"`
	RevenueHigh *float64 `json:"revenueHigh"`
}

type rawPredictions struct {
	AnnualRevenueMillionUSD *float64       `json:"annualRevenueMillionUSD"`
	EmissionCoveragePct     *float64       `json:"emissionCoveragePct"`
	Confidence              *rawConfidence `json:"confidence"`
}

type rawInputs struct {
	Country          *string  `json:"country"`
	PolicyType       *string  `json:"policy_type"`
	PolicyTypeCamel  *string  `json:"policyType"`
	CarbonPrice      *float64 `json:"carbon_price"`
	CarbonPriceCamel *float64 `json:"carbonPriceUSD"`
	Duration         *int     `json:"duration"`
	DurationCamel    *int     `json:"durationYears"`
}

type rawResponse struct {
	YearlyPredictions json.RawMessage `json:"yearly_predictions"`
	Projections       json.RawMessage `json:"projections"`
	Predictions       json.RawMessage `json:"predictions"`

	Inputs             *rawInputs `json:"inputs"`
	SuccessProbability *float64   `json:"success_probability"`
	RiskLevel          *string    `json:"risk_level"`
	Status             *string    `json:"status"`
	AbolishmentRiskPct *float64   `json:"abolishment_risk_percent"`

	CountryContextSnake map[string]json.RawMessage `json:"country_context"`
	CountryContextCamel map[string]json.RawMessage `json:"countryContext"`

	SimilarPolicies      []SimilarPolicy `json:"similarPolicies"`
	SimilarPoliciesSnake []SimilarPolicy `json:"similar_policies"`
}

// policyTypeSynonyms maps canonicalized upstream spellings to the two
// canonical tokens. Keys are lowercased with spaces, underscores, and
// hyphens removed.
var policyTypeSynonyms = map[string]PolicyType{
	"carbontax":              PolicyCarbonTax,
	"tax":                    PolicyCarbonTax,
	"ets":                    PolicyETS,
	"emissionstrading":       PolicyETS,
	"emissionstradingsystem": PolicyETS,
	"emissiontradingsystem":  PolicyETS,
	"emissionstradingscheme": PolicyETS,
	"capandtrade":            PolicyETS,
}

// NormalizePolicyType resolves an upstream policy-type spelling to a
// canonical token. Matching is case-insensitive and ignores spacing.
// Unrecognized values are a validation error, never a silent default.
func NormalizePolicyType(s string) (PolicyType, error) {
	key := strings.ToLower(s)
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	if p, ok := policyTypeSynonyms[key]; ok {
		return p, nil
	}
	return "", &ValidationError{Fields: map[string]string{
		"policyType": fmt.Sprintf("unrecognized policy type %q", s),
	}}
}

// hasValue reports whether a raw field carried an actual value. An
// explicit JSON null must not select a shape branch.
func hasValue(raw json.RawMessage) bool {
	return raw != nil && string(raw) != "null"
}

// Normalize maps one raw upstream response onto the canonical
// SimulationResult. submitted carries the user's inputs, which are echoed
// into the result when the upstream echo is absent or inconsistent; a
// consistent upstream echo is preferred. Callers must not pass partial
// data from a failed upstream call here; that path goes through the mock
// generator instead.
func Normalize(payload []byte, submitted PolicyInputs) (*SimulationResult, error) {
	var raw rawResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}

	res := &SimulationResult{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    SourceModel,
	}

	switch {
	case hasValue(raw.YearlyPredictions):
		if err := normalizeYearly(&raw, res); err != nil {
			return nil, err
		}
	case hasValue(raw.Projections):
		if err := normalizeProjections(&raw, res); err != nil {
			return nil, err
		}
	case hasValue(raw.Predictions):
		if err := normalizeLegacy(&raw, res); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownShape
	}

	res.Inputs = mergeInputs(raw.Inputs, submitted)
	res.CountryContext = normalizeCountryContext(raw.CountryContextSnake, raw.CountryContextCamel)

	if res.SimilarPolicies == nil {
		res.SimilarPolicies = raw.SimilarPolicies
	}
	if res.SimilarPolicies == nil {
		res.SimilarPolicies = raw.SimilarPoliciesSnake
	}
	if res.SimilarPolicies == nil {
		res.SimilarPolicies = []SimilarPolicy{}
	}
	if res.YearlyPredictions == nil {
		res.YearlyPredictions = []YearlyPrediction{}
	}
	return res, nil
}

func normalizeYearly(raw *rawResponse, res *SimulationResult) error {
	var years []rawYearly
	if err := json.Unmarshal(raw.YearlyPredictions, &years); err != nil {
		return fmt.Errorf("%w: yearly_predictions: %v", ErrUnknownShape, err)
	}

	yearly := make([]YearlyPrediction, 0, len(years))
	sum := 0.0
	for _, y := range years {
		rev := 0.0
		if y.RevenueMillionUSD != nil {
			rev = *y.RevenueMillionUSD
		}
		sum += rev
		yearly = append(yearly, YearlyPrediction{
			Year:              y.Year,
			RevenueMillionUSD: rev,
			Coverage:          y.Coverage,
		})
	}

	// Canonical annual revenue is the arithmetic mean across the horizon;
	// an empty horizon means no data, which stays zero.
	annual := 0.0
	if len(yearly) > 0 {
		annual = sum / float64(len(yearly))
	}

	res.Predictions = Predictions{
		AnnualRevenueMillionUSD: annual,
		Confidence:              defaultConfidence(annual),
	}
	if len(yearly) > 0 && yearly[0].Coverage != nil {
		cov := *yearly[0].Coverage
		res.Predictions.EmissionCoveragePct = &cov
	}
	res.YearlyPredictions = yearly
	res.Success = SuccessAssessment{
		SuccessProbability: raw.SuccessProbability,
		RiskLevel:          parseRiskLevel(raw.RiskLevel),
		Status:             raw.Status,
	}
	return nil
}

func normalizeProjections(raw *rawResponse, res *SimulationResult) error {
	var projs []rawProjection
	if err := json.Unmarshal(raw.Projections, &projs); err != nil {
		return fmt.Errorf("%w: projections: %v", ErrUnknownShape, err)
	}

	// Projection revenue is cumulative; convert to per-year increments so
	// the mean is comparable with the yearly shape.
	yearly := make([]YearlyPrediction, 0, len(projs))
	prev := 0.0
	for _, p := range projs {
		cum := prev
		if p.CumulativeRevenueMillion != nil {
			cum = *p.CumulativeRevenueMillion
		}
		yearly = append(yearly, YearlyPrediction{
			Year:              p.Year,
			RevenueMillionUSD: cum - prev,
		})
		prev = cum
	}

	annual := 0.0
	if len(yearly) > 0 {
		annual = prev / float64(len(yearly))
	}

	res.Predictions = Predictions{
		AnnualRevenueMillionUSD: annual,
		Confidence:              defaultConfidence(annual),
	}
	res.YearlyPredictions = yearly

	// Success is read off the final projected year: survival probability
	// is the complement of the abolishment risk.
	risk := raw.AbolishmentRiskPct
	var category *string
	if len(projs) > 0 {
		last := projs[len(projs)-1]
		if last.AbolishmentRiskPercent != nil {
			risk = last.AbolishmentRiskPercent
		}
		category = last.RiskCategory
	}
	var prob *float64
	if risk != nil {
		p := (100 - *risk) / 100
		prob = &p
	}
	res.Success = SuccessAssessment{
		SuccessProbability: prob,
		RiskLevel:          parseRiskLevel(category),
		Status:             category,
	}
	return nil
}

func normalizeLegacy(raw *rawResponse, res *SimulationResult) error {
	var preds rawPredictions
	if err := json.Unmarshal(raw.Predictions, &preds); err != nil {
		return fmt.Errorf("%w: predictions: %v", ErrUnknownShape, err)
	}

	annual := 0.0
	if preds.AnnualRevenueMillionUSD != nil {
		annual = *preds.AnnualRevenueMillionUSD
	}

	conf := defaultConfidence(annual)
	if preds.Confidence != nil && preds.Confidence.RevenueLow != nil && preds.Confidence.RevenueHigh != nil {
		conf = &Confidence{
			RevenueLow:  *preds.Confidence.RevenueLow,
			RevenueHigh: *preds.Confidence.RevenueHigh,
		}
	}

	res.Predictions = Predictions{
		AnnualRevenueMillionUSD: annual,
		EmissionCoveragePct:     preds.EmissionCoveragePct,
		Confidence:              conf,
	}
	res.Success = SuccessAssessment{
		SuccessProbability: raw.SuccessProbability,
		RiskLevel:          parseRiskLevel(raw.RiskLevel),
		Status:             raw.Status,
	}
	return nil
}

// defaultConfidence is the fixed 0.8x/1.2x band applied when the
// upstream service supplies no explicit bounds. It is a design
// convention, not a statistical estimate.
func defaultConfidence(annual float64) *Confidence {
	return &Confidence{
		RevenueLow:  annual * 0.8,
		RevenueHigh: annual * 1.2,
	}
}

func parseRiskLevel(s *string) *RiskLevel {
	if s == nil {
		return nil
	}
	switch RiskLevel(strings.ToLower(strings.TrimSpace(*s))) {
	case RiskLow:
		r := RiskLow
		return &r
	case RiskMedium:
		r := RiskMedium
		return &r
	case RiskHigh:
		r := RiskHigh
		return &r
	}
	return nil
}

// mergeInputs prefers a consistent upstream echo of the submitted inputs
// and falls back to the submitted values field by field.
func mergeInputs(echo *rawInputs, submitted PolicyInputs) PolicyInputs {
	out := submitted
	if echo == nil {
		return out
	}
	if echo.Country != nil && strings.TrimSpace(*echo.Country) != "" {
		out.Country = *echo.Country
	}
	echoType := echo.PolicyType
	if echoType == nil {
		echoType = echo.PolicyTypeCamel
	}
	if echoType != nil {
		if p, err := NormalizePolicyType(*echoType); err == nil {
			out.PolicyType = p
		}
	}
	price := echo.CarbonPrice
	if price == nil {
		price = echo.CarbonPriceCamel
	}
	if price != nil && *price > 0 {
		out.CarbonPriceUSD = *price
	}
	dur := echo.Duration
	if dur == nil {
		dur = echo.DurationCamel
	}
	if dur != nil && *dur > 0 {
		out.DurationYears = *dur
	}
	return out
}

// countryContextNames is the fixed renaming table for country-context
// fields; upstream integrations disagree on naming. A field absent under
// all known names stays nil.
var countryContextNames = map[string][]string{
	"population":              {"population"},
	"gdpUSD":                  {"gdpUSD", "gdp_usd", "gdp"},
	"gdpPPP":                  {"gdpPPP", "gdp_ppp"},
	"annualCO2Tons":           {"annualCO2Tons", "annual_co2_tons", "co2_tons"},
	"fossilFuelDependencyPct": {"fossilFuelDependencyPct", "fossil_fuel_dependency_pct"},
	"energyMixKwhPerCapita":   {"energyMixKwhPerCapita", "energy_mix_kwh_per_capita"},
	"region":                  {"region"},
	"incomeGroup":             {"incomeGroup", "income_group"},
}

func normalizeCountryContext(snake, camel map[string]json.RawMessage) CountryContext {
	fields := snake
	if fields == nil {
		fields = camel
	}
	var ctx CountryContext
	if fields == nil {
		return ctx
	}

	lookup := func(canonical string) json.RawMessage {
		for _, name := range countryContextNames[canonical] {
			if v, ok := fields[name]; ok && string(v) != "null" {
				return v
			}
		}
		return nil
	}

	ctx.Population = decodeInt(lookup("population"))
	ctx.GDPUSD = decodeFloat(lookup("gdpUSD"))
	ctx.GDPPPP = decodeFloat(lookup("gdpPPP"))
	ctx.AnnualCO2Tons = decodeFloat(lookup("annualCO2Tons"))
	ctx.FossilFuelDependencyPct = decodeFloat(lookup("fossilFuelDependencyPct"))
	ctx.Region = decodeString(lookup("region"))
	ctx.IncomeGroup = decodeString(lookup("incomeGroup"))

	if v := lookup("energyMixKwhPerCapita"); v != nil {
		var mix map[string]float64
		if err := json.Unmarshal(v, &mix); err == nil {
			ctx.EnergyMixKwhPerCapita = mix
		}
	}
	return ctx
}

func decodeFloat(v json.RawMessage) *float64 {
	if v == nil {
		return nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return nil
	}
	return &f
}

func decodeInt(v json.RawMessage) *int64 {
	if v == nil {
		return nil
	}
	var n int64
	if err := json.Unmarshal(v, &n); err != nil {
		// Some integrations send population as a float.
		if f := decodeFloat(v); f != nil {
			n = int64(*f)
			return &n
		}
		return nil
	}
	return &n
}

func decodeString(v json.RawMessage) *string {
	if v == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}
