package simulation

// ComputeCO2Covered converts annual revenue and carbon price into the
// implied covered tonnage, in million tons per year:
//
//	coveredTons = (revenue * 1e6) / price, returned / 1e6.
//
// This is a modeling shortcut (revenue divided by price implies the
// tonnage the price was collected on), not a separate prediction.
// Returns nil unless both inputs are strictly positive.
func ComputeCO2Covered(annualRevenueMillionUSD, carbonPriceUSD float64) *float64 {
	if annualRevenueMillionUSD <= 0 || carbonPriceUSD <= 0 {
		return nil
	}
	revenueUSD := annualRevenueMillionUSD * 1_000_000
	coveredTons := revenueUSD / carbonPriceUSD
	covered := coveredTons / 1_000_000
	return &covered
}

// ComputeRevenuePctGDP returns annual revenue as a percentage of GDP.
// Returns nil unless gdpUSD is present and positive. The raw value is
// returned even when implausibly large; clamping would corrupt
// comparisons, so flagging is left to callers.
func ComputeRevenuePctGDP(annualRevenueMillionUSD float64, gdpUSD *float64) *float64 {
	if gdpUSD == nil || *gdpUSD <= 0 {
		return nil
	}
	revenueUSD := annualRevenueMillionUSD * 1_000_000
	pct := (revenueUSD / *gdpUSD) * 100
	return &pct
}

// Derive computes the secondary metrics for a result. Metrics are
// recomputed on every read and never cached on the record.
func Derive(res *SimulationResult) DerivedMetrics {
	m := DerivedMetrics{
		CO2CoveredMillionTons: ComputeCO2Covered(
			res.Predictions.AnnualRevenueMillionUSD,
			res.Inputs.CarbonPriceUSD,
		),
		RevenuePctGDP: ComputeRevenuePctGDP(
			res.Predictions.AnnualRevenueMillionUSD,
			res.CountryContext.GDPForShare(),
		),
	}
	if m.RevenuePctGDP != nil && *m.RevenuePctGDP >= 100 {
		m.RevenueShareImplausible = true
	}
	return m
}
