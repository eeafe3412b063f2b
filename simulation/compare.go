package simulation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ComparisonRow is one deduplicated entry of the comparison view: the
// scalar columns of a stored result joined with its derived metrics.
// PolicyID is a display-only sequential integer assigned per view; it is
// not persisted.
type ComparisonRow struct {
	PolicyID           int       `json:"policyId"`
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Country            string    `json:"country"`
	PolicyType         string    `json:"policyType"`
	CarbonPrice        float64   `json:"carbonPrice"`
	Duration           int       `json:"duration"`
	AnnualRevenue      float64   `json:"annualRevenue"`
	CO2Covered         *float64  `json:"co2Covered"`
	RevenuePctGDP      *float64  `json:"revenuePctGDP"`
	SuccessProbability *float64  `json:"successProbability"`
	RiskLevel          *string   `json:"riskLevel"`
	Status             *string   `json:"status"`
}

func rowFromResult(res *SimulationResult) ComparisonRow {
	derived := Derive(res)
	row := ComparisonRow{
		ID:            res.ID,
		Timestamp:     res.Timestamp,
		Country:       res.Inputs.Country,
		PolicyType:    res.Inputs.PolicyType.DisplayName(),
		CarbonPrice:   res.Inputs.CarbonPriceUSD,
		Duration:      res.Inputs.DurationYears,
		AnnualRevenue: res.Predictions.AnnualRevenueMillionUSD,
		CO2Covered:    derived.CO2CoveredMillionTons,
		RevenuePctGDP: derived.RevenuePctGDP,
	}
	row.SuccessProbability = res.Success.SuccessProbability
	if res.Success.RiskLevel != nil {
		s := string(*res.Success.RiskLevel)
		row.RiskLevel = &s
	}
	row.Status = res.Success.Status
	return row
}

// BuildComparison produces the deduplicated, time-ordered comparison
// view: records are sorted by stored timestamp ascending, records with
// an identical (country, policyType, carbonPrice, duration) tuple
// collapse to the earliest one, and sequential PolicyIDs are assigned in
// that order. The view is recomputed on every read and never mutates the
// underlying store.
func BuildComparison(records []*SimulationResult) []ComparisonRow {
	ordered := make([]*SimulationResult, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	seen := make(map[string]bool)
	rows := make([]ComparisonRow, 0, len(ordered))
	for _, rec := range ordered {
		key := fmt.Sprintf("%s|%s|%v|%d",
			rec.Inputs.Country, rec.Inputs.PolicyType,
			rec.Inputs.CarbonPriceUSD, rec.Inputs.DurationYears)
		if seen[key] {
			continue
		}
		seen[key] = true
		row := rowFromResult(rec)
		row.PolicyID = len(rows) + 1
		rows = append(rows, row)
	}
	return rows
}

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// sortValue extracts one column from a row as either a string or a
// number. ok reports whether the value is present; absent values sort
// last in every direction.
type sortValue struct {
	str      string
	num      float64
	isString bool
	ok       bool
}

func numVal(f float64) sortValue { return sortValue{num: f, ok: true} }

func strVal(s string) sortValue { return sortValue{str: s, isString: true, ok: true} }

func optNum(f *float64) sortValue {
	if f == nil {
		return sortValue{}
	}
	return numVal(*f)
}

func optStr(s *string) sortValue {
	if s == nil {
		return sortValue{}
	}
	return strVal(*s)
}

var sortColumns = map[string]func(ComparisonRow) sortValue{
	"policyId":           func(r ComparisonRow) sortValue { return numVal(float64(r.PolicyID)) },
	"country":            func(r ComparisonRow) sortValue { return strVal(r.Country) },
	"policyType":         func(r ComparisonRow) sortValue { return strVal(r.PolicyType) },
	"carbonPrice":        func(r ComparisonRow) sortValue { return numVal(r.CarbonPrice) },
	"duration":           func(r ComparisonRow) sortValue { return numVal(float64(r.Duration)) },
	"annualRevenue":      func(r ComparisonRow) sortValue { return numVal(r.AnnualRevenue) },
	"co2Covered":         func(r ComparisonRow) sortValue { return optNum(r.CO2Covered) },
	"revenuePctGDP":      func(r ComparisonRow) sortValue { return optNum(r.RevenuePctGDP) },
	"successProbability": func(r ComparisonRow) sortValue { return optNum(r.SuccessProbability) },
	"riskLevel":          func(r ComparisonRow) sortValue { return optStr(r.RiskLevel) },
	"status":             func(r ComparisonRow) sortValue { return optStr(r.Status) },
	"timestamp":          func(r ComparisonRow) sortValue { return numVal(float64(r.Timestamp.UnixNano())) },
}

// SortFields returns the valid sort column names in a consistent order.
func SortFields() []string {
	fields := make([]string, 0, len(sortColumns))
	for f := range sortColumns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ParseSort parses a "field" or "field:order" sort expression. Order
// defaults to ascending.
func ParseSort(expr string) (field, order string, err error) {
	if strings.TrimSpace(expr) == "" {
		return "", "", errors.New("empty sort expression")
	}
	parts := strings.SplitN(expr, ":", 3)
	if len(parts) > 2 {
		return "", "", fmt.Errorf("invalid sort expression %q", expr)
	}
	field = strings.TrimSpace(parts[0])
	order = SortAsc
	if len(parts) == 2 {
		order = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	if order != SortAsc && order != SortDesc {
		return "", "", fmt.Errorf("invalid sort order %q (must be asc or desc)", order)
	}
	if _, ok := sortColumns[field]; !ok {
		return "", "", fmt.Errorf("invalid sort field %q (valid: %s)", field, strings.Join(SortFields(), ", "))
	}
	return field, order, nil
}

// SortRows returns a new slice sorted by the given column. String
// columns compare locale-aware, numeric columns numerically; rows with
// an absent value always sort last regardless of direction, and ties
// keep their prior relative order.
func SortRows(rows []ComparisonRow, field, order string) ([]ComparisonRow, error) {
	extract, ok := sortColumns[field]
	if !ok {
		return nil, fmt.Errorf("invalid sort field %q", field)
	}
	if order != SortAsc && order != SortDesc {
		return nil, fmt.Errorf("invalid sort order %q", order)
	}

	coll := collate.New(language.English, collate.Loose)

	sorted := make([]ComparisonRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := extract(sorted[i]), extract(sorted[j])
		if !a.ok {
			return false
		}
		if !b.ok {
			return true
		}
		var c int
		if a.isString && b.isString {
			c = coll.CompareString(a.str, b.str)
		} else {
			switch {
			case a.num < b.num:
				c = -1
			case a.num > b.num:
				c = 1
			}
		}
		if order == SortDesc {
			return c > 0
		}
		return c < 0
	})
	return sorted, nil
}
