package simulation

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
)

// The export formatters are pure functions of an ordered row list.
// Given the same rows in the same order they produce identical bytes;
// file naming and download triggering are the caller's concern.

// missingCell is the literal token rendered for an unknown value. An
// unknown metric is data absence, not an error.
const missingCell = "N/A"

// csvBOM is the UTF-8 byte-order mark prepended for spreadsheet
// compatibility.
const csvBOM = "\ufeff"

var exportHeaders = []string{
	"Country",
	"Policy Type",
	"Carbon Price (USD/ton CO2)",
	"Duration (Years)",
	"Annual Revenue (Million USD)",
	"Policy Success (%)",
	"Risk Level",
	"CO2 Covered (Million tons/year)",
	"Revenue as % of GDP",
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fmtOptFloat(v *float64) string {
	if v == nil {
		return missingCell
	}
	return fmtFloat(*v)
}

// exportCells renders the nine column values for one row. Both the CSV
// and the print paths go through here so their table contents stay
// byte-identical.
func exportCells(row ComparisonRow) []string {
	success := missingCell
	if row.SuccessProbability != nil {
		success = fmtFloat(*row.SuccessProbability * 100)
	}
	risk := missingCell
	if row.Status != nil {
		risk = *row.Status
	} else if row.RiskLevel != nil {
		risk = *row.RiskLevel
	}
	return []string{
		row.Country,
		row.PolicyType,
		fmtFloat(row.CarbonPrice),
		strconv.Itoa(row.Duration),
		fmtFloat(row.AnnualRevenue),
		success,
		risk,
		fmtOptFloat(row.CO2Covered),
		fmtOptFloat(row.RevenuePctGDP),
	}
}

// csvCell quotes a value only when it contains a comma, quote, or
// newline; embedded quotes are doubled.
func csvCell(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// ExportCSV renders rows as a UTF-8 CSV document with a byte-order mark
// and the fixed nine-column layout.
func ExportCSV(rows []ComparisonRow) []byte {
	var b strings.Builder
	b.WriteString(csvBOM)

	cells := make([]string, len(exportHeaders))
	for i, h := range exportHeaders {
		cells[i] = csvCell(h)
	}
	b.WriteString(strings.Join(cells, ","))

	for _, row := range rows {
		b.WriteString("\n")
		for i, v := range exportCells(row) {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(csvCell(v))
		}
	}
	return []byte(b.String())
}

// ExportJSON renders rows pretty-printed with 2-space indentation. No
// rounding is applied beyond the source values' own precision, so a
// parse of the output reproduces the input list exactly.
func ExportJSON(rows []ComparisonRow) ([]byte, error) {
	if rows == nil {
		rows = []ComparisonRow{}
	}
	return json.MarshalIndent(rows, "", "  ")
}

// ExportTable renders rows as a print-ready HTML table. Cell contents
// are produced by the same formatting path as the CSV export; only the
// wrapping markup differs.
func ExportTable(rows []ComparisonRow) []byte {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Policy Comparison</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
table { width: 100%; border-collapse: collapse; }
th, td { border: 1px solid #333; padding: 8px; text-align: left; font-size: 10px; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>Policy Comparison</h1>
<table>
<thead>
<tr>`)
	for _, h := range exportHeaders {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString(`</tr>
</thead>
<tbody>
`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, v := range exportCells(row) {
			b.WriteString("<td>" + html.EscapeString(v) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString(`</tbody>
</table>
</body>
</html>
`)
	return []byte(b.String())
}

// ExportFilename builds the download name for an export, e.g.
// ecoimpact_policy_comparison_20250131.csv. The print path has no file.
func ExportFilename(ext string, now time.Time) string {
	return fmt.Sprintf("ecoimpact_policy_comparison_%s.%s", now.Format("20060102"), ext)
}
