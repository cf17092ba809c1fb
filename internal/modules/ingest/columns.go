package ingest

import (
	"regexp"
	"strings"
)

// Column identifies a canonical holdings column
type Column int

const (
	ColNo Column = iota
	ColParticulars
	ColPurchasePrice
	ColQty
	ColInvestment
	ColPortfolioPct
	ColExchange
	ColCMP
	ColPresentValue
	ColGainLoss
	ColPERatio
	ColLatestEarnings
	ColSector
	ColSymbol

	columnCount
)

// positionalColumns is the number of leading columns mapped by index in headerless tables.
// Headerless sheets carry no serial number column, so index 0 is Particulars.
const positionalColumns = 13

var canonicalNames = [columnCount]string{
	"No",
	"Particulars",
	"Purchase Price",
	"Qty",
	"Investment",
	"Portfolio (%)",
	"NSE/BSE",
	"CMP",
	"Present Value",
	"Gain/Loss",
	"P/E Ratio",
	"Latest Earnings",
	"Sector",
	"Symbol",
}

// String returns the canonical header name
func (c Column) String() string {
	if c < 0 || c >= columnCount {
		return "unknown"
	}
	return canonicalNames[c]
}

// headerAliases maps lower-cased header spellings to columns
var headerAliases = buildHeaderAliases()

func buildHeaderAliases() map[string]Column {
	m := make(map[string]Column, int(columnCount)*2)
	for i, name := range canonicalNames {
		m[strings.ToLower(name)] = Column(i)
	}
	extra := map[string]Column{
		"s.no":          ColNo,
		"sr. no.":       ColNo,
		"company":       ColParticulars,
		"company name":  ColParticulars,
		"stock":         ColParticulars,
		"buy price":     ColPurchasePrice,
		"avg price":     ColPurchasePrice,
		"quantity":      ColQty,
		"portfolio %":   ColPortfolioPct,
		"exchange":      ColExchange,
		"current price": ColCMP,
		"ltp":           ColCMP,
		"p/e":           ColPERatio,
		"pe ratio":      ColPERatio,
		"earnings":      ColLatestEarnings,
		"ticker":        ColSymbol,
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

var placeholderHeader = regexp.MustCompile(`(?i)^(__empty(_\d+)?|unnamed: ?\d+|column ?\d+|field\d+)$`)

// isPlaceholderHeader reports whether a header cell is an anonymous column name emitted by
// header detection rather than a real label
func isPlaceholderHeader(h string) bool {
	h = strings.TrimSpace(h)
	return h == "" || placeholderHeader.MatchString(h)
}

// lookupHeader returns the canonical column for a real header label
func lookupHeader(h string) (Column, bool) {
	c, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
	return c, ok
}

// columnMapping maps source column indexes to canonical columns
type columnMapping map[int]Column

// headerMapping builds a mapping from a header row. Real labels map by name; placeholder
// labels map positionally, the Nth placeholder to the Nth canonical column. Other labels
// are left unmapped.
func headerMapping(header []string) columnMapping {
	mapping := make(columnMapping)
	placeholders := 0
	for i, h := range header {
		if c, ok := lookupHeader(h); ok {
			mapping[i] = c
			continue
		}
		if isPlaceholderHeader(h) {
			if placeholders < int(columnCount) {
				mapping[i] = Column(placeholders)
			}
			placeholders++
		}
	}
	return mapping
}

// positionalMapping maps the first 13 columns by fixed index, Particulars through Symbol
func positionalMapping() columnMapping {
	mapping := make(columnMapping, positionalColumns)
	for i := 0; i < positionalColumns; i++ {
		mapping[i] = ColParticulars + Column(i)
	}
	return mapping
}

// record is one row keyed by canonical column
type record map[Column]string

// apply keys a row by canonical column. When two source columns map to the same
// canonical column the leftmost non-empty value wins.
func (m columnMapping) apply(row []string) record {
	rec := make(record, len(m))
	for idx, cell := range row {
		col, ok := m[idx]
		if !ok {
			continue
		}
		if existing, seen := rec[col]; seen && strings.TrimSpace(existing) != "" {
			continue
		}
		rec[col] = cell
	}
	return rec
}

// hasParticulars reports whether the mapping can produce a holding name
func (m columnMapping) hasParticulars() bool {
	for _, c := range m {
		if c == ColParticulars {
			return true
		}
	}
	return false
}
