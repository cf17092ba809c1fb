package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/modules/portfolio"
)

var (
	// ErrEmptyTable is returned for input without any data rows
	ErrEmptyTable = errors.New("table has no rows")
	// ErrNoValidRows is returned when every parse strategy filtered out all rows
	ErrNoValidRows = errors.New("no valid holdings found")
)

// Strategy names the parse attempt that produced a result
type Strategy string

const (
	StrategyHeader     Strategy = "header"
	StrategyPositional Strategy = "positional"
	StrategyDefaults   Strategy = "defaults"
)

// Table is decoded tabular input. Header is nil for headerless data.
type Table struct {
	Header []string
	Rows   [][]string
}

// Parsed is the output of a successful parse
type Parsed struct {
	Positions []portfolio.Position
	Strategy  Strategy
	Dropped   int
}

// Result is the output of Ingest. It always carries a usable position set.
type Result struct {
	Positions    []portfolio.Position `json:"positions"`
	Strategy     Strategy             `json:"strategy"`
	UsedDefaults bool                 `json:"used_defaults"`
	Dropped      int                  `json:"dropped"`
	Message      string               `json:"message,omitempty"`
}

// attempt is one parse strategy. ok is false when it produced nothing usable.
type attempt struct {
	strategy Strategy
	run      func(Table) (positions []portfolio.Position, dropped int, ok bool)
}

// Ingester converts spreadsheet tables into validated positions
type Ingester struct {
	newID func() string
	log   zerolog.Logger
}

// NewIngester creates a new ingester
func NewIngester(log zerolog.Logger) *Ingester {
	return &Ingester{
		newID: uuid.NewString,
		log:   log.With().Str("component", "ingest").Logger(),
	}
}

// Parse runs the header-mapped and positional strategies in order and returns the first
// non-empty result
func (in *Ingester) Parse(table Table) (Parsed, error) {
	if len(table.Rows) == 0 && len(table.Header) == 0 {
		return Parsed{}, ErrEmptyTable
	}

	attempts := []attempt{
		{StrategyHeader, in.parseWithHeader},
		{StrategyPositional, in.parsePositional},
	}

	totalDropped := 0
	for _, a := range attempts {
		positions, dropped, ok := a.run(table)
		totalDropped += dropped
		if ok {
			in.log.Debug().
				Str("strategy", string(a.strategy)).
				Int("positions", len(positions)).
				Int("dropped", dropped).
				Msg("Parsed holdings table")
			return Parsed{Positions: positions, Strategy: a.strategy, Dropped: dropped}, nil
		}
		in.log.Debug().Str("strategy", string(a.strategy)).Msg("Parse strategy produced no holdings")
	}

	return Parsed{Dropped: totalDropped}, ErrNoValidRows
}

// Ingest parses table and falls back to the default positions when nothing usable is found.
// It never returns an empty position set.
func (in *Ingester) Ingest(table Table) Result {
	parsed, err := in.Parse(table)
	if err != nil {
		in.log.Warn().Err(err).Msg("Using default portfolio")
		return defaultsResult(parsed.Dropped, err)
	}

	return Result{
		Positions: parsed.Positions,
		Strategy:  parsed.Strategy,
		Dropped:   parsed.Dropped,
	}
}

// IngestFile decodes a spreadsheet and ingests it. Decode failures fall back to the
// default positions with the error preserved in the message.
func (in *Ingester) IngestFile(filename string, r io.Reader) Result {
	table, err := ReadTable(filename, r)
	if err != nil {
		in.log.Warn().Err(err).Str("file", filename).Msg("Failed to read spreadsheet, using default portfolio")
		return defaultsResult(0, err)
	}
	return in.Ingest(table)
}

func defaultsResult(dropped int, cause error) Result {
	return Result{
		Positions:    portfolio.DefaultPositions(),
		Strategy:     StrategyDefaults,
		UsedDefaults: true,
		Dropped:      dropped,
		Message:      fmt.Sprintf("using default portfolio: %v", cause),
	}
}

func (in *Ingester) parseWithHeader(table Table) ([]portfolio.Position, int, bool) {
	if table.Header == nil {
		return nil, 0, false
	}
	mapping := headerMapping(table.Header)
	if !mapping.hasParticulars() {
		return nil, 0, false
	}
	return in.parseRows(table.Rows, mapping)
}

// parsePositional treats every row, including a detected header, as data
func (in *Ingester) parsePositional(table Table) ([]portfolio.Position, int, bool) {
	rows := table.Rows
	if table.Header != nil {
		rows = append([][]string{table.Header}, table.Rows...)
	}
	return in.parseRows(rows, positionalMapping())
}

func (in *Ingester) parseRows(rows [][]string, mapping columnMapping) ([]portfolio.Position, int, bool) {
	positions := make([]portfolio.Position, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		pos, reason := in.normalizeRow(mapping.apply(row))
		if reason != "" {
			if !isBlankRow(row) {
				dropped++
				in.log.Debug().Int("row", i).Str("reason", reason).Msg("Dropped row")
			}
			continue
		}
		positions = append(positions, pos)
	}

	return positions, dropped, len(positions) > 0
}

// labelTokens are particulars values that mark header, label or totals rows
var labelTokens = map[string]bool{
	"particulars": true,
	"no":          true,
	"total":       true,
	"grand total": true,
}

// normalizeRow converts a record into a position. A non-empty reason means the row is dropped.
func (in *Ingester) normalizeRow(rec record) (portfolio.Position, string) {
	particulars := strings.TrimSpace(rec[ColParticulars])
	switch {
	case particulars == "":
		return portfolio.Position{}, "empty particulars"
	case labelTokens[strings.ToLower(particulars)]:
		return portfolio.Position{}, "label row"
	case strings.Contains(strings.ToLower(particulars), "sector"):
		return portfolio.Position{}, "sector row"
	case domain.IsNumeric(particulars):
		return portfolio.Position{}, "numeric particulars"
	}

	purchasePrice := parseNumber(rec[ColPurchasePrice])
	quantity := parseNumber(rec[ColQty])
	if purchasePrice <= 0 {
		return portfolio.Position{}, "non-positive purchase price"
	}
	if quantity <= 0 {
		return portfolio.Position{}, "non-positive quantity"
	}

	cmp := parseNumber(rec[ColCMP])
	if cmp <= 0 {
		cmp = purchasePrice
	}

	exchange := domain.ParseExchange(rec[ColExchange])

	sector := strings.TrimSpace(rec[ColSector])
	if sector == "" {
		sector = portfolio.DefaultSector
	}

	symbol := strings.TrimSpace(rec[ColSymbol])
	if symbol == "" {
		symbol = ResolveSymbol(particulars, exchange)
	}
	if !domain.IsWellFormedSymbol(symbol) {
		return portfolio.Position{}, "invalid symbol"
	}

	pos := portfolio.Position{
		ID:            in.newID(),
		Symbol:        symbol,
		Name:          particulars,
		Exchange:      exchange,
		Sector:        sector,
		PurchasePrice: purchasePrice,
		Quantity:      quantity,
		CurrentPrice:  cmp,
		PriceSource:   portfolio.PriceSourceImport,
	}
	if pe := parseNumber(rec[ColPERatio]); pe > 0 {
		pos.PERatio = &pe
	}
	if earnings := strings.TrimSpace(rec[ColLatestEarnings]); earnings != "" {
		pos.LatestEarnings = &earnings
	}

	pos, err := portfolio.RecalculateChecked(pos)
	if err != nil {
		return portfolio.Position{}, "non-finite values"
	}

	// Sheet totals are diagnostic only; derived values always come from price and quantity
	sheetInvestment := parseNumber(rec[ColInvestment])
	sheetPresentValue := parseNumber(rec[ColPresentValue])
	if drifted(sheetInvestment, pos.Investment) || drifted(sheetPresentValue, pos.PresentValue) {
		in.log.Debug().
			Str("symbol", symbol).
			Float64("sheet_investment", sheetInvestment).
			Float64("investment", pos.Investment).
			Float64("sheet_present_value", sheetPresentValue).
			Float64("present_value", pos.PresentValue).
			Msg("Spreadsheet totals differ from recomputed values")
	}

	return pos, ""
}

var numberCleaner = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "", "INR", "", "%", "", " ", "")

// parseNumber parses a spreadsheet cell permissively; anything unparseable is 0
func parseNumber(raw string) float64 {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if negative {
		return -v
	}
	return v
}

// drifted reports a relative difference above 1%. A blank sheet value never drifts.
func drifted(sheet, computed float64) bool {
	if sheet == 0 {
		return false
	}
	if computed == 0 {
		return true
	}
	return math.Abs(sheet-computed)/math.Abs(computed) > 0.01
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
