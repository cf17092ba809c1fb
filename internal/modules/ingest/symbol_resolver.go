package ingest

import (
	"regexp"
	"strings"

	"github.com/aristath/holdings/internal/domain"
)

const (
	unknownSymbol    = "UNKNOWN"
	maxGeneratedSize = 10
)

// knownCompany maps the names a well-known listing is commonly written as to its ticker
type knownCompany struct {
	ticker string
	names  []string
}

// knownCompanies is matched case-insensitively against the whole company name.
// Earlier entries win when a name appears twice.
var knownCompanies = []knownCompany{
	{"RELIANCE", []string{"Reliance Industries", "Reliance Industries Ltd", "Reliance Industries Limited", "Reliance"}},
	{"TCS", []string{"Tata Consultancy Services", "Tata Consultancy Services Ltd", "Tata Consultancy Services Limited", "TCS"}},
	{"HDFCBANK", []string{"HDFC Bank", "HDFC Bank Ltd", "HDFC Bank Limited"}},
	{"INFY", []string{"Infosys", "Infosys Ltd", "Infosys Limited"}},
	{"ICICIBANK", []string{"ICICI Bank", "ICICI Bank Ltd", "ICICI Bank Limited"}},
	{"HINDUNILVR", []string{"Hindustan Unilever", "Hindustan Unilever Ltd", "Hindustan Unilever Limited", "HUL"}},
	{"ITC", []string{"ITC", "ITC Ltd", "ITC Limited"}},
	{"SBIN", []string{"State Bank of India", "SBI"}},
	{"BHARTIARTL", []string{"Bharti Airtel", "Bharti Airtel Ltd", "Bharti Airtel Limited", "Airtel"}},
	{"KOTAKBANK", []string{"Kotak Mahindra Bank", "Kotak Mahindra Bank Ltd", "Kotak Mahindra Bank Limited"}},
	{"LT", []string{"Larsen & Toubro", "Larsen & Toubro Ltd", "Larsen and Toubro", "L&T"}},
	{"AXISBANK", []string{"Axis Bank", "Axis Bank Ltd", "Axis Bank Limited"}},
	{"ASIANPAINT", []string{"Asian Paints", "Asian Paints Ltd", "Asian Paints Limited"}},
	{"MARUTI", []string{"Maruti Suzuki", "Maruti Suzuki India", "Maruti Suzuki India Ltd", "Maruti Suzuki India Limited"}},
	{"BAJFINANCE", []string{"Bajaj Finance", "Bajaj Finance Ltd", "Bajaj Finance Limited"}},
	{"BAJAJ-AUTO", []string{"Bajaj Auto", "Bajaj Auto Ltd", "Bajaj Auto Limited"}},
	{"WIPRO", []string{"Wipro", "Wipro Ltd", "Wipro Limited"}},
	{"HCLTECH", []string{"HCL Technologies", "HCL Technologies Ltd", "HCL Technologies Limited", "HCL Tech"}},
	{"TECHM", []string{"Tech Mahindra", "Tech Mahindra Ltd", "Tech Mahindra Limited"}},
	{"SUNPHARMA", []string{"Sun Pharmaceutical Industries", "Sun Pharmaceutical Industries Ltd", "Sun Pharma"}},
	{"TATAMOTORS", []string{"Tata Motors", "Tata Motors Ltd", "Tata Motors Limited"}},
	{"TATASTEEL", []string{"Tata Steel", "Tata Steel Ltd", "Tata Steel Limited"}},
	{"JSWSTEEL", []string{"JSW Steel", "JSW Steel Ltd", "JSW Steel Limited"}},
	{"TITAN", []string{"Titan Company", "Titan Company Ltd", "Titan Company Limited", "Titan"}},
	{"ULTRACEMCO", []string{"UltraTech Cement", "UltraTech Cement Ltd", "UltraTech Cement Limited"}},
	{"NESTLEIND", []string{"Nestle India", "Nestle India Ltd", "Nestle India Limited"}},
	{"POWERGRID", []string{"Power Grid Corporation of India", "Power Grid Corporation of India Ltd", "Power Grid"}},
	{"NTPC", []string{"NTPC", "NTPC Ltd", "NTPC Limited"}},
	{"ADANIENT", []string{"Adani Enterprises", "Adani Enterprises Ltd", "Adani Enterprises Limited"}},
	{"ONGC", []string{"Oil and Natural Gas Corporation", "Oil & Natural Gas Corporation", "ONGC"}},
}

var knownTickers = buildKnownTickers()

func buildKnownTickers() map[string]string {
	m := make(map[string]string)
	for _, c := range knownCompanies {
		for _, name := range c.names {
			key := strings.ToLower(name)
			if _, exists := m[key]; !exists {
				m[key] = c.ticker
			}
		}
	}
	return m
}

var (
	andCoSuffix       = regexp.MustCompile(`(?i)\s*&\s*co\b\.?`)
	corporateSuffixes = regexp.MustCompile(`(?i)\b(limited|ltd|inc|corporation|corp|company)\b\.?`)
	parenthesized     = regexp.MustCompile(`\([^)]*\)`)
	separators        = regexp.MustCompile(`[-&,.:; ]`)
	whitespace        = regexp.MustCompile(`\s+`)
	nonAlphanumeric   = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ResolveSymbol derives a ticker from a company name.
// It never fails: unusable names resolve to a placeholder symbol.
func ResolveSymbol(companyName string, exchange domain.Exchange) string {
	name := strings.TrimSpace(companyName)
	if name == "" || domain.IsNumeric(name) {
		return unknownSymbol + domain.ExchangeNSE.YahooSuffix()
	}

	if ticker, ok := knownTickers[strings.ToLower(name)]; ok {
		return ticker + exchange.YahooSuffix()
	}

	return generateSymbol(name) + exchange.YahooSuffix()
}

// generateSymbol transliterates a company name into a bare ticker of at most 10 characters
func generateSymbol(name string) string {
	s := andCoSuffix.ReplaceAllString(name, " ")
	s = corporateSuffixes.ReplaceAllString(s, " ")
	s = parenthesized.ReplaceAllString(s, " ")
	s = separators.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	s = strings.ToUpper(nonAlphanumeric.ReplaceAllString(s, ""))

	if len(s) > maxGeneratedSize {
		s = s[:maxGeneratedSize]
	}
	if len(s) < 2 {
		return unknownSymbol
	}
	return s
}
