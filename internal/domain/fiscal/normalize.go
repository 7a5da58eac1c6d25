package fiscal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeNCM strips everything that is not a digit from an NCM code,
// so "8471.30.19" and "84713019" compare equal.
func NormalizeNCM(ncm string) string {
	var b strings.Builder
	for _, r := range ncm {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCode trims and upper-cases a table code such as a regime,
// CFOP or UF cell.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseDecimalBR parses a numeric cell as written in the source tables:
// "4,50%", "0,12", "1.234,56" or plain "0.12". Returns ok=false for an
// empty or unparseable cell.
func ParseDecimalBR(value string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Decimal{}, false
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if strings.Contains(s, ",") {
		// pt-BR notation: dots are thousand separators
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseRateBR parses a rate cell. Values above 1 are percentages
// ("17" or "4,50%" mean 0.17 and 0.045); values at or below 1 are
// already fractions.
func ParseRateBR(value string) (decimal.Decimal, bool) {
	d, ok := ParseDecimalBR(value)
	if !ok {
		return decimal.Decimal{}, false
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return d.Div(decimal.NewFromInt(100)), true
	}
	return d, true
}

// ParseSN interprets an "S"/"N" cell. Returns nil when the cell is
// empty, so callers can distinguish "not informed" from "no".
func ParseSN(value string) *bool {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return nil
	}
	v := s == "S"
	return &v
}
