package fiscal

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NCMEntry is a row of ncm_master.csv or ncm_excecoes.csv. Exception
// rows may carry rate and cClasTrib overrides plus the legal basis for
// them.
type NCMEntry struct {
	NCM               string
	Category          string
	Description       string
	RateOverride      *decimal.Decimal
	ClassTribOverride string
	LegalBasis        string
	ZFMBenefit        bool
	ValidFrom         *time.Time
	ValidTo           *time.Time
}

// ValidAt reports whether the row's validity window covers the date.
// Open ends always match.
func (e NCMEntry) ValidAt(date time.Time) bool {
	if e.ValidFrom != nil && date.Before(*e.ValidFrom) {
		return false
	}
	if e.ValidTo != nil && date.After(*e.ValidTo) {
		return false
	}
	return true
}

// RateEntry is a row of ibs_aliquotas.csv or cbs_aliquotas.csv, keyed
// by rate kind ("padrao", "reduzida", ...).
type RateEntry struct {
	Kind string
	Rate decimal.Decimal
}

// TransitionEntry is a row of transicao_ibs.csv or transicao_cbs.csv:
// the effective rate for a calendar year of the LC 214/2025 phase-in.
type TransitionEntry struct {
	Year int
	Rate decimal.Decimal
}

// ClassTribRule is a row of cclastrib.csv. Empty selector cells are
// wildcards.
type ClassTribRule struct {
	Code          string
	Description   string
	Regime        string
	CFOP          string
	UFEmitter     string
	UFDestination string
	CSTICMS       string
	LegalBasis    string
}

// Specificity counts the non-wildcard selector cells. Higher wins.
func (r ClassTribRule) Specificity() int {
	n := 0
	for _, f := range []string{r.Regime, r.CFOP, r.UFEmitter, r.UFDestination, r.CSTICMS} {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

func (r ClassTribRule) matches(op Operation) bool {
	match := func(cell, value string) bool {
		cell = NormalizeCode(cell)
		return cell == "" || cell == value
	}
	return match(r.Regime, op.Regime) &&
		match(r.CFOP, op.CFOP) &&
		match(r.UFEmitter, op.UFEmitter) &&
		match(r.UFDestination, op.UFDestination) &&
		match(r.CSTICMS, op.CSTICMS)
}

// CSTMapEntry is a row of cst_ibs_cbs_map.csv, mapping an operational
// cClasTrib code to the NF-e CST and cClassTrib tag values.
type CSTMapEntry struct {
	ClassTribCode string
	CST           string
	CClassTrib    string
	Description   string
}

// AnnexRow is one row of an extracted annex model table, keyed by
// header name.
type AnnexRow map[string]string

// RuleTables is an immutable snapshot of every loaded fiscal table.
// Loaders build a fresh snapshot and swap it in; the engine never
// mutates one.
type RuleTables struct {
	BaseDir  string
	LoadedAt time.Time

	NCMMaster     []NCMEntry
	NCMExceptions []NCMEntry
	IBSRates      []RateEntry
	CBSRates      []RateEntry
	IBSTransition []TransitionEntry
	CBSTransition []TransitionEntry
	ClassTrib     []ClassTribRule
	CSTMap        []CSTMapEntry
	AnnexModels   map[string][]AnnexRow
}

// Provider serves the current snapshot and rebuilds it on demand.
type Provider interface {
	Current() *RuleTables
	Reload(ctx context.Context) (*RuleTables, error)
}

// FindNCM resolves an NCM against the exception table first and the
// master table second, honoring validity windows. Eight digit prefix
// match, same as the source tables use. The second return reports
// whether the hit came from the exception table.
func (t *RuleTables) FindNCM(ncmDigits string, date time.Time) (*NCMEntry, bool) {
	if e := findNCMIn(t.NCMExceptions, ncmDigits, date); e != nil {
		return e, true
	}
	if e := findNCMIn(t.NCMMaster, ncmDigits, date); e != nil {
		return e, false
	}
	return nil, false
}

func findNCMIn(entries []NCMEntry, ncmDigits string, date time.Time) *NCMEntry {
	// Both sides truncate to eight digits before comparing, so chapter
	// level codes in the tables still match chapter level inputs.
	prefix := ncmPrefix(ncmDigits)
	if prefix == "" {
		return nil
	}
	for i := range entries {
		e := &entries[i]
		if ncmPrefix(NormalizeNCM(e.NCM)) == prefix && e.ValidAt(date) {
			return e
		}
	}
	return nil
}

func ncmPrefix(digits string) string {
	if len(digits) > 8 {
		return digits[:8]
	}
	return digits
}

// PickClassTrib selects the most specific matching cclastrib rule.
// Ties keep table order. The second return is false when no rule
// matched and the general-rule fallback is returned instead.
func (t *RuleTables) PickClassTrib(op Operation) (ClassTribRule, bool) {
	var candidates []ClassTribRule
	for _, r := range t.ClassTrib {
		if r.matches(op) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return ClassTribRule{
			Code:        GeneralRuleCode,
			Description: "Regra geral de tributação IBS/CBS",
		}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Specificity() > candidates[j].Specificity()
	})
	return candidates[0], true
}

// MapCST resolves the NF-e CST and cClassTrib tag values for an
// operational cClasTrib code, with the LC 214 default pair as
// fallback.
func (t *RuleTables) MapCST(classTribCode string) (cst, cClassTrib string) {
	code := NormalizeCode(classTribCode)
	for _, m := range t.CSTMap {
		if NormalizeCode(m.ClassTribCode) == code {
			return m.CST, m.CClassTrib
		}
	}
	return DefaultCST, DefaultCClassTrib
}

// TransitionRate returns the phase-in rate for a year, or nil when the
// table has no row for it.
func TransitionRate(entries []TransitionEntry, year int) *decimal.Decimal {
	for _, e := range entries {
		if e.Year == year {
			r := e.Rate
			return &r
		}
	}
	return nil
}

// Stats summarizes row counts per table, for the admin surface and
// startup logging.
func (t *RuleTables) Stats() map[string]int {
	stats := map[string]int{
		"ncm_master":      len(t.NCMMaster),
		"ncm_excecoes":    len(t.NCMExceptions),
		"ibs_aliquotas":   len(t.IBSRates),
		"cbs_aliquotas":   len(t.CBSRates),
		"transicao_ibs":   len(t.IBSTransition),
		"transicao_cbs":   len(t.CBSTransition),
		"cclastrib":       len(t.ClassTrib),
		"cst_ibs_cbs_map": len(t.CSTMap),
	}
	for name, rows := range t.AnnexModels {
		stats["anexo_"+strings.ToLower(name)] = len(rows)
	}
	return stats
}
